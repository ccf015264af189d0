package db

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/commitlabs/commitment-service/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Database struct {
	dbName string
	client *mongo.Client
}

// New connects to MongoDB and verifies connectivity with a retried ping.
func New(ctx context.Context, cfg config.DbConfig) (*Database, error) {
	credential := options.Credential{
		Username: cfg.Username,
		Password: cfg.Password,
	}
	clientOps := options.Client().ApplyURI(cfg.Address).SetAuth(credential)
	client, err := mongo.Connect(ctx, clientOps)
	if err != nil {
		return nil, err
	}

	err = retry.Do(
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return client.Ping(pingCtx, nil)
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &Database{
		dbName: cfg.DbName,
		client: client,
	}, nil
}

func (db *Database) Ping(ctx context.Context) error {
	return db.client.Ping(ctx, nil)
}

func (db *Database) Client() *mongo.Client {
	return db.client
}

func (db *Database) collection(name string) *mongo.Collection {
	return db.client.Database(db.dbName).Collection(name)
}
