package model

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type index struct {
	Indexes map[string]int
	Unique  bool
}

var collections = map[string][]index{
	CommitmentCollection: {
		{Indexes: map[string]int{"owner": 1}},
		{Indexes: map[string]int{"status": 1, "expires_at": 1}},
	},
	TokenCollection: {
		{Indexes: map[string]int{"owner": 1}},
	},
	OwnerCollection:   {{Indexes: map[string]int{}}},
	CounterCollection: {{Indexes: map[string]int{}}},
	AttestationCollection: {
		{Indexes: map[string]int{"commitment_id": 1, "timestamp": 1}},
	},
	HealthMetricsCollection: {{Indexes: map[string]int{}}},
}

// Setup creates the collections and indexes used by the service. It is
// idempotent; running it against an already initialized database is a
// no-op apart from index ensure calls.
func Setup(ctx context.Context, client *mongo.Client, dbName string) error {
	database := client.Database(dbName)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for collection, indexes := range collections {
		if err := createCollection(ctx, database, collection); err != nil {
			return err
		}
		for _, idx := range indexes {
			if err := createIndex(ctx, database, collection, idx); err != nil {
				return err
			}
		}
	}

	log.Info().Msg("collections and indexes created successfully")
	return nil
}

func createCollection(ctx context.Context, database *mongo.Database, collectionName string) error {
	// CreateCollection errors if the collection exists; list first
	collections, err := database.ListCollectionNames(ctx, bson.M{"name": collectionName})
	if err != nil {
		return err
	}
	if len(collections) > 0 {
		log.Debug().Str("collection", collectionName).Msg("collection already exists")
		return nil
	}

	if err := database.CreateCollection(ctx, collectionName); err != nil {
		return err
	}
	log.Debug().Str("collection", collectionName).Msg("collection created")
	return nil
}

func createIndex(ctx context.Context, database *mongo.Database, collectionName string, idx index) error {
	if len(idx.Indexes) == 0 {
		return nil
	}

	keys := bson.D{}
	for field, direction := range idx.Indexes {
		keys = append(keys, bson.E{Key: field, Value: direction})
	}

	indexModel := mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetUnique(idx.Unique),
	}
	if _, err := database.Collection(collectionName).Indexes().CreateOne(ctx, indexModel); err != nil {
		return err
	}
	return nil
}
