package db

import (
	"context"
	"errors"

	"github.com/commitlabs/commitment-service/internal/db/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *Database) SaveAttestation(ctx context.Context, doc *model.AttestationDocument) error {
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	_, err := db.collection(model.AttestationCollection).InsertOne(ctx, doc)
	return err
}

// GetAttestations returns every attestation recorded for a commitment in
// recording order.
func (db *Database) GetAttestations(ctx context.Context, commitmentID string) ([]model.AttestationDocument, error) {
	filter := bson.M{"commitment_id": commitmentID}
	opts := options.Find().SetSort(bson.D{
		{Key: "timestamp", Value: 1},
		{Key: "_id", Value: 1},
	})

	cursor, err := db.collection(model.AttestationCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []model.AttestationDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// GetHealthMetrics returns the engine's stored per-commitment state. A
// commitment the engine has never touched yields a NotFoundError; callers
// substitute the default document.
func (db *Database) GetHealthMetrics(ctx context.Context, commitmentID string) (*model.HealthMetricsDocument, error) {
	res := db.collection(model.HealthMetricsCollection).FindOne(ctx, bson.M{"_id": commitmentID})

	var doc model.HealthMetricsDocument
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     commitmentID,
				Message: "health metrics not found",
			}
		}
		return nil, err
	}
	return &doc, nil
}

func (db *Database) UpsertHealthMetrics(ctx context.Context, doc *model.HealthMetricsDocument) error {
	opts := options.Replace().SetUpsert(true)
	_, err := db.collection(model.HealthMetricsCollection).ReplaceOne(ctx, bson.M{"_id": doc.CommitmentID}, doc, opts)
	return err
}
