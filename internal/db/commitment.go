package db

import (
	"context"
	"errors"

	"github.com/commitlabs/commitment-service/internal/db/model"
	"github.com/commitlabs/commitment-service/internal/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *Database) SaveNewCommitment(ctx context.Context, doc *model.CommitmentDocument) error {
	_, err := db.collection(model.CommitmentCollection).InsertOne(ctx, doc)
	if err != nil {
		var writeErr mongo.WriteException
		if errors.As(err, &writeErr) {
			for _, e := range writeErr.WriteErrors {
				if mongo.IsDuplicateKeyError(e) {
					return &DuplicateKeyError{
						Key:     doc.ID,
						Message: "commitment already exists",
					}
				}
			}
		}
		return err
	}
	return nil
}

func (db *Database) GetCommitment(ctx context.Context, id string) (*model.CommitmentDocument, error) {
	res := db.collection(model.CommitmentCollection).FindOne(ctx, bson.M{"_id": id})

	var doc model.CommitmentDocument
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     id,
				Message: "commitment not found",
			}
		}
		return nil, err
	}
	return &doc, nil
}

func (db *Database) UpdateCommitmentValue(ctx context.Context, id string, newValue int64) error {
	res := db.collection(model.CommitmentCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"current_value": newValue}},
	)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Key:     id,
				Message: "commitment not found",
			}
		}
		return res.Err()
	}
	return nil
}

// UpdateCommitmentStatus transitions a commitment to newStatus only if its
// current status is one of the qualified previous states, so a terminal
// state can never be left through a lost-update race.
func (db *Database) UpdateCommitmentStatus(
	ctx context.Context,
	id string,
	qualifiedPreviousStates []types.CommitmentStatus,
	newStatus types.CommitmentStatus,
) error {
	qualifiedStateStrs := make([]string, len(qualifiedPreviousStates))
	for i, state := range qualifiedPreviousStates {
		qualifiedStateStrs[i] = state.String()
	}

	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": qualifiedStateStrs},
	}
	update := bson.M{
		"$set": bson.M{"status": newStatus.String()},
	}

	res := db.collection(model.CommitmentCollection).FindOneAndUpdate(ctx, filter, update)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Key:     id,
				Message: "commitment not found or current status is not a qualified state",
			}
		}
		return res.Err()
	}
	return nil
}

// FindExpiredCommitments returns commitments still Active whose expiry
// timestamp has passed, up to limit.
func (db *Database) FindExpiredCommitments(ctx context.Context, nowUnix int64, limit int64) ([]model.CommitmentDocument, error) {
	filter := bson.M{
		"status":     types.StatusActive.String(),
		"expires_at": bson.M{"$lte": nowUnix},
	}
	opts := options.Find().SetLimit(limit).SetSort(bson.M{"expires_at": 1})

	cursor, err := db.collection(model.CommitmentCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []model.CommitmentDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// ListCommitments returns commitments filtered by owner and/or status;
// empty filters match everything.
func (db *Database) ListCommitments(ctx context.Context, owner string, status types.CommitmentStatus, limit int64) ([]model.CommitmentDocument, error) {
	filter := bson.M{}
	if owner != "" {
		filter["owner"] = owner
	}
	if status != "" {
		filter["status"] = status.String()
	}
	opts := options.Find().SetLimit(limit).SetSort(bson.M{"created_at": 1})

	cursor, err := db.collection(model.CommitmentCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []model.CommitmentDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
