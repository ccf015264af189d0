package db

import (
	"context"
	"errors"

	"github.com/commitlabs/commitment-service/internal/db/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NextTokenID atomically increments and returns the token id counter.
// The first id handed out is 1.
func (db *Database) NextTokenID(ctx context.Context) (uint64, error) {
	filter := bson.M{"_id": model.TokenCounterID}
	update := bson.M{"$inc": bson.M{"value": 1}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	res := db.collection(model.CounterCollection).FindOneAndUpdate(ctx, filter, update, opts)
	if res.Err() != nil {
		return 0, res.Err()
	}

	var counter model.CounterDocument
	if err := res.Decode(&counter); err != nil {
		return 0, err
	}
	return counter.Value, nil
}

func (db *Database) SaveNewToken(ctx context.Context, doc *model.TokenDocument) error {
	_, err := db.collection(model.TokenCollection).InsertOne(ctx, doc)
	if err != nil {
		var writeErr mongo.WriteException
		if errors.As(err, &writeErr) {
			for _, e := range writeErr.WriteErrors {
				if mongo.IsDuplicateKeyError(e) {
					return &DuplicateKeyError{
						Key:     doc.Owner,
						Message: "token already exists",
					}
				}
			}
		}
		return err
	}
	return nil
}

func (db *Database) GetToken(ctx context.Context, tokenID uint64) (*model.TokenDocument, error) {
	res := db.collection(model.TokenCollection).FindOne(ctx, bson.M{"_id": tokenID})

	var doc model.TokenDocument
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Message: "token not found",
			}
		}
		return nil, err
	}
	return &doc, nil
}

func (db *Database) UpdateTokenOwner(ctx context.Context, tokenID uint64, newOwner string) error {
	res := db.collection(model.TokenCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": tokenID},
		bson.M{"$set": bson.M{"owner": newOwner}},
	)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Message: "token not found",
			}
		}
		return res.Err()
	}
	return nil
}

func (db *Database) DeactivateToken(ctx context.Context, tokenID uint64) error {
	res := db.collection(model.TokenCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": tokenID},
		bson.M{"$set": bson.M{"is_active": false}},
	)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Message: "token not found",
			}
		}
		return res.Err()
	}
	return nil
}

// GetOwner returns the balance/token-list document for an owner. An owner
// with no recorded tokens yields an empty document rather than an error.
func (db *Database) GetOwner(ctx context.Context, owner string) (*model.OwnerDocument, error) {
	res := db.collection(model.OwnerCollection).FindOne(ctx, bson.M{"_id": owner})

	var doc model.OwnerDocument
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &model.OwnerDocument{Owner: owner, Tokens: []uint64{}}, nil
		}
		return nil, err
	}
	return &doc, nil
}

// ApplyOwnerDelta applies one aggregated balance/token-list edit for an
// owner: the balance moves by balanceDelta (floored at zero), removed ids
// leave the token list and added ids are appended in order. Batch
// processing flushes exactly one call per touched address.
func (db *Database) ApplyOwnerDelta(ctx context.Context, owner string, balanceDelta int64, addTokens, removeTokens []uint64) error {
	doc, err := db.GetOwner(ctx, owner)
	if err != nil {
		return err
	}

	balance := int64(doc.Balance) + balanceDelta
	if balance < 0 {
		balance = 0
	}

	tokens := doc.Tokens
	if len(removeTokens) > 0 {
		removed := make(map[uint64]bool, len(removeTokens))
		for _, id := range removeTokens {
			removed[id] = true
		}
		kept := make([]uint64, 0, len(tokens))
		for _, id := range tokens {
			if !removed[id] {
				kept = append(kept, id)
			}
		}
		tokens = kept
	}
	tokens = append(tokens, addTokens...)

	updated := &model.OwnerDocument{
		Owner:   owner,
		Balance: uint64(balance),
		Tokens:  tokens,
	}
	opts := options.Replace().SetUpsert(true)
	_, err = db.collection(model.OwnerCollection).ReplaceOne(ctx, bson.M{"_id": owner}, updated, opts)
	return err
}

// ListTokenIDs returns every minted token id in mint order.
func (db *Database) ListTokenIDs(ctx context.Context) ([]uint64, error) {
	opts := options.Find().
		SetSort(bson.M{"_id": 1}).
		SetProjection(bson.M{"_id": 1})

	cursor, err := db.collection(model.TokenCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []model.TokenDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]uint64, len(docs))
	for i, doc := range docs {
		ids[i] = doc.TokenID
	}
	return ids, nil
}

func (db *Database) ListTokensByOwner(ctx context.Context, owner string) ([]model.TokenDocument, error) {
	opts := options.Find().SetSort(bson.M{"_id": 1})
	cursor, err := db.collection(model.TokenCollection).Find(ctx, bson.M{"owner": owner}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []model.TokenDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
