package model

import (
	"github.com/commitlabs/commitment-service/internal/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const AttestationCollection = "attestations"

// AttestationDocument is an immutable claim about a commitment's
// condition. Attestations are append-only and never deleted.
type AttestationDocument struct {
	ID           primitive.ObjectID    `bson:"_id,omitempty" json:"id"`
	CommitmentID string                `bson:"commitment_id" json:"commitment_id"`
	Type         types.AttestationType `bson:"type" json:"type"`
	Payload      map[string]string     `bson:"payload" json:"payload"`
	Positive     bool                  `bson:"positive" json:"positive"`
	Verifier     string                `bson:"verifier" json:"verifier"`
	Timestamp    int64                 `bson:"timestamp" json:"timestamp"`
}
