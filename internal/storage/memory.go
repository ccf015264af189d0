// Package storage provides an in-memory implementation of the component
// store interfaces, behaviorally equivalent to the MongoDB-backed
// implementation in internal/db. It backs unit tests and queue-less local
// runs.
package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/commitlabs/commitment-service/internal/db"
	"github.com/commitlabs/commitment-service/internal/db/model"
	"github.com/commitlabs/commitment-service/internal/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Memory struct {
	mu           sync.Mutex
	commitments  map[string]model.CommitmentDocument
	tokens       map[uint64]model.TokenDocument
	owners       map[string]model.OwnerDocument
	attestations map[string][]model.AttestationDocument
	metrics      map[string]model.HealthMetricsDocument
	tokenCounter uint64
	mintOrder    []uint64
	createOrder  []string
}

func NewMemory() *Memory {
	return &Memory{
		commitments:  make(map[string]model.CommitmentDocument),
		tokens:       make(map[uint64]model.TokenDocument),
		owners:       make(map[string]model.OwnerDocument),
		attestations: make(map[string][]model.AttestationDocument),
		metrics:      make(map[string]model.HealthMetricsDocument),
	}
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) SaveNewCommitment(ctx context.Context, doc *model.CommitmentDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.commitments[doc.ID]; ok {
		return &db.DuplicateKeyError{Key: doc.ID, Message: "commitment already exists"}
	}
	m.commitments[doc.ID] = *doc
	m.createOrder = append(m.createOrder, doc.ID)
	return nil
}

func (m *Memory) GetCommitment(ctx context.Context, id string) (*model.CommitmentDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.commitments[id]
	if !ok {
		return nil, &db.NotFoundError{Key: id, Message: "commitment not found"}
	}
	return &doc, nil
}

func (m *Memory) UpdateCommitmentValue(ctx context.Context, id string, newValue int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.commitments[id]
	if !ok {
		return &db.NotFoundError{Key: id, Message: "commitment not found"}
	}
	doc.CurrentValue = newValue
	m.commitments[id] = doc
	return nil
}

func (m *Memory) UpdateCommitmentStatus(
	ctx context.Context,
	id string,
	qualifiedPreviousStates []types.CommitmentStatus,
	newStatus types.CommitmentStatus,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.commitments[id]
	if !ok {
		return &db.NotFoundError{Key: id, Message: "commitment not found or current status is not a qualified state"}
	}
	qualified := false
	for _, state := range qualifiedPreviousStates {
		if doc.Status == state {
			qualified = true
			break
		}
	}
	if !qualified {
		return &db.NotFoundError{Key: id, Message: "commitment not found or current status is not a qualified state"}
	}
	doc.Status = newStatus
	m.commitments[id] = doc
	return nil
}

func (m *Memory) FindExpiredCommitments(ctx context.Context, nowUnix int64, limit int64) ([]model.CommitmentDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []model.CommitmentDocument
	for _, id := range m.createOrder {
		doc := m.commitments[id]
		if doc.Status == types.StatusActive && doc.ExpiresAt <= nowUnix {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ExpiresAt < docs[j].ExpiresAt })
	if limit > 0 && int64(len(docs)) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (m *Memory) ListCommitments(ctx context.Context, owner string, status types.CommitmentStatus, limit int64) ([]model.CommitmentDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []model.CommitmentDocument
	for _, id := range m.createOrder {
		doc := m.commitments[id]
		if owner != "" && doc.Owner != owner {
			continue
		}
		if status != "" && doc.Status != status {
			continue
		}
		docs = append(docs, doc)
		if limit > 0 && int64(len(docs)) == limit {
			break
		}
	}
	return docs, nil
}

func (m *Memory) NextTokenID(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenCounter++
	return m.tokenCounter, nil
}

func (m *Memory) SaveNewToken(ctx context.Context, doc *model.TokenDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[doc.TokenID]; ok {
		return &db.DuplicateKeyError{Message: "token already exists"}
	}
	m.tokens[doc.TokenID] = *doc
	m.mintOrder = append(m.mintOrder, doc.TokenID)
	return nil
}

func (m *Memory) GetToken(ctx context.Context, tokenID uint64) (*model.TokenDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.tokens[tokenID]
	if !ok {
		return nil, &db.NotFoundError{Message: "token not found"}
	}
	return &doc, nil
}

func (m *Memory) UpdateTokenOwner(ctx context.Context, tokenID uint64, newOwner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.tokens[tokenID]
	if !ok {
		return &db.NotFoundError{Message: "token not found"}
	}
	doc.Owner = newOwner
	m.tokens[tokenID] = doc
	return nil
}

func (m *Memory) DeactivateToken(ctx context.Context, tokenID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.tokens[tokenID]
	if !ok {
		return &db.NotFoundError{Message: "token not found"}
	}
	doc.IsActive = false
	m.tokens[tokenID] = doc
	return nil
}

func (m *Memory) GetOwner(ctx context.Context, owner string) (*model.OwnerDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.owners[owner]
	if !ok {
		return &model.OwnerDocument{Owner: owner, Tokens: []uint64{}}, nil
	}
	tokens := make([]uint64, len(doc.Tokens))
	copy(tokens, doc.Tokens)
	doc.Tokens = tokens
	return &doc, nil
}

func (m *Memory) ApplyOwnerDelta(ctx context.Context, owner string, balanceDelta int64, addTokens, removeTokens []uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.owners[owner]
	if !ok {
		doc = model.OwnerDocument{Owner: owner, Tokens: []uint64{}}
	}

	balance := int64(doc.Balance) + balanceDelta
	if balance < 0 {
		balance = 0
	}
	doc.Balance = uint64(balance)

	if len(removeTokens) > 0 {
		removed := make(map[uint64]bool, len(removeTokens))
		for _, id := range removeTokens {
			removed[id] = true
		}
		kept := make([]uint64, 0, len(doc.Tokens))
		for _, id := range doc.Tokens {
			if !removed[id] {
				kept = append(kept, id)
			}
		}
		doc.Tokens = kept
	}
	doc.Tokens = append(doc.Tokens, addTokens...)

	m.owners[owner] = doc
	return nil
}

func (m *Memory) ListTokenIDs(ctx context.Context) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint64, len(m.mintOrder))
	copy(ids, m.mintOrder)
	return ids, nil
}

func (m *Memory) ListTokensByOwner(ctx context.Context, owner string) ([]model.TokenDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []model.TokenDocument
	for _, id := range m.mintOrder {
		doc := m.tokens[id]
		if doc.Owner == owner {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (m *Memory) SaveAttestation(ctx context.Context, doc *model.AttestationDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	m.attestations[doc.CommitmentID] = append(m.attestations[doc.CommitmentID], *doc)
	return nil
}

func (m *Memory) GetAttestations(ctx context.Context, commitmentID string) ([]model.AttestationDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]model.AttestationDocument, len(m.attestations[commitmentID]))
	copy(docs, m.attestations[commitmentID])
	return docs, nil
}

func (m *Memory) GetHealthMetrics(ctx context.Context, commitmentID string) (*model.HealthMetricsDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.metrics[commitmentID]
	if !ok {
		return nil, &db.NotFoundError{Key: commitmentID, Message: "health metrics not found"}
	}
	return &doc, nil
}

func (m *Memory) UpsertHealthMetrics(ctx context.Context, doc *model.HealthMetricsDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics[doc.CommitmentID] = *doc
	return nil
}
