package ledger

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/commitlabs/commitment-service/internal/auth"
	"github.com/commitlabs/commitment-service/internal/clock"
	"github.com/commitlabs/commitment-service/internal/db"
	"github.com/commitlabs/commitment-service/internal/db/model"
	"github.com/commitlabs/commitment-service/internal/events"
	"github.com/commitlabs/commitment-service/internal/observability/metrics"
	"github.com/commitlabs/commitment-service/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const secondsPerDay = 86400

// Store is the keyed storage the ledger owns exclusively.
type Store interface {
	SaveNewCommitment(ctx context.Context, doc *model.CommitmentDocument) error
	GetCommitment(ctx context.Context, id string) (*model.CommitmentDocument, error)
	UpdateCommitmentValue(ctx context.Context, id string, newValue int64) error
	UpdateCommitmentStatus(ctx context.Context, id string, qualifiedPreviousStates []types.CommitmentStatus, newStatus types.CommitmentStatus) error
	FindExpiredCommitments(ctx context.Context, nowUnix int64, limit int64) ([]model.CommitmentDocument, error)
	ListCommitments(ctx context.Context, owner string, status types.CommitmentStatus, limit int64) ([]model.CommitmentDocument, error)
}

// Registrar is the ownership registry surface the ledger drives: a token
// is minted when a commitment is created and deactivated when the
// commitment reaches a terminal state.
type Registrar interface {
	Mint(ctx context.Context, owner string, metadata model.TokenMetadata) (uint64, error)
	Settle(ctx context.Context, tokenID uint64) error
	Deactivate(ctx context.Context, tokenID uint64) error
}

// Ledger owns the canonical commitment records and their lifecycle state
// machine: Active is initial, Settled and EarlyExit are terminal, and no
// operation transitions out of a terminal state.
type Ledger struct {
	store     Store
	registrar Registrar
	auth      auth.Provider
	clock     clock.Clock
	events    events.Sink
	admin     string
}

func New(store Store, registrar Registrar, authProvider auth.Provider, clk clock.Clock, sink events.Sink, admin string) *Ledger {
	return &Ledger{
		store:     store,
		registrar: registrar,
		auth:      authProvider,
		clock:     clk,
		events:    sink,
		admin:     admin,
	}
}

func observe(method string, start time.Time, err *error) {
	outcome := metrics.Success
	if *err != nil {
		outcome = metrics.Error
	}
	metrics.RecordOperationDuration("ledger", method, outcome, time.Since(start))
}

// CreateCommitment validates input, mints the ownership token and stores
// the new commitment in Active state. Returns the commitment id.
func (l *Ledger) CreateCommitment(
	ctx context.Context,
	owner string,
	amount int64,
	asset string,
	rules model.CommitmentRules,
) (id string, err error) {
	defer observe("CreateCommitment", time.Now(), &err)

	if err := l.auth.RequireAuth(ctx, owner); err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", types.ErrInvalidAmount
	}
	if rules.DurationDays == 0 {
		return "", types.ErrInvalidDuration
	}

	id = uuid.NewString()
	createdAt := l.clock.Now().Unix()
	expiresAt := createdAt + int64(rules.DurationDays)*secondsPerDay

	// The registry re-validates the metadata snapshot (type, max loss),
	// so an invalid rule set fails here before anything is stored. Minting
	// is admin-gated in the registry; the ledger is the minting authority,
	// so the call runs under the admin identity.
	tokenID, err := l.registrar.Mint(auth.WithCaller(ctx, l.admin), owner, model.TokenMetadata{
		CommitmentID:            id,
		DurationDays:            rules.DurationDays,
		MaxLossPercent:          rules.MaxLossPercent,
		CommitmentType:          rules.CommitmentType,
		EarlyExitPenaltyPercent: rules.EarlyExitPenaltyPercent,
		CreatedAt:               createdAt,
		ExpiresAt:               expiresAt,
		InitialAmount:           amount,
		Asset:                   asset,
	})
	if err != nil {
		return "", fmt.Errorf("failed to mint commitment token: %w", err)
	}

	doc := &model.CommitmentDocument{
		ID:           id,
		Owner:        owner,
		TokenID:      tokenID,
		Rules:        rules,
		Amount:       amount,
		Asset:        asset,
		CreatedAt:    createdAt,
		ExpiresAt:    expiresAt,
		CurrentValue: amount,
		Status:       types.StatusActive,
	}
	if err := l.store.SaveNewCommitment(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to save commitment: %w", err)
	}

	log.Debug().
		Str("commitment_id", id).
		Str("owner", owner).
		Uint64("token_id", tokenID).
		Int64("expires_at", expiresAt).
		Msg("commitment created")

	l.publish(ctx, events.NewCommitmentCreatedEvent(createdAt, events.CommitmentCreatedPayload{
		CommitmentID: id,
		Owner:        owner,
		TokenID:      tokenID,
		Amount:       amount,
		Asset:        asset,
		ExpiresAt:    expiresAt,
	}))

	return id, nil
}

// UpdateValue overwrites the commitment's current value. Admin-only; the
// status is never touched.
func (l *Ledger) UpdateValue(ctx context.Context, id string, newValue int64) (err error) {
	defer observe("UpdateValue", time.Now(), &err)

	if err := l.auth.RequireAuth(ctx, l.admin); err != nil {
		return err
	}
	if newValue < 0 {
		return types.ErrInvalidAmount
	}

	if err := l.store.UpdateCommitmentValue(ctx, id, newValue); err != nil {
		if db.IsNotFoundError(err) {
			return types.ErrCommitmentNotFound
		}
		return fmt.Errorf("failed to update commitment value: %w", err)
	}

	l.publish(ctx, events.NewCommitmentValueUpdatedEvent(l.clock.Now().Unix(), events.CommitmentValueUpdatedPayload{
		CommitmentID: id,
		CurrentValue: newValue,
	}))

	return nil
}

// Settle finalizes an expired Active commitment and deactivates its
// token. It fails NotExpired before expiry, AlreadySettled on a settled
// commitment and TerminalState on an early-exited one.
func (l *Ledger) Settle(ctx context.Context, id string) (err error) {
	defer observe("Settle", time.Now(), &err)

	if err := l.auth.RequireAuth(ctx, l.admin); err != nil {
		return err
	}

	doc, err := l.getCommitment(ctx, id)
	if err != nil {
		return err
	}
	if err := terminalStateError(doc.Status); err != nil {
		return err
	}
	if l.clock.Now().Unix() < doc.ExpiresAt {
		return types.ErrNotExpired
	}

	if err := l.store.UpdateCommitmentStatus(ctx, id, types.QualifiedStatesForSettle(), types.StatusSettled); err != nil {
		if db.IsNotFoundError(err) {
			return types.ErrAlreadySettled
		}
		return fmt.Errorf("failed to update commitment status: %w", err)
	}

	// The token settles in lockstep with the commitment. The ledger
	// transition is already committed; a registry failure surfaces but
	// cannot roll it back.
	if err := l.registrar.Settle(ctx, doc.TokenID); err != nil && !types.IsStateError(err) {
		return fmt.Errorf("commitment settled but token settlement failed: %w", err)
	}

	log.Debug().
		Str("commitment_id", id).
		Uint64("token_id", doc.TokenID).
		Msg("commitment settled")

	l.publish(ctx, events.NewCommitmentSettledEvent(l.clock.Now().Unix(), events.CommitmentSettledPayload{
		CommitmentID: id,
		TokenID:      doc.TokenID,
	}))

	return nil
}

// EarlyExit terminates an Active commitment before expiry on the owner's
// request and returns the penalty amount. Fund movement is the caller's
// concern.
func (l *Ledger) EarlyExit(ctx context.Context, id string, owner string) (penalty int64, err error) {
	defer observe("EarlyExit", time.Now(), &err)

	if err := l.auth.RequireAuth(ctx, owner); err != nil {
		return 0, err
	}

	doc, err := l.getCommitment(ctx, id)
	if err != nil {
		return 0, err
	}
	if doc.Owner != owner {
		return 0, types.ErrNotOwner
	}
	if err := terminalStateError(doc.Status); err != nil {
		return 0, err
	}

	penalty = math.NewInt(doc.Amount).
		MulRaw(int64(doc.Rules.EarlyExitPenaltyPercent)).
		QuoRaw(100).
		Int64()

	if err := l.store.UpdateCommitmentStatus(ctx, id, types.QualifiedStatesForEarlyExit(), types.StatusEarlyExit); err != nil {
		if db.IsNotFoundError(err) {
			return 0, types.ErrAlreadySettled
		}
		return 0, fmt.Errorf("failed to update commitment status: %w", err)
	}

	// Deactivation is admin-gated in the registry; the exit was already
	// authorized against the owner above.
	if err := l.registrar.Deactivate(auth.WithCaller(ctx, l.admin), doc.TokenID); err != nil && !types.IsStateError(err) {
		return 0, fmt.Errorf("commitment exited but token deactivation failed: %w", err)
	}

	log.Debug().
		Str("commitment_id", id).
		Str("owner", owner).
		Int64("penalty", penalty).
		Msg("commitment exited early")

	l.publish(ctx, events.NewCommitmentEarlyExitEvent(l.clock.Now().Unix(), events.CommitmentEarlyExitPayload{
		CommitmentID: id,
		Owner:        owner,
		Penalty:      penalty,
	}))

	return penalty, nil
}

// GetCommitment returns the commitment record, failing CommitmentNotFound
// for unknown ids.
func (l *Ledger) GetCommitment(ctx context.Context, id string) (*model.CommitmentDocument, error) {
	return l.getCommitment(ctx, id)
}

// ListCommitments returns commitments filtered by owner and/or status.
func (l *Ledger) ListCommitments(ctx context.Context, owner string, status types.CommitmentStatus, limit int64) ([]model.CommitmentDocument, error) {
	return l.store.ListCommitments(ctx, owner, status, limit)
}

// FindExpired returns Active commitments whose expiry has passed.
func (l *Ledger) FindExpired(ctx context.Context, limit int64) ([]model.CommitmentDocument, error) {
	return l.store.FindExpiredCommitments(ctx, l.clock.Now().Unix(), limit)
}

func (l *Ledger) getCommitment(ctx context.Context, id string) (*model.CommitmentDocument, error) {
	doc, err := l.store.GetCommitment(ctx, id)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, types.ErrCommitmentNotFound
		}
		return nil, fmt.Errorf("failed to get commitment: %w", err)
	}
	return doc, nil
}

func terminalStateError(status types.CommitmentStatus) error {
	switch status {
	case types.StatusSettled:
		return types.ErrAlreadySettled
	case types.StatusEarlyExit:
		return types.ErrTerminalState
	default:
		return nil
	}
}

func (l *Ledger) publish(ctx context.Context, ev events.Event) {
	if err := l.events.Publish(ctx, ev); err != nil {
		metrics.RecordEventPublishError(ev.Topic)
		log.Error().Err(err).Str("topic", ev.Topic).Msg("failed to publish event")
	}
}
