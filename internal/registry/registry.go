package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/commitlabs/commitment-service/internal/auth"
	"github.com/commitlabs/commitment-service/internal/batch"
	"github.com/commitlabs/commitment-service/internal/clock"
	"github.com/commitlabs/commitment-service/internal/db"
	"github.com/commitlabs/commitment-service/internal/db/model"
	"github.com/commitlabs/commitment-service/internal/events"
	"github.com/commitlabs/commitment-service/internal/guard"
	"github.com/commitlabs/commitment-service/internal/observability/metrics"
	"github.com/commitlabs/commitment-service/internal/types"
	"github.com/rs/zerolog/log"
)

// Store is the keyed storage the registry owns exclusively.
type Store interface {
	NextTokenID(ctx context.Context) (uint64, error)
	SaveNewToken(ctx context.Context, doc *model.TokenDocument) error
	GetToken(ctx context.Context, tokenID uint64) (*model.TokenDocument, error)
	UpdateTokenOwner(ctx context.Context, tokenID uint64, newOwner string) error
	DeactivateToken(ctx context.Context, tokenID uint64) error
	GetOwner(ctx context.Context, owner string) (*model.OwnerDocument, error)
	ApplyOwnerDelta(ctx context.Context, owner string, balanceDelta int64, addTokens, removeTokens []uint64) error
	ListTokenIDs(ctx context.Context) ([]uint64, error)
	ListTokensByOwner(ctx context.Context, owner string) ([]model.TokenDocument, error)
}

// Registry owns the token-to-owner mapping, per-owner balances and token
// lists. Every mutating operation is wrapped by a per-instance reentrancy
// guard; entry while the guard is held fails immediately and the guard is
// cleared on every exit path.
type Registry struct {
	store   Store
	auth    auth.Provider
	clock   clock.Clock
	events  events.Sink
	guard   *guard.Guard
	limiter *batch.Limiter
	admin   string
}

func New(store Store, authProvider auth.Provider, clk clock.Clock, sink events.Sink, limiter *batch.Limiter, admin string) *Registry {
	return &Registry{
		store:   store,
		auth:    authProvider,
		clock:   clk,
		events:  sink,
		guard:   guard.New(),
		limiter: limiter,
		admin:   admin,
	}
}

func observe(method string, start time.Time, err *error) {
	outcome := metrics.Success
	if *err != nil {
		outcome = metrics.Error
	}
	metrics.RecordOperationDuration("registry", method, outcome, time.Since(start))
}

func (r *Registry) acquireGuard() error {
	if err := r.guard.Acquire(); err != nil {
		metrics.RecordReentrancyRejected()
		return err
	}
	return nil
}

// Mint validates the metadata snapshot, assigns the next sequential token
// id (starting at 1) and stores the new active record, crediting the
// owner's balance and token list.
func (r *Registry) Mint(ctx context.Context, owner string, metadata model.TokenMetadata) (tokenID uint64, err error) {
	defer observe("Mint", time.Now(), &err)

	if err := r.acquireGuard(); err != nil {
		return 0, err
	}
	defer r.guard.Release()

	if err := r.auth.RequireAuth(ctx, r.admin); err != nil {
		return 0, err
	}
	if metadata.DurationDays == 0 {
		return 0, types.ErrInvalidDuration
	}
	if metadata.MaxLossPercent > 100 {
		return 0, types.ErrInvalidMaxLoss
	}
	if !metadata.CommitmentType.Valid() {
		return 0, types.ErrInvalidCommitmentType
	}
	if metadata.InitialAmount <= 0 {
		return 0, types.ErrInvalidAmount
	}

	tokenID, err = r.store.NextTokenID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to assign token id: %w", err)
	}

	doc := &model.TokenDocument{
		TokenID:  tokenID,
		Owner:    owner,
		Metadata: metadata,
		IsActive: true,
	}
	if err := r.store.SaveNewToken(ctx, doc); err != nil {
		return 0, fmt.Errorf("failed to save token: %w", err)
	}
	if err := r.store.ApplyOwnerDelta(ctx, owner, 1, []uint64{tokenID}, nil); err != nil {
		return 0, fmt.Errorf("failed to credit owner: %w", err)
	}

	log.Debug().
		Uint64("token_id", tokenID).
		Str("owner", owner).
		Str("commitment_id", metadata.CommitmentID).
		Msg("token minted")

	r.publish(ctx, events.NewTokenMintedEvent(r.clock.Now().Unix(), events.TokenMintedPayload{
		TokenID:      tokenID,
		Owner:        owner,
		CommitmentID: metadata.CommitmentID,
	}))

	return tokenID, nil
}

// Transfer moves a token between owners. Transfers are permitted
// regardless of the token's active flag.
func (r *Registry) Transfer(ctx context.Context, from, to string, tokenID uint64) (err error) {
	defer observe("Transfer", time.Now(), &err)

	if err := r.acquireGuard(); err != nil {
		return err
	}
	defer r.guard.Release()

	if err := r.transferLocked(ctx, from, to, tokenID); err != nil {
		return err
	}

	r.publish(ctx, events.NewTokenTransferredEvent(r.clock.Now().Unix(), events.TokenTransferredPayload{
		TokenID: tokenID,
		From:    from,
		To:      to,
	}))
	return nil
}

// transferLocked performs a single validated transfer with the guard
// already held.
func (r *Registry) transferLocked(ctx context.Context, from, to string, tokenID uint64) error {
	if err := r.auth.RequireAuth(ctx, from); err != nil {
		return err
	}

	doc, err := r.getToken(ctx, tokenID)
	if err != nil {
		return err
	}
	if doc.Owner != from {
		return types.ErrNotOwner
	}

	if err := r.store.UpdateTokenOwner(ctx, tokenID, to); err != nil {
		return fmt.Errorf("failed to update token owner: %w", err)
	}
	if err := r.store.ApplyOwnerDelta(ctx, from, -1, nil, []uint64{tokenID}); err != nil {
		return fmt.Errorf("failed to debit sender: %w", err)
	}
	if err := r.store.ApplyOwnerDelta(ctx, to, 1, []uint64{tokenID}, nil); err != nil {
		return fmt.Errorf("failed to credit recipient: %w", err)
	}

	log.Debug().
		Uint64("token_id", tokenID).
		Str("from", from).
		Str("to", to).
		Msg("token transferred")
	return nil
}

// Settle marks an expired token inactive. Repeated settles fail
// AlreadySettled rather than succeeding silently.
func (r *Registry) Settle(ctx context.Context, tokenID uint64) (err error) {
	defer observe("Settle", time.Now(), &err)

	if err := r.acquireGuard(); err != nil {
		return err
	}
	defer r.guard.Release()

	return r.deactivate(ctx, tokenID, true)
}

// Deactivate marks a token inactive without the expiry check. The ledger
// uses it when a commitment exits early, before its expiry has passed.
func (r *Registry) Deactivate(ctx context.Context, tokenID uint64) (err error) {
	defer observe("Deactivate", time.Now(), &err)

	if err := r.acquireGuard(); err != nil {
		return err
	}
	defer r.guard.Release()

	return r.deactivate(ctx, tokenID, false)
}

func (r *Registry) deactivate(ctx context.Context, tokenID uint64, checkExpiry bool) error {
	if err := r.auth.RequireAuth(ctx, r.admin); err != nil {
		return err
	}

	doc, err := r.getToken(ctx, tokenID)
	if err != nil {
		return err
	}
	if !doc.IsActive {
		return types.ErrAlreadySettled
	}
	if checkExpiry && r.clock.Now().Unix() < doc.Metadata.ExpiresAt {
		return types.ErrNotExpired
	}

	if err := r.store.DeactivateToken(ctx, tokenID); err != nil {
		return fmt.Errorf("failed to deactivate token: %w", err)
	}

	log.Debug().Uint64("token_id", tokenID).Msg("token settled")

	r.publish(ctx, events.NewTokenSettledEvent(r.clock.Now().Unix(), events.TokenSettledPayload{
		TokenID: tokenID,
	}))
	return nil
}

// GetToken returns the ownership record, failing TokenNotFound for
// unknown ids.
func (r *Registry) GetToken(ctx context.Context, tokenID uint64) (*model.TokenDocument, error) {
	return r.getToken(ctx, tokenID)
}

// OwnerOf returns the current owner of a token.
func (r *Registry) OwnerOf(ctx context.Context, tokenID uint64) (string, error) {
	doc, err := r.getToken(ctx, tokenID)
	if err != nil {
		return "", err
	}
	return doc.Owner, nil
}

// BalanceOf returns the owner's balance counter.
func (r *Registry) BalanceOf(ctx context.Context, owner string) (uint64, error) {
	doc, err := r.store.GetOwner(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("failed to get owner: %w", err)
	}
	return doc.Balance, nil
}

// TokensOf returns the owner's token id list in acquisition order.
func (r *Registry) TokensOf(ctx context.Context, owner string) ([]uint64, error) {
	doc, err := r.store.GetOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}
	return doc.Tokens, nil
}

// ListTokenIDs returns every minted token id in mint order.
func (r *Registry) ListTokenIDs(ctx context.Context) ([]uint64, error) {
	return r.store.ListTokenIDs(ctx)
}

// ListTokensByOwner returns full records for an owner's tokens.
func (r *Registry) ListTokensByOwner(ctx context.Context, owner string) ([]model.TokenDocument, error) {
	return r.store.ListTokensByOwner(ctx, owner)
}

func (r *Registry) getToken(ctx context.Context, tokenID uint64) (*model.TokenDocument, error) {
	doc, err := r.store.GetToken(ctx, tokenID)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, types.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return doc, nil
}

func (r *Registry) publish(ctx context.Context, ev events.Event) {
	if err := r.events.Publish(ctx, ev); err != nil {
		metrics.RecordEventPublishError(ev.Topic)
		log.Error().Err(err).Str("topic", ev.Topic).Msg("failed to publish event")
	}
}
