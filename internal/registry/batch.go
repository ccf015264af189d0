package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/commitlabs/commitment-service/internal/events"
	"github.com/commitlabs/commitment-service/internal/observability/metrics"
	"github.com/commitlabs/commitment-service/internal/types"
	"github.com/rs/zerolog/log"
)

// BatchMode selects the failure policy of a batch call.
type BatchMode string

const (
	// Atomic aborts the whole batch on the first failure with zero
	// mutations applied.
	Atomic BatchMode = "ATOMIC"
	// BestEffort skips failed entries, records them per index and keeps
	// processing.
	BestEffort BatchMode = "BEST_EFFORT"
)

func (m BatchMode) String() string {
	return string(m)
}

// TransferRequest is one entry of a batch transfer.
type TransferRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID uint64 `json:"token_id"`
}

// BatchFailure reports one skipped entry of a best-effort batch.
type BatchFailure struct {
	Index int   `json:"index"`
	Err   error `json:"error"`
}

// BatchResult reports the outcome of a batch transfer.
type BatchResult struct {
	Succeeded int            `json:"succeeded"`
	Failures  []BatchFailure `json:"failures"`
}

// ownerEdits accumulates one owner's balance delta and token-list edits
// across a batch so the store is written once per touched address.
//
// The edit rules reproduce sequential list semantics exactly: a credit
// appends; a debit cancels a pending append if one exists, otherwise
// marks the id removed; a credit of an id already marked removed appends
// it again (the id leaves its old slot and rejoins at the tail, exactly
// as remove-then-append would).
type ownerEdits struct {
	balanceDelta int64
	adds         []uint64
	removes      map[uint64]bool
}

func (e *ownerEdits) credit(tokenID uint64) {
	e.balanceDelta++
	e.adds = append(e.adds, tokenID)
}

func (e *ownerEdits) debit(tokenID uint64) {
	e.balanceDelta--
	for i, id := range e.adds {
		if id == tokenID {
			e.adds = append(e.adds[:i], e.adds[i+1:]...)
			return
		}
	}
	if e.removes == nil {
		e.removes = make(map[uint64]bool)
	}
	e.removes[tokenID] = true
}

func (e *ownerEdits) removeList() []uint64 {
	if len(e.removes) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(e.removes))
	for id := range e.removes {
		ids = append(ids, id)
	}
	return ids
}

// batchState is the in-memory view a batch is validated and simulated
// against before anything is flushed. Ownership checks for later entries
// see the pending owner assigned by earlier entries, so the final state
// is observationally identical to applying the transfers one at a time.
type batchState struct {
	pendingOwner map[uint64]string
	edits        map[string]*ownerEdits
	ownerOrder   []string
	tokenOrder   []uint64
	applied      []TransferRequest
}

func newBatchState() *batchState {
	return &batchState{
		pendingOwner: make(map[uint64]string),
		edits:        make(map[string]*ownerEdits),
	}
}

func (s *batchState) editsFor(owner string) *ownerEdits {
	e, ok := s.edits[owner]
	if !ok {
		e = &ownerEdits{}
		s.edits[owner] = e
		s.ownerOrder = append(s.ownerOrder, owner)
	}
	return e
}

func (s *batchState) apply(t TransferRequest) {
	if _, seen := s.pendingOwner[t.TokenID]; !seen {
		s.tokenOrder = append(s.tokenOrder, t.TokenID)
	}
	s.pendingOwner[t.TokenID] = t.To
	s.editsFor(t.From).debit(t.TokenID)
	s.editsFor(t.To).credit(t.TokenID)
	s.applied = append(s.applied, t)
}

// BatchTransfer executes a list of transfers under one guard acquisition.
// The size ceiling is enforced before any mutation; per-address balance
// and token-list writes are accumulated across the batch and flushed once
// per address at the end.
func (r *Registry) BatchTransfer(ctx context.Context, transfers []TransferRequest, mode BatchMode) (result *BatchResult, err error) {
	defer observe("BatchTransfer", time.Now(), &err)

	if err := r.acquireGuard(); err != nil {
		return nil, err
	}
	defer r.guard.Release()

	if err := r.limiter.Enforce(len(transfers), "batch_transfer"); err != nil {
		return nil, err
	}
	metrics.RecordBatchSize(len(transfers))

	state := newBatchState()
	result = &BatchResult{}

	for i, t := range transfers {
		if err := r.validateTransfer(ctx, state, t); err != nil {
			if mode == Atomic {
				return nil, fmt.Errorf("transfer %d: %w", i, err)
			}
			metrics.RecordBatchItemFailure()
			result.Failures = append(result.Failures, BatchFailure{Index: i, Err: err})
			continue
		}
		state.apply(t)
		result.Succeeded++
	}

	if err := r.flush(ctx, state); err != nil {
		return nil, err
	}

	log.Debug().
		Int("size", len(transfers)).
		Int("succeeded", result.Succeeded).
		Int("failed", len(result.Failures)).
		Stringer("mode", mode).
		Msg("batch transfer processed")

	ts := r.clock.Now().Unix()
	for _, t := range state.applied {
		r.publish(ctx, events.NewTokenTransferredEvent(ts, events.TokenTransferredPayload{
			TokenID: t.TokenID,
			From:    t.From,
			To:      t.To,
		}))
	}

	return result, nil
}

// validateTransfer runs the per-entry checks against the pending view:
// sender authorization, token resolution, ownership.
func (r *Registry) validateTransfer(ctx context.Context, state *batchState, t TransferRequest) error {
	if err := r.auth.RequireAuth(ctx, t.From); err != nil {
		return err
	}

	owner, pending := state.pendingOwner[t.TokenID]
	if !pending {
		doc, err := r.getToken(ctx, t.TokenID)
		if err != nil {
			return err
		}
		owner = doc.Owner
	}
	if owner != t.From {
		return fmt.Errorf("%w: %s does not own token %d", types.ErrNotOwner, t.From, t.TokenID)
	}
	return nil
}

// flush writes the accumulated state: each touched token's final owner
// once, then each touched address's aggregated balance and list edits
// once.
func (r *Registry) flush(ctx context.Context, state *batchState) error {
	for _, tokenID := range state.tokenOrder {
		if err := r.store.UpdateTokenOwner(ctx, tokenID, state.pendingOwner[tokenID]); err != nil {
			return fmt.Errorf("failed to update owner of token %d: %w", tokenID, err)
		}
	}
	for _, owner := range state.ownerOrder {
		e := state.edits[owner]
		if err := r.store.ApplyOwnerDelta(ctx, owner, e.balanceDelta, e.adds, e.removeList()); err != nil {
			return fmt.Errorf("failed to apply owner delta for %s: %w", owner, err)
		}
	}
	return nil
}
