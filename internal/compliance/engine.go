package compliance

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
	"github.com/rs/zerolog/log"
)

const (
	minScore = 0
	maxScore = 100

	// unexpiredBonus is added by the on-demand recompute while the
	// commitment has not yet expired.
	unexpiredBonus = 10
	// positiveAttestationDelta is added to the stored running score for
	// any positive non-violation attestation.
	positiveAttestationDelta = 1
)

// Store is the keyed storage the engine owns exclusively: attestations
// plus the independently persisted per-commitment state (fees, stored
// score, drawdown override, open-violation flag).
type Store interface {
	SaveAttestation(ctx context.Context, doc *model.AttestationDocument) error
	GetAttestations(ctx context.Context, commitmentID string) ([]model.AttestationDocument, error)
	GetHealthMetrics(ctx context.Context, commitmentID string) (*model.HealthMetricsDocument, error)
	UpsertHealthMetrics(ctx context.Context, doc *model.HealthMetricsDocument) error
}

// LedgerReader is the commitment ledger surface the engine consumes.
// Reads are snapshots taken at call time with no cross-call consistency.
type LedgerReader interface {
	GetCommitment(ctx context.Context, id string) (*model.CommitmentDocument, error)
}

// ViolationOracle reports whether a commitment has an open violation.
type ViolationOracle interface {
	GetViolationFlag(ctx context.Context, commitmentID string) (bool, error)
}

// HealthMetrics is the merged health view of a commitment: the ledger
// snapshot combined with the engine's stored state.
type HealthMetrics struct {
	CommitmentID       string `json:"commitment_id"`
	InitialValue       int64  `json:"initial_value"`
	CurrentValue       int64  `json:"current_value"`
	DrawdownPercent    int64  `json:"drawdown_percent"`
	FeesGenerated      int64  `json:"fees_generated"`
	VolatilityExposure int64  `json:"volatility_exposure"`
	LastAttestation    int64  `json:"last_attestation"`
	ComplianceScore    int64  `json:"compliance_score"`
}

// Engine stores attestations and maintains two independent views of a
// commitment's health score: a stored score updated incrementally per
// attestation and an on-demand recompute derived purely from the ledger
// snapshot. The two diverge whenever attestations exist but the snapshot
// has not changed; that divergence is intended and must be preserved.
type Engine struct {
	store  Store
	ledger LedgerReader
	oracle ViolationOracle
	auth   auth.Provider
	clock  clock.Clock
	events events.Sink
	admin  string
}

func New(store Store, ledger LedgerReader, oracle ViolationOracle, authProvider auth.Provider, clk clock.Clock, sink events.Sink, admin string) *Engine {
	e := &Engine{
		store:  store,
		ledger: ledger,
		oracle: oracle,
		auth:   authProvider,
		clock:  clk,
		events: sink,
		admin:  admin,
	}
	if e.oracle == nil {
		e.oracle = &storeOracle{store: store}
	}
	return e
}

func observe(method string, start time.Time, err *error) {
	outcome := metrics.Success
	if *err != nil {
		outcome = metrics.Error
	}
	metrics.RecordOperationDuration("compliance", method, outcome, time.Since(start))
}

// Attest appends an attestation and applies its fixed delta to the
// stored running score: a violation subtracts the severity penalty from
// its payload, any other positive attestation adds one point. The stored
// score is clamped to [0, 100] after every update.
func (e *Engine) Attest(
	ctx context.Context,
	caller string,
	commitmentID string,
	attType types.AttestationType,
	payload map[string]string,
	positive bool,
) (err error) {
	defer observe("Attest", time.Now(), &err)

	if err := e.auth.RequireAuth(ctx, caller); err != nil {
		return err
	}

	now := e.clock.Now().Unix()
	doc := &model.AttestationDocument{
		CommitmentID: commitmentID,
		Type:         attType,
		Payload:      payload,
		Positive:     positive,
		Verifier:     caller,
		Timestamp:    now,
	}
	if err := e.store.SaveAttestation(ctx, doc); err != nil {
		return fmt.Errorf("failed to save attestation: %w", err)
	}

	stored, err := e.storedMetrics(ctx, commitmentID)
	if err != nil {
		return err
	}

	switch {
	case attType == types.AttestationViolation:
		stored.ComplianceScore -= types.SeverityPenalty(payload["severity"])
		stored.OpenViolation = true
	case positive:
		stored.ComplianceScore += positiveAttestationDelta
		if attType == types.AttestationHealthCheck {
			stored.OpenViolation = false
		}
	}
	stored.ComplianceScore = clampScore(stored.ComplianceScore)
	stored.LastAttestation = now

	if err := e.store.UpsertHealthMetrics(ctx, stored); err != nil {
		return fmt.Errorf("failed to update health metrics: %w", err)
	}
	metrics.RecordStoredComplianceScore(commitmentID, stored.ComplianceScore)

	log.Debug().
		Str("commitment_id", commitmentID).
		Stringer("type", attType).
		Bool("positive", positive).
		Int64("stored_score", stored.ComplianceScore).
		Msg("attestation recorded")

	e.publish(ctx, events.NewAttestationRecordedEvent(now, events.AttestationRecordedPayload{
		CommitmentID: commitmentID,
		Type:         attType.String(),
		Positive:     positive,
		Verifier:     caller,
	}))

	return nil
}

// GetAttestations returns every attestation recorded for a commitment.
func (e *Engine) GetAttestations(ctx context.Context, commitmentID string) ([]model.AttestationDocument, error) {
	return e.store.GetAttestations(ctx, commitmentID)
}

// CalculateComplianceScore recomputes the score from the current ledger
// snapshot only, never folding in stored attestation deltas. Start at
// 100, add 10 while unexpired, subtract twice the excess drawdown over
// the allowed maximum, clamp to [0, 100].
func (e *Engine) CalculateComplianceScore(ctx context.Context, commitmentID string) (score int64, err error) {
	defer observe("CalculateComplianceScore", time.Now(), &err)

	commitment, err := e.ledger.GetCommitment(ctx, commitmentID)
	if err != nil {
		return 0, err
	}

	score = maxScore
	if e.clock.Now().Unix() < commitment.ExpiresAt {
		score += unexpiredBonus
	}

	drawdown := drawdownPercent(commitment.Amount, commitment.CurrentValue)
	if maxLoss := int64(commitment.Rules.MaxLossPercent); drawdown > maxLoss {
		score -= 2 * (drawdown - maxLoss)
	}

	return clampScore(score), nil
}

// VerifyCompliance reports whether the commitment's drawdown is within
// its allowed maximum and no violation is open. Expiry and the fee
// threshold are deliberately not checked.
func (e *Engine) VerifyCompliance(ctx context.Context, commitmentID string) (ok bool, err error) {
	defer observe("VerifyCompliance", time.Now(), &err)

	var drawdown, maxLoss int64
	commitment, err := e.ledger.GetCommitment(ctx, commitmentID)
	switch {
	case err == nil:
		drawdown = drawdownPercent(commitment.Amount, commitment.CurrentValue)
		maxLoss = int64(commitment.Rules.MaxLossPercent)
	case types.IsStateError(err):
		// unknown commitment: zero snapshot, zero drawdown
	default:
		return false, err
	}

	flagged, err := e.oracle.GetViolationFlag(ctx, commitmentID)
	if err != nil {
		return false, fmt.Errorf("failed to get violation flag: %w", err)
	}

	return drawdown <= maxLoss && !flagged, nil
}

// GetHealthMetrics merges the ledger snapshot with the engine's stored
// state. A commitment unknown to the ledger yields zero values with the
// drawdown guarded against division by zero.
func (e *Engine) GetHealthMetrics(ctx context.Context, commitmentID string) (view *HealthMetrics, err error) {
	defer observe("GetHealthMetrics", time.Now(), &err)

	stored, err := e.storedMetrics(ctx, commitmentID)
	if err != nil {
		return nil, err
	}

	view = &HealthMetrics{
		CommitmentID:    commitmentID,
		FeesGenerated:   stored.FeesGenerated,
		LastAttestation: stored.LastAttestation,
		ComplianceScore: stored.ComplianceScore,
	}

	commitment, err := e.ledger.GetCommitment(ctx, commitmentID)
	switch {
	case err == nil:
		view.InitialValue = commitment.Amount
		view.CurrentValue = commitment.CurrentValue
		view.DrawdownPercent = drawdownPercent(commitment.Amount, commitment.CurrentValue)
		view.VolatilityExposure = volatilityExposure(commitment.Rules.CommitmentType)
	case types.IsStateError(err):
		// unknown to the ledger: initial/current stay 0, drawdown stays 0
	default:
		return nil, err
	}

	if stored.HasDrawdownOverride {
		view.DrawdownPercent = stored.DrawdownOverride
	}

	return view, nil
}

// GetStoredComplianceScore returns the stored running score, 100 for a
// commitment with no recorded attestations.
func (e *Engine) GetStoredComplianceScore(ctx context.Context, commitmentID string) (int64, error) {
	stored, err := e.storedMetrics(ctx, commitmentID)
	if err != nil {
		return 0, err
	}
	return stored.ComplianceScore, nil
}

// RecordFees accumulates generated fees for a commitment.
func (e *Engine) RecordFees(ctx context.Context, commitmentID string, amount int64) (err error) {
	defer observe("RecordFees", time.Now(), &err)

	if err := e.auth.RequireAuth(ctx, e.admin); err != nil {
		return err
	}
	if amount <= 0 {
		return types.ErrInvalidAmount
	}

	stored, err := e.storedMetrics(ctx, commitmentID)
	if err != nil {
		return err
	}
	stored.FeesGenerated += amount

	if err := e.store.UpsertHealthMetrics(ctx, stored); err != nil {
		return fmt.Errorf("failed to update health metrics: %w", err)
	}

	e.publish(ctx, events.NewFeesRecordedEvent(e.clock.Now().Unix(), events.FeesRecordedPayload{
		CommitmentID: commitmentID,
		Amount:       amount,
	}))

	return nil
}

// RecordDrawdown stores a display-only drawdown override, distinct from
// the computed value used in scoring.
func (e *Engine) RecordDrawdown(ctx context.Context, commitmentID string, percent int64) (err error) {
	defer observe("RecordDrawdown", time.Now(), &err)

	if err := e.auth.RequireAuth(ctx, e.admin); err != nil {
		return err
	}

	stored, err := e.storedMetrics(ctx, commitmentID)
	if err != nil {
		return err
	}
	stored.DrawdownOverride = percent
	stored.HasDrawdownOverride = true

	if err := e.store.UpsertHealthMetrics(ctx, stored); err != nil {
		return fmt.Errorf("failed to update health metrics: %w", err)
	}
	return nil
}

func (e *Engine) storedMetrics(ctx context.Context, commitmentID string) (*model.HealthMetricsDocument, error) {
	stored, err := e.store.GetHealthMetrics(ctx, commitmentID)
	if err != nil {
		if db.IsNotFoundError(err) {
			return model.NewHealthMetricsDocument(commitmentID), nil
		}
		return nil, fmt.Errorf("failed to get health metrics: %w", err)
	}
	return stored, nil
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if err := e.events.Publish(ctx, ev); err != nil {
		metrics.RecordEventPublishError(ev.Topic)
		log.Error().Err(err).Str("topic", ev.Topic).Msg("failed to publish event")
	}
}

// drawdownPercent computes the loss percentage of current relative to
// initial, floored at zero, with zero initial treated as zero drawdown.
// The multiply runs in big-int space so amounts near the int64 ceiling
// cannot overflow.
func drawdownPercent(amount, currentValue int64) int64 {
	if amount == 0 {
		return 0
	}
	loss := math.NewInt(amount).Sub(math.NewInt(currentValue))
	if loss.IsNegative() {
		return 0
	}
	return loss.MulRaw(100).Quo(math.NewInt(amount)).Int64()
}

// volatilityExposure maps the commitment type to its nominal exposure.
func volatilityExposure(t types.CommitmentType) int64 {
	switch t {
	case types.CommitmentTypeSafe:
		return 10
	case types.CommitmentTypeBalanced:
		return 50
	case types.CommitmentTypeAggressive:
		return 90
	default:
		return 0
	}
}

func clampScore(score int64) int64 {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// storeOracle is the default violation oracle: it reports the engine's
// own open-violation flag, set by a violation attestation and cleared by
// a positive health check.
type storeOracle struct {
	store Store
}

func (o *storeOracle) GetViolationFlag(ctx context.Context, commitmentID string) (bool, error) {
	doc, err := o.store.GetHealthMetrics(ctx, commitmentID)
	if err != nil {
		if db.IsNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return doc.OpenViolation, nil
}
