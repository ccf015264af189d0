package db

import (
	"context"
	"time"

	"github.com/commitlabs/commitment-service/internal/db/model"
	"github.com/commitlabs/commitment-service/internal/observability/metrics"
	"github.com/commitlabs/commitment-service/internal/types"
)

// StoreWithMetrics decorates the database with per-method latency
// observations.
type StoreWithMetrics struct {
	db *Database
}

func NewStoreWithMetrics(db *Database) *StoreWithMetrics {
	return &StoreWithMetrics{db: db}
}

func (d *StoreWithMetrics) run(method string, f func() error) error {
	start := time.Now()
	err := f()

	outcome := metrics.Success
	if err != nil {
		outcome = metrics.Error
	}
	metrics.ObserveDbLatency(method, outcome, time.Since(start))

	return err
}

func (d *StoreWithMetrics) Ping(ctx context.Context) error {
	return d.db.Ping(ctx)
}

func (d *StoreWithMetrics) SaveNewCommitment(ctx context.Context, doc *model.CommitmentDocument) error {
	return d.run("SaveNewCommitment", func() error {
		return d.db.SaveNewCommitment(ctx, doc)
	})
}

func (d *StoreWithMetrics) GetCommitment(ctx context.Context, id string) (result *model.CommitmentDocument, err error) {
	//nolint:errcheck
	d.run("GetCommitment", func() error {
		result, err = d.db.GetCommitment(ctx, id)
		return err
	})
	return
}

func (d *StoreWithMetrics) UpdateCommitmentValue(ctx context.Context, id string, newValue int64) error {
	return d.run("UpdateCommitmentValue", func() error {
		return d.db.UpdateCommitmentValue(ctx, id, newValue)
	})
}

func (d *StoreWithMetrics) UpdateCommitmentStatus(ctx context.Context, id string, qualifiedPreviousStates []types.CommitmentStatus, newStatus types.CommitmentStatus) error {
	return d.run("UpdateCommitmentStatus", func() error {
		return d.db.UpdateCommitmentStatus(ctx, id, qualifiedPreviousStates, newStatus)
	})
}

func (d *StoreWithMetrics) FindExpiredCommitments(ctx context.Context, nowUnix int64, limit int64) (result []model.CommitmentDocument, err error) {
	//nolint:errcheck
	d.run("FindExpiredCommitments", func() error {
		result, err = d.db.FindExpiredCommitments(ctx, nowUnix, limit)
		return err
	})
	return
}

func (d *StoreWithMetrics) ListCommitments(ctx context.Context, owner string, status types.CommitmentStatus, limit int64) (result []model.CommitmentDocument, err error) {
	//nolint:errcheck
	d.run("ListCommitments", func() error {
		result, err = d.db.ListCommitments(ctx, owner, status, limit)
		return err
	})
	return
}

func (d *StoreWithMetrics) NextTokenID(ctx context.Context) (result uint64, err error) {
	//nolint:errcheck
	d.run("NextTokenID", func() error {
		result, err = d.db.NextTokenID(ctx)
		return err
	})
	return
}

func (d *StoreWithMetrics) SaveNewToken(ctx context.Context, doc *model.TokenDocument) error {
	return d.run("SaveNewToken", func() error {
		return d.db.SaveNewToken(ctx, doc)
	})
}

func (d *StoreWithMetrics) GetToken(ctx context.Context, tokenID uint64) (result *model.TokenDocument, err error) {
	//nolint:errcheck
	d.run("GetToken", func() error {
		result, err = d.db.GetToken(ctx, tokenID)
		return err
	})
	return
}

func (d *StoreWithMetrics) UpdateTokenOwner(ctx context.Context, tokenID uint64, newOwner string) error {
	return d.run("UpdateTokenOwner", func() error {
		return d.db.UpdateTokenOwner(ctx, tokenID, newOwner)
	})
}

func (d *StoreWithMetrics) DeactivateToken(ctx context.Context, tokenID uint64) error {
	return d.run("DeactivateToken", func() error {
		return d.db.DeactivateToken(ctx, tokenID)
	})
}

func (d *StoreWithMetrics) GetOwner(ctx context.Context, owner string) (result *model.OwnerDocument, err error) {
	//nolint:errcheck
	d.run("GetOwner", func() error {
		result, err = d.db.GetOwner(ctx, owner)
		return err
	})
	return
}

func (d *StoreWithMetrics) ApplyOwnerDelta(ctx context.Context, owner string, balanceDelta int64, addTokens, removeTokens []uint64) error {
	return d.run("ApplyOwnerDelta", func() error {
		return d.db.ApplyOwnerDelta(ctx, owner, balanceDelta, addTokens, removeTokens)
	})
}

func (d *StoreWithMetrics) ListTokenIDs(ctx context.Context) (result []uint64, err error) {
	//nolint:errcheck
	d.run("ListTokenIDs", func() error {
		result, err = d.db.ListTokenIDs(ctx)
		return err
	})
	return
}

func (d *StoreWithMetrics) ListTokensByOwner(ctx context.Context, owner string) (result []model.TokenDocument, err error) {
	//nolint:errcheck
	d.run("ListTokensByOwner", func() error {
		result, err = d.db.ListTokensByOwner(ctx, owner)
		return err
	})
	return
}

func (d *StoreWithMetrics) SaveAttestation(ctx context.Context, doc *model.AttestationDocument) error {
	return d.run("SaveAttestation", func() error {
		return d.db.SaveAttestation(ctx, doc)
	})
}

func (d *StoreWithMetrics) GetAttestations(ctx context.Context, commitmentID string) (result []model.AttestationDocument, err error) {
	//nolint:errcheck
	d.run("GetAttestations", func() error {
		result, err = d.db.GetAttestations(ctx, commitmentID)
		return err
	})
	return
}

func (d *StoreWithMetrics) GetHealthMetrics(ctx context.Context, commitmentID string) (result *model.HealthMetricsDocument, err error) {
	//nolint:errcheck
	d.run("GetHealthMetrics", func() error {
		result, err = d.db.GetHealthMetrics(ctx, commitmentID)
		return err
	})
	return
}

func (d *StoreWithMetrics) UpsertHealthMetrics(ctx context.Context, doc *model.HealthMetricsDocument) error {
	return d.run("UpsertHealthMetrics", func() error {
		return d.db.UpsertHealthMetrics(ctx, doc)
	})
}
