package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commitlabs/commitment-service/internal/auth"
	"github.com/commitlabs/commitment-service/internal/batch"
	"github.com/commitlabs/commitment-service/internal/clock"
	"github.com/commitlabs/commitment-service/internal/db/model"
	"github.com/commitlabs/commitment-service/internal/events"
	"github.com/commitlabs/commitment-service/internal/registry"
	"github.com/commitlabs/commitment-service/internal/storage"
	"github.com/commitlabs/commitment-service/internal/types"
)

const (
	testAdmin = "admin"
	testOwner = "alice"
)

type fixture struct {
	store    *storage.Memory
	clock    *clock.Manual
	ledger   *Ledger
	registry *registry.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewMemory()
	clk := clock.NewManual(time.Unix(1_700_000_000, 0).UTC())
	authProvider := auth.NewCallerProvider()
	sink := events.NewNoop()

	reg := registry.New(store, authProvider, clk, sink, batch.NewLimiter(batch.DefaultMaxBatchSize), testAdmin)
	led := New(store, reg, authProvider, clk, sink, testAdmin)

	return &fixture{
		store:    store,
		clock:    clk,
		ledger:   led,
		registry: reg,
	}
}

func callerCtx(caller string) context.Context {
	return auth.WithCaller(context.Background(), caller)
}

func validRules() model.CommitmentRules {
	return model.CommitmentRules{
		DurationDays:            30,
		MaxLossPercent:          10,
		CommitmentType:          types.CommitmentTypeBalanced,
		EarlyExitPenaltyPercent: 5,
	}
}

func TestCreateCommitment(t *testing.T) {
	f := newFixture(t)
	ctx := callerCtx(testOwner)

	id, err := f.ledger.CreateCommitment(ctx, testOwner, 1000, "USDC", validRules())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := f.ledger.GetCommitment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, testOwner, doc.Owner)
	assert.Equal(t, int64(1000), doc.Amount)
	assert.Equal(t, int64(1000), doc.CurrentValue)
	assert.Equal(t, types.StatusActive, doc.Status)
	assert.Equal(t, doc.CreatedAt+30*86400, doc.ExpiresAt)

	// the ownership token is minted in the same operation
	assert.Equal(t, uint64(1), doc.TokenID)
	token, err := f.registry.GetToken(ctx, doc.TokenID)
	require.NoError(t, err)
	assert.Equal(t, testOwner, token.Owner)
	assert.True(t, token.IsActive)
	assert.Equal(t, id, token.Metadata.CommitmentID)
}

func TestCreateCommitmentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := callerCtx(testOwner)

	t.Run("zero amount", func(t *testing.T) {
		_, err := f.ledger.CreateCommitment(ctx, testOwner, 0, "USDC", validRules())
		assert.ErrorIs(t, err, types.ErrInvalidAmount)
	})
	t.Run("negative amount", func(t *testing.T) {
		_, err := f.ledger.CreateCommitment(ctx, testOwner, -5, "USDC", validRules())
		assert.ErrorIs(t, err, types.ErrInvalidAmount)
	})
	t.Run("zero duration", func(t *testing.T) {
		rules := validRules()
		rules.DurationDays = 0
		_, err := f.ledger.CreateCommitment(ctx, testOwner, 1000, "USDC", rules)
		assert.ErrorIs(t, err, types.ErrInvalidDuration)
	})
	t.Run("max loss over 100", func(t *testing.T) {
		rules := validRules()
		rules.MaxLossPercent = 101
		_, err := f.ledger.CreateCommitment(ctx, testOwner, 1000, "USDC", rules)
		assert.ErrorIs(t, err, types.ErrInvalidMaxLoss)
	})
	t.Run("unknown commitment type", func(t *testing.T) {
		rules := validRules()
		rules.CommitmentType = "reckless"
		_, err := f.ledger.CreateCommitment(ctx, testOwner, 1000, "USDC", rules)
		assert.ErrorIs(t, err, types.ErrInvalidCommitmentType)
	})
	t.Run("caller is not the owner", func(t *testing.T) {
		_, err := f.ledger.CreateCommitment(callerCtx("mallory"), testOwner, 1000, "USDC", validRules())
		assert.ErrorIs(t, err, types.ErrUnauthorized)
	})
}

func TestUpdateValue(t *testing.T) {
	f := newFixture(t)
	ownerCtx := callerCtx(testOwner)
	adminCtx := callerCtx(testAdmin)

	id, err := f.ledger.CreateCommitment(ownerCtx, testOwner, 1000, "USDC", validRules())
	require.NoError(t, err)

	require.NoError(t, f.ledger.UpdateValue(adminCtx, id, 850))

	doc, err := f.ledger.GetCommitment(ownerCtx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(850), doc.CurrentValue)
	assert.Equal(t, types.StatusActive, doc.Status)

	t.Run("zero is allowed", func(t *testing.T) {
		require.NoError(t, f.ledger.UpdateValue(adminCtx, id, 0))
	})
	t.Run("negative rejected", func(t *testing.T) {
		assert.ErrorIs(t, f.ledger.UpdateValue(adminCtx, id, -1), types.ErrInvalidAmount)
	})
	t.Run("admin only", func(t *testing.T) {
		assert.ErrorIs(t, f.ledger.UpdateValue(ownerCtx, id, 900), types.ErrUnauthorized)
	})
	t.Run("unknown commitment", func(t *testing.T) {
		assert.ErrorIs(t, f.ledger.UpdateValue(adminCtx, "missing", 900), types.ErrCommitmentNotFound)
	})
}

func TestSettle(t *testing.T) {
	f := newFixture(t)
	ownerCtx := callerCtx(testOwner)
	adminCtx := callerCtx(testAdmin)

	id, err := f.ledger.CreateCommitment(ownerCtx, testOwner, 1000, "USDC", validRules())
	require.NoError(t, err)

	t.Run("before expiry", func(t *testing.T) {
		assert.ErrorIs(t, f.ledger.Settle(adminCtx, id), types.ErrNotExpired)
	})

	f.clock.Advance(31 * 24 * time.Hour)

	require.NoError(t, f.ledger.Settle(adminCtx, id))

	doc, err := f.ledger.GetCommitment(ownerCtx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSettled, doc.Status)

	token, err := f.registry.GetToken(ownerCtx, doc.TokenID)
	require.NoError(t, err)
	assert.False(t, token.IsActive)

	t.Run("double settle", func(t *testing.T) {
		assert.ErrorIs(t, f.ledger.Settle(adminCtx, id), types.ErrAlreadySettled)
	})
	t.Run("admin only", func(t *testing.T) {
		assert.ErrorIs(t, f.ledger.Settle(ownerCtx, id), types.ErrUnauthorized)
	})
	t.Run("unknown commitment", func(t *testing.T) {
		assert.ErrorIs(t, f.ledger.Settle(adminCtx, "missing"), types.ErrCommitmentNotFound)
	})
}

func TestEarlyExit(t *testing.T) {
	f := newFixture(t)
	ownerCtx := callerCtx(testOwner)

	id, err := f.ledger.CreateCommitment(ownerCtx, testOwner, 1000, "USDC", validRules())
	require.NoError(t, err)

	penalty, err := f.ledger.EarlyExit(ownerCtx, id, testOwner)
	require.NoError(t, err)
	// 5% of 1000
	assert.Equal(t, int64(50), penalty)

	doc, err := f.ledger.GetCommitment(ownerCtx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusEarlyExit, doc.Status)

	token, err := f.registry.GetToken(ownerCtx, doc.TokenID)
	require.NoError(t, err)
	assert.False(t, token.IsActive)

	t.Run("terminal afterwards", func(t *testing.T) {
		_, err := f.ledger.EarlyExit(ownerCtx, id, testOwner)
		assert.ErrorIs(t, err, types.ErrTerminalState)
	})
	t.Run("settle after exit", func(t *testing.T) {
		f.clock.Advance(31 * 24 * time.Hour)
		assert.ErrorIs(t, f.ledger.Settle(callerCtx(testAdmin), id), types.ErrTerminalState)
	})
}

func TestEarlyExitPenaltyRounding(t *testing.T) {
	f := newFixture(t)
	ctx := callerCtx(testOwner)

	rules := validRules()
	rules.EarlyExitPenaltyPercent = 33

	id, err := f.ledger.CreateCommitment(ctx, testOwner, 101, "USDC", rules)
	require.NoError(t, err)

	penalty, err := f.ledger.EarlyExit(ctx, id, testOwner)
	require.NoError(t, err)
	// 101 * 33 / 100 truncates
	assert.Equal(t, int64(33), penalty)
}

func TestEarlyExitAuthorization(t *testing.T) {
	f := newFixture(t)
	ownerCtx := callerCtx(testOwner)

	id, err := f.ledger.CreateCommitment(ownerCtx, testOwner, 1000, "USDC", validRules())
	require.NoError(t, err)

	t.Run("caller mismatch", func(t *testing.T) {
		_, err := f.ledger.EarlyExit(callerCtx("mallory"), id, testOwner)
		assert.ErrorIs(t, err, types.ErrUnauthorized)
	})
	t.Run("non-owner principal", func(t *testing.T) {
		_, err := f.ledger.EarlyExit(callerCtx("mallory"), id, "mallory")
		assert.ErrorIs(t, err, types.ErrNotOwner)
	})
	t.Run("unknown commitment", func(t *testing.T) {
		_, err := f.ledger.EarlyExit(ownerCtx, "missing", testOwner)
		assert.ErrorIs(t, err, types.ErrCommitmentNotFound)
	})
}

func TestListCommitments(t *testing.T) {
	f := newFixture(t)
	aliceCtx := callerCtx("alice")
	bobCtx := callerCtx("bob")

	aliceID, err := f.ledger.CreateCommitment(aliceCtx, "alice", 1000, "USDC", validRules())
	require.NoError(t, err)
	_, err = f.ledger.CreateCommitment(bobCtx, "bob", 2000, "USDC", validRules())
	require.NoError(t, err)

	_, err = f.ledger.EarlyExit(aliceCtx, aliceID, "alice")
	require.NoError(t, err)

	all, err := f.ledger.ListCommitments(context.Background(), "", "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	alices, err := f.ledger.ListCommitments(context.Background(), "alice", "", 0)
	require.NoError(t, err)
	require.Len(t, alices, 1)
	assert.Equal(t, aliceID, alices[0].ID)

	active, err := f.ledger.ListCommitments(context.Background(), "", types.StatusActive, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "bob", active[0].Owner)
}

func TestFindExpired(t *testing.T) {
	f := newFixture(t)
	ctx := callerCtx(testOwner)

	short := validRules()
	short.DurationDays = 1
	long := validRules()
	long.DurationDays = 90

	shortID, err := f.ledger.CreateCommitment(ctx, testOwner, 1000, "USDC", short)
	require.NoError(t, err)
	_, err = f.ledger.CreateCommitment(ctx, testOwner, 1000, "USDC", long)
	require.NoError(t, err)

	expired, err := f.ledger.FindExpired(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, expired)

	f.clock.Advance(48 * time.Hour)

	expired, err = f.ledger.FindExpired(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, shortID, expired[0].ID)
}
