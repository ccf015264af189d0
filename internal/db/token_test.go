//go:build integration

package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commitlabs/commitment-service/internal/db"
	"github.com/commitlabs/commitment-service/internal/db/model"
	"github.com/commitlabs/commitment-service/testutil"
)

func TestNextTokenID(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() {
		resetDatabase(t)
	})

	// ids are sequential starting at 1, surviving across calls
	for want := uint64(1); want <= 3; want++ {
		id, err := testDB.NextTokenID(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
}

func TestToken(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() {
		resetDatabase(t)
	})

	doc := testutil.RandomTokenDocument(1)
	require.NoError(t, testDB.SaveNewToken(ctx, doc))

	t.Run("duplicate id", func(t *testing.T) {
		err := testDB.SaveNewToken(ctx, doc)
		assert.True(t, db.IsDuplicateKeyError(err))
	})
	t.Run("round trip", func(t *testing.T) {
		got, err := testDB.GetToken(ctx, doc.TokenID)
		require.NoError(t, err)
		assert.Equal(t, doc, got)
	})
	t.Run("unknown id", func(t *testing.T) {
		_, err := testDB.GetToken(ctx, 999)
		assert.True(t, db.IsNotFoundError(err))
	})
	t.Run("update owner", func(t *testing.T) {
		require.NoError(t, testDB.UpdateTokenOwner(ctx, doc.TokenID, "bob"))

		got, err := testDB.GetToken(ctx, doc.TokenID)
		require.NoError(t, err)
		assert.Equal(t, "bob", got.Owner)
	})
	t.Run("deactivate", func(t *testing.T) {
		require.NoError(t, testDB.DeactivateToken(ctx, doc.TokenID))

		got, err := testDB.GetToken(ctx, doc.TokenID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	})
}

func TestOwner(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() {
		resetDatabase(t)
	})

	const owner = "alice"

	t.Run("unknown owner has empty record", func(t *testing.T) {
		doc, err := testDB.GetOwner(ctx, owner)
		require.NoError(t, err)
		assert.Zero(t, doc.Balance)
		assert.Empty(t, doc.Tokens)
	})

	require.NoError(t, testDB.ApplyOwnerDelta(ctx, owner, 2, []uint64{1, 2}, nil))
	require.NoError(t, testDB.ApplyOwnerDelta(ctx, owner, 1, []uint64{3}, nil))

	t.Run("credits accumulate", func(t *testing.T) {
		doc, err := testDB.GetOwner(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), doc.Balance)
		assert.Equal(t, []uint64{1, 2, 3}, doc.Tokens)
	})
	t.Run("removes apply before adds", func(t *testing.T) {
		require.NoError(t, testDB.ApplyOwnerDelta(ctx, owner, 0, []uint64{2}, []uint64{2}))

		doc, err := testDB.GetOwner(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 3, 2}, doc.Tokens)
	})
	t.Run("balance floors at zero", func(t *testing.T) {
		require.NoError(t, testDB.ApplyOwnerDelta(ctx, owner, -10, nil, []uint64{1, 2, 3}))

		doc, err := testDB.GetOwner(ctx, owner)
		require.NoError(t, err)
		assert.Zero(t, doc.Balance)
		assert.Empty(t, doc.Tokens)
	})
}

func TestListTokens(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() {
		resetDatabase(t)
	})

	first := testutil.RandomTokenDocument(1)
	first.Owner = "alice"
	second := testutil.RandomTokenDocument(2)
	second.Owner = "bob"
	third := testutil.RandomTokenDocument(3)
	third.Owner = "alice"

	for _, doc := range []*model.TokenDocument{first, second, third} {
		require.NoError(t, testDB.SaveNewToken(ctx, doc))
	}

	ids, err := testDB.ListTokenIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, ids)

	docs, err := testDB.ListTokensByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, uint64(1), docs[0].TokenID)
	assert.Equal(t, uint64(3), docs[1].TokenID)
}
