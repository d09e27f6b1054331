package db

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(account, hash string, ts int64) *ledger.TransactionRecord {
	return &ledger.TransactionRecord{
		Account:     account,
		Hash:        hash,
		Timestamp:   ts,
		LogicalTime: fmt.Sprintf("%d000", ts),
		TotalFees:   "2855",
		Source:      "EQsender",
		Destination: account,
		Value:       "1500000000",
		Message:     "memo " + hash,
	}
}

func TestInsertTransaction(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	rec := testRecord("EQwatched", "hash-1", 1700000000)

	t.Run("first insert stores the row", func(t *testing.T) {
		inserted, err := store.InsertTransaction(ctx, rec)
		require.NoError(t, err)
		assert.True(t, inserted)

		got, err := store.GetTransaction(ctx, "hash-1")
		require.NoError(t, err)
		assert.Equal(t, *rec, got.TransactionRecord)
		assert.WithinDuration(t, time.Now(), got.CreatedAt, 5*time.Second)
	})

	t.Run("replay is a no-op", func(t *testing.T) {
		changed := *rec
		changed.Message = "different"

		inserted, err := store.InsertTransaction(ctx, &changed)
		require.NoError(t, err)
		assert.False(t, inserted)

		got, err := store.GetTransaction(ctx, "hash-1")
		require.NoError(t, err)
		assert.Equal(t, "memo hash-1", got.Message)

		n, err := store.CountTransactions(ctx, "EQwatched")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestGetTransaction_NotFound(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	_, err := store.GetTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestListTransactions(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	for i, ts := range []int64{1000, 3000, 2000} {
		_, err := store.InsertTransaction(ctx, testRecord("EQa", fmt.Sprintf("a-%d", i), ts))
		require.NoError(t, err)
	}
	_, err := store.InsertTransaction(ctx, testRecord("EQb", "b-0", 5000))
	require.NoError(t, err)

	t.Run("newest first for one account", func(t *testing.T) {
		txns, err := store.ListTransactions(ctx, ListTransactionsParams{Account: "EQa", Limit: 10})
		require.NoError(t, err)
		require.Len(t, txns, 3)
		assert.Equal(t, int64(3000), txns[0].Timestamp)
		assert.Equal(t, int64(2000), txns[1].Timestamp)
		assert.Equal(t, int64(1000), txns[2].Timestamp)
	})

	t.Run("limit and offset", func(t *testing.T) {
		txns, err := store.ListTransactions(ctx, ListTransactionsParams{Account: "EQa", Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, int64(2000), txns[0].Timestamp)
	})

	t.Run("since filter", func(t *testing.T) {
		txns, err := store.ListTransactions(ctx, ListTransactionsParams{Account: "EQa", Since: 1500, Limit: 10})
		require.NoError(t, err)
		assert.Len(t, txns, 2)
	})

	t.Run("all accounts", func(t *testing.T) {
		txns, err := store.ListTransactions(ctx, ListTransactionsParams{Limit: 10})
		require.NoError(t, err)
		require.Len(t, txns, 4)
		assert.Equal(t, "EQb", txns[0].Account)

		n, err := store.CountTransactions(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})
}

func TestSchemaVersion(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()

	version, err := SchemaVersion(context.Background(), TestDatabaseURL(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, version, int64(1))
}
