package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/brojonat/tonwatch/service/db"
	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *db.TestStore {
	t.Helper()
	db.SkipIfNoTestDB(t)

	store := db.NewTestStore(t)
	t.Cleanup(store.Close)
	store.Cleanup(t)
	return store
}

func TestMigrateCommand(t *testing.T) {
	setupTestDB(t)

	_, stderr, err := runCLI(t, "--database-url", db.TestDatabaseURL(), "db", "migrate")
	require.NoError(t, err)
	assert.Contains(t, stderr, "schema at version")
}

func TestListTransactionsCommand(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for _, rec := range []*ledger.TransactionRecord{
		{Account: "EQaaa", Hash: "h1", Timestamp: 1700000100, LogicalTime: "1", Value: "1", Message: "one"},
		{Account: "EQaaa", Hash: "h2", Timestamp: 1700000200, LogicalTime: "2", Value: "2", Message: "two"},
		{Account: "EQbbb", Hash: "h3", Timestamp: 1700000300, LogicalTime: "3", Value: "3", Message: "three"},
	} {
		_, err := store.InsertTransaction(ctx, rec)
		require.NoError(t, err)
	}

	tests := []struct {
		name      string
		args      []string
		checkFunc func(t *testing.T, output string)
	}{
		{
			name: "all accounts",
			args: []string{"db", "list"},
			checkFunc: func(t *testing.T, output string) {
				var txs []*db.Transaction
				require.NoError(t, json.Unmarshal([]byte(output), &txs))
				require.Len(t, txs, 3)
				assert.Equal(t, "h3", txs[0].Hash)
			},
		},
		{
			name: "one account with jq",
			args: []string{"db", "list", "--account", "EQaaa", "--jq", ".[].message"},
			checkFunc: func(t *testing.T, output string) {
				assert.Equal(t, "two\none\n", output)
			},
		},
		{
			name: "since and limit",
			args: []string{"db", "list", "--since", "1700000100", "-n", "1", "--jq", ".[].hash"},
			checkFunc: func(t *testing.T, output string) {
				assert.Equal(t, "h3\n", output)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--database-url", db.TestDatabaseURL()}, tt.args...)
			stdout, _, err := runCLI(t, args...)
			require.NoError(t, err)
			tt.checkFunc(t, stdout)
		})
	}
}

func TestGetTransactionCommand(t *testing.T) {
	store := setupTestDB(t)

	_, err := store.InsertTransaction(context.Background(), &ledger.TransactionRecord{
		Account: "EQaaa", Hash: "h1", Timestamp: 1700000100, LogicalTime: "1", Value: "1", Message: "one",
	})
	require.NoError(t, err)

	stdout, _, err := runCLI(t, "--database-url", db.TestDatabaseURL(), "db", "get", "--jq", ".message", "h1")
	require.NoError(t, err)
	assert.Equal(t, "one\n", stdout)

	_, _, err = runCLI(t, "--database-url", db.TestDatabaseURL(), "db", "get", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDBCommands_RequireDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, _, err := runCLI(t, "db", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database-url is required")
}
