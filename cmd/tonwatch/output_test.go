package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinter(t *testing.T) {
	rec := &ledger.TransactionRecord{
		Account:   "EQwatched",
		Hash:      "h1",
		Timestamp: 1700000100,
		Value:     "1500000000",
		Message:   "invoice 17",
	}

	t.Run("plain json", func(t *testing.T) {
		var buf bytes.Buffer
		p, err := newPrinter(&buf, "")
		require.NoError(t, err)
		require.NoError(t, p.Print(rec))

		var got ledger.TransactionRecord
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, *rec, got)
		assert.Contains(t, buf.String(), "\n  \"hash\"")
	})

	t.Run("line json", func(t *testing.T) {
		var buf bytes.Buffer
		p, err := newPrinter(&buf, "")
		require.NoError(t, err)
		require.NoError(t, p.PrintLine(rec))
		require.NoError(t, p.PrintLine(rec))
		assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
	})

	t.Run("jq string prints raw", func(t *testing.T) {
		var buf bytes.Buffer
		p, err := newPrinter(&buf, ".message")
		require.NoError(t, err)
		require.NoError(t, p.Print(rec))
		assert.Equal(t, "invoice 17\n", buf.String())
	})

	t.Run("jq object", func(t *testing.T) {
		var buf bytes.Buffer
		p, err := newPrinter(&buf, "{hash, ts: .timestamp}")
		require.NoError(t, err)
		require.NoError(t, p.Print(rec))
		assert.JSONEq(t, `{"hash":"h1","ts":1700000100}`, buf.String())
	})

	t.Run("jq multiple results", func(t *testing.T) {
		var buf bytes.Buffer
		p, err := newPrinter(&buf, ".[].hash")
		require.NoError(t, err)
		require.NoError(t, p.Print([]*ledger.TransactionRecord{rec, {Hash: "h2"}}))
		assert.Equal(t, "h1\nh2\n", buf.String())
	})

	t.Run("jq runtime error", func(t *testing.T) {
		var buf bytes.Buffer
		p, err := newPrinter(&buf, ".hash | tonumber")
		require.NoError(t, err)
		assert.Error(t, p.Print(rec))
	})

	t.Run("invalid jq", func(t *testing.T) {
		_, err := newPrinter(&bytes.Buffer{}, ".[")
		assert.Error(t, err)
	})
}
