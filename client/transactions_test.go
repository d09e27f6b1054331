package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("database unavailable"))
			return
		}
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	assert.NoError(t, client.Health(context.Background()))

	healthy = false
	err := client.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")
}

func TestListTransactions_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/transactions", r.URL.Path)
		assert.Equal(t, "EQa", r.URL.Query().Get("account"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "10", r.URL.Query().Get("offset"))
		assert.Equal(t, "1700000000", r.URL.Query().Get("since"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"transactions": []map[string]interface{}{
				{"account": "EQa", "hash": "h2", "timestamp": 1700000200, "value": "2000", "message": "second"},
				{"account": "EQa", "hash": "h1", "timestamp": 1700000100, "value": "1000", "message": "first"},
			},
			"count":  2,
			"total":  12,
			"limit":  5,
			"offset": 10,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", nil, nil)
	result, err := client.ListTransactions(context.Background(), ListOptions{
		Account: "EQa",
		Since:   1700000000,
		Limit:   5,
		Offset:  10,
	})
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "h2", result.Transactions[0].Hash)
	assert.Equal(t, "second", result.Transactions[0].Message)
	assert.Equal(t, int64(12), result.Total)
	assert.Equal(t, 2, result.Count)
}

func TestListTransactions_NoFiltersSendsNoQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		w.Write([]byte(`{"transactions":[],"count":0,"total":0,"limit":100,"offset":0}`))
	}))
	defer server.Close()

	result, err := NewClient(server.URL, nil, nil).ListTransactions(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Transactions)
}

func TestListTransactions_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "limit cannot exceed 1000"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil, nil).ListTransactions(context.Background(), ListOptions{Limit: 5000})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit cannot exceed 1000")
}

func TestGetTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/transactions/abc":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"account": "EQa", "hash": "abc", "timestamp": 1700000000, "message": "hello",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "transaction not found"})
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)

	txn, err := client.GetTransaction(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "hello", txn.Message)
	assert.Equal(t, int64(1700000000), txn.Timestamp)

	_, err = client.GetTransaction(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetTransaction_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil, nil).GetTransaction(context.Background(), "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stream/transactions", r.URL.Path)
		assert.Equal(t, "EQa", r.URL.Query().Get("account"))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: connected\ndata: {\"account\":\"EQa\"}\n\n")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "event: transaction.found\nid: h1\ndata: {\"hash\":\"h1\",\"message\":\"one\"}\n\n")
		fmt.Fprint(w, "event: transaction.found\nid: h2\ndata: {\"hash\":\"h2\",\"message\":\"two\"}\n\n")
	}))
	defer server.Close()

	var got []string
	err := NewClient(server.URL, nil, nil).Stream(context.Background(), "EQa", func(txn *Transaction) error {
		got = append(got, txn.Hash+":"+txn.Message)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"h1:one", "h2:two"}, got)
}

func TestStream_CallbackErrorStops(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: transaction.found\ndata: {\"hash\":\"h1\"}\n\n")
		fmt.Fprint(w, "event: transaction.found\ndata: {\"hash\":\"h2\"}\n\n")
	}))
	defer server.Close()

	stop := errors.New("found it")
	calls := 0
	err := NewClient(server.URL, nil, nil).Stream(context.Background(), "", func(txn *Transaction) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
