package ton

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/brojonat/tonwatch/service/metrics"
	"github.com/xssnick/tonutils-go/address"
)

// DefaultBaseURL is the public toncenter v2 endpoint.
const DefaultBaseURL = "https://toncenter.com/api/v2"

// ErrAPI is returned when toncenter answers with ok=false or a non-2xx status.
var ErrAPI = errors.New("toncenter api error")

// Client reads account history from the toncenter v2 HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
	endpoint   string // host label for metrics
}

// NewClient creates a toncenter client. An empty apiKey uses the anonymous rate limit.
// If metrics is nil, no metrics will be recorded.
func NewClient(baseURL, apiKey string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	endpoint := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		endpoint = u.Host
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
		endpoint:   endpoint,
	}
}

// ValidateAddress checks that account is a user-friendly or raw TON address.
func ValidateAddress(account string) error {
	if _, err := address.ParseAddr(account); err == nil {
		return nil
	}
	if _, err := address.ParseRawAddr(account); err != nil {
		return fmt.Errorf("invalid TON address %q: %w", account, err)
	}
	return nil
}

// GetTransactions returns up to req.Limit transactions of account, newest first,
// starting at req.Cursor when set.
func (c *Client) GetTransactions(ctx context.Context, account string, req ledger.PageRequest) ([]ledger.RawTransaction, error) {
	q := url.Values{}
	q.Set("address", account)
	q.Set("limit", strconv.Itoa(req.Limit))
	if req.Cursor != nil {
		q.Set("lt", req.Cursor.LT)
		q.Set("hash", req.Cursor.Hash)
	}
	if req.Archival {
		q.Set("archival", "true")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/getTransactions?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	c.logger.DebugContext(ctx, "calling getTransactions",
		"account", account,
		"limit", req.Limit,
		"cursor", req.Cursor,
	)

	start := time.Now()
	txs, err := c.do(httpReq)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("getTransactions", status, c.endpoint, duration)
		if err == nil {
			c.metrics.RecordPageSize(c.endpoint, len(txs))
		}
	}
	if err != nil {
		return nil, err
	}

	out := make([]ledger.RawTransaction, 0, len(txs))
	for i := range txs {
		out = append(out, txs[i].toDomain(c.logger))
	}
	return out, nil
}

func (c *Client) do(req *http.Request) ([]apiTransaction, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: HTTP %d: %s", ErrAPI, resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !envelope.OK {
		code := envelope.Code
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, fmt.Errorf("%w: code %d: %s", ErrAPI, code, envelope.Error)
	}

	var txs []apiTransaction
	if err := json.Unmarshal(envelope.Result, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}
	return txs, nil
}
