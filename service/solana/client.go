package solana

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/brojonat/tonwatch/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// maxRateLimitAttempts bounds GetTransaction calls per signature when the RPC
// node answers 429.
const maxRateLimitAttempts = 3

// Client reads an account's history from a Solana RPC node and presents it
// as ledger pages. Signatures play the role of transaction hashes and slots
// the role of logical time.
type Client struct {
	rpc          RPCClient
	logger       *slog.Logger
	metrics      *metrics.Metrics
	endpoint     string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet", rpc host)
	requestDelay time.Duration
}

// NewClient creates a new Solana client.
// requestDelay is slept before each GetTransaction call to respect public RPC
// rate limits (600ms suits public mainnet, 100ms suits premium endpoints).
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, requestDelay time.Duration, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:          rpcClient,
		logger:       logger,
		metrics:      m,
		endpoint:     endpoint,
		requestDelay: requestDelay,
	}
}

// GetTransactions returns up to req.Limit transactions of account, newest first.
// A cursor's Hash is the signature to page before.
func (c *Client) GetTransactions(ctx context.Context, account string, req ledger.PageRequest) ([]ledger.RawTransaction, error) {
	pubkey, err := solana.PublicKeyFromBase58(account)
	if err != nil {
		return nil, fmt.Errorf("invalid solana address %q: %w", account, err)
	}

	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &req.Limit,
		Commitment: rpc.CommitmentFinalized,
	}
	if req.Cursor != nil && req.Cursor.Hash != "" {
		before, err := solana.SignatureFromBase58(req.Cursor.Hash)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor signature %q: %w", req.Cursor.Hash, err)
		}
		opts.Before = before
	}

	c.logger.DebugContext(ctx, "calling GetSignaturesForAddress",
		"account", account,
		"limit", req.Limit,
		"cursor", req.Cursor,
	)

	start := time.Now()
	signatures, err := c.rpc.GetSignaturesForAddress(ctx, pubkey, opts)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("GetSignaturesForAddress", status, c.endpoint, duration)
		if err == nil {
			c.metrics.RecordPageSize(c.endpoint, len(signatures))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get signatures: %w", err)
	}

	out := make([]ledger.RawTransaction, 0, len(signatures))
	for _, sig := range signatures {
		var result *rpc.GetTransactionResult
		// Failed transactions are mapped from signature metadata alone.
		if sig.Err == nil {
			result, err = c.getTransaction(ctx, sig.Signature)
			if err != nil {
				return nil, err
			}
		}

		tx, err := toRawTransaction(pubkey, sig, result)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}

	c.logger.DebugContext(ctx, "fetched and parsed transactions",
		"account", account,
		"count", len(out),
	)
	return out, nil
}

func (c *Client) getTransaction(ctx context.Context, sig solana.Signature) (*rpc.GetTransactionResult, error) {
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &[]uint64{0}[0],
	}

	var lastErr error
	for attempt := range maxRateLimitAttempts {
		if err := sleepContext(ctx, c.requestDelay); err != nil {
			return nil, err
		}

		start := time.Now()
		result, err := c.rpc.GetTransaction(ctx, sig, opts)
		duration := time.Since(start).Seconds()

		status := "success"
		if err != nil {
			status = "error"
		}
		if c.metrics != nil {
			c.metrics.RecordRPCCall("GetTransaction", status, c.endpoint, duration)
		}
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !strings.Contains(err.Error(), "429") {
			break
		}
		backoff := time.Duration(2<<uint(attempt)) * time.Second // 2s, 4s, 8s
		c.logger.WarnContext(ctx, "rate limited, sleeping before retry",
			"signature", sig.String(),
			"attempt", attempt+1,
			"backoff_seconds", backoff.Seconds(),
		)
		if c.metrics != nil {
			c.metrics.RecordRPCRetry("rate_limit")
		}
		if err := sleepContext(ctx, backoff); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to get transaction %s: %w", sig.String(), lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
