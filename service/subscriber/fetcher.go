package subscriber

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/sethvargo/go-retry"
)

// walk pages backward from the newest transaction, publishing admitted records
// in page order. It returns the newest admitted timestamp of the first page
// that admitted anything, and whether such a page existed.
func (s *Subscriber) walk(ctx context.Context, log *slog.Logger, watermark int64, res *CycleResult) (int64, bool, error) {
	dedup := newCycleDedup()

	var (
		cursor    *ledger.Cursor
		candidate int64
		found     bool
	)

	for {
		page, err := s.fetchPage(ctx, log, cursor)
		if err != nil {
			return 0, false, err
		}
		res.Pages++
		res.Fetched += len(page)
		if s.metrics != nil {
			s.metrics.RecordPageFetched()
			s.metrics.RecordTransactionsFetched(len(page))
		}

		newer := 0
		var newest int64
		admitted := false
		for _, tx := range page {
			if tx.Now > watermark {
				newer++
			}

			rec, reason := s.filter.Admit(tx, watermark)
			if rec == nil {
				if s.metrics != nil {
					s.metrics.RecordTransactionRejected(string(reason))
				}
				continue
			}
			if dedup.Seen(rec.Hash) {
				if s.metrics != nil {
					s.metrics.RecordTransactionDuplicate()
				}
				continue
			}
			dedup.Mark(rec.Hash)

			log.DebugContext(ctx, "transaction admitted",
				"hash", rec.Hash,
				"timestamp", rec.Timestamp,
				"lt", rec.LogicalTime,
				"source", rec.Source,
				"value", rec.Value,
			)
			s.sink.Publish(ctx, rec)
			res.Published++
			if s.metrics != nil {
				s.metrics.RecordTransactionPublished()
			}

			if !admitted || rec.Timestamp > newest {
				newest = rec.Timestamp
			}
			admitted = true
		}

		if admitted && !found {
			candidate = newest
			found = true
		}

		// A short page is the end of history. A page that is not entirely
		// newer than the watermark means every older page is at or below it.
		if len(page) < s.cfg.PageSize || newer < s.cfg.PageSize {
			return candidate, found, nil
		}

		next := page[len(page)-1].Cursor()
		if cursor != nil && next == *cursor {
			log.WarnContext(ctx, "cursor did not move, ending walk",
				"lt", next.LT,
				"hash", next.Hash,
			)
			return candidate, found, nil
		}
		cursor = &next
	}
}

// fetchPage fetches one page at cursor, retrying up to MaxRetries times with the same cursor.
func (s *Subscriber) fetchPage(ctx context.Context, log *slog.Logger, cursor *ledger.Cursor) ([]ledger.RawTransaction, error) {
	req := ledger.PageRequest{
		Limit:    s.cfg.PageSize,
		Cursor:   cursor,
		Archival: true,
	}
	maxAttempts := s.cfg.MaxRetries + 1

	var (
		page    []ledger.RawTransaction
		attempt int
	)
	backoff := retry.WithMaxRetries(uint64(s.cfg.MaxRetries), retry.NewConstant(s.cfg.RetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		p, err := s.client.GetTransactions(ctx, s.cfg.Account, req)
		if err != nil {
			args := []any{
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"error", err,
			}
			if cursor != nil {
				args = append(args, "cursor_lt", cursor.LT, "cursor_hash", cursor.Hash)
			}
			log.WarnContext(ctx, "failed to fetch transactions page", args...)
			if s.metrics != nil && attempt < maxAttempts {
				s.metrics.RecordRPCRetry("fetch_error")
			}
			return retry.RetryableError(err)
		}
		page = p
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch cancelled after %d attempts: %w", attempt, ctxErr)
		}
		return nil, fmt.Errorf("%w: %d attempts: %w", ErrRetriesExhausted, attempt, err)
	}
	return page, nil
}
