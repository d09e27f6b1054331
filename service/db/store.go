package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/brojonat/tonwatch/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTransactionNotFound is returned when no transaction has the requested hash.
var ErrTransactionNotFound = errors.New("transaction not found")

const transactionsTable = "account_transactions"

// Store provides database operations for the service.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If metrics is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// Transaction is a persisted TransactionRecord.
type Transaction struct {
	ledger.TransactionRecord
	CreatedAt time.Time `json:"created_at"`
}

// ListTransactionsParams contains pagination parameters.
// An empty Account lists every account.
type ListTransactionsParams struct {
	Account string
	Since   int64 // only transactions with timestamp > Since; zero for all
	Limit   int32
	Offset  int32
}

const transactionColumns = `hash, account, timestamp, lt, total_fees, source, destination, value, message, created_at`

// InsertTransaction stores rec. Inserting a hash that already exists is a
// no-op and reports inserted=false, so replayed records never duplicate rows.
func (s *Store) InsertTransaction(ctx context.Context, rec *ledger.TransactionRecord) (inserted bool, err error) {
	defer s.observe("insert", time.Now(), &err)

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO account_transactions (hash, account, timestamp, lt, total_fees, source, destination, value, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (hash) DO NOTHING`,
		rec.Hash, rec.Account, rec.Timestamp, rec.LogicalTime, rec.TotalFees,
		rec.Source, rec.Destination, rec.Value, rec.Message,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert transaction %s: %w", rec.Hash, err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetTransaction retrieves a transaction by its hash.
func (s *Store) GetTransaction(ctx context.Context, hash string) (_ *Transaction, err error) {
	defer s.observe("get", time.Now(), &err)

	row := s.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM account_transactions WHERE hash = $1`, hash)
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", hash, err)
	}
	return txn, nil
}

// ListTransactions returns transactions newest first.
func (s *Store) ListTransactions(ctx context.Context, params ListTransactionsParams) (_ []*Transaction, err error) {
	defer s.observe("list", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM account_transactions
		WHERE ($1 = '' OR account = $1) AND timestamp > $2
		ORDER BY timestamp DESC, lt DESC
		LIMIT $3 OFFSET $4`,
		params.Account, params.Since, params.Limit, params.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]*Transaction, 0, params.Limit)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

// CountTransactions returns the number of stored transactions for account,
// or for every account when account is empty.
func (s *Store) CountTransactions(ctx context.Context, account string) (_ int64, err error) {
	defer s.observe("count", time.Now(), &err)

	var n int64
	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM account_transactions WHERE ($1 = '' OR account = $1)`, account).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) observe(op string, start time.Time, err *error) {
	if s.metrics == nil {
		return
	}
	var e error
	if err != nil && *err != nil && !errors.Is(*err, ErrTransactionNotFound) {
		e = *err
	}
	s.metrics.RecordDBQuery(op, transactionsTable, time.Since(start).Seconds(), e)
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.Hash,
		&t.Account,
		&t.Timestamp,
		&t.LogicalTime,
		&t.TotalFees,
		&t.Source,
		&t.Destination,
		&t.Value,
		&t.Message,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
