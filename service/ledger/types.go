package ledger

import (
	"context"
	"time"
)

// Message types reported for an inbound message.
const (
	MessageInternal    = "internal"
	MessageExternalIn  = "external-in"
	MessageExternalOut = "external-out"
)

// Body formats. Data holds UTF-8 text for BodyText and a serialized bag of
// cells for BodyCell; it is empty for the other formats.
const (
	BodyEmpty     = "empty"
	BodyText      = "text"
	BodyCell      = "cell"
	BodyEncrypted = "encrypted"
)

// Body is the raw payload attached to a message.
type Body struct {
	Format string
	Data   []byte
}

// Message is an inbound message of a transaction as returned by the ledger.
type Message struct {
	Type        string
	Source      string
	Destination string
	Value       string // smallest unit, decimal string
	Body        Body
}

// RawTransaction is a transaction as the ledger API returns it.
// This is transport-shaped; the subscriber turns qualifying ones into TransactionRecords.
type RawTransaction struct {
	Hash             string
	LT               string // logical time, decimal string
	Now              int64  // unix seconds
	TotalFees        string
	InMessage        *Message // nil when the transaction has no inbound message
	OutMessagesCount int
}

// Cursor returns the pagination position of the transaction.
func (t RawTransaction) Cursor() Cursor {
	return Cursor{LT: t.LT, Hash: t.Hash}
}

// Cursor identifies a position in an account's history. Pages fetched at a
// cursor start with the transaction it points to.
type Cursor struct {
	LT   string
	Hash string
}

// PageRequest contains parameters for fetching one page of history.
type PageRequest struct {
	Limit    int
	Cursor   *Cursor // nil for the newest page
	Archival bool
}

// Client fetches an account's transaction history newest first.
type Client interface {
	GetTransactions(ctx context.Context, account string, req PageRequest) ([]RawTransaction, error)
}

// TransactionRecord is an admitted incoming transfer with a text comment.
type TransactionRecord struct {
	Account     string `json:"account"`
	Hash        string `json:"hash"`
	Timestamp   int64  `json:"timestamp"`
	LogicalTime string `json:"lt"`
	TotalFees   string `json:"total_fees"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Value       string `json:"value"`
	Message     string `json:"message"`
}

// Time returns the ledger timestamp as a time.Time.
func (r *TransactionRecord) Time() time.Time {
	return time.Unix(r.Timestamp, 0).UTC()
}
