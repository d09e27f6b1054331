package nats

import (
	"fmt"
	"time"

	"github.com/brojonat/tonwatch/service/ledger"
)

// TransactionEvent represents a transaction event published to NATS.
// This is published to the subject "txns.{account}" in JetStream.
type TransactionEvent struct {
	// Transaction identifiers
	Hash        string `json:"hash"`
	LogicalTime string `json:"lt"`

	// Account information
	Account     string `json:"account"` // watched account
	Source      string `json:"source"`
	Destination string `json:"destination"`

	// Transaction details
	Value     string `json:"value"`
	TotalFees string `json:"total_fees"`
	Message   string `json:"message"`

	// Timing information
	Timestamp   time.Time `json:"timestamp"`
	PublishedAt time.Time `json:"published_at"`
}

// FromRecord converts an admitted record to a TransactionEvent for publishing.
func FromRecord(rec *ledger.TransactionRecord) *TransactionEvent {
	return &TransactionEvent{
		Hash:        rec.Hash,
		LogicalTime: rec.LogicalTime,
		Account:     rec.Account,
		Source:      rec.Source,
		Destination: rec.Destination,
		Value:       rec.Value,
		TotalFees:   rec.TotalFees,
		Message:     rec.Message,
		Timestamp:   rec.Time(),
		PublishedAt: time.Now().UTC(),
	}
}

// Subject returns the JetStream subject for an account's events.
// An empty account yields the wildcard subject.
func Subject(account string) string {
	if account == "" {
		return StreamSubjects
	}
	return fmt.Sprintf("txns.%s", account)
}
