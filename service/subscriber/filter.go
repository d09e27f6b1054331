package subscriber

import (
	"github.com/brojonat/tonwatch/service/comment"
	"github.com/brojonat/tonwatch/service/ledger"
)

// Rejection names the reason a transaction was not admitted.
// The empty Rejection means the transaction was admitted.
type Rejection string

const (
	RejectStale       Rejection = "stale"
	RejectNoInbound   Rejection = "no_inbound"
	RejectBounced     Rejection = "bounced"
	RejectNotInternal Rejection = "not_internal"
	RejectNotComment  Rejection = "not_comment"
)

// CommentDecoder extracts a text comment from a message body.
type CommentDecoder interface {
	Decode(body ledger.Body) comment.Result
}

// Filter admits incoming transfers that carry a text comment.
type Filter struct {
	account string
	decoder CommentDecoder
}

// NewFilter creates a Filter for the watched account.
func NewFilter(account string, decoder CommentDecoder) *Filter {
	return &Filter{account: account, decoder: decoder}
}

// Admit returns a record for tx when it is newer than watermark, has exactly
// one inbound internal message and no outbound messages, and its inbound body
// is a text comment. Otherwise it returns nil and the reason.
//
// Any outbound message means the funds were at least partly sent back, so
// the transaction is never a final incoming payment.
func (f *Filter) Admit(tx ledger.RawTransaction, watermark int64) (*ledger.TransactionRecord, Rejection) {
	if tx.Now <= watermark {
		return nil, RejectStale
	}
	if tx.InMessage == nil {
		return nil, RejectNoInbound
	}
	if tx.OutMessagesCount != 0 {
		return nil, RejectBounced
	}
	in := tx.InMessage
	if in.Type != ledger.MessageInternal {
		return nil, RejectNotInternal
	}
	res := f.decoder.Decode(in.Body)
	if !res.IsComment() {
		return nil, RejectNotComment
	}

	return &ledger.TransactionRecord{
		Account:     f.account,
		Hash:        tx.Hash,
		Timestamp:   tx.Now,
		LogicalTime: tx.LT,
		TotalFees:   tx.TotalFees,
		Source:      in.Source,
		Destination: in.Destination,
		Value:       in.Value,
		Message:     res.Text,
	}, ""
}
