package subscriber

import (
	"testing"

	"github.com/brojonat/tonwatch/service/comment"
	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Admit(t *testing.T) {
	tests := []struct {
		name      string
		tx        func() ledger.RawTransaction
		watermark int64
		want      Rejection
	}{
		{
			name:      "admitted",
			tx:        func() ledger.RawTransaction { return commentTx("a", 1001) },
			watermark: 1000,
		},
		{
			name:      "equal to watermark is stale",
			tx:        func() ledger.RawTransaction { return commentTx("a", 1000) },
			watermark: 1000,
			want:      RejectStale,
		},
		{
			name:      "older than watermark",
			tx:        func() ledger.RawTransaction { return commentTx("a", 10) },
			watermark: 1000,
			want:      RejectStale,
		},
		{
			name: "no inbound message",
			tx: func() ledger.RawTransaction {
				tx := commentTx("a", 2000)
				tx.InMessage = nil
				return tx
			},
			watermark: 1000,
			want:      RejectNoInbound,
		},
		{
			name: "bounced with valid comment",
			tx: func() ledger.RawTransaction {
				tx := commentTx("a", 2000)
				tx.OutMessagesCount = 1
				return tx
			},
			watermark: 1000,
			want:      RejectBounced,
		},
		{
			name: "several outbound messages",
			tx: func() ledger.RawTransaction {
				tx := commentTx("a", 2000)
				tx.OutMessagesCount = 3
				return tx
			},
			watermark: 1000,
			want:      RejectBounced,
		},
		{
			name: "external inbound",
			tx: func() ledger.RawTransaction {
				tx := commentTx("a", 2000)
				tx.InMessage.Type = ledger.MessageExternalIn
				return tx
			},
			watermark: 1000,
			want:      RejectNotInternal,
		},
		{
			name: "empty body",
			tx: func() ledger.RawTransaction {
				tx := commentTx("a", 2000)
				tx.InMessage.Body = ledger.Body{Format: ledger.BodyEmpty}
				return tx
			},
			watermark: 1000,
			want:      RejectNotComment,
		},
		{
			name: "binary cell body",
			tx: func() ledger.RawTransaction {
				tx := commentTx("a", 2000)
				tx.InMessage.Body = ledger.Body{Format: ledger.BodyCell, Data: []byte{0x01, 0x02}}
				return tx
			},
			watermark: 1000,
			want:      RejectNotComment,
		},
	}

	f := NewFilter(testAccount, comment.NewDecoder())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, reason := f.Admit(tt.tx(), tt.watermark)
			assert.Equal(t, tt.want, reason)
			if tt.want == "" {
				require.NotNil(t, rec)
				assert.Equal(t, "a", rec.Hash)
				assert.Equal(t, "memo-a", rec.Message)
			} else {
				assert.Nil(t, rec)
			}
		})
	}
}

func TestCycleDedup(t *testing.T) {
	d := newCycleDedup()

	assert.False(t, d.Seen("h"))
	d.Mark("h")
	assert.True(t, d.Seen("h"))
	assert.False(t, d.Seen("other"))

	fresh := newCycleDedup()
	assert.False(t, fresh.Seen("h"), "each cycle starts empty")
}
