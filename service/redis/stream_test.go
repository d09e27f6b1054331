package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCmdable embeds redis.Cmdable so only XAdd needs an implementation.
type fakeCmdable struct {
	redis.Cmdable
	args []*redis.XAddArgs
	err  error
}

func (f *fakeCmdable) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	cmd := redis.NewStringCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	cmd.SetVal("1700000000000-0")
	return cmd
}

func testRecord() *ledger.TransactionRecord {
	return &ledger.TransactionRecord{
		Account:     "EQwatched",
		Hash:        "aGFzaA==",
		Timestamp:   1700000000,
		LogicalTime: "47000000000001",
		TotalFees:   "2855",
		Source:      "EQsender",
		Destination: "EQwatched",
		Value:       "1500000000",
		Message:     "invoice 17",
	}
}

func TestPublish_AppendsRecord(t *testing.T) {
	fake := &fakeCmdable{}
	p := newStreamPublisher(fake, "", slog.New(slog.NewTextHandler(io.Discard, nil)))

	id, err := p.Publish(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, "1700000000000-0", id)

	require.Len(t, fake.args, 1)
	args := fake.args[0]
	assert.Equal(t, DefaultStream, args.Stream)
	assert.Equal(t, int64(DefaultMaxLen), args.MaxLen)
	assert.True(t, args.Approx)

	values, ok := args.Values.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "aGFzaA==", values["hash"])
	assert.Equal(t, "1700000000", values["timestamp"])
	assert.Equal(t, "invoice 17", values["message"])
	assert.Equal(t, "EQwatched", values["account"])
}

func TestPublish_Error(t *testing.T) {
	fake := &fakeCmdable{err: errors.New("READONLY")}
	p := newStreamPublisher(fake, "custom", slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := p.Publish(context.Background(), testRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READONLY")
	assert.Equal(t, "custom", fake.args[0].Stream)
}

func TestNewStreamPublisher_BadURL(t *testing.T) {
	_, err := NewStreamPublisher("not-a-redis-url", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestClose_NotOwned(t *testing.T) {
	p := newStreamPublisher(&fakeCmdable{}, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, p.Close())
}
