package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Consumer reads transaction events back out of the TRANSACTIONS stream.
type Consumer struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// SubscribeOptions selects which events a subscription receives.
type SubscribeOptions struct {
	Account    string // empty for every account
	DeliverNew bool   // only events published after subscribing
	Durable    string // durable consumer name; empty for an ephemeral consumer
}

// NewConsumer connects to NATS for reading events.
func NewConsumer(natsURL, name string, logger *slog.Logger) (*Consumer, error) {
	nc, js, err := Connect(natsURL, name)
	if err != nil {
		return nil, err
	}
	logger.Info("NATS consumer initialized", "url", natsURL, "name", name)
	return &Consumer{nc: nc, js: js, logger: logger}, nil
}

// Subscribe starts delivering events on the returned channel until ctx is done.
// The channel is never closed; callers stop reading when ctx is done.
func (c *Consumer) Subscribe(ctx context.Context, opts SubscribeOptions) (<-chan *TransactionEvent, error) {
	cfg := jetstream.ConsumerConfig{
		FilterSubject: Subject(opts.Account),
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if opts.DeliverNew {
		cfg.DeliverPolicy = jetstream.DeliverNewPolicy
	}
	if opts.Durable != "" {
		cfg.Durable = opts.Durable
		cfg.Name = opts.Durable
	}

	cons, err := c.js.CreateOrUpdateConsumer(ctx, StreamName, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	events := make(chan *TransactionEvent, 10)
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		var event TransactionEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			c.logger.WarnContext(ctx, "failed to unmarshal event",
				"subject", msg.Subject(),
				"error", err,
			)
			msg.Ack()
			return
		}
		select {
		case events <- &event:
			msg.Ack()
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming messages: %w", err)
	}

	go func() {
		<-ctx.Done()
		cc.Stop()
	}()

	return events, nil
}

// Close closes the NATS connection.
func (c *Consumer) Close() error {
	if c.nc != nil {
		c.nc.Close()
		c.logger.Info("NATS consumer closed")
	}
	return nil
}
