// Package realtime carries order status changes over Redis pub/sub so a
// waiting client learns about a webhook-driven update without polling.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tessro/tunes/internal/core"
)

// DefaultChannelPrefix is prepended to order IDs to form channel names.
const DefaultChannelPrefix = "orders:"

// Message is the JSON payload published on an order channel.
type Message struct {
	Status     core.OrderStatus `json:"status"`
	ProviderID string           `json:"payment_provider_id,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at,omitempty"`
}

// Feed publishes and subscribes to order status channels.
type Feed struct {
	rdb    *redis.Client
	prefix string
	logger *zap.Logger
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, prefix string, logger *zap.Logger) (*Feed, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		// Plain host:port.
		opt = &redis.Options{Addr: addr}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewFeed(rdb, prefix, logger), nil
}

// NewFeed wraps an existing client.
func NewFeed(rdb *redis.Client, prefix string, logger *zap.Logger) *Feed {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{rdb: rdb, prefix: prefix, logger: logger}
}

// Channel returns the channel name for orderID.
func (f *Feed) Channel(orderID string) string {
	return f.prefix + orderID
}

// Publish announces a status change for orderID.
func (f *Feed) Publish(ctx context.Context, orderID string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode status message: %w", err)
	}
	if err := f.rdb.Publish(ctx, f.Channel(orderID), string(data)).Err(); err != nil {
		return fmt.Errorf("failed to publish status: %w", err)
	}
	return nil
}

// Updates subscribes to orderID's channel. The returned channel is closed
// when ctx is cancelled or the subscription fails. Malformed payloads are
// logged and skipped.
func (f *Feed) Updates(ctx context.Context, orderID string) (<-chan core.OrderSnapshot, error) {
	sub := f.rdb.Subscribe(ctx, f.Channel(orderID))
	// Wait for the subscription confirmation so nothing published after
	// Updates returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan core.OrderSnapshot, 4)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				snap, err := decode(orderID, msg.Payload)
				if err != nil {
					f.logger.Warn("dropping status message",
						zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the Redis client.
func (f *Feed) Close() error {
	return f.rdb.Close()
}

func decode(orderID, payload string) (core.OrderSnapshot, error) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return core.OrderSnapshot{}, err
	}
	msg.Status = core.OrderStatus(strings.ToLower(string(msg.Status)))
	if !msg.Status.Valid() {
		return core.OrderSnapshot{}, fmt.Errorf("unknown status %q", msg.Status)
	}
	return core.OrderSnapshot{
		ID:         orderID,
		Status:     msg.Status,
		ProviderID: msg.ProviderID,
		UpdatedAt:  msg.UpdatedAt,
	}, nil
}
