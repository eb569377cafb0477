package bus

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel names on the broker, one per event kind. Timestamps inside the
// JSON envelopes serialize as RFC 3339 with nanoseconds, so subscribers
// re-hydrate them without losing precision.
const (
	channelMessage     = "whispr:events:message"
	channelReadReceipt = "whispr:events:read_receipt"
	channelTyping      = "whispr:events:typing"
	channelPresence    = "whispr:events:presence"
)

// RedisBus is the distributed backend. Every instance publishes serialized
// events to shared Redis channels and runs one subscriber goroutine per
// channel that replays broker deliveries into an embedded LocalBus, so local
// callbacks observe exactly what the single-instance backend would deliver.
//
// Delivery to this instance's own subscribers normally arrives through the
// broker echo. When a publish fails, the event is replayed to local
// subscribers directly: broker unavailability degrades to local-only
// delivery and is never surfaced to the caller.
type RedisBus struct {
	rdb    *redis.Client
	local  *LocalBus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewRedisBus connects the bus to a shared broker and starts its subscriber
// goroutines.
func NewRedisBus(rdb *redis.Client, logger *zap.Logger) *RedisBus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisBus{
		rdb:    rdb,
		local:  NewLocalBus(),
		logger: logger,
		cancel: cancel,
	}

	go consume(ctx, b, channelMessage, func(evt MessageEvent) {
		b.local.PublishMessage(ctx, evt)
	})
	go consume(ctx, b, channelReadReceipt, func(evt ReadReceiptEvent) {
		b.local.PublishReadReceipt(ctx, evt)
	})
	go consume(ctx, b, channelTyping, func(evt TypingEvent) {
		b.local.PublishTyping(ctx, evt)
	})
	go consume(ctx, b, channelPresence, func(evt PresenceEvent) {
		b.local.PublishPresence(ctx, evt)
	})

	return b
}

// consume runs one subscriber loop for a channel, decoding each payload into
// the channel's event type and replaying it locally.
func consume[T any](ctx context.Context, b *RedisBus, channel string, replay func(T)) {
	pubsub := b.rdb.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var evt T
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.logger.Warn("dropping undecodable bus event",
					zap.String("channel", channel), zap.Error(err))
				continue
			}
			replay(evt)
		}
	}
}

// publish serializes and publishes one event. Returns false when the broker
// could not be reached, in which case the caller replays locally.
func (b *RedisBus) publish(ctx context.Context, channel string, evt interface{}) bool {
	data, err := json.Marshal(evt)
	if err != nil {
		b.logger.Error("marshal bus event", zap.String("channel", channel), zap.Error(err))
		return false
	}
	if err := b.rdb.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Warn("broker publish failed, delivering locally only",
			zap.String("channel", channel), zap.Error(err))
		return false
	}
	return true
}

func (b *RedisBus) PublishMessage(ctx context.Context, evt MessageEvent) {
	if !b.publish(ctx, channelMessage, evt) {
		b.local.PublishMessage(ctx, evt)
	}
}

func (b *RedisBus) PublishReadReceipt(ctx context.Context, evt ReadReceiptEvent) {
	if !b.publish(ctx, channelReadReceipt, evt) {
		b.local.PublishReadReceipt(ctx, evt)
	}
}

func (b *RedisBus) PublishTyping(ctx context.Context, evt TypingEvent) {
	if !b.publish(ctx, channelTyping, evt) {
		b.local.PublishTyping(ctx, evt)
	}
}

func (b *RedisBus) PublishPresence(ctx context.Context, evt PresenceEvent) {
	if !b.publish(ctx, channelPresence, evt) {
		b.local.PublishPresence(ctx, evt)
	}
}

func (b *RedisBus) SubscribeMessages(fn func(MessageEvent)) func() {
	return b.local.SubscribeMessages(fn)
}

func (b *RedisBus) SubscribeReadReceipts(fn func(ReadReceiptEvent)) func() {
	return b.local.SubscribeReadReceipts(fn)
}

func (b *RedisBus) SubscribeTyping(fn func(TypingEvent)) func() {
	return b.local.SubscribeTyping(fn)
}

func (b *RedisBus) SubscribePresence(fn func(PresenceEvent)) func() {
	return b.local.SubscribePresence(fn)
}

// Close stops the subscriber goroutines. The Redis client itself is owned by
// the caller.
func (b *RedisBus) Close() error {
	b.cancel()
	return nil
}
