package bus

import (
	"context"
	"sync"
)

// LocalBus is the single-instance backend: an in-process registry of
// subscriber callbacks. Publish invokes every registered callback
// synchronously, with no network hop.
type LocalBus struct {
	mu          sync.RWMutex
	next        int
	messageSubs map[int]func(MessageEvent)
	receiptSubs map[int]func(ReadReceiptEvent)
	typingSubs  map[int]func(TypingEvent)
	presenceSub map[int]func(PresenceEvent)
}

// NewLocalBus creates an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{
		messageSubs: make(map[int]func(MessageEvent)),
		receiptSubs: make(map[int]func(ReadReceiptEvent)),
		typingSubs:  make(map[int]func(TypingEvent)),
		presenceSub: make(map[int]func(PresenceEvent)),
	}
}

func (b *LocalBus) PublishMessage(_ context.Context, evt MessageEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.messageSubs {
		fn(evt)
	}
}

func (b *LocalBus) PublishReadReceipt(_ context.Context, evt ReadReceiptEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.receiptSubs {
		fn(evt)
	}
}

func (b *LocalBus) PublishTyping(_ context.Context, evt TypingEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.typingSubs {
		fn(evt)
	}
}

func (b *LocalBus) PublishPresence(_ context.Context, evt PresenceEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.presenceSub {
		fn(evt)
	}
}

func (b *LocalBus) SubscribeMessages(fn func(MessageEvent)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.messageSubs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.messageSubs, id)
		b.mu.Unlock()
	}
}

func (b *LocalBus) SubscribeReadReceipts(fn func(ReadReceiptEvent)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.receiptSubs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.receiptSubs, id)
		b.mu.Unlock()
	}
}

func (b *LocalBus) SubscribeTyping(fn func(TypingEvent)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.typingSubs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.typingSubs, id)
		b.mu.Unlock()
	}
}

func (b *LocalBus) SubscribePresence(fn func(PresenceEvent)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.presenceSub[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.presenceSub, id)
		b.mu.Unlock()
	}
}

// Close is a no-op for the in-process backend.
func (b *LocalBus) Close() error { return nil }
