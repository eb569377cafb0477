// Package bus is the fan-out port that turns a single service-layer mutation
// into a notification observed by every server instance holding a relevant
// live connection. Two interchangeable backends exist: LocalBus for a single
// process and RedisBus for a fleet behind a load balancer. The gateway and
// services only ever hold the Bus interface.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MessageEvent is published after a message mutation is persisted. It carries
// the resolved active participant list so subscribers can route without a
// store lookup. DepartedID, when set, names a participant who just left the
// conversation; every subscriber must evict that user from its room routing
// before delivering.
type MessageEvent struct {
	MessageID      uuid.UUID   `json:"message_id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender_id"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
	Action         string      `json:"action"` // created | edited | deleted
	Kind           string      `json:"kind"`
	DepartedID     *uuid.UUID  `json:"departed_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// MessageEvent action values.
const (
	MessageCreated = "created"
	MessageEdited  = "edited"
	MessageDeleted = "deleted"
)

// ReadReceiptEvent is published when a participant advances their read cursor.
type ReadReceiptEvent struct {
	ConversationID uuid.UUID  `json:"conversation_id"`
	MessageID      *uuid.UUID `json:"message_id,omitempty"`
	UserID         uuid.UUID  `json:"user_id"`
	ReadAt         time.Time  `json:"read_at"`
}

// TypingEvent signals that a user started or stopped typing in a conversation.
type TypingEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	IsTyping       bool      `json:"is_typing"`
	At             time.Time `json:"at"`
}

// PresenceEvent signals a coarse status change for a user.
type PresenceEvent struct {
	UserID uuid.UUID `json:"user_id"`
	Status string    `json:"status"` // online | away | offline
	At     time.Time `json:"at"`
}

// Presence status values derived from connection state.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Bus publishes and subscribes the four realtime event kinds.
//
// Publish calls never return an error: the bus is a best-effort signal and
// must not block or fail the authoritative persistence path. A backend that
// cannot reach its broker degrades to local-only delivery.
//
// Subscribe calls return an unsubscribe function. Handlers are invoked from
// the delivering goroutine and must not block.
type Bus interface {
	PublishMessage(ctx context.Context, evt MessageEvent)
	PublishReadReceipt(ctx context.Context, evt ReadReceiptEvent)
	PublishTyping(ctx context.Context, evt TypingEvent)
	PublishPresence(ctx context.Context, evt PresenceEvent)

	SubscribeMessages(fn func(MessageEvent)) (unsubscribe func())
	SubscribeReadReceipts(fn func(ReadReceiptEvent)) (unsubscribe func())
	SubscribeTyping(fn func(TypingEvent)) (unsubscribe func())
	SubscribePresence(fn func(PresenceEvent)) (unsubscribe func())

	Close() error
}
