package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ========== Conversation DTOs ==========

type CreateDirectRequest struct {
	TargetUserID uuid.UUID `json:"target_user_id" binding:"required"`
}

type CreateCommunityConversationRequest struct {
	CommunityID uuid.UUID `json:"community_id" binding:"required"`
	Name        string    `json:"name" binding:"max=100"`
	Avatar      string    `json:"avatar" binding:"max=500"`
}

type DirectConversationResponse struct {
	Conversation ConversationResponse `json:"conversation"`
	IsNew        bool                 `json:"is_new"`
}

type ConversationResponse struct {
	Conversation
	UnreadCount int64           `json:"unread_count"`
	LastMessage *MessagePreview `json:"last_message,omitempty"`
}

type ConversationListRequest struct {
	Kind  string `form:"kind" binding:"omitempty,oneof=private community"`
	Page  int    `form:"page,default=1"`
	Limit int    `form:"limit,default=20"`
}

// ConversationSummary is the detail view for one conversation: active
// participants resolved to minimal profiles, a ciphertext-free preview of the
// most recent message, and the caller's unread count.
type ConversationSummary struct {
	Conversation
	ParticipantProfiles []ParticipantInfo `json:"participant_profiles"`
	LastMessage         *MessagePreview   `json:"last_message,omitempty"`
	UnreadCount         int64             `json:"unread_count"`
}

type ParticipantInfo struct {
	ID       uuid.UUID       `json:"id"`
	UserID   uuid.UUID       `json:"user_id"`
	Role     ParticipantRole `json:"role"`
	JoinedAt time.Time       `json:"joined_at"`
	Muted    bool            `json:"muted"`
	User     UserProfile     `json:"user"`
}

// MessagePreview never carries ciphertext or wrapped keys.
type MessagePreview struct {
	ID        uuid.UUID   `json:"id"`
	SenderID  uuid.UUID   `json:"sender_id"`
	Sender    UserProfile `json:"sender"`
	Kind      MessageKind `json:"kind"`
	CreatedAt time.Time   `json:"created_at"`
}

type MuteRequest struct {
	Muted bool `json:"muted"`
}

// ========== Message DTOs ==========

type SendMessageRequest struct {
	Ciphertext  string        `json:"ciphertext"`
	WrappedKeys WrappedKeyMap `json:"wrapped_keys"`
	IV          string        `json:"iv"`
	Tag         string        `json:"tag"`
	Kind        MessageKind   `json:"kind"`
	ReplyToID   *uuid.UUID    `json:"reply_to_id"`
}

type EditMessageRequest struct {
	Ciphertext  string        `json:"ciphertext" binding:"required"`
	WrappedKeys WrappedKeyMap `json:"wrapped_keys" binding:"required"`
	IV          string        `json:"iv" binding:"required"`
	Tag         string        `json:"tag" binding:"required"`
}

type MessageListRequest struct {
	Before string `form:"before"` // message id: return messages created strictly before it
	After  string `form:"after"`  // message id: return messages created at/after it
	Limit  int    `form:"limit,default=50"`
}

type MessageListResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

type MarkAsReadRequest struct {
	MessageID *uuid.UUID `json:"message_id"`
}

type MarkAsReadResponse struct {
	MarkedCount int64     `json:"marked_count"`
	ReadAt      time.Time `json:"read_at"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// ========== Realtime protocol ==========

// Inbound action names accepted on the realtime channel.
const (
	ActionMessageSend    = "message:send"
	ActionMessageRead    = "message:read"
	ActionTypingStart    = "typing:start"
	ActionTypingStop     = "typing:stop"
	ActionPresenceUpdate = "presence:update"
)

// Outbound event names pushed on the realtime channel.
const (
	EventMessageNew     = "message:new"
	EventMessageUpdated = "message:updated"
	EventMessageDeleted = "message:deleted"
	EventMessageRead    = "message:read"
	EventTyping         = "typing"
	EventPresenceUpdate = "presence:update"
	EventError          = "error"
)

// ClientAction is the envelope for inbound realtime actions.
type ClientAction struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// ServerEvent is the envelope for outbound realtime events.
type ServerEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// ErrorAck is returned on the same action when an inbound action fails.
// A malformed action never terminates the session.
type ErrorAck struct {
	Action string `json:"action"`
	Error  string `json:"error"`
}

type SendActionPayload struct {
	ConversationID uuid.UUID     `json:"conversation_id"`
	Ciphertext     string        `json:"ciphertext"`
	WrappedKeys    WrappedKeyMap `json:"wrapped_keys"`
	IV             string        `json:"iv"`
	Tag            string        `json:"tag"`
	Kind           MessageKind   `json:"kind"`
	ReplyToID      *uuid.UUID    `json:"reply_to_id"`
}

type ReadActionPayload struct {
	ConversationID uuid.UUID  `json:"conversation_id"`
	MessageID      *uuid.UUID `json:"message_id"`
}

type TypingActionPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

type PresenceActionPayload struct {
	Status string `json:"status"`
}

// ========== Upload DTOs ==========

type UploadResponse struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
}

// ========== Common ==========

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
