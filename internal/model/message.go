package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageKind defines the type of message content.
type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindSystem MessageKind = "system"
	MessageKindImage  MessageKind = "image"
	MessageKindVideo  MessageKind = "video"
	MessageKindAudio  MessageKind = "audio"
	MessageKindFile   MessageKind = "file"
)

// WrappedKeyMap maps a recipient user id to that recipient's wrapped content
// key. The server stores and forwards it verbatim; it never interprets the
// values.
type WrappedKeyMap map[string]string

// Value serializes the map as JSON for the database driver.
func (m WrappedKeyMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan deserializes a JSON column back into the map.
func (m *WrappedKeyMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported wrapped key column type %T", src)
	}
}

// Message represents one encrypted message in a conversation. Ciphertext, IV,
// Tag and WrappedKeys are opaque to the server: stored on send and returned
// byte-for-byte unchanged. Content is only populated for system messages,
// the one kind allowed to carry plaintext.
type Message struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID      `json:"conversation_id" gorm:"type:uuid;index;not null"`
	SenderID       uuid.UUID      `json:"sender_id" gorm:"type:uuid;index;not null"`
	Ciphertext     string         `json:"ciphertext,omitempty" gorm:"type:text"`
	WrappedKeys    WrappedKeyMap  `json:"wrapped_keys,omitempty" gorm:"type:jsonb"`
	IV             string         `json:"iv,omitempty" gorm:"size:255"`
	Tag            string         `json:"tag,omitempty" gorm:"size:255"`
	Content        string         `json:"content,omitempty" gorm:"type:text"` // system messages only
	Kind           MessageKind    `json:"kind" gorm:"type:varchar(20);default:'text'"`
	ReplyToID      *uuid.UUID     `json:"reply_to_id,omitempty" gorm:"type:uuid"`
	CreatedAt      time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt      time.Time      `json:"updated_at"`
	EditedAt       *time.Time     `json:"edited_at,omitempty"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Sender       User          `json:"sender" gorm:"foreignKey:SenderID"`
	Conversation Conversation  `json:"-" gorm:"foreignKey:ConversationID"`
	ReplyTo      *Message      `json:"reply_to,omitempty" gorm:"foreignKey:ReplyToID"`
}
