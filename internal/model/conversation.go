package model

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConversationKind defines whether the conversation is a 1:1 chat or bound to a community.
type ConversationKind string

const (
	ConversationKindPrivate   ConversationKind = "private"
	ConversationKindCommunity ConversationKind = "community"
)

// Conversation represents an addressable thread of messages.
//
// A private conversation carries a PairKey (sorted user id pair) with a unique
// index, so two concurrent first-contact creations collapse to one row. A
// community conversation is bound to exactly one community via the unique
// CommunityID column.
type Conversation struct {
	ID            uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	Kind          ConversationKind `json:"kind" gorm:"type:varchar(20);not null;index"`
	Name          string           `json:"name" gorm:"size:100"` // required for community, derived for private
	Avatar        string           `json:"avatar,omitempty" gorm:"size:500"`
	CommunityID   *uuid.UUID       `json:"community_id,omitempty" gorm:"type:uuid;uniqueIndex"`
	PairKey       *string          `json:"-" gorm:"size:80;uniqueIndex"`
	LastMessageAt *time.Time       `json:"last_message_at,omitempty" gorm:"index"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`

	// Relations
	Participants []ConversationParticipant `json:"participants,omitempty" gorm:"foreignKey:ConversationID"`
}

// PairKey builds the canonical identity of a private conversation between two
// users, independent of who initiated it.
func PairKey(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// ParticipantRole defines a participant's role within a conversation.
type ParticipantRole string

const (
	RoleAdmin  ParticipantRole = "admin"
	RoleMember ParticipantRole = "member"
)

// ConversationParticipant is a user's membership record in a conversation.
// A participant that left is kept for history with Active=false; it is
// excluded from delivery and unread counts but never physically removed.
type ConversationParticipant struct {
	ID             uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID       `json:"conversation_id" gorm:"type:uuid;uniqueIndex:idx_conv_user;not null"`
	UserID         uuid.UUID       `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_conv_user;not null"`
	Role           ParticipantRole `json:"role" gorm:"type:varchar(20);default:'member'"`
	JoinedAt       time.Time       `json:"joined_at"`
	LastReadAt     *time.Time      `json:"last_read_at,omitempty"`
	Muted          bool            `json:"muted" gorm:"default:false"`
	Active         bool            `json:"active" gorm:"default:true;index"`

	// Relations
	User         User         `json:"user" gorm:"foreignKey:UserID"`
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID"`
}

// WithLastRead returns a copy of the participant with an advanced read cursor.
// The copy never regresses an existing cursor.
func (p ConversationParticipant) WithLastRead(t time.Time) ConversationParticipant {
	if p.LastReadAt != nil && p.LastReadAt.After(t) {
		return p
	}
	cursor := t
	p.LastReadAt = &cursor
	return p
}

// WithMuted returns a copy of the participant with the muted flag changed.
func (p ConversationParticipant) WithMuted(muted bool) ConversationParticipant {
	p.Muted = muted
	return p
}
