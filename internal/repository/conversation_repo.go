package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/whisprapp/whispr/internal/model"
	"gorm.io/gorm"
)

// ConversationRepository handles database operations for conversations and
// their participant rows.
type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create inserts a conversation together with its initial participant set.
func (r *ConversationRepository) Create(conv *model.Conversation) error {
	return r.db.Create(conv).Error
}

// FindByID finds a conversation by ID with its active participants.
func (r *ConversationRepository) FindByID(id uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Preload("Participants", "active = ?", true).
		Preload("Participants.User").
		Where("id = ?", id).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByPairKey finds the private conversation identified by a sorted user
// id pair.
func (r *ConversationRepository) FindByPairKey(pairKey string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Preload("Participants", "active = ?", true).
		Preload("Participants.User").
		Where("pair_key = ?", pairKey).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByCommunityID finds the conversation bound to a community.
func (r *ConversationRepository) FindByCommunityID(communityID uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Preload("Participants", "active = ?", true).
		Preload("Participants.User").
		Where("community_id = ?", communityID).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListForUser returns conversations where the user has an active participant
// row, newest activity first. Conversations with no messages sort by their
// creation time.
func (r *ConversationRepository) ListForUser(userID uuid.UUID, kind *model.ConversationKind, offset, limit int) ([]model.Conversation, error) {
	var conversations []model.Conversation
	q := r.db.
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ? AND cp.active = ?", userID, true)
	if kind != nil {
		q = q.Where("conversations.kind = ?", *kind)
	}
	err := q.
		Preload("Participants", "active = ?", true).
		Preload("Participants.User").
		Order("COALESCE(conversations.last_message_at, conversations.created_at) DESC").
		Offset(offset).
		Limit(limit).
		Find(&conversations).Error
	return conversations, err
}

// FindParticipant returns the participant row for a (conversation, user)
// pair, active or not.
func (r *ConversationRepository) FindParticipant(conversationID, userID uuid.UUID) (*model.ConversationParticipant, error) {
	var p model.ConversationParticipant
	err := r.db.
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ActiveParticipantIDs returns the user ids of all active participants.
func (r *ConversationRepository) ActiveParticipantIDs(conversationID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND active = ?", conversationID, true).
		Pluck("user_id", &ids).Error
	return ids, err
}

// ActiveConversationIDs returns the conversations a user is an active
// participant of. The gateway joins these as rooms on connect.
func (r *ConversationRepository) ActiveConversationIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Model(&model.ConversationParticipant{}).
		Where("user_id = ? AND active = ?", userID, true).
		Pluck("conversation_id", &ids).Error
	return ids, err
}

// AddParticipants inserts participant rows in one batch.
func (r *ConversationRepository) AddParticipants(participants []model.ConversationParticipant) error {
	if len(participants) == 0 {
		return nil
	}
	return r.db.Create(&participants).Error
}

// UpdateLastRead advances a participant's read cursor. The cursor only moves
// forward: a stale call with an earlier timestamp leaves it untouched.
func (r *ConversationRepository) UpdateLastRead(conversationID, userID uuid.UUID, readAt time.Time) error {
	return r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Where("last_read_at IS NULL OR last_read_at < ?", readAt).
		Update("last_read_at", readAt).Error
}

// SetMuted updates a participant's muted flag.
func (r *ConversationRepository) SetMuted(conversationID, userID uuid.UUID, muted bool) error {
	return r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("muted", muted).Error
}

// Deactivate soft-retires a participant. The row stays for history but the
// user no longer receives delivery or counts toward unread tracking.
func (r *ConversationRepository) Deactivate(conversationID, userID uuid.UUID) error {
	return r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("active", false).Error
}

// TouchLastMessage bumps the conversation's last-message timestamp used for
// inbox ordering.
func (r *ConversationRepository) TouchLastMessage(conversationID uuid.UUID, at time.Time) error {
	return r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("last_message_at", at).Error
}
