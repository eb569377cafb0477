package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/whisprapp/whispr/internal/model"
	"gorm.io/gorm"
)

// MessageRepository handles database operations for messages. Soft-deleted
// rows are retained for audit but excluded from every read here via gorm's
// DeletedAt handling.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message.
func (r *MessageRepository) Create(msg *model.Message) error {
	return r.db.Create(msg).Error
}

// FindByID finds a non-deleted message by ID with sender info.
func (r *MessageRepository) FindByID(id uuid.UUID) (*model.Message, error) {
	var msg model.Message
	err := r.db.
		Preload("Sender").
		Where("id = ?", id).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// List returns up to limit messages of a conversation, newest first, within
// the optional [after, before) window. Cursors are message ids resolved to
// their creation timestamps; ties on created_at break by id so ordering is
// stable regardless of which gateway instance persisted them.
func (r *MessageRepository) List(conversationID uuid.UUID, before, after *uuid.UUID, limit int) ([]model.Message, error) {
	messages := []model.Message{}
	query := r.db.
		Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit)

	if before != nil {
		cursor, err := r.createdAt(*before)
		if err != nil {
			return nil, err
		}
		query = query.Where("created_at < ?", cursor)
	}
	if after != nil {
		cursor, err := r.createdAt(*after)
		if err != nil {
			return nil, err
		}
		query = query.Where("created_at >= ?", cursor)
	}

	err := query.Find(&messages).Error
	return messages, err
}

func (r *MessageRepository) createdAt(id uuid.UUID) (time.Time, error) {
	var msg model.Message
	err := r.db.Select("created_at").Where("id = ?", id).First(&msg).Error
	return msg.CreatedAt, err
}

// Latest returns the most recent non-deleted message in a conversation.
func (r *MessageRepository) Latest(conversationID uuid.UUID) (*model.Message, error) {
	var msg model.Message
	err := r.db.
		Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// CountSince counts non-deleted messages from other senders created strictly
// after the given cursor. A nil cursor counts everything since epoch.
func (r *MessageRepository) CountSince(conversationID, userID uuid.UUID, since *time.Time) (int64, error) {
	var count int64
	q := r.db.Model(&model.Message{}).
		Where("conversation_id = ? AND sender_id != ?", conversationID, userID)
	if since != nil {
		q = q.Where("created_at > ?", *since)
	}
	err := q.Count(&count).Error
	return count, err
}

// Edit replaces the ciphertext fields of a message and stamps editedAt.
func (r *MessageRepository) Edit(id uuid.UUID, ciphertext string, keys model.WrappedKeyMap, iv, tag string, editedAt time.Time) error {
	return r.db.Model(&model.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"ciphertext":   ciphertext,
			"wrapped_keys": keys,
			"iv":           iv,
			"tag":          tag,
			"edited_at":    editedAt,
		}).Error
}

// SoftDelete hides a message from read APIs while retaining the row.
func (r *MessageRepository) SoftDelete(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&model.Message{}).Error
}
