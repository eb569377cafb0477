package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/whisprapp/whispr/internal/bus"
	"github.com/whisprapp/whispr/internal/model"
	"github.com/whisprapp/whispr/internal/repository"
	"github.com/whisprapp/whispr/pkg/apperrors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MessageService validates and persists opaque encrypted messages and
// triggers delivery notification through the fan-out bus.
type MessageService struct {
	convRepo *repository.ConversationRepository
	msgRepo  *repository.MessageRepository
	bus      bus.Bus
	logger   *zap.Logger
}

func NewMessageService(
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	b bus.Bus,
	logger *zap.Logger,
) *MessageService {
	return &MessageService{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		bus:      b,
		logger:   logger,
	}
}

// Send persists one encrypted message and publishes a new-message event to
// the fan-out bus. The ciphertext, wrapped keys, iv and tag are stored
// verbatim. A persistence failure is fatal to the request; a bus failure is
// not.
func (s *MessageService) Send(ctx context.Context, senderID, conversationID uuid.UUID, req model.SendMessageRequest) (*model.Message, error) {
	if _, err := s.convRepo.FindByID(conversationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("conversation not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to load conversation", err)
	}
	if err := s.requireActive(conversationID, senderID); err != nil {
		return nil, err
	}

	kind := req.Kind
	if kind == "" {
		kind = model.MessageKindText
	}
	if kind == model.MessageKindSystem {
		return nil, apperrors.InvalidArg("system messages are server-generated")
	}
	if req.Ciphertext == "" || len(req.WrappedKeys) == 0 || req.IV == "" || req.Tag == "" {
		return nil, apperrors.InvalidArg("ciphertext, wrapped_keys, iv and tag are required")
	}

	if req.ReplyToID != nil {
		replyTo, err := s.msgRepo.FindByID(*req.ReplyToID)
		if err != nil || replyTo.ConversationID != conversationID {
			return nil, apperrors.InvalidArg("reply-to message is not in this conversation")
		}
	}

	now := time.Now().UTC()
	msg := &model.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Ciphertext:     req.Ciphertext,
		WrappedKeys:    req.WrappedKeys,
		IV:             req.IV,
		Tag:            req.Tag,
		Kind:           kind,
		ReplyToID:      req.ReplyToID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.msgRepo.Create(msg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to persist message", err)
	}

	if err := s.convRepo.TouchLastMessage(conversationID, now); err != nil {
		s.logger.Warn("failed to bump conversation recency",
			zap.Stringer("conversation_id", conversationID), zap.Error(err))
	}

	s.publishEvent(ctx, msg, bus.MessageCreated)

	return s.msgRepo.FindByID(msg.ID)
}

// List returns messages of a conversation newest-first within the optional
// [after, before) window, excluding soft-deleted rows. HasMore is computed
// by probing one row past the limit.
func (s *MessageService) List(ctx context.Context, userID, conversationID uuid.UUID, limit int, before, after *uuid.UUID) (*model.MessageListResponse, error) {
	if err := s.requireActive(conversationID, userID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	messages, err := s.msgRepo.List(conversationID, before, after, limit+1)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to list messages", err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}
	return &model.MessageListResponse{Messages: messages, HasMore: hasMore}, nil
}

// GetByID returns a message visible to the caller, or nil both when the
// message does not exist and when the caller is not an active participant of
// its conversation. The two cases are indistinguishable on purpose.
func (s *MessageService) GetByID(ctx context.Context, userID, messageID uuid.UUID) (*model.Message, error) {
	msg, err := s.msgRepo.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to load message", err)
	}
	if err := s.requireActive(msg.ConversationID, userID); err != nil {
		if apperrors.Is(err, apperrors.CodePermissionDenied) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// Edit replaces a message's ciphertext fields in place and stamps editedAt.
// Only the sender may edit; system messages cannot be edited.
func (s *MessageService) Edit(ctx context.Context, userID, messageID uuid.UUID, req model.EditMessageRequest) (*model.Message, error) {
	msg, err := s.msgRepo.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("message not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to load message", err)
	}
	if msg.SenderID != userID {
		return nil, apperrors.Forbidden("only the sender can edit a message")
	}
	if msg.Kind == model.MessageKindSystem {
		return nil, apperrors.InvalidArg("system messages cannot be edited")
	}

	now := time.Now().UTC()
	if err := s.msgRepo.Edit(messageID, req.Ciphertext, req.WrappedKeys, req.IV, req.Tag, now); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to edit message", err)
	}

	updated, err := s.msgRepo.FindByID(messageID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to reload message", err)
	}
	s.publishEvent(ctx, updated, bus.MessageEdited)
	return updated, nil
}

// Delete soft-deletes a message: the row is retained for audit but hidden
// from read APIs. Only the sender may delete.
func (s *MessageService) Delete(ctx context.Context, userID, messageID uuid.UUID) error {
	msg, err := s.msgRepo.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("message not found")
		}
		return apperrors.Wrap(apperrors.CodeInternal, "failed to load message", err)
	}
	if msg.SenderID != userID {
		return apperrors.Forbidden("only the sender can delete a message")
	}

	if err := s.msgRepo.SoftDelete(messageID); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "failed to delete message", err)
	}
	s.publishEvent(ctx, msg, bus.MessageDeleted)
	return nil
}

func (s *MessageService) publishEvent(ctx context.Context, msg *model.Message, action string) {
	ids, err := s.convRepo.ActiveParticipantIDs(msg.ConversationID)
	if err != nil {
		s.logger.Warn("failed to resolve participants for fan-out",
			zap.Stringer("conversation_id", msg.ConversationID), zap.Error(err))
		return
	}
	s.bus.PublishMessage(ctx, bus.MessageEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		ParticipantIDs: ids,
		Action:         action,
		Kind:           string(msg.Kind),
		CreatedAt:      msg.CreatedAt,
	})
}

func (s *MessageService) requireActive(conversationID, userID uuid.UUID) error {
	part, err := s.convRepo.FindParticipant(conversationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Forbidden("you are not a participant of this conversation")
		}
		return apperrors.Wrap(apperrors.CodeInternal, "failed to load participant", err)
	}
	if !part.Active {
		return apperrors.Forbidden("you are not a participant of this conversation")
	}
	return nil
}
