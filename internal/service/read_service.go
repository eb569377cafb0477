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

// ReadService computes and advances per-participant read cursors.
type ReadService struct {
	convRepo *repository.ConversationRepository
	msgRepo  *repository.MessageRepository
	bus      bus.Bus
	logger   *zap.Logger
}

func NewReadService(
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	b bus.Bus,
	logger *zap.Logger,
) *ReadService {
	return &ReadService{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		bus:      b,
		logger:   logger,
	}
}

// MarkAsRead advances the caller's read cursor to now and publishes a read
// receipt. The messageID, when given, is echoed in the receipt but does not
// bound the cursor: both forms advance to the current time. The cursor is
// monotonic, so an out-of-order call can never regress it.
//
// MarkedCount deliberately excludes the caller's own messages: a sender has
// read what they sent, and counting otherwise would let marked exceed the
// unread count the client was shown.
func (s *ReadService) MarkAsRead(ctx context.Context, userID, conversationID uuid.UUID, messageID *uuid.UUID) (*model.MarkAsReadResponse, error) {
	part, err := s.activeParticipant(conversationID, userID)
	if err != nil {
		return nil, err
	}

	marked, err := s.msgRepo.CountSince(conversationID, userID, part.LastReadAt)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to count marked messages", err)
	}

	now := time.Now().UTC()
	if err := s.convRepo.UpdateLastRead(conversationID, userID, now); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to advance read cursor", err)
	}

	s.bus.PublishReadReceipt(ctx, bus.ReadReceiptEvent{
		ConversationID: conversationID,
		MessageID:      messageID,
		UserID:         userID,
		ReadAt:         now,
	})

	return &model.MarkAsReadResponse{MarkedCount: marked, ReadAt: now}, nil
}

// UnreadCount returns the number of non-deleted messages from other senders
// created after the caller's read cursor, or all of them if never read.
func (s *ReadService) UnreadCount(ctx context.Context, userID, conversationID uuid.UUID) (int64, error) {
	part, err := s.activeParticipant(conversationID, userID)
	if err != nil {
		return 0, err
	}
	count, err := s.msgRepo.CountSince(conversationID, userID, part.LastReadAt)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, "failed to count unread messages", err)
	}
	return count, nil
}

// RequireActiveParticipant rejects callers without an active participant row.
// The realtime gateway uses it to gate actions, like typing signals, that
// publish straight to the bus without touching a service mutation path.
func (s *ReadService) RequireActiveParticipant(ctx context.Context, userID, conversationID uuid.UUID) error {
	_, err := s.activeParticipant(conversationID, userID)
	return err
}

func (s *ReadService) activeParticipant(conversationID, userID uuid.UUID) (*model.ConversationParticipant, error) {
	part, err := s.convRepo.FindParticipant(conversationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Forbidden("you are not a participant of this conversation")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to load participant", err)
	}
	if !part.Active {
		return nil, apperrors.Forbidden("you are not a participant of this conversation")
	}
	return part, nil
}
