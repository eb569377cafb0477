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

// ConversationService manages conversation and participant lifecycle.
type ConversationService struct {
	convRepo    *repository.ConversationRepository
	msgRepo     *repository.MessageRepository
	users       UserDirectory
	communities CommunityDirectory
	bus         bus.Bus
	logger      *zap.Logger
}

func NewConversationService(
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	users UserDirectory,
	communities CommunityDirectory,
	b bus.Bus,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		convRepo:    convRepo,
		msgRepo:     msgRepo,
		users:       users,
		communities: communities,
		bus:         b,
		logger:      logger,
	}
}

// CreatePrivate finds or creates the 1:1 conversation between the requester
// and the target user. Idempotent: an existing pair conversation is returned
// unchanged with isNew=false. Two concurrent first-contact calls resolve to
// one row through the unique pair key.
func (s *ConversationService) CreatePrivate(ctx context.Context, requesterID, targetUserID uuid.UUID) (*model.Conversation, bool, error) {
	if requesterID == targetUserID {
		return nil, false, apperrors.InvalidArg("cannot start a conversation with yourself")
	}

	exists, err := s.users.Exists(targetUserID)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeInternal, "failed to check target user", err)
	}
	if !exists {
		return nil, false, apperrors.NotFound("user not found")
	}

	pairKey := model.PairKey(requesterID, targetUserID)
	if conv, err := s.convRepo.FindByPairKey(pairKey); err == nil {
		return conv, false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, apperrors.Wrap(apperrors.CodeInternal, "failed to look up conversation", err)
	}

	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.New(),
		Kind:      model.ConversationKindPrivate,
		PairKey:   &pairKey,
		CreatedAt: now,
		UpdatedAt: now,
		Participants: []model.ConversationParticipant{
			{ID: uuid.New(), UserID: requesterID, Role: model.RoleAdmin, JoinedAt: now, Active: true},
			{ID: uuid.New(), UserID: targetUserID, Role: model.RoleMember, JoinedAt: now, Active: true},
		},
	}

	if err := s.convRepo.Create(conv); err != nil {
		// Lost the race against the reverse-direction call: the unique pair
		// key guarantees a single row, so return the winner's.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, ferr := s.convRepo.FindByPairKey(pairKey)
			if ferr != nil {
				return nil, false, apperrors.Wrap(apperrors.CodeInternal, "failed to load conversation", ferr)
			}
			return existing, false, nil
		}
		return nil, false, apperrors.Wrap(apperrors.CodeInternal, "failed to create conversation", err)
	}

	s.logger.Info("private conversation created",
		zap.Stringer("conversation_id", conv.ID),
		zap.Stringer("requester_id", requesterID))

	created, err := s.convRepo.FindByID(conv.ID)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeInternal, "failed to reload conversation", err)
	}
	return created, true, nil
}

// CreateForCommunity creates the single conversation bound to a community.
// Only the community owner may create it; every current member is enrolled.
// Idempotent: a second call returns the existing conversation.
func (s *ConversationService) CreateForCommunity(ctx context.Context, requesterID, communityID uuid.UUID, name, avatar string) (*model.Conversation, bool, error) {
	info, err := s.communities.Get(communityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperrors.NotFound("community not found")
		}
		return nil, false, apperrors.Wrap(apperrors.CodeInternal, "failed to resolve community", err)
	}
	if info.OwnerID != requesterID {
		return nil, false, apperrors.Forbidden("only the community owner can create its conversation")
	}

	if conv, err := s.convRepo.FindByCommunityID(communityID); err == nil {
		return conv, false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, apperrors.Wrap(apperrors.CodeInternal, "failed to look up conversation", err)
	}

	if name == "" {
		name = info.Name
	}
	if avatar == "" {
		avatar = info.Avatar
	}

	now := time.Now().UTC()
	participants := []model.ConversationParticipant{
		{ID: uuid.New(), UserID: requesterID, Role: model.RoleAdmin, JoinedAt: now, Active: true},
	}
	for _, memberID := range info.MemberIDs {
		if memberID == requesterID {
			continue
		}
		participants = append(participants, model.ConversationParticipant{
			ID: uuid.New(), UserID: memberID, Role: model.RoleMember, JoinedAt: now, Active: true,
		})
	}

	conv := &model.Conversation{
		ID:           uuid.New(),
		Kind:         model.ConversationKindCommunity,
		Name:         name,
		Avatar:       avatar,
		CommunityID:  &communityID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Participants: participants,
	}

	if err := s.convRepo.Create(conv); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, ferr := s.convRepo.FindByCommunityID(communityID)
			if ferr != nil {
				return nil, false, apperrors.Wrap(apperrors.CodeInternal, "failed to load conversation", ferr)
			}
			return existing, false, nil
		}
		return nil, false, apperrors.Wrap(apperrors.CodeInternal, "failed to create conversation", err)
	}

	s.logger.Info("community conversation created",
		zap.Stringer("conversation_id", conv.ID),
		zap.Stringer("community_id", communityID),
		zap.Int("participants", len(participants)))

	created, err := s.convRepo.FindByID(conv.ID)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeInternal, "failed to reload conversation", err)
	}
	return created, true, nil
}

// ListForUser returns the caller's conversations ordered by latest activity,
// each with its unread count and a ciphertext-free last-message preview.
func (s *ConversationService) ListForUser(ctx context.Context, userID uuid.UUID, kind *model.ConversationKind, page, limit int) ([]model.ConversationResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	conversations, err := s.convRepo.ListForUser(userID, kind, (page-1)*limit, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to list conversations", err)
	}

	result := []model.ConversationResponse{}
	for i := range conversations {
		conv := conversations[i]
		s.resolvePrivateDisplay(&conv, userID)

		resp := model.ConversationResponse{Conversation: conv}
		if preview := s.latestPreview(conv.ID); preview != nil {
			resp.LastMessage = preview
		}
		if part := findParticipant(conv.Participants, userID); part != nil {
			count, err := s.msgRepo.CountSince(conv.ID, userID, part.LastReadAt)
			if err == nil {
				resp.UnreadCount = count
			}
		}
		result = append(result, resp)
	}
	return result, nil
}

// GetSummary returns the detail view of one conversation for an active
// participant. A caller without an active participant row gets NotFound:
// absence and lack of visibility are indistinguishable.
func (s *ConversationService) GetSummary(ctx context.Context, userID, conversationID uuid.UUID) (*model.ConversationSummary, error) {
	part, err := s.activeParticipant(conversationID, userID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodePermissionDenied) {
			return nil, apperrors.NotFound("conversation not found")
		}
		return nil, err
	}

	conv, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("conversation not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to load conversation", err)
	}
	s.resolvePrivateDisplay(conv, userID)

	ids := make([]uuid.UUID, 0, len(conv.Participants))
	for i := range conv.Participants {
		ids = append(ids, conv.Participants[i].UserID)
	}
	profiles, err := s.users.Resolve(ids)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to resolve participants", err)
	}

	infos := make([]model.ParticipantInfo, 0, len(conv.Participants))
	for i := range conv.Participants {
		p := conv.Participants[i]
		infos = append(infos, model.ParticipantInfo{
			ID:       p.ID,
			UserID:   p.UserID,
			Role:     p.Role,
			JoinedAt: p.JoinedAt,
			Muted:    p.Muted,
			User:     profiles[p.UserID],
		})
	}

	unread, err := s.msgRepo.CountSince(conversationID, userID, part.LastReadAt)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to count unread", err)
	}

	return &model.ConversationSummary{
		Conversation:        *conv,
		ParticipantProfiles: infos,
		LastMessage:         s.latestPreview(conversationID),
		UnreadCount:         unread,
	}, nil
}

// Leave soft-retires the caller's participant row and posts a system notice
// to the remaining participants. The published event names the leaver in
// DepartedID so every gateway instance evicts them from room routing; it goes
// out even when the notice could not be recorded.
func (s *ConversationService) Leave(ctx context.Context, userID, conversationID uuid.UUID) error {
	if _, err := s.activeParticipant(conversationID, userID); err != nil {
		return err
	}

	if err := s.convRepo.Deactivate(conversationID, userID); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "failed to leave conversation", err)
	}

	now := time.Now().UTC()
	evt := bus.MessageEvent{
		ConversationID: conversationID,
		SenderID:       userID,
		Action:         bus.MessageCreated,
		Kind:           string(model.MessageKindSystem),
		DepartedID:     &userID,
		CreatedAt:      now,
	}

	notice := &model.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       userID,
		Kind:           model.MessageKindSystem,
		Content:        "left the conversation",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.msgRepo.Create(notice); err != nil {
		s.logger.Warn("failed to record leave notice", zap.Error(err))
	} else {
		evt.MessageID = notice.ID
		_ = s.convRepo.TouchLastMessage(conversationID, now)
	}

	if ids, err := s.convRepo.ActiveParticipantIDs(conversationID); err == nil {
		evt.ParticipantIDs = ids
	} else {
		s.logger.Warn("failed to resolve participants for leave fan-out",
			zap.Stringer("conversation_id", conversationID), zap.Error(err))
	}

	s.bus.PublishMessage(ctx, evt)
	return nil
}

// SetMuted updates the caller's muted flag for a conversation.
func (s *ConversationService) SetMuted(ctx context.Context, userID, conversationID uuid.UUID, muted bool) error {
	if _, err := s.activeParticipant(conversationID, userID); err != nil {
		return err
	}
	if err := s.convRepo.SetMuted(conversationID, userID, muted); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "failed to update mute flag", err)
	}
	return nil
}

// activeParticipant loads the caller's participant row and rejects inactive
// or absent memberships.
func (s *ConversationService) activeParticipant(conversationID, userID uuid.UUID) (*model.ConversationParticipant, error) {
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

// resolvePrivateDisplay fills a private conversation's name and avatar from
// the counterpart, since private threads have no display name of their own.
func (s *ConversationService) resolvePrivateDisplay(conv *model.Conversation, viewerID uuid.UUID) {
	if conv.Kind != model.ConversationKindPrivate {
		return
	}
	for i := range conv.Participants {
		p := conv.Participants[i]
		if p.UserID != viewerID {
			conv.Name = p.User.DisplayName
			conv.Avatar = p.User.Avatar
			return
		}
	}
}

// latestPreview builds the sender/kind/timestamp preview of the most recent
// message, or nil when the conversation is empty. Ciphertext never leaves
// through this path.
func (s *ConversationService) latestPreview(conversationID uuid.UUID) *model.MessagePreview {
	msg, err := s.msgRepo.Latest(conversationID)
	if err != nil {
		return nil
	}
	return &model.MessagePreview{
		ID:        msg.ID,
		SenderID:  msg.SenderID,
		Sender:    msg.Sender.Profile(),
		Kind:      msg.Kind,
		CreatedAt: msg.CreatedAt,
	}
}

func findParticipant(participants []model.ConversationParticipant, userID uuid.UUID) *model.ConversationParticipant {
	for i := range participants {
		if participants[i].UserID == userID {
			return &participants[i]
		}
	}
	return nil
}
