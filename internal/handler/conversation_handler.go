package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/whisprapp/whispr/internal/model"
	"github.com/whisprapp/whispr/internal/service"
)

// ConversationHandler handles conversation lifecycle HTTP endpoints.
type ConversationHandler struct {
	conversations *service.ConversationService
	reads         *service.ReadService
}

func NewConversationHandler(conversations *service.ConversationService, reads *service.ReadService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, reads: reads}
}

// CreateDirect godoc
// @Summary Get or create a private conversation with another user
// @Description Idempotent: an existing conversation between the pair is returned with is_new=false.
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateDirectRequest true "Target user"
// @Success 200 {object} model.DirectConversationResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/direct [post]
func (h *ConversationHandler) CreateDirect(c *gin.Context) {
	var req model.CreateDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	conv, isNew, err := h.conversations.CreatePrivate(c.Request.Context(), userID, req.TargetUserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.DirectConversationResponse{
		Conversation: model.ConversationResponse{Conversation: *conv},
		IsNew:        isNew,
	})
}

// CreateForCommunity godoc
// @Summary Create the conversation bound to a community
// @Description Only the community owner may create it; all current members are enrolled. Idempotent.
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateCommunityConversationRequest true "Community conversation"
// @Success 201 {object} model.Conversation
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/community [post]
func (h *ConversationHandler) CreateForCommunity(c *gin.Context) {
	var req model.CreateCommunityConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	conv, isNew, err := h.conversations.CreateForCommunity(c.Request.Context(), userID, req.CommunityID, req.Name, req.Avatar)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	c.JSON(status, conv)
}

// List godoc
// @Summary List the caller's conversations
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param kind query string false "Filter by kind" Enums(private, community)
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 20)"
// @Success 200 {array} model.ConversationResponse
// @Router /conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	var req model.ConversationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
		return
	}

	var kind *model.ConversationKind
	if req.Kind != "" {
		k := model.ConversationKind(req.Kind)
		kind = &k
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	conversations, err := h.conversations.ListForUser(c.Request.Context(), userID, kind, req.Page, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// GetSummary godoc
// @Summary Get one conversation with participants, last-message preview and unread count
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.ConversationSummary
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/{id} [get]
func (h *ConversationHandler) GetSummary(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid conversation ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	summary, err := h.conversations.GetSummary(c.Request.Context(), userID, convID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Leave godoc
// @Summary Leave a conversation
// @Description The participant row is retained for history but excluded from delivery and unread counts.
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /conversations/{id}/leave [post]
func (h *ConversationHandler) Leave(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid conversation ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.conversations.Leave(c.Request.Context(), userID, convID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "left conversation"})
}

// SetMuted godoc
// @Summary Mute or unmute a conversation
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.MuteRequest true "Mute flag"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/mute [post]
func (h *ConversationHandler) SetMuted(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid conversation ID"})
		return
	}

	var req model.MuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.conversations.SetMuted(c.Request.Context(), userID, convID, req.Muted); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "mute flag updated"})
}
