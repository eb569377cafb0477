package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/whisprapp/whispr/internal/model"
	"github.com/whisprapp/whispr/internal/service"
)

// MessageHandler handles message and read-tracking HTTP endpoints.
type MessageHandler struct {
	messages *service.MessageService
	reads    *service.ReadService
}

func NewMessageHandler(messages *service.MessageService, reads *service.ReadService) *MessageHandler {
	return &MessageHandler{messages: messages, reads: reads}
}

// Send godoc
// @Summary Send an encrypted message to a conversation
// @Description Ciphertext, per-recipient wrapped keys, iv and tag are stored and relayed verbatim; the server never inspects them.
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.SendMessageRequest true "Encrypted message"
// @Success 201 {object} model.Message
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /conversations/{id}/messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid conversation ID"})
		return
	}

	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	msg, err := h.messages.Send(c.Request.Context(), userID, convID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// List godoc
// @Summary List messages in a conversation, newest first
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param before query string false "Message id: return messages created before it"
// @Param after query string false "Message id: return messages created at or after it"
// @Param limit query int false "Page size (default 50)"
// @Success 200 {object} model.MessageListResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /conversations/{id}/messages [get]
func (h *MessageHandler) List(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid conversation ID"})
		return
	}

	var req model.MessageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
		return
	}

	var before, after *uuid.UUID
	if req.Before != "" {
		if parsed, err := uuid.Parse(req.Before); err == nil {
			before = &parsed
		}
	}
	if req.After != "" {
		if parsed, err := uuid.Parse(req.After); err == nil {
			after = &parsed
		}
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	resp, err := h.messages.List(c.Request.Context(), userID, convID, req.Limit, before, after)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetByID godoc
// @Summary Get a single message
// @Description Returns 404 both when the message does not exist and when the caller cannot see it.
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} model.Message
// @Failure 404 {object} model.ErrorResponse
// @Router /messages/{id} [get]
func (h *MessageHandler) GetByID(c *gin.Context) {
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid message ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	msg, err := h.messages.GetByID(c.Request.Context(), userID, msgID)
	if err != nil {
		respondError(c, err)
		return
	}
	if msg == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "not found"})
		return
	}

	c.JSON(http.StatusOK, msg)
}

// Edit godoc
// @Summary Replace a message's encrypted content
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Param body body model.EditMessageRequest true "Replacement ciphertext fields"
// @Success 200 {object} model.Message
// @Failure 403 {object} model.ErrorResponse
// @Router /messages/{id} [patch]
func (h *MessageHandler) Edit(c *gin.Context) {
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid message ID"})
		return
	}

	var req model.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	msg, err := h.messages.Edit(c.Request.Context(), userID, msgID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// Delete godoc
// @Summary Soft-delete a message
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /messages/{id} [delete]
func (h *MessageHandler) Delete(c *gin.Context) {
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid message ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.messages.Delete(c.Request.Context(), userID, msgID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "message deleted"})
}

// MarkAsRead godoc
// @Summary Advance the caller's read cursor for a conversation
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.MarkAsReadRequest false "Optional message id echoed in the receipt"
// @Success 200 {object} model.MarkAsReadResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /conversations/{id}/read [post]
func (h *MessageHandler) MarkAsRead(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid conversation ID"})
		return
	}

	var req model.MarkAsReadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
			return
		}
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	resp, err := h.reads.MarkAsRead(c.Request.Context(), userID, convID, req.MessageID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UnreadCount godoc
// @Summary Count unread messages in a conversation
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.UnreadCountResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /conversations/{id}/unread [get]
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid conversation ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	count, err := h.reads.UnreadCount(c.Request.Context(), userID, convID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.UnreadCountResponse{Count: count})
}
