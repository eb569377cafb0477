package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/whisprapp/whispr/internal/bus"
	"github.com/whisprapp/whispr/internal/model"
	"github.com/whisprapp/whispr/internal/service"
	"github.com/whisprapp/whispr/internal/ws"
	"github.com/whisprapp/whispr/pkg/apperrors"
	"github.com/whisprapp/whispr/pkg/auth"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, validate origin
	},
}

// WSHandler authenticates WebSocket handshakes and dispatches inbound client
// actions to the services. The user id bound at handshake is the only actor
// identity ever used; client-supplied user ids are never trusted.
type WSHandler struct {
	hub      *ws.Hub
	messages *service.MessageService
	reads    *service.ReadService
	bus      bus.Bus
	verifier *auth.TokenVerifier
	logger   *zap.Logger
}

func NewWSHandler(
	hub *ws.Hub,
	messages *service.MessageService,
	reads *service.ReadService,
	b bus.Bus,
	verifier *auth.TokenVerifier,
	logger *zap.Logger,
) *WSHandler {
	return &WSHandler{
		hub:      hub,
		messages: messages,
		reads:    reads,
		bus:      b,
		verifier: verifier,
		logger:   logger,
	}
}

// HandleWebSocket upgrades HTTP to WebSocket and manages the connection.
// Clients connect with: ws://host/ws?token=<jwt> (or an Authorization header).
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		tokenString = bearerToken(c.GetHeader("Authorization"))
	}
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "token required"})
		return
	}

	claims, err := h.verifier.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, claims.UserID, h.logger)
	h.hub.Register(client)

	h.logger.Info("websocket connected", zap.Stringer("user_id", claims.UserID))

	go client.WritePump()
	go client.ReadPump(h.handleAction)
}

// handleAction dispatches one inbound action. Every failure is acknowledged
// on the same action; the session stays open.
func (h *WSHandler) handleAction(client *ws.Client, action model.ClientAction) {
	switch action.Action {
	case model.ActionMessageSend:
		h.handleSend(client, action)
	case model.ActionMessageRead:
		h.handleRead(client, action)
	case model.ActionTypingStart:
		h.handleTyping(client, action, true)
	case model.ActionTypingStop:
		h.handleTyping(client, action, false)
	case model.ActionPresenceUpdate:
		h.handlePresence(client, action)
	default:
		h.ack(client, action.Action, "unknown action")
	}
}

func (h *WSHandler) handleSend(client *ws.Client, action model.ClientAction) {
	var payload model.SendActionPayload
	if err := json.Unmarshal(action.Payload, &payload); err != nil {
		h.ack(client, action.Action, "malformed payload")
		return
	}

	_, err := h.messages.Send(context.Background(), client.UserID, payload.ConversationID, model.SendMessageRequest{
		Ciphertext:  payload.Ciphertext,
		WrappedKeys: payload.WrappedKeys,
		IV:          payload.IV,
		Tag:         payload.Tag,
		Kind:        payload.Kind,
		ReplyToID:   payload.ReplyToID,
	})
	if err != nil {
		h.ack(client, action.Action, clientMessage(err))
	}
}

func (h *WSHandler) handleRead(client *ws.Client, action model.ClientAction) {
	var payload model.ReadActionPayload
	if err := json.Unmarshal(action.Payload, &payload); err != nil {
		h.ack(client, action.Action, "malformed payload")
		return
	}

	if _, err := h.reads.MarkAsRead(context.Background(), client.UserID, payload.ConversationID, payload.MessageID); err != nil {
		h.ack(client, action.Action, clientMessage(err))
	}
}

func (h *WSHandler) handleTyping(client *ws.Client, action model.ClientAction, isTyping bool) {
	var payload model.TypingActionPayload
	if err := json.Unmarshal(action.Payload, &payload); err != nil {
		h.ack(client, action.Action, "malformed payload")
		return
	}

	if err := h.reads.RequireActiveParticipant(context.Background(), client.UserID, payload.ConversationID); err != nil {
		h.ack(client, action.Action, clientMessage(err))
		return
	}

	h.bus.PublishTyping(context.Background(), bus.TypingEvent{
		ConversationID: payload.ConversationID,
		UserID:         client.UserID,
		IsTyping:       isTyping,
		At:             time.Now().UTC(),
	})
}

func (h *WSHandler) handlePresence(client *ws.Client, action model.ClientAction) {
	var payload model.PresenceActionPayload
	if err := json.Unmarshal(action.Payload, &payload); err != nil || payload.Status == "" {
		h.ack(client, action.Action, "malformed payload")
		return
	}

	h.bus.PublishPresence(context.Background(), bus.PresenceEvent{
		UserID: client.UserID,
		Status: payload.Status,
		At:     time.Now().UTC(),
	})
}

// ack sends a per-action error acknowledgement on the actor's connection.
func (h *WSHandler) ack(client *ws.Client, action, message string) {
	client.SendEvent(model.ServerEvent{
		Event:   model.EventError,
		Payload: model.ErrorAck{Action: action, Error: message},
	})
}

// clientMessage reduces a service error to its client-safe message.
func clientMessage(err error) string {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInvalidArgument, apperrors.CodeNotFound,
		apperrors.CodePermissionDenied, apperrors.CodeUnauthenticated:
		var app *apperrors.AppError
		if errors.As(err, &app) {
			return app.Message
		}
	}
	return "internal error"
}
