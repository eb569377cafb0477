package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/whisprapp/whispr/internal/bus"
	"github.com/whisprapp/whispr/internal/model"
	"go.uber.org/zap"
)

// MembershipSource loads the conversations a user actively belongs to.
// Implemented by the conversation repository.
type MembershipSource interface {
	ActiveConversationIDs(userID uuid.UUID) ([]uuid.UUID, error)
}

// Hub owns this instance's live connections. It maps each user to their
// connection set (one user may hold many, e.g. multiple devices), indexes
// which local users belong to which conversation room, and bridges fan-out
// bus events onto sockets. It is constructed once per process; all map
// mutation happens under the mutex.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]bool
	rooms   map[uuid.UUID]map[uuid.UUID]bool // conversation id -> local member user ids

	register   chan *Client
	unregister chan *Client

	bus         bus.Bus
	memberships MembershipSource
	logger      *zap.Logger

	unsubs []func()
}

// NewHub creates a hub bridging the given bus backend.
func NewHub(b bus.Bus, memberships MembershipSource, logger *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[uuid.UUID]map[*Client]bool),
		rooms:       make(map[uuid.UUID]map[uuid.UUID]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		bus:         b,
		memberships: memberships,
		logger:      logger,
	}
}

// Run subscribes the hub to the fan-out bus and processes connection
// lifecycle events until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.unsubs = []func(){
		h.bus.SubscribeMessages(h.onMessage),
		h.bus.SubscribeReadReceipts(h.onReadReceipt),
		h.bus.SubscribeTyping(h.onTyping),
		h.bus.SubscribePresence(h.onPresence),
	}
	h.logger.Info("realtime hub started")

	for {
		select {
		case <-ctx.Done():
			for _, unsub := range h.unsubs {
				unsub()
			}
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register queues a client for registration with the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	first := false
	if _, ok := h.clients[client.UserID]; !ok {
		h.clients[client.UserID] = make(map[*Client]bool)
		first = true
	}
	h.clients[client.UserID][client] = true
	h.mu.Unlock()

	h.logger.Debug("client connected", zap.Stringer("user_id", client.UserID))

	// First connection: join the user's conversation rooms and announce
	// presence. Both hit the store/bus, so they run off the hub loop.
	if first {
		go func() {
			h.joinUserRooms(client.UserID)
			h.bus.PublishPresence(context.Background(), bus.PresenceEvent{
				UserID: client.UserID,
				Status: bus.StatusOnline,
				At:     time.Now().UTC(),
			})
		}()
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	last := false
	if clients, ok := h.clients[client.UserID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)
		}
		if len(clients) == 0 {
			delete(h.clients, client.UserID)
			for _, members := range h.rooms {
				delete(members, client.UserID)
			}
			last = true
		}
	}
	h.mu.Unlock()

	h.logger.Debug("client disconnected", zap.Stringer("user_id", client.UserID))

	if last {
		go h.bus.PublishPresence(context.Background(), bus.PresenceEvent{
			UserID: client.UserID,
			Status: bus.StatusOffline,
			At:     time.Now().UTC(),
		})
	}
}

// joinUserRooms subscribes a newly connected user to each of their active
// conversation rooms.
func (h *Hub) joinUserRooms(userID uuid.UUID) {
	ids, err := h.memberships.ActiveConversationIDs(userID)
	if err != nil {
		h.logger.Warn("failed to load room memberships",
			zap.Stringer("user_id", userID), zap.Error(err))
		return
	}
	h.mu.Lock()
	for _, convID := range ids {
		if h.rooms[convID] == nil {
			h.rooms[convID] = make(map[uuid.UUID]bool)
		}
		h.rooms[convID][userID] = true
	}
	h.mu.Unlock()
}

// JoinRoom adds a locally connected user to a conversation room. Used when a
// membership appears after the user connected.
func (h *Hub) JoinRoom(conversationID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, connected := h.clients[userID]; !connected {
		return
	}
	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = make(map[uuid.UUID]bool)
	}
	h.rooms[conversationID][userID] = true
}

// LeaveRoom removes a user from a conversation room, e.g. after they left
// the conversation.
func (h *Hub) LeaveRoom(conversationID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[conversationID], userID)
}

// IsUserOnline checks if a user has any active connections on this instance.
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// ========== Bus event bridging ==========

// onMessage delivers a message event to every listed participant with a live
// connection on this instance. The event carries the participant list, so no
// store lookup happens on the delivery path. A departed participant named in
// the event is evicted from the room first, on every instance the event
// reaches, so ex-participants stop receiving room-routed events immediately.
func (h *Hub) onMessage(evt bus.MessageEvent) {
	if evt.DepartedID != nil {
		h.LeaveRoom(evt.ConversationID, *evt.DepartedID)
	}

	name := model.EventMessageNew
	switch evt.Action {
	case bus.MessageEdited:
		name = model.EventMessageUpdated
	case bus.MessageDeleted:
		name = model.EventMessageDeleted
	}

	data, err := json.Marshal(model.ServerEvent{Event: name, Payload: evt})
	if err != nil {
		return
	}
	for _, userID := range evt.ParticipantIDs {
		// A conversation created after the user connected is joined lazily
		// on its first event.
		h.JoinRoom(evt.ConversationID, userID)
		h.sendToLocalUser(userID, data)
	}
}

// onReadReceipt delivers a receipt to the conversation's local room members,
// excluding the reader.
func (h *Hub) onReadReceipt(evt bus.ReadReceiptEvent) {
	data, err := json.Marshal(model.ServerEvent{Event: model.EventMessageRead, Payload: evt})
	if err != nil {
		return
	}
	for _, userID := range h.roomMembers(evt.ConversationID, evt.UserID) {
		h.sendToLocalUser(userID, data)
	}
}

// onTyping delivers a typing signal to the conversation's local room members.
// The typist never receives their own signal back.
func (h *Hub) onTyping(evt bus.TypingEvent) {
	data, err := json.Marshal(model.ServerEvent{Event: model.EventTyping, Payload: evt})
	if err != nil {
		return
	}
	for _, userID := range h.roomMembers(evt.ConversationID, evt.UserID) {
		h.sendToLocalUser(userID, data)
	}
}

// onPresence broadcasts a status change to every connected local user.
func (h *Hub) onPresence(evt bus.PresenceEvent) {
	data, err := json.Marshal(model.ServerEvent{Event: model.EventPresenceUpdate, Payload: evt})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.clients {
		for client := range clients {
			client.trySend(data)
		}
	}
}

// roomMembers returns the local members of a conversation room minus the
// acting user.
func (h *Hub) roomMembers(conversationID, except uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]uuid.UUID, 0, len(h.rooms[conversationID]))
	for userID := range h.rooms[conversationID] {
		if userID != except {
			members = append(members, userID)
		}
	}
	return members
}

// sendToLocalUser pushes raw bytes to every live connection of a user on
// this instance. Each push is an independent non-blocking attempt: a slow
// client drops the event rather than stalling delivery to others.
func (h *Hub) sendToLocalUser(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		client.trySend(data)
	}
}
