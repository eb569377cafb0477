package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whisprapp/whispr/internal/bus"
	"github.com/whisprapp/whispr/internal/model"
	"go.uber.org/zap"
)

// staticMemberships serves a fixed user -> conversations mapping.
type staticMemberships map[uuid.UUID][]uuid.UUID

func (m staticMemberships) ActiveConversationIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	return m[userID], nil
}

func newTestHub(memberships staticMemberships) (*Hub, *bus.LocalBus) {
	b := bus.NewLocalBus()
	return NewHub(b, memberships, zap.NewNop()), b
}

// connect registers a client directly, bypassing the Run loop, and waits for
// the async room join to land.
func connect(t *testing.T, h *Hub, userID uuid.UUID, convs ...uuid.UUID) *Client {
	t.Helper()
	client := NewClient(h, nil, userID, zap.NewNop())
	h.addClient(client)
	require.Eventually(t, func() bool {
		for _, convID := range convs {
			members := h.roomMembers(convID, uuid.Nil)
			found := false
			for _, id := range members {
				if id == userID {
					found = true
				}
			}
			if !found {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)
	return client
}

func drainEvent(t *testing.T, c *Client) model.ServerEvent {
	t.Helper()
	select {
	case data := <-c.send:
		var evt model.ServerEvent
		require.NoError(t, json.Unmarshal(data, &evt))
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return model.ServerEvent{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected event: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubConnectionRegistry(t *testing.T) {
	h, _ := newTestHub(staticMemberships{})

	userID := uuid.New()
	assert.False(t, h.IsUserOnline(userID))

	c1 := NewClient(h, nil, userID, zap.NewNop())
	c2 := NewClient(h, nil, userID, zap.NewNop())
	h.addClient(c1)
	h.addClient(c2)
	assert.True(t, h.IsUserOnline(userID))

	// still online after one of two devices disconnects
	h.removeClient(c1)
	assert.True(t, h.IsUserOnline(userID))

	h.removeClient(c2)
	assert.False(t, h.IsUserOnline(userID))
}

func TestHubPresenceLifecycle(t *testing.T) {
	h, b := newTestHub(staticMemberships{})

	var events []bus.PresenceEvent
	done := make(chan struct{}, 4)
	defer b.SubscribePresence(func(evt bus.PresenceEvent) {
		events = append(events, evt)
		done <- struct{}{}
	})()

	userID := uuid.New()
	c1 := NewClient(h, nil, userID, zap.NewNop())
	c2 := NewClient(h, nil, userID, zap.NewNop())

	// online is announced once, on the first connection only
	h.addClient(c1)
	<-done
	h.addClient(c2)

	// offline only when the last connection goes
	h.removeClient(c1)
	h.removeClient(c2)
	<-done

	require.Len(t, events, 2)
	assert.Equal(t, bus.StatusOnline, events[0].Status)
	assert.Equal(t, bus.StatusOffline, events[1].Status)
	assert.Equal(t, userID, events[0].UserID)
}

func TestHubMessageDelivery(t *testing.T) {
	convID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()
	eve := uuid.New()

	h, _ := newTestHub(staticMemberships{
		alice: {convID},
		bob:   {convID},
	})

	aliceConn := connect(t, h, alice, convID)
	bobConn := connect(t, h, bob, convID)
	eveConn := connect(t, h, eve)

	h.onMessage(bus.MessageEvent{
		MessageID:      uuid.New(),
		ConversationID: convID,
		SenderID:       alice,
		ParticipantIDs: []uuid.UUID{alice, bob},
		Action:         bus.MessageCreated,
		Kind:           "text",
	})

	// participants receive it, the sender included (other devices)
	assert.Equal(t, model.EventMessageNew, drainEvent(t, aliceConn).Event)
	assert.Equal(t, model.EventMessageNew, drainEvent(t, bobConn).Event)
	assertNoEvent(t, eveConn)
}

func TestHubMessageEventNames(t *testing.T) {
	convID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	h, _ := newTestHub(staticMemberships{alice: {convID}, bob: {convID}})
	connect(t, h, alice, convID)
	bobConn := connect(t, h, bob, convID)

	for action, want := range map[string]string{
		bus.MessageEdited:  model.EventMessageUpdated,
		bus.MessageDeleted: model.EventMessageDeleted,
	} {
		h.onMessage(bus.MessageEvent{
			MessageID:      uuid.New(),
			ConversationID: convID,
			SenderID:       alice,
			ParticipantIDs: []uuid.UUID{bob},
			Action:         action,
		})
		assert.Equal(t, want, drainEvent(t, bobConn).Event)
	}
}

func TestHubLazyRoomJoin(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()

	// bob connects before the conversation exists
	h, _ := newTestHub(staticMemberships{})
	connect(t, h, alice)
	bobConn := connect(t, h, bob)

	convID := uuid.New()
	h.onMessage(bus.MessageEvent{
		MessageID:      uuid.New(),
		ConversationID: convID,
		SenderID:       alice,
		ParticipantIDs: []uuid.UUID{alice, bob},
		Action:         bus.MessageCreated,
	})
	drainEvent(t, bobConn)

	// the first event joined bob to the room, so typing now reaches him
	h.onTyping(bus.TypingEvent{ConversationID: convID, UserID: alice, IsTyping: true})
	assert.Equal(t, model.EventTyping, drainEvent(t, bobConn).Event)
}

func TestHubTypingExcludesActor(t *testing.T) {
	convID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	h, _ := newTestHub(staticMemberships{alice: {convID}, bob: {convID}})
	aliceConn := connect(t, h, alice, convID)
	bobConn := connect(t, h, bob, convID)

	h.onTyping(bus.TypingEvent{ConversationID: convID, UserID: alice, IsTyping: true})

	assert.Equal(t, model.EventTyping, drainEvent(t, bobConn).Event)
	assertNoEvent(t, aliceConn)
}

func TestHubReadReceiptExcludesReader(t *testing.T) {
	convID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	h, _ := newTestHub(staticMemberships{alice: {convID}, bob: {convID}})
	aliceConn := connect(t, h, alice, convID)
	bobConn := connect(t, h, bob, convID)

	h.onReadReceipt(bus.ReadReceiptEvent{
		ConversationID: convID,
		UserID:         bob,
		ReadAt:         time.Now().UTC(),
	})

	assert.Equal(t, model.EventMessageRead, drainEvent(t, aliceConn).Event)
	assertNoEvent(t, bobConn)
}

func TestHubPresenceBroadcast(t *testing.T) {
	h, _ := newTestHub(staticMemberships{})
	alice := uuid.New()
	aliceConn := connect(t, h, alice)

	h.onPresence(bus.PresenceEvent{UserID: uuid.New(), Status: bus.StatusOnline, At: time.Now().UTC()})
	assert.Equal(t, model.EventPresenceUpdate, drainEvent(t, aliceConn).Event)
}

func TestHubEvictsDepartedUser(t *testing.T) {
	convID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	h, _ := newTestHub(staticMemberships{alice: {convID}, bob: {convID}})
	aliceConn := connect(t, h, alice, convID)
	bobConn := connect(t, h, bob, convID)

	// the departure notice goes to the remaining participants only
	h.onMessage(bus.MessageEvent{
		MessageID:      uuid.New(),
		ConversationID: convID,
		SenderID:       bob,
		ParticipantIDs: []uuid.UUID{alice},
		Action:         bus.MessageCreated,
		Kind:           "system",
		DepartedID:     &bob,
	})
	assert.Equal(t, model.EventMessageNew, drainEvent(t, aliceConn).Event)
	assertNoEvent(t, bobConn)

	// room-routed events no longer reach the leaver
	h.onTyping(bus.TypingEvent{ConversationID: convID, UserID: alice, IsTyping: true})
	assertNoEvent(t, bobConn)

	h.onReadReceipt(bus.ReadReceiptEvent{ConversationID: convID, UserID: alice, ReadAt: time.Now().UTC()})
	assertNoEvent(t, bobConn)
}

func TestHubLeaveRoomStopsDelivery(t *testing.T) {
	convID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	h, _ := newTestHub(staticMemberships{alice: {convID}, bob: {convID}})
	connect(t, h, alice, convID)
	bobConn := connect(t, h, bob, convID)

	h.LeaveRoom(convID, bob)
	h.onTyping(bus.TypingEvent{ConversationID: convID, UserID: alice, IsTyping: true})
	assertNoEvent(t, bobConn)
}
