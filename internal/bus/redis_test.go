package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// waitForSubscribers blocks until n clients are subscribed to the channel,
// so a publish cannot race the subscriber goroutines' SUBSCRIBE.
func waitForSubscribers(t *testing.T, rdb *redis.Client, channel string, n int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		counts, err := rdb.PubSubNumSub(context.Background(), channel).Result()
		return err == nil && counts[channel] >= n
	}, 2*time.Second, 10*time.Millisecond)
}

func newTestRedisBus(t *testing.T, addr string) (*RedisBus, *redis.Client) {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	b := NewRedisBus(rdb, zap.NewNop())
	t.Cleanup(func() {
		b.Close()
		rdb.Close()
	})
	return b, rdb
}

func TestRedisBusCrossInstanceDelivery(t *testing.T) {
	srv := miniredis.RunT(t)

	busA, rdb := newTestRedisBus(t, srv.Addr())
	busB, _ := newTestRedisBus(t, srv.Addr())

	var mu sync.Mutex
	var got []MessageEvent
	defer busB.SubscribeMessages(func(evt MessageEvent) {
		mu.Lock()
		got = append(got, evt)
		mu.Unlock()
	})()

	waitForSubscribers(t, rdb, channelMessage, 2)

	sent := MessageEvent{
		MessageID:      uuid.New(),
		ConversationID: uuid.New(),
		SenderID:       uuid.New(),
		ParticipantIDs: []uuid.UUID{uuid.New(), uuid.New()},
		Action:         MessageCreated,
		Kind:           "text",
		CreatedAt:      time.Date(2025, 3, 14, 9, 26, 53, 589793238, time.UTC),
	}
	busA.PublishMessage(context.Background(), sent)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, sent.MessageID, got[0].MessageID)
	assert.Equal(t, sent.ParticipantIDs, got[0].ParticipantIDs)
	assert.Equal(t, sent.Action, got[0].Action)
	// nanosecond precision survives the JSON envelope
	assert.True(t, sent.CreatedAt.Equal(got[0].CreatedAt))
}

func TestRedisBusSelfDeliveryViaBrokerEcho(t *testing.T) {
	srv := miniredis.RunT(t)

	b, rdb := newTestRedisBus(t, srv.Addr())

	var mu sync.Mutex
	var count int
	defer b.SubscribeReadReceipts(func(ReadReceiptEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})()

	waitForSubscribers(t, rdb, channelReadReceipt, 1)

	b.PublishReadReceipt(context.Background(), ReadReceiptEvent{
		ConversationID: uuid.New(),
		UserID:         uuid.New(),
		ReadAt:         time.Now().UTC(),
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)

	// no double delivery: broker echo only, no direct local replay
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestRedisBusDegradesToLocalWhenBrokerDown(t *testing.T) {
	srv := miniredis.RunT(t)

	b, _ := newTestRedisBus(t, srv.Addr())

	var mu sync.Mutex
	var got []PresenceEvent
	defer b.SubscribePresence(func(evt PresenceEvent) {
		mu.Lock()
		got = append(got, evt)
		mu.Unlock()
	})()

	srv.Close()

	sent := PresenceEvent{UserID: uuid.New(), Status: StatusOffline, At: time.Now().UTC()}
	b.PublishPresence(context.Background(), sent)

	// fallback replay is synchronous
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, sent.UserID, got[0].UserID)
	assert.Equal(t, StatusOffline, got[0].Status)
}
