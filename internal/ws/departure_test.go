package ws

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/whisprapp/whispr/internal/bus"
	"github.com/whisprapp/whispr/internal/model"
	"github.com/whisprapp/whispr/internal/repository"
	"github.com/whisprapp/whispr/internal/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestLeaveStopsRealtimeDelivery drives Leave through the real service and
// store: the resulting bus event must evict the leaver from the hub's room
// index, so a still-connected ex-participant receives nothing further.
func TestLeaveStopsRealtimeDelivery(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.ConversationParticipant{},
		&model.Message{},
	))

	alice := model.User{ID: uuid.New(), DisplayName: "alice"}
	bob := model.User{ID: uuid.New(), DisplayName: "bob"}
	require.NoError(t, db.Create(&alice).Error)
	require.NoError(t, db.Create(&bob).Error)

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	userRepo := repository.NewUserRepository(db)
	communityRepo := repository.NewCommunityRepository(db)

	b := bus.NewLocalBus()
	conversations := service.NewConversationService(convRepo, msgRepo, userRepo, communityRepo, b, zap.NewNop())

	conv, _, err := conversations.CreatePrivate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	h := NewHub(b, convRepo, zap.NewNop())
	defer b.SubscribeMessages(h.onMessage)()
	defer b.SubscribeTyping(h.onTyping)()
	defer b.SubscribeReadReceipts(h.onReadReceipt)()

	aliceConn := connect(t, h, alice.ID, conv.ID)
	bobConn := connect(t, h, bob.ID, conv.ID)

	require.NoError(t, conversations.Leave(ctx, bob.ID, conv.ID))

	// remaining participant gets the system notice, the leaver does not
	require.Equal(t, model.EventMessageNew, drainEvent(t, aliceConn).Event)
	assertNoEvent(t, bobConn)

	// typing and read receipts published after the departure never reach
	// the leaver's still-open connection
	b.PublishTyping(ctx, bus.TypingEvent{ConversationID: conv.ID, UserID: alice.ID, IsTyping: true})
	assertNoEvent(t, bobConn)

	b.PublishReadReceipt(ctx, bus.ReadReceiptEvent{ConversationID: conv.ID, UserID: alice.ID})
	assertNoEvent(t, bobConn)
}
