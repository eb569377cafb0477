package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whisprapp/whispr/internal/bus"
	"github.com/whisprapp/whispr/internal/model"
	"github.com/whisprapp/whispr/internal/repository"
	"github.com/whisprapp/whispr/internal/service"
	"github.com/whisprapp/whispr/internal/ws"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestTypingRequiresParticipation covers the typing dispatch path: the signal
// only reaches the bus when the actor is an active participant of the named
// conversation.
func TestTypingRequiresParticipation(t *testing.T) {
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
	eve := model.User{ID: uuid.New(), DisplayName: "eve"}
	for _, u := range []*model.User{&alice, &bob, &eve} {
		require.NoError(t, db.Create(u).Error)
	}

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	userRepo := repository.NewUserRepository(db)
	communityRepo := repository.NewCommunityRepository(db)

	b := bus.NewLocalBus()
	conversations := service.NewConversationService(convRepo, msgRepo, userRepo, communityRepo, b, zap.NewNop())
	messages := service.NewMessageService(convRepo, msgRepo, b, zap.NewNop())
	reads := service.NewReadService(convRepo, msgRepo, b, zap.NewNop())

	conv, _, err := conversations.CreatePrivate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	h := NewWSHandler(nil, messages, reads, b, nil, zap.NewNop())

	var published []bus.TypingEvent
	defer b.SubscribeTyping(func(evt bus.TypingEvent) { published = append(published, evt) })()

	typingAction := model.ClientAction{
		Action:  model.ActionTypingStart,
		Payload: json.RawMessage(fmt.Sprintf(`{"conversation_id":%q}`, conv.ID)),
	}

	// an outsider's typing signal never reaches the bus
	outsider := ws.NewClient(nil, nil, eve.ID, zap.NewNop())
	h.handleAction(outsider, typingAction)
	assert.Empty(t, published)

	// a participant's does
	member := ws.NewClient(nil, nil, alice.ID, zap.NewNop())
	h.handleAction(member, typingAction)
	require.Len(t, published, 1)
	assert.Equal(t, alice.ID, published[0].UserID)
	assert.Equal(t, conv.ID, published[0].ConversationID)
	assert.True(t, published[0].IsTyping)

	// leaving revokes the right
	require.NoError(t, conversations.Leave(ctx, alice.ID, conv.ID))
	h.handleAction(member, typingAction)
	assert.Len(t, published, 1)
}
