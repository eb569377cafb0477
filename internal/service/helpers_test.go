package service

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/whisprapp/whispr/internal/bus"
	"github.com/whisprapp/whispr/internal/model"
	"github.com/whisprapp/whispr/internal/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the service layer against a throwaway sqlite database.
type testEnv struct {
	db            *gorm.DB
	bus           *bus.LocalBus
	conversations *ConversationService
	messages      *MessageService
	reads         *ReadService
	convRepo      *repository.ConversationRepository
	msgRepo       *repository.MessageRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Community{},
		&model.CommunityMember{},
		&model.Conversation{},
		&model.ConversationParticipant{},
		&model.Message{},
	))

	userRepo := repository.NewUserRepository(db)
	communityRepo := repository.NewCommunityRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	b := bus.NewLocalBus()
	log := zap.NewNop()

	return &testEnv{
		db:            db,
		bus:           b,
		conversations: NewConversationService(convRepo, msgRepo, userRepo, communityRepo, b, log),
		messages:      NewMessageService(convRepo, msgRepo, b, log),
		reads:         NewReadService(convRepo, msgRepo, b, log),
		convRepo:      convRepo,
		msgRepo:       msgRepo,
	}
}

func (e *testEnv) createUser(t *testing.T, name string) model.User {
	t.Helper()
	user := model.User{ID: uuid.New(), DisplayName: name}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func (e *testEnv) createCommunity(t *testing.T, owner model.User, members ...model.User) model.Community {
	t.Helper()
	community := model.Community{ID: uuid.New(), Name: "Test Community", OwnerID: owner.ID}
	require.NoError(t, e.db.Create(&community).Error)

	now := time.Now().UTC()
	for _, u := range append([]model.User{owner}, members...) {
		require.NoError(t, e.db.Create(&model.CommunityMember{
			ID:          uuid.New(),
			CommunityID: community.ID,
			UserID:      u.ID,
			JoinedAt:    now,
		}).Error)
	}
	return community
}

func sendRequest(recipients ...model.User) model.SendMessageRequest {
	keys := model.WrappedKeyMap{}
	for _, u := range recipients {
		keys[u.ID.String()] = fmt.Sprintf("wrapped-key-for-%s", u.DisplayName)
	}
	return model.SendMessageRequest{
		Ciphertext:  "bm90IHJlYWwgY2lwaGVydGV4dA==",
		WrappedKeys: keys,
		IV:          "aXYtYnl0ZXM=",
		Tag:         "dGFnLWJ5dGVz",
	}
}
