package main

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/whisprapp/whispr/internal/config"
	"github.com/whisprapp/whispr/internal/model"
	"github.com/whisprapp/whispr/pkg/auth"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	cfg := config.Load()

	// Force DB logging off to avoid noise
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to Database")

	verifier := auth.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Expiry)

	// Create 6 users and print a dev token for each
	log.Println("🌱 Seeding 6 users...")

	users := make([]model.User, 0, 6)
	for i := 1; i <= 6; i++ {
		name := fmt.Sprintf("User Number %d", i)

		var existing model.User
		if err := db.Where("display_name = ?", name).First(&existing).Error; err == nil {
			users = append(users, existing)
			printToken(verifier, existing)
			continue
		}

		user := model.User{
			ID:          uuid.New(),
			DisplayName: name,
			Avatar:      fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=user%d", i),
		}
		if err := db.Create(&user).Error; err != nil {
			log.Printf("❌ Failed to create user %s: %v", name, err)
			continue
		}
		users = append(users, user)
		log.Printf("✅ Created user: %s (%s)", name, user.ID)
		printToken(verifier, user)
	}

	if len(users) < 4 {
		log.Fatalln("❌ Not enough users seeded, aborting")
	}

	seedCommunity(db, users)
	seedPrivateConversation(db, users[0], users[1])

	log.Println("🎉 Seeding completed!")
}

func printToken(verifier *auth.TokenVerifier, user model.User) {
	token, err := verifier.GenerateToken(user.ID, user.DisplayName)
	if err != nil {
		log.Printf("❌ Failed to generate token for %s: %v", user.DisplayName, err)
		return
	}
	log.Printf("🔑 %s token: %s", user.DisplayName, token)
}

func seedCommunity(db *gorm.DB, users []model.User) {
	var count int64
	db.Model(&model.Community{}).Where("name = ?", "Whispr HQ").Count(&count)
	if count > 0 {
		return
	}

	owner := users[0]
	community := model.Community{
		ID:      uuid.New(),
		Name:    "Whispr HQ",
		Avatar:  "https://api.dicebear.com/7.x/initials/svg?seed=WH",
		OwnerID: owner.ID,
	}
	if err := db.Create(&community).Error; err != nil {
		log.Printf("❌ Failed to create community: %v", err)
		return
	}

	now := time.Now().UTC()
	for _, u := range users[:4] {
		db.Create(&model.CommunityMember{
			ID:          uuid.New(),
			CommunityID: community.ID,
			UserID:      u.ID,
			JoinedAt:    now,
		})
	}

	conv := model.Conversation{
		ID:          uuid.New(),
		Kind:        model.ConversationKindCommunity,
		Name:        community.Name,
		Avatar:      community.Avatar,
		CommunityID: &community.ID,
	}
	if err := db.Create(&conv).Error; err != nil {
		log.Printf("❌ Failed to create community conversation: %v", err)
		return
	}

	for _, u := range users[:4] {
		role := model.RoleMember
		if u.ID == owner.ID {
			role = model.RoleAdmin
		}
		db.Create(&model.ConversationParticipant{
			ID:             uuid.New(),
			ConversationID: conv.ID,
			UserID:         u.ID,
			Role:           role,
			JoinedAt:       now,
			Active:         true,
		})
	}

	db.Create(&model.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       owner.ID,
		Content:        "conversation created",
		Kind:           model.MessageKindSystem,
	})

	log.Println("✅ Created demo community: 'Whispr HQ' with 4 members")
}

func seedPrivateConversation(db *gorm.DB, a, b model.User) {
	pairKey := model.PairKey(a.ID, b.ID)

	var count int64
	db.Model(&model.Conversation{}).Where("pair_key = ?", pairKey).Count(&count)
	if count > 0 {
		return
	}

	conv := model.Conversation{
		ID:      uuid.New(),
		Kind:    model.ConversationKindPrivate,
		PairKey: &pairKey,
	}
	if err := db.Create(&conv).Error; err != nil {
		log.Printf("❌ Failed to create private conversation: %v", err)
		return
	}

	now := time.Now().UTC()
	for _, u := range []model.User{a, b} {
		db.Create(&model.ConversationParticipant{
			ID:             uuid.New(),
			ConversationID: conv.ID,
			UserID:         u.ID,
			Role:           model.RoleMember,
			JoinedAt:       now,
			Active:         true,
		})
	}

	// Opaque demo payload; the server never interprets these fields.
	db.Create(&model.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       a.ID,
		Ciphertext:     "kDLkXNLGQxNEJ8gW1kYH0uN3Zm9yIHRoZSBkZW1v",
		WrappedKeys: model.WrappedKeyMap{
			a.ID.String(): "d3JhcHBlZC1rZXktYQ==",
			b.ID.String(): "d3JhcHBlZC1rZXktYg==",
		},
		IV:   "YWJjZGVmZ2hpamts",
		Tag:  "bXlhdXRodGFn",
		Kind: model.MessageKindText,
	})
	db.Model(&model.Conversation{}).Where("id = ?", conv.ID).Update("last_message_at", time.Now().UTC())

	log.Printf("✅ Created private conversation between %s and %s", a.DisplayName, b.DisplayName)
}
