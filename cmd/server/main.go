package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/whisprapp/whispr/internal/bus"
	"github.com/whisprapp/whispr/internal/config"
	"github.com/whisprapp/whispr/internal/handler"
	"github.com/whisprapp/whispr/internal/middleware"
	"github.com/whisprapp/whispr/internal/model"
	"github.com/whisprapp/whispr/internal/repository"
	"github.com/whisprapp/whispr/internal/service"
	"github.com/whisprapp/whispr/internal/ws"
	"github.com/whisprapp/whispr/migrations"
	"github.com/whisprapp/whispr/pkg/auth"
	"github.com/whisprapp/whispr/pkg/logger"
	"github.com/whisprapp/whispr/pkg/storage"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// @title           Whispr Messaging API
// @version         1.0
// @description     End-to-end encrypted messaging core: conversations, opaque-ciphertext messages, read tracking and real-time fan-out over WebSocket with Redis Pub/Sub.

// @contact.name   API Support
// @contact.email  support@whispr.local

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      api.localhost
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// ==================== Load Config ====================
	cfg := config.Load()

	zlog, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("🚀 starting Whispr messaging server", zap.String("env", cfg.App.Env))

	// ==================== Database (PostgreSQL) ====================
	gormLogger := gormlogger.Default.LogMode(gormlogger.Info)
	if cfg.App.Env == "production" {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	zlog.Info("✅ connected to PostgreSQL")

	// ==================== Run Migrations ====================
	if err := migrations.Run(cfg.DB.URL()); err != nil {
		zlog.Warn("migration runner failed, falling back to AutoMigrate", zap.Error(err))
		if err := db.AutoMigrate(
			&model.User{},
			&model.Community{},
			&model.CommunityMember{},
			&model.Conversation{},
			&model.ConversationParticipant{},
			&model.Message{},
		); err != nil {
			zlog.Fatal("failed to migrate database", zap.Error(err))
		}
	}
	zlog.Info("✅ database migrated")

	// ==================== Fan-out Bus ====================
	var eventBus bus.Bus
	var rdb *redis.Client
	switch cfg.Bus.Backend {
	case "redis":
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       0,
		})
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			zlog.Fatal("failed to connect to Redis", zap.Error(err))
		}
		zlog.Info("✅ connected to Redis", zap.String("addr", cfg.Redis.Addr()))
		eventBus = bus.NewRedisBus(rdb, zlog)
	case "local":
		eventBus = bus.NewLocalBus()
		zlog.Info("using in-process event bus (single instance only)")
	default:
		zlog.Fatal("unknown bus backend", zap.String("backend", cfg.Bus.Backend))
	}
	defer eventBus.Close()

	// ==================== MinIO Storage ====================
	minioStorage, err := storage.NewMinIO(storage.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		PublicURL: cfg.MinIO.PublicURL,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		zlog.Warn("MinIO not available, avatar upload disabled", zap.Error(err))
	}
	if minioStorage != nil {
		zlog.Info("✅ connected to MinIO", zap.String("bucket", cfg.MinIO.Bucket))
	}

	// ==================== Initialize Layers ====================
	verifier := auth.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Expiry)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	communityRepo := repository.NewCommunityRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	// Services
	convService := service.NewConversationService(convRepo, msgRepo, userRepo, communityRepo, eventBus, zlog)
	msgService := service.NewMessageService(convRepo, msgRepo, eventBus, zlog)
	readService := service.NewReadService(convRepo, msgRepo, eventBus, zlog)

	// WebSocket Hub (fan-out over the event bus; Redis backend gives horizontal scaling)
	hub := ws.NewHub(eventBus, convRepo, zlog)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	// Handlers
	convHandler := handler.NewConversationHandler(convService, readService)
	msgHandler := handler.NewMessageHandler(msgService, readService)
	wsHandler := handler.NewWSHandler(hub, msgService, readService, eventBus, verifier, zlog)
	uploadHandler := handler.NewUploadHandler(minioStorage)

	// ==================== Gin Router ====================
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Serve swagger.json at /docs/swagger.json to avoid conflict with /swagger/* wildcard
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
	url := ginSwagger.URL("/docs/swagger.json")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, url))

	// Global middleware
	router.Use(middleware.CORSMiddleware(cfg.CORS.Origins))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "whispr-messaging",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	// ==================== API Routes ====================
	api := router.Group("/api/v1")
	{
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(verifier))
		{
			// Conversations
			protected.POST("/conversations/direct", convHandler.CreateDirect)
			protected.POST("/conversations/community", convHandler.CreateForCommunity)
			protected.GET("/conversations", convHandler.List)
			protected.GET("/conversations/:id", convHandler.GetSummary)
			protected.POST("/conversations/:id/leave", convHandler.Leave)
			protected.POST("/conversations/:id/mute", convHandler.SetMuted)

			// Messages
			protected.POST("/conversations/:id/messages", msgHandler.Send)
			protected.GET("/conversations/:id/messages", msgHandler.List)
			protected.POST("/conversations/:id/read", msgHandler.MarkAsRead)
			protected.GET("/conversations/:id/unread", msgHandler.UnreadCount)
			protected.GET("/messages/:id", msgHandler.GetByID)
			protected.PATCH("/messages/:id", msgHandler.Edit)
			protected.DELETE("/messages/:id", msgHandler.Delete)

			// Upload
			protected.POST("/upload/avatar", uploadHandler.UploadAvatar)
		}
	}

	// WebSocket endpoint (auth via query parameter or bearer header)
	router.GET("/ws", wsHandler.HandleWebSocket)

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	zlog.Info("🌐 Whispr messaging API running",
		zap.String("addr", "http://0.0.0.0:"+cfg.App.Port),
		zap.String("websocket", "ws://0.0.0.0:"+cfg.App.Port+"/ws?token=<jwt>"),
		zap.String("docs", "http://0.0.0.0:"+cfg.App.Port+"/swagger/index.html"),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("🛑 shutting down server")

	// Give ongoing requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal("server forced to shutdown", zap.Error(err))
	}

	hubCancel()
	zlog.Info("✅ server exited gracefully")
}
