package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketchat-service/internal/config"
	"marketchat-service/internal/db"
	"marketchat-service/internal/handlers"
	"marketchat-service/internal/middleware"
	"marketchat-service/internal/observability"
	"marketchat-service/internal/presence"
	"marketchat-service/internal/rabbitmq"
	"marketchat-service/internal/repositories"
	"marketchat-service/internal/telemetry"
)

func main() {
	cfg := config.Load()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(publisher))

	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRouting, cfg.Service, cfg.Environment)

	presenceStore := presence.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, presence.DefaultTTL)
	defer presenceStore.Close()

	convRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	requestRepo := repositories.NewRequestRepo(database)

	conversationHandler := handlers.NewConversationHandler(convRepo, messageRepo, requestRepo, presenceStore, audit)
	messageHandler := handlers.NewMessageHandler(convRepo, messageRepo, audit)
	requestHandler := handlers.NewRequestHandler(requestRepo)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware([]byte(cfg.JWTSecret))
	heartbeat := middleware.PresenceHeartbeat(presenceStore)

	authed := router.Group("/", authMiddleware, heartbeat)
	authed.POST("/conversations/init", conversationHandler.InitConversation)
	authed.GET("/conversations", conversationHandler.ListConversations)
	authed.POST("/conversations/:conversation_id/messages", messageHandler.PostMessage)
	authed.GET("/conversations/:conversation_id/messages", messageHandler.FetchMessages)
	authed.POST("/conversations/:conversation_id/read", messageHandler.MarkRead)
	authed.GET("/conversations/:conversation_id/unread", messageHandler.UnreadCount)
	authed.GET("/requests/:request_id", requestHandler.GetRequest)

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
