package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"dock-chat-service/internal/auth"
	"dock-chat-service/internal/chat"
	"dock-chat-service/internal/config"
	"dock-chat-service/internal/db"
	"dock-chat-service/internal/handlers"
	"dock-chat-service/internal/logging"
	"dock-chat-service/internal/middleware"
	"dock-chat-service/internal/observability"
	"dock-chat-service/internal/rabbitmq"
	"dock-chat-service/internal/repositories"
	"dock-chat-service/internal/telemetry"
	"dock-chat-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.ServiceName, cfg.Environment, cfg.LogLevel)

	ctx := context.Background()
	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise tracing")
	}
	defer func() { _ = shutdownTracing(ctx) }()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to db")
	}

	eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err == nil {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer auditPublisher.Close()
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, "audit.dock_chat", cfg.ServiceName, cfg.Environment, logger)

	convRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	// the singleton global conversation must exist before anyone can list or
	// post
	if _, err := convRepo.EnsureGlobal(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap global conversation")
	}

	hub := ws.NewHub(logger)
	router := ws.NewRouter(hub)
	service := chat.NewService(convRepo, messageRepo, router, logger)

	authManager := auth.NewManager(cfg.JWTSecret)
	socketHandler := ws.NewSocketHandler(hub, service, authManager, logger)
	conversationHandler := handlers.NewConversationHandler(service)
	internalHandler := handlers.NewInternalHandler(service)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(observability.HTTPMetricsMiddleware())
	engine.Use(otelgin.Middleware(cfg.ServiceName))

	authMiddleware := middleware.Auth(authManager)

	engine.GET("/conversations", authMiddleware, conversationHandler.List)
	engine.POST("/conversations", authMiddleware, conversationHandler.Create)
	engine.GET("/conversations/:conversation_id/messages", authMiddleware, conversationHandler.GetMessages)
	engine.POST("/conversations/:conversation_id/messages", authMiddleware, conversationHandler.PostMessage)
	engine.POST("/conversations/:conversation_id/read", authMiddleware, conversationHandler.MarkRead)

	internalMiddleware := middleware.InternalAuth(cfg.InternalToken)
	engine.POST("/internal/enrollments", internalMiddleware, internalHandler.Enroll)
	engine.POST("/internal/team-conversations", internalMiddleware, internalHandler.CreateTeamConversation)

	engine.GET("/ws", socketHandler.Handle)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(engine, auditEmitter, cfg.DebugRoutes)

	logger.Info().Str("port", cfg.Port).Msg("dock chat service listening")
	if err := engine.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
