package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/intec-ai/intec-backend/internal/db"
	"github.com/intec-ai/intec-backend/internal/handlers"
	"github.com/intec-ai/intec-backend/internal/logger"
	"github.com/intec-ai/intec-backend/internal/middleware"
	"github.com/intec-ai/intec-backend/internal/repos"
	"github.com/intec-ai/intec-backend/internal/server"
	"github.com/intec-ai/intec-backend/internal/services"
	"github.com/intec-ai/intec-backend/internal/socket"
	"github.com/intec-ai/intec-backend/internal/utils"
)

func main() {
	// Logger Setup
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Environment Variables
	log.Info("Attempting to load environment variables for Main now...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	redisAddress := utils.GetEnv("REDIS_ADDRESS", "localhost:6379", log)
	redisPassword := utils.GetEnv("REDIS_PASSWORD", "", log)
	allowOrigins := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log)
	log.Debug("Environment variables loaded for Main :)",
		"accessTokenTTL", accessTokenTTL,
		"redisAddress", redisAddress,
		"allowOrigins", allowOrigins,
	)

	// Postgres Setup
	log.Info("Setting Up Postgres from Main now...")
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("DB init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()
	log.Info("Postgres Setup From Main Successful :)")

	// Mongo Setup
	log.Info("Setting Up Mongo from Main now...")
	mongoService, err := db.NewMongoService(log)
	if err != nil {
		log.Error("Mongo init failed", "error", err)
		os.Exit(1)
	}
	log.Info("Mongo Setup From Main Successful :)")

	// Repositories Setup
	log.Info("Setting Up Repositories from Main now...")
	userRepo := repos.NewUserRepo(thePG, log)
	chatRepo := repos.NewChatRepo(thePG, log)
	messageRepo := repos.NewMessageRepo(thePG, log)
	transactionRepo := repos.NewTransactionRepo(mongoService.Transactions(), log)
	log.Info("Repositories Set Up From Main Successful :)")

	// Websocket Setup
	log.Info("Setting Up Websocket Hub From Main Now :)")
	wsHub := socket.NewHub(log)
	log.Info("Websocket Hub Set Up From Main Successful :)")

	// Redis PubSub
	log.Info("Setting Up Redis PubSub From Main Now :)")
	redisChanName := "intec_hub_broadcast"
	redisPubSub, err := socket.NewRedisPubSub(log, redisAddress, redisPassword, redisChanName)
	if err != nil {
		log.Warn("Failed to init redis pubsub", "error", err)
	} else {
		if err := redisPubSub.StartSubscriber(wsHub); err != nil {
			log.Warn("Failed to subscribe to Redis pub/sub", "error", err)
		} else {
			wsHub.SetRedisPubSub(redisPubSub)
			log.Info("Redis pubsub is active!")
		}
	}

	// Services Setup
	log.Info("Setting up Services from Main now...")
	openAiService, err := services.NewOpenAiService(log)
	if err != nil {
		log.Error("Fatal error: Cannot init OpenAiService", "error", err)
		os.Exit(1)
	}
	authService := services.NewAuthService(thePG, log, userRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second)
	meService := services.NewMeService(thePG, log, userRepo)
	chatService := services.NewChatService(thePG, log, chatRepo, messageRepo, transactionRepo, openAiService, wsHub)
	importService := services.NewImportService(log, transactionRepo)
	log.Info("Services Set Up From Main Successful :)")

	// Handler Setup
	log.Info("Setting Up Handlers from Main now...")
	authHandler := handlers.NewAuthHandler(authService)
	meHandler := handlers.NewMeHandler(meService)
	chatHandler := handlers.NewChatHandler(chatService)
	transactionHandler := handlers.NewTransactionHandler(importService)
	wsHandler := handlers.WsHandler(wsHub, log)
	log.Info("Handlers Set Up From Main Successful :)")

	// MiddleWare Setup
	log.Info("Setting Up Middleware from Main now...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)
	log.Info("Middleware Set Up From Main Successful :)")

	// Router Setup
	log.Info("Setting Up Router from Main now...")
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:        authHandler,
		AuthMiddleware:     authMiddleware,
		MeHandler:          meHandler,
		ChatHandler:        chatHandler,
		TransactionHandler: transactionHandler,
		WsHandler:          wsHandler,
		AllowOrigins:       strings.Split(allowOrigins, ","),
	})
	log.Info("Router Set Up From Main Successful :)")

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}

	// On Shutdown
	if redisPubSub != nil {
		redisPubSub.Stop()
	}
	if err := mongoService.Close(context.Background()); err != nil {
		log.Warn("Failed to close mongo client", "error", err)
	}
}
