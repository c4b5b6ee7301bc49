package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/intec-ai/intec-backend/internal/handlers"
	"github.com/intec-ai/intec-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler        *handlers.AuthHandler
	AuthMiddleware     *middleware.AuthMiddleware
	MeHandler          *handlers.MeHandler
	ChatHandler        *handlers.ChatHandler
	TransactionHandler *handlers.TransactionHandler
	WsHandler          gin.HandlerFunc
	AllowOrigins       []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	//-----------------------------------------
	// Cors Setup
	//-----------------------------------------
	allowOrigins := cfg.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	//-----------------------------------------
	// Health Routes
	//-----------------------------------------
	router.GET("/healthz", handlers.Healthz)

	//-----------------------------------------
	// Public Routes
	//-----------------------------------------
	api := router.Group("/api")
	{
		api.POST("/auth/register", cfg.AuthHandler.Register)
		api.POST("/auth/login", cfg.AuthHandler.Login)
	}

	//------------------------------------------
	// Protected Routes
	//------------------------------------------
	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	protected.GET("/ws", cfg.WsHandler)

	//Me
	protected.GET("/users/me", cfg.MeHandler.GetMe)

	//Chats and Messages
	protected.GET("/chats", cfg.ChatHandler.GetChats)
	protected.GET("/messages", cfg.ChatHandler.GetMessages)
	protected.POST("/messages/send", cfg.ChatHandler.SendMessage)

	//Transactions
	protected.POST("/transactions/import", cfg.TransactionHandler.Import)

	return router
}
