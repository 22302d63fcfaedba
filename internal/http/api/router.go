// Package api assembles the HTTP surface: it wires handlers, authentication
// and rate limiting onto a gin engine.
package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/ai"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/articles"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/auth"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/http/api/handlers"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/ratelimit"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/token"
)

// Options carries the collaborators the router needs.
type Options struct {
	DB        *gorm.DB
	Tokens    *token.Service
	AI        *ai.Client
	Loader    *articles.Loader
	Limiter   ratelimit.Limiter
	RateLimit int
}

// New builds the gin engine with every route registered.
func New(opts Options) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	Register(engine, opts)
	return engine
}

// Register wires all routes onto the engine.
func Register(engine *gin.Engine, opts Options) {
	authn := auth.NewAuthenticator(opts.Tokens)
	requireAuth := auth.Middleware(authn)
	limited := ratelimit.Middleware(opts.Limiter, opts.RateLimit)

	health := handlers.NewHealthHandler(opts.DB)
	engine.GET("/", health.Root)
	engine.GET("/health", health.Health)

	authHandler := handlers.NewAuthHandler(opts.DB, opts.Tokens)
	authGroup := engine.Group("/auth")
	{
		authGroup.POST("/signup", limited, authHandler.SignUp)
		authGroup.POST("/signin", limited, authHandler.SignIn)
		authGroup.POST("/refresh", limited, authHandler.Refresh)
		authGroup.POST("/signout", authHandler.SignOut)
		authGroup.GET("/me", requireAuth, authHandler.Me)
		authGroup.GET("/verify", requireAuth, authHandler.Verify)
	}

	cardHandler := handlers.NewCardHandler(opts.DB)
	cardGroup := engine.Group("/cards", requireAuth)
	{
		cardGroup.GET("", cardHandler.List)
		cardGroup.POST("", cardHandler.Create)
		cardGroup.GET("/:id", cardHandler.Get)
		cardGroup.PUT("/:id/update", cardHandler.Update)
		cardGroup.DELETE("/:id", cardHandler.Delete)
		cardGroup.POST("/:id/review", cardHandler.Review)
	}

	articleHandler := handlers.NewArticleHandler(opts.DB, opts.Loader)
	articleGroup := engine.Group("/article", requireAuth)
	{
		articleGroup.GET("", articleHandler.List)
		articleGroup.POST("/create", articleHandler.Create)
		articleGroup.GET("/:id", articleHandler.Get)
		articleGroup.PUT("/:id/update", articleHandler.Update)
		articleGroup.DELETE("/:id/delete", articleHandler.Delete)
		articleGroup.POST("/load", articleHandler.Load)
		articleGroup.POST("/:id/load_content", articleHandler.LoadContent)
	}

	chatHandler := handlers.NewChatHandler(opts.DB, opts.AI)
	chatGroup := engine.Group("/chat", requireAuth, auth.RequireAIAccess())
	{
		chatGroup.GET("", chatHandler.List)
		chatGroup.POST("", chatHandler.Create)
		chatGroup.GET("/:id", chatHandler.Get)
		chatGroup.DELETE("/:id", chatHandler.Delete)
		chatGroup.POST("/:id/message", chatHandler.SendMessage)
		chatGroup.POST("/:id/message/stream", chatHandler.StreamMessage)
	}
}
