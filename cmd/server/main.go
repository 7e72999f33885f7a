package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/marek-sv/bookcircle/internal/api"
	"github.com/marek-sv/bookcircle/internal/chat"
	"github.com/marek-sv/bookcircle/internal/config"
	"github.com/marek-sv/bookcircle/internal/db"
	"github.com/marek-sv/bookcircle/internal/middleware"
	"github.com/marek-sv/bookcircle/internal/observ"
	"github.com/marek-sv/bookcircle/internal/ratelimit"
	"github.com/marek-sv/bookcircle/internal/repository/postgres"
	"github.com/marek-sv/bookcircle/internal/ws"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Startup uses context.Background(): there is no parent request or
	// deadline yet. Once the server runs, every HTTP request carries its
	// own cancellable context.
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	pool := database.Pool()
	communityRepo := postgres.NewCommunityStore(pool)
	membershipRepo := postgres.NewMembershipStore(pool)
	messageRepo := postgres.NewMessageStore(pool)

	// Rate limiter: per-process fixed window by default; Redis-backed
	// when the service runs as multiple instances and the limit must
	// hold globally.
	var limiter ratelimit.Limiter
	switch cfg.RateLimitBackend {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimitMax, cfg.RateLimitWindow)
		logger.Info("using redis rate limiter")
	default:
		window := ratelimit.NewWindow(cfg.RateLimitMax, cfg.RateLimitWindow)
		window.Start()
		defer window.Stop()
		limiter = window
		logger.Info("using in-memory rate limiter")
	}

	hub := ws.NewHub(logger)
	chatSvc := chat.NewService(communityRepo, membershipRepo, messageRepo, limiter, hub, logger)

	messageHandler := api.NewMessageHandler(chatSvc, logger)
	communityHandler := api.NewCommunityHandler(communityRepo, membershipRepo, chatSvc.Authz(), logger)
	membershipHandler := api.NewMembershipHandler(communityRepo, membershipRepo, logger)
	streamHandler := ws.NewHandler(hub, membershipRepo, logger)

	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery(), middleware.CORS())

	// Health check is PUBLIC — load balancers hit it without credentials.
	// It pings the pool so a lost database takes the instance out of
	// rotation instead of serving 500s.
	srv.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{
				"status": "degraded",
			})
			return
		}
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// Everything else requires a valid bearer token. The middleware runs
	// before any handler in this group, so an unauthenticated request is
	// rejected before it can touch a rate-limit counter or the database.
	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	v1.POST("/messages", messageHandler.Send)

	v1.POST("/communities", communityHandler.Create)
	v1.GET("/communities", communityHandler.List)
	v1.GET("/communities/:id", communityHandler.GetByID)
	v1.PATCH("/communities/:id", communityHandler.Update)

	v1.POST("/communities/:id/join", membershipHandler.Join)
	v1.POST("/communities/:id/leave", membershipHandler.Leave)
	v1.GET("/communities/:id/members", membershipHandler.ListMembers)

	v1.GET("/communities/:id/messages", messageHandler.List)
	v1.GET("/communities/:id/stream", streamHandler.Serve)

	logger.Info("starting BookCircle chat service",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	return srv.Run(":" + cfg.Port)
}
