package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"authcore/internal/auth"
	"authcore/internal/cache"
	"authcore/internal/config"
	"authcore/internal/db"
	"authcore/internal/handler"
	"authcore/internal/logger"
	"authcore/internal/messaging"
	"authcore/internal/model"
	"authcore/internal/repository"
	"authcore/internal/router"
	"authcore/internal/service"
)

// @title Auth Core API
// @version 1.0
// @description Registration, sessions, lockout and password reset.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	gormDB, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Error("database init", slog.String("driver", cfg.DBDriver), slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		log.Error("auto-migrate", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := cacheClient.Ping(pingCtx); err != nil {
		log.Warn("redis unavailable, logout revocation disabled until it recovers", slog.String("error", err.Error()))
	}
	cancel()

	var notifier service.ResetNotifier = messaging.NewLogNotifier(log)
	if cfg.RabbitMQURL != "" {
		publisher, err := messaging.NewPublisher(cfg.RabbitMQURL, cfg.ResetQueue, log)
		if err != nil {
			log.Error("rabbitmq init", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer publisher.Close()
		notifier = publisher
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.SessionTTL)
	tokenStore := auth.NewTokenStore(cacheClient)
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)

	// Initialize services
	authService := service.NewAuthService(
		userRepo,
		hasher,
		jwtService,
		tokenStore,
		notifier,
		service.PolicyFromConfig(cfg),
		service.WithLogger(log),
	)
	userService := service.NewUserService(userRepo, cacheClient, log)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService, authService)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg, log, authService, authHandler, userHandler)

	addr := ":" + cfg.ServerPort
	go func() {
		log.Info("server listening", slog.String("addr", addr), slog.String("swagger", "/swagger/index.html"))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server start", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("server shutdown", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}
