package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"authcore/internal/auth"
	"authcore/internal/config"
	"authcore/internal/db"
	apperrors "authcore/internal/errors"
	"authcore/internal/logger"
	"authcore/internal/messaging"
	"authcore/internal/model"
	"authcore/internal/repository"
	"authcore/internal/service"
)

// SeedUser is one entry of the seed file.
type SeedUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func main() {
	source := flag.String("source", "seed/users.json", "path or http(s) URL of a JSON array of users")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	gormDB, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Error("database init", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		log.Error("auto-migrate", slog.String("error", err.Error()))
		os.Exit(1)
	}

	users, err := loadSeedUsers(*source)
	if err != nil {
		log.Error("load seed users", slog.String("source", *source), slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("seed users loaded", slog.Int("count", len(users)))

	authService := service.NewAuthService(
		repository.NewUserRepository(gormDB),
		auth.NewBcryptHasher(cfg.BcryptCost),
		auth.NewJWTService(cfg.JWTSecret, cfg.SessionTTL),
		auth.NewTokenStore(nil),
		messaging.NewLogNotifier(log),
		service.PolicyFromConfig(cfg),
		service.WithLogger(log),
	)

	created, skipped, err := seedUsers(context.Background(), authService, users)
	if err != nil {
		log.Error("seed failed", slog.Int("created", created), slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("seed completed", slog.Int("created", created), slog.Int("skipped", skipped))
}

// loadSeedUsers reads users from a local file or fetches them over HTTP.
func loadSeedUsers(source string) ([]SeedUser, error) {
	var body []byte
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return nil, fmt.Errorf("fetch seed users: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("seed source returned status code: %d", resp.StatusCode)
		}
		if body, err = io.ReadAll(resp.Body); err != nil {
			return nil, fmt.Errorf("read seed users: %w", err)
		}
	} else {
		var err error
		if body, err = os.ReadFile(source); err != nil {
			return nil, fmt.Errorf("read seed users: %w", err)
		}
	}

	var users []SeedUser
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("parse seed users: %w", err)
	}
	return users, nil
}

// seedUsers registers each user, skipping those whose username or email already exists.
func seedUsers(ctx context.Context, svc service.AuthService, users []SeedUser) (created, skipped int, err error) {
	for _, u := range users {
		_, err := svc.Register(ctx, u.Username, u.Email, u.Password)
		switch {
		case err == nil:
			created++
		case errors.Is(err, apperrors.ErrDuplicateIdentity):
			skipped++
		default:
			return created, skipped, fmt.Errorf("register %s: %w", u.Username, err)
		}
	}
	return created, skipped, nil
}
