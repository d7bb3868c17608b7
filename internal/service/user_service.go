package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"authcore/internal/cache"
	apperrors "authcore/internal/errors"
	"authcore/internal/model"
	"authcore/internal/repository"
)

const profileCacheTTL = 5 * time.Minute

// UserService exposes profile operations for signed-in users.
type UserService interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, username, email string) (*model.Profile, error)
}

type userService struct {
	repo   repository.UserRepository
	cache  *cache.Client
	logger *slog.Logger
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client, logger *slog.Logger) UserService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &userService{repo: repo, cache: cache, logger: logger}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return "profile:" + id.String()
}

func (s *userService) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.Profile
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrUserInactiveOrMissing
	}
	if err != nil {
		return nil, s.internal(ctx, "find user", err)
	}

	profile := user.Profile()
	if payload, err := json.Marshal(profile); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, profileCacheTTL)
	}
	return profile, nil
}

// UpdateProfile changes username and email. Changing the username ends existing
// sessions, since tokens are bound to it.
func (s *userService) UpdateProfile(ctx context.Context, id uuid.UUID, username, email string) (*model.Profile, error) {
	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrUserInactiveOrMissing
	}
	if err != nil {
		return nil, s.internal(ctx, "find user", err)
	}

	email = model.NormalizeEmail(email)
	var checkUsername, checkEmail string
	if username != user.Username {
		checkUsername = username
	}
	if email != user.Email {
		checkEmail = email
	}
	if err := checkIdentityFree(ctx, s.repo, &user.ID, checkUsername, checkEmail); err != nil {
		return nil, s.mapLookup(ctx, "check identity", err)
	}

	if err := s.repo.UpdateProfile(ctx, user.ID, username, email); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, s.mapLookup(ctx, "resolve conflict", resolveConflict(ctx, s.repo, &user.ID, checkUsername, checkEmail))
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.ErrUserInactiveOrMissing
		default:
			return nil, s.internal(ctx, "update profile", err)
		}
	}
	_ = s.cache.Delete(ctx, s.cacheKey(user.ID))

	user.Username = username
	user.Email = email
	return user.Profile(), nil
}

func (s *userService) internal(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "profile operation failed", slog.String("op", op), slog.String("error", err.Error()))
	return apperrors.Internal(op, err)
}

func (s *userService) mapLookup(ctx context.Context, op string, err error) error {
	if err == nil || errors.Is(err, apperrors.ErrDuplicateIdentity) {
		return err
	}
	return s.internal(ctx, op, err)
}
