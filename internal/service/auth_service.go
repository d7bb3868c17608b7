package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"authcore/internal/auth"
	"authcore/internal/config"
	apperrors "authcore/internal/errors"
	"authcore/internal/messaging"
	"authcore/internal/model"
	"authcore/internal/repository"
)

// Policy holds the credential lifecycle knobs.
type Policy struct {
	LockoutThreshold    int
	LockoutWindow       time.Duration
	ResetTokenTTL       time.Duration
	MinResetTokenLength int
}

// DefaultPolicy is five failures, a 15 minute lock and one hour reset tokens.
var DefaultPolicy = Policy{
	LockoutThreshold:    5,
	LockoutWindow:       15 * time.Minute,
	ResetTokenTTL:       time.Hour,
	MinResetTokenLength: 32,
}

// PolicyFromConfig extracts the lifecycle policy from application config.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		LockoutThreshold:    cfg.LockoutThreshold,
		LockoutWindow:       cfg.LockoutWindow,
		ResetTokenTTL:       cfg.ResetTokenTTL,
		MinResetTokenLength: cfg.MinResetTokenLength,
	}
}

// ResetNotifier hands freshly issued reset tokens to whatever delivers them.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, notice messaging.ResetNotice) error
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresAt   time.Time      `json:"expires_at"`
	User        *model.Profile `json:"user"`
}

// AuthService handles authentication and the credential lifecycle.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*model.Profile, error)
	Authenticate(ctx context.Context, username, password string) (*model.Profile, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	VerifySession(ctx context.Context, token string) (*model.Profile, error)
	Logout(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword, email string) error
	ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error
}

// Option customizes the auth service.
type Option func(*authService)

// WithClock replaces time.Now for lockout and reset expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *authService) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *authService) { s.logger = logger }
}

type authService struct {
	repo       repository.UserRepository
	hasher     auth.PasswordHasher
	sessions   auth.SessionIssuer
	tokenStore auth.TokenStoreInterface
	notifier   ResetNotifier
	policy     Policy

	now           func() time.Time
	logger        *slog.Logger
	newResetToken func() (string, error)
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	repo repository.UserRepository,
	hasher auth.PasswordHasher,
	sessions auth.SessionIssuer,
	tokenStore auth.TokenStoreInterface,
	notifier ResetNotifier,
	policy Policy,
	opts ...Option,
) AuthService {
	s := &authService{
		repo:          repo,
		hasher:        hasher,
		sessions:      sessions,
		tokenStore:    tokenStore,
		notifier:      notifier,
		policy:        policy,
		now:           time.Now,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		newResetToken: auth.NewResetToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new user with a hashed password.
func (s *authService) Register(ctx context.Context, username, email, password string) (*model.Profile, error) {
	email = model.NormalizeEmail(email)
	if err := checkIdentityFree(ctx, s.repo, nil, username, email); err != nil {
		return nil, s.mapLookup(ctx, "check identity", err)
	}

	hash, err := s.hashPassword(ctx, password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.repo.Insert(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, s.mapLookup(ctx, "resolve conflict", resolveConflict(ctx, s.repo, nil, username, email))
		}
		return nil, s.internal(ctx, "insert user", err)
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID.String()))
	return user.Profile(), nil
}

// Authenticate verifies credentials and applies the lockout policy.
// Failure accounting for one user is serialized by a row lock.
func (s *authService) Authenticate(ctx context.Context, username, password string) (*model.Profile, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, s.internal(ctx, "find user", err)
	}
	if !user.IsActive {
		return nil, apperrors.ErrInvalidCredentials
	}

	var (
		outcome error
		profile *model.Profile
	)
	err = s.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.UserRepository) error {
		locked, err := tx.FindByIDForUpdate(ctx, user.ID)
		if errors.Is(err, repository.ErrNotFound) {
			outcome = apperrors.ErrInvalidCredentials
			return nil
		}
		if err != nil {
			return s.internal(ctx, "lock user", err)
		}

		now := s.now()
		if isLocked, remaining := locked.LockedAt(now); isLocked {
			outcome = apperrors.NewAccountLocked(remaining)
			return nil
		}

		ok, err := s.hasher.Verify(password, locked.PasswordHash)
		if err != nil {
			return s.internal(ctx, "verify password", err)
		}

		if !ok {
			outcome = s.recordFailure(ctx, tx, locked, now)
			if errors.Is(outcome, apperrors.ErrInternal) {
				return outcome
			}
			return nil
		}

		if locked.FailedLoginAttempts > 0 || locked.LastFailedLogin != nil || locked.AccountLockedUntil != nil {
			if _, err := tx.UpdateCredentials(ctx, locked.ID, repository.NewCredentialUpdate().ClearLockout()); err != nil {
				return s.internal(ctx, "clear lockout", err)
			}
		}
		profile = locked.Profile()
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrInternal) {
			return nil, err
		}
		return nil, s.internal(ctx, "authenticate transaction", err)
	}
	if outcome != nil {
		return nil, outcome
	}
	return profile, nil
}

// recordFailure persists one more failed attempt and returns the error to report.
func (s *authService) recordFailure(ctx context.Context, tx repository.UserRepository, user *model.User, now time.Time) error {
	update := repository.NewCredentialUpdate()

	attempts := user.FailedLoginAttempts
	if user.AccountLockedUntil != nil {
		// the previous lock has elapsed, start a fresh count
		update.ClearLockout()
		attempts = 0
	}
	attempts++
	update.FailedLoginAttempts(attempts).LastFailedLogin(now)

	var result error = apperrors.ErrInvalidCredentials
	if attempts >= s.policy.LockoutThreshold {
		update.LockedUntil(now.Add(s.policy.LockoutWindow))
		result = apperrors.NewAccountLocked(s.policy.LockoutWindow)
	}

	updated, err := tx.UpdateCredentials(ctx, user.ID, update)
	if err != nil {
		return s.internal(ctx, "record failed login", err)
	}
	if !updated {
		return s.internal(ctx, "record failed login", repository.ErrNotFound)
	}

	if errors.Is(result, apperrors.ErrAccountLocked) {
		s.logger.WarnContext(ctx, "account locked",
			slog.String("user_id", user.ID.String()),
			slog.Int("failed_login_attempts", attempts),
			slog.Duration("lockout_window", s.policy.LockoutWindow),
		)
	}
	return result
}

// Login authenticates and issues a session token.
func (s *authService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	profile, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	token, claims, err := s.sessions.IssueSession(profile.Username)
	if err != nil {
		return nil, s.internal(ctx, "issue session", err)
	}

	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        profile,
	}, nil
}

// VerifySession resolves a bearer token to the current profile of its subject.
func (s *authService) VerifySession(ctx context.Context, token string) (*model.Profile, error) {
	claims, err := s.verifyClaims(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.FindByUsername(ctx, claims.Subject)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrUserInactiveOrMissing
	}
	if err != nil {
		return nil, s.internal(ctx, "find session user", err)
	}
	if !user.IsActive {
		return nil, apperrors.ErrUserInactiveOrMissing
	}
	return user.Profile(), nil
}

// Logout revokes the token until it would have expired on its own.
func (s *authService) Logout(ctx context.Context, token string) error {
	claims, err := s.verifyClaims(ctx, token)
	if err != nil {
		return err
	}

	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if err := s.tokenStore.RevokeSession(ctx, claims.ID, ttl); err != nil {
		s.logger.WarnContext(ctx, "session revocation not stored", slog.String("error", err.Error()))
	}
	return nil
}

func (s *authService) verifyClaims(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.sessions.VerifySession(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrTokenInvalid
	}

	revoked, err := s.tokenStore.IsSessionRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "revocation check failed", slog.String("error", err.Error()))
	}
	if revoked {
		return nil, apperrors.ErrTokenInvalid
	}
	return claims, nil
}

// internal logs the cause and returns an error matching apperrors.ErrInternal.
// hashPassword keeps an over-long password a caller error rather than a fault.
func (s *authService) hashPassword(ctx context.Context, password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", apperrors.ErrPasswordTooLong
	}
	if err != nil {
		return "", s.internal(ctx, "hash password", err)
	}
	return hash, nil
}

func (s *authService) internal(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "auth operation failed", slog.String("op", op), slog.String("error", err.Error()))
	return apperrors.Internal(op, err)
}

// mapLookup passes taxonomy errors through and wraps anything else as internal.
func (s *authService) mapLookup(ctx context.Context, op string, err error) error {
	if err == nil || errors.Is(err, apperrors.ErrDuplicateIdentity) {
		return err
	}
	return s.internal(ctx, op, err)
}
