package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	apperrors "authcore/internal/errors"
	"authcore/internal/auth"
	"authcore/internal/messaging"
	"authcore/internal/model"
	"authcore/internal/repository"
)

// RequestPasswordReset issues a reset token for an active account owning email.
// It answers nil whether or not the email is registered.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	email = model.NormalizeEmail(email)
	user, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.DebugContext(ctx, "password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return s.internal(ctx, "find user by email", err)
	}
	if !user.IsActive {
		s.logger.InfoContext(ctx, "password reset skipped for inactive account", slog.String("user_id", user.ID.String()))
		return nil
	}

	token, err := s.newResetToken()
	if err != nil {
		return s.internal(ctx, "generate reset token", err)
	}
	expires := s.now().Add(s.policy.ResetTokenTTL)

	updated, err := s.repo.UpdateCredentials(ctx, user.ID, repository.NewCredentialUpdate().ResetToken(token, expires))
	if err != nil || !updated {
		attrs := []any{
			slog.String("user_id", user.ID.String()),
			slog.Bool("reset_token_persisted", false),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		s.logger.WarnContext(ctx, "password reset token not stored", attrs...)
		return nil
	}

	notice := messaging.ResetNotice{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Token:     token,
		ExpiresAt: expires,
	}
	if err := s.notifier.NotifyPasswordReset(ctx, notice); err != nil {
		s.logger.ErrorContext(ctx, "reset notice not delivered",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset issued",
		slog.String("user_id", user.ID.String()),
		slog.Bool("reset_token_persisted", true),
		slog.Time("expires_at", expires),
	)
	return nil
}

// ResetPassword consumes a reset token and sets a new password. A token is
// accepted at most once; on any failure it is left as it was, except that an
// expired token is cleared.
func (s *authService) ResetPassword(ctx context.Context, token, newPassword, email string) error {
	if len(token) < s.policy.MinResetTokenLength {
		return apperrors.ErrMalformedToken
	}
	if len(newPassword) > auth.MaxPasswordBytes {
		return apperrors.ErrPasswordTooLong
	}
	email = model.NormalizeEmail(email)

	owner, byToken, err := s.resolveResetOwner(ctx, token, email)
	if err != nil {
		return err
	}

	var outcome error
	err = s.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.UserRepository) error {
		user, err := tx.FindByIDForUpdate(ctx, owner.ID)
		if errors.Is(err, repository.ErrNotFound) {
			outcome = apperrors.ErrInvalidResetRequest
			return nil
		}
		if err != nil {
			return s.internal(ctx, "lock user", err)
		}

		if !user.IsActive || !resetTokenMatches(user, token) || (byToken && !strings.EqualFold(user.Email, email)) {
			outcome = apperrors.ErrInvalidResetRequest
			return nil
		}

		if user.ResetTokenExpires == nil || !s.now().Before(*user.ResetTokenExpires) {
			if _, err := tx.UpdateCredentials(ctx, user.ID, repository.NewCredentialUpdate().ClearResetToken()); err != nil {
				return s.internal(ctx, "clear expired reset token", err)
			}
			outcome = apperrors.ErrResetTokenExpired
			return nil
		}

		hash, err := s.hashPassword(ctx, newPassword)
		if err != nil {
			return err
		}

		update := repository.NewCredentialUpdate().
			PasswordHash(hash).
			ClearResetToken().
			ClearLockout()
		updated, err := tx.UpdateCredentials(ctx, user.ID, update)
		if err != nil || !updated {
			attrs := []any{slog.String("user_id", user.ID.String())}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			s.logger.ErrorContext(ctx, "password reset not persisted", attrs...)
			return apperrors.ErrResetPersistence
		}

		s.logger.InfoContext(ctx, "password reset completed", slog.String("user_id", user.ID.String()))
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrResetPersistence) || errors.Is(err, apperrors.ErrInternal) ||
			errors.Is(err, apperrors.ErrPasswordTooLong) {
			return err
		}
		return s.internal(ctx, "reset transaction", err)
	}
	return outcome
}

// resolveResetOwner finds the account by token, falling back to email.
func (s *authService) resolveResetOwner(ctx context.Context, token, email string) (*model.User, bool, error) {
	user, err := s.repo.FindByResetToken(ctx, token)
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, s.internal(ctx, "find user by reset token", err)
	}

	if email == "" {
		return nil, false, apperrors.ErrInvalidResetRequest
	}
	user, err = s.repo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, apperrors.ErrInvalidResetRequest
	}
	if err != nil {
		return nil, false, s.internal(ctx, "find user by email", err)
	}
	return user, false, nil
}

func resetTokenMatches(user *model.User, token string) bool {
	if user.ResetToken == nil || *user.ResetToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*user.ResetToken), []byte(token)) == 1
}

// ChangePassword replaces the password of a signed-in user after checking the current one.
func (s *authService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.ErrUserInactiveOrMissing
	}
	if err != nil {
		return s.internal(ctx, "find user", err)
	}

	ok, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return s.internal(ctx, "verify password", err)
	}
	if !ok {
		return apperrors.ErrIncorrectPassword
	}

	hash, err := s.hashPassword(ctx, newPassword)
	if err != nil {
		return err
	}

	updated, err := s.repo.UpdateCredentials(ctx, user.ID, repository.NewCredentialUpdate().PasswordHash(hash))
	if err != nil {
		return s.internal(ctx, "update password", err)
	}
	if !updated {
		return s.internal(ctx, "update password", fmt.Errorf("user %s: %w", user.ID, repository.ErrNotFound))
	}

	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", user.ID.String()))
	return nil
}
