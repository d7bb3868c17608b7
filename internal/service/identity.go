package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	apperrors "authcore/internal/errors"
	"authcore/internal/repository"
)

// checkIdentityFree fails with a DuplicateIdentityError when username or email
// belongs to an account other than self. Empty values are not checked.
func checkIdentityFree(ctx context.Context, repo repository.UserRepository, self *uuid.UUID, username, email string) error {
	if username != "" {
		if err := checkTaken(self, "username", func() (uuid.UUID, error) {
			u, err := repo.FindByUsername(ctx, username)
			if err != nil {
				return uuid.Nil, err
			}
			return u.ID, nil
		}); err != nil {
			return err
		}
	}
	if email != "" {
		return checkTaken(self, "email", func() (uuid.UUID, error) {
			u, err := repo.FindByEmail(ctx, email)
			if err != nil {
				return uuid.Nil, err
			}
			return u.ID, nil
		})
	}
	return nil
}

func checkTaken(self *uuid.UUID, field string, find func() (uuid.UUID, error)) error {
	id, err := find()
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if self != nil && id == *self {
		return nil
	}
	return apperrors.NewDuplicateIdentity(field)
}

// resolveConflict names the colliding field after a unique-index violation.
func resolveConflict(ctx context.Context, repo repository.UserRepository, self *uuid.UUID, username, email string) error {
	if err := checkIdentityFree(ctx, repo, self, username, email); err != nil {
		return err
	}
	// the other row vanished between insert and re-check
	return apperrors.ErrDuplicateIdentity
}
