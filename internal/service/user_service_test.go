package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "authcore/internal/errors"
	"authcore/internal/model"
	"authcore/internal/repository"
)

func TestUserService_GetProfile(t *testing.T) {
	h := newHarness(t)
	p := h.register(t, "alice", "alice@example.com")
	svc := NewUserService(h.repo, nil, nil)

	profile, err := svc.GetProfile(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, profile)

	_, err = svc.GetProfile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrUserInactiveOrMissing)
}

func TestUserService_UpdateProfile(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "alice", "alice@example.com")
	h.register(t, "bob", "bob@example.com")
	svc := NewUserService(h.repo, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		email    string
		field    string
	}{
		{name: "username taken", username: "bob", email: "alice@example.com", field: "username"},
		{name: "email taken", username: "alice", email: "bob@example.com", field: "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateProfile(ctx, alice.ID, tt.username, tt.email)
			var dup *apperrors.DuplicateIdentityError
			require.ErrorAs(t, err, &dup)
			assert.Equal(t, tt.field, dup.Field)
		})
	}

	// unchanged values never collide with the account itself
	profile, err := svc.UpdateProfile(ctx, alice.ID, "alice", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)

	profile, err = svc.UpdateProfile(ctx, alice.ID, "alice2", "alice2@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice2", profile.Username)
	assert.Equal(t, "alice2@example.com", h.repo.get(alice.ID).Email)
}

func TestUserService_RenameEndsSessions(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "alice", "alice@example.com")
	users := NewUserService(h.repo, nil, nil)
	ctx := context.Background()

	result, err := h.svc.Login(ctx, "alice", testPassword)
	require.NoError(t, err)

	_, err = users.UpdateProfile(ctx, alice.ID, "alicia", "alice@example.com")
	require.NoError(t, err)

	_, err = h.svc.VerifySession(ctx, result.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrUserInactiveOrMissing)
}

func TestUserService_UpdateProfile_StoreErrors(t *testing.T) {
	id := uuid.New()
	current := &model.User{ID: id, Username: "alice", Email: "alice@example.com"}

	tests := []struct {
		name          string
		setupMock     func(*MockUserRepository)
		expectedError error
	}{
		{
			name: "race on unique index",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByID", mock.Anything, id).Return(current, nil)
				m.On("FindByUsername", mock.Anything, "bob").Return(nil, repository.ErrNotFound).Once()
				m.On("UpdateProfile", mock.Anything, id, "bob", "alice@example.com").Return(repository.ErrConflict)
				m.On("FindByUsername", mock.Anything, "bob").Return(&model.User{ID: uuid.New()}, nil).Once()
			},
			expectedError: apperrors.ErrDuplicateIdentity,
		},
		{
			name: "store failure",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByID", mock.Anything, id).Return(nil, errors.New("connection reset"))
			},
			expectedError: apperrors.ErrInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			tt.setupMock(mockRepo)

			_, err := NewUserService(mockRepo, nil, nil).UpdateProfile(context.Background(), id, "bob", "alice@example.com")
			assert.ErrorIs(t, err, tt.expectedError)
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestUserService_UpdateProfileNormalizesEmail(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "alice", "alice@example.com")
	h.register(t, "bob", "bob@example.com")
	svc := NewUserService(h.repo, nil, nil)
	ctx := context.Background()

	_, err := svc.UpdateProfile(ctx, alice.ID, "alice", "BOB@example.com")
	var dup *apperrors.DuplicateIdentityError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Field)

	profile, err := svc.UpdateProfile(ctx, alice.ID, "alice", "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", profile.Email)
	assert.Equal(t, "alice@example.com", h.repo.get(alice.ID).Email)
}
