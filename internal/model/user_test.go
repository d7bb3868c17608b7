package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_LockedAt(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(10 * time.Minute)
	past := now.Add(-time.Second)

	tests := []struct {
		name          string
		lockedUntil   *time.Time
		wantLocked    bool
		wantRemaining time.Duration
	}{
		{name: "never locked", lockedUntil: nil},
		{name: "lock elapsed", lockedUntil: &past},
		{name: "lock ends now", lockedUntil: &now},
		{name: "locked", lockedUntil: &future, wantLocked: true, wantRemaining: 10 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{AccountLockedUntil: tt.lockedUntil}
			locked, remaining := u.LockedAt(now)
			assert.Equal(t, tt.wantLocked, locked)
			assert.Equal(t, tt.wantRemaining, remaining)
		})
	}
}

func TestUser_JSONHidesCredentials(t *testing.T) {
	token := "secret-reset-token"
	u := &User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "a@x.com",
		PasswordHash: "$2a$10$hash",
		ResetToken:   &token,
		IsActive:     true,
	}

	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hash")
	assert.NotContains(t, string(data), token)

	p := u.Profile()
	assert.Equal(t, u.ID, p.ID)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "a@x.com", p.Email)
	assert.True(t, p.IsActive)
}

func TestUser_BeforeCreateAssignsID(t *testing.T) {
	u := &User{}
	require.NoError(t, u.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, u.ID)

	id := uuid.New()
	u = &User{ID: id}
	require.NoError(t, u.BeforeCreate(nil))
	assert.Equal(t, id, u.ID)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail(" Alice@Example.COM "))
	assert.Equal(t, "bob@example.com", NormalizeEmail("bob@example.com"))
}
