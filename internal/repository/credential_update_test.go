package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCredentialUpdate_Columns(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	upd := NewCredentialUpdate().
		PasswordHash("h").
		ClearResetToken().
		ClearLockout()

	assert.Equal(t, map[string]interface{}{
		"password_hash":         "h",
		"reset_token":           nil,
		"reset_token_expires":   nil,
		"failed_login_attempts": 0,
		"last_failed_login":     nil,
		"account_locked_until":  nil,
	}, upd.Columns())

	upd = NewCredentialUpdate().FailedLoginAttempts(3).LastFailedLogin(at).LockedUntil(at.Add(time.Minute))
	cols := upd.Columns()
	assert.Equal(t, 3, cols["failed_login_attempts"])
	assert.Equal(t, at, cols["last_failed_login"])
	assert.Equal(t, at.Add(time.Minute), cols["account_locked_until"])

	// Columns hands out a copy.
	cols["password_hash"] = "x"
	assert.NotContains(t, upd.Columns(), "password_hash")
	assert.True(t, NewCredentialUpdate().Empty())
}
