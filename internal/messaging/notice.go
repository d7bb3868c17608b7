package messaging

import (
	"time"

	"github.com/google/uuid"
)

// ResetNotice is the message handed to the delivery side when a reset token is issued.
// It carries the raw token, so it must only travel over the reset queue.
type ResetNotice struct {
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
