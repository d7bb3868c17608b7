package repository

import "time"

// CredentialUpdate collects the credential columns to change in one UPDATE.
// Columns that are never set are left untouched; the Clear* setters write NULL.
type CredentialUpdate struct {
	columns map[string]interface{}
}

// NewCredentialUpdate starts an empty update.
func NewCredentialUpdate() *CredentialUpdate {
	return &CredentialUpdate{columns: make(map[string]interface{})}
}

func (u *CredentialUpdate) PasswordHash(hash string) *CredentialUpdate {
	u.columns["password_hash"] = hash
	return u
}

func (u *CredentialUpdate) FailedLoginAttempts(n int) *CredentialUpdate {
	u.columns["failed_login_attempts"] = n
	return u
}

func (u *CredentialUpdate) LastFailedLogin(at time.Time) *CredentialUpdate {
	u.columns["last_failed_login"] = at
	return u
}

func (u *CredentialUpdate) LockedUntil(until time.Time) *CredentialUpdate {
	u.columns["account_locked_until"] = until
	return u
}

// ClearLockout zeroes the failure counter and removes any lock.
func (u *CredentialUpdate) ClearLockout() *CredentialUpdate {
	u.columns["failed_login_attempts"] = 0
	u.columns["last_failed_login"] = nil
	u.columns["account_locked_until"] = nil
	return u
}

// ResetToken sets the reset token and its expiry together.
func (u *CredentialUpdate) ResetToken(token string, expires time.Time) *CredentialUpdate {
	u.columns["reset_token"] = token
	u.columns["reset_token_expires"] = expires
	return u
}

// ClearResetToken removes the reset token and its expiry together.
func (u *CredentialUpdate) ClearResetToken() *CredentialUpdate {
	u.columns["reset_token"] = nil
	u.columns["reset_token_expires"] = nil
	return u
}

// Columns returns the column/value map for the update.
func (u *CredentialUpdate) Columns() map[string]interface{} {
	out := make(map[string]interface{}, len(u.columns))
	for k, v := range u.columns {
		out[k] = v
	}
	return out
}

// Empty reports whether no column has been set.
func (u *CredentialUpdate) Empty() bool {
	return len(u.columns) == 0
}
