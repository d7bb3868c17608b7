package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"authcore/internal/messaging"
	"authcore/internal/model"
	"authcore/internal/repository"
)

// memRepo is an in-memory UserRepository. Transactions are serialized and roll
// back to a snapshot when fn fails, which is enough to model row locks.
type memRepo struct {
	txMu sync.Mutex

	mu    sync.Mutex
	users map[uuid.UUID]*model.User

	// failUpdates makes UpdateCredentials return updateErr (or a no-op when nil).
	failUpdates bool
	updateErr   error
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[uuid.UUID]*model.User)}
}

func cloneUser(u *model.User) *model.User {
	c := *u
	if u.LastFailedLogin != nil {
		t := *u.LastFailedLogin
		c.LastFailedLogin = &t
	}
	if u.AccountLockedUntil != nil {
		t := *u.AccountLockedUntil
		c.AccountLockedUntil = &t
	}
	if u.ResetToken != nil {
		s := *u.ResetToken
		c.ResetToken = &s
	}
	if u.ResetTokenExpires != nil {
		t := *u.ResetTokenExpires
		c.ResetTokenExpires = &t
	}
	return &c
}

func (r *memRepo) Insert(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return fmt.Errorf("%w: duplicate entry", repository.ErrConflict)
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *memRepo) find(match func(*model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.ID == id })
}

func (r *memRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Username == username })
}

func (r *memRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Email == email })
}

func (r *memRepo) FindByResetToken(_ context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}
	return r.find(func(u *model.User) bool { return u.ResetToken != nil && *u.ResetToken == token })
}

func (r *memRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.FindByID(ctx, id)
}

func (r *memRepo) UpdateCredentials(_ context.Context, id uuid.UUID, update *repository.CredentialUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdates {
		return false, r.updateErr
	}
	if update.Empty() {
		return false, nil
	}
	u, ok := r.users[id]
	if !ok {
		return false, nil
	}
	for col, v := range update.Columns() {
		switch col {
		case "password_hash":
			u.PasswordHash = v.(string)
		case "failed_login_attempts":
			u.FailedLoginAttempts = v.(int)
		case "last_failed_login":
			u.LastFailedLogin = timePtr(v)
		case "account_locked_until":
			u.AccountLockedUntil = timePtr(v)
		case "reset_token":
			if v == nil {
				u.ResetToken = nil
			} else {
				s := v.(string)
				u.ResetToken = &s
			}
		case "reset_token_expires":
			u.ResetTokenExpires = timePtr(v)
		default:
			panic("unknown column " + col)
		}
	}
	u.UpdatedAt = time.Now()
	return true, nil
}

func timePtr(v interface{}) *time.Time {
	if v == nil {
		return nil
	}
	t := v.(time.Time)
	return &t
}

func (r *memRepo) UpdateProfile(_ context.Context, id uuid.UUID, username, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	for oid, o := range r.users {
		if oid != id && (o.Username == username || o.Email == email) {
			return fmt.Errorf("%w: duplicate entry", repository.ErrConflict)
		}
	}
	u.Username = username
	u.Email = email
	return nil
}

func (r *memRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.UserRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := make(map[uuid.UUID]*model.User, len(r.users))
	for id, u := range r.users {
		snapshot[id] = cloneUser(u)
	}
	r.mu.Unlock()

	if err := fn(ctx, r); err != nil {
		r.mu.Lock()
		r.users = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

// get returns the stored row, for assertions.
func (r *memRepo) get(id uuid.UUID) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneUser(r.users[id])
}

// setActive flips the active flag directly in storage.
func (r *memRepo) setActive(id uuid.UUID, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id].IsActive = active
}

// memTokenStore is an in-memory TokenStoreInterface.
type memTokenStore struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{revoked: make(map[string]time.Duration)}
}

func (s *memTokenStore) RevokeSession(_ context.Context, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenID] = ttl
	return nil
}

func (s *memTokenStore) IsSessionRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[tokenID]
	return ok, nil
}

// recordingNotifier keeps every notice it receives.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []messaging.ResetNotice
	err     error
}

func (n *recordingNotifier) NotifyPasswordReset(_ context.Context, notice messaging.ResetNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func (n *recordingNotifier) last() (messaging.ResetNotice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return messaging.ResetNotice{}, false
	}
	return n.notices[len(n.notices)-1], true
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errStoreDown = errors.New("store down")
