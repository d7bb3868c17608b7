package errors

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"
)

var (
	// ErrDuplicateIdentity is returned when a username or email is already taken.
	ErrDuplicateIdentity = errors.New("username or email already registered")
	// ErrInvalidCredentials is returned for an unknown user, a wrong password or an inactive account.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAccountLocked is returned while a lockout is in effect.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrTokenExpired is returned for a session token past its expiry.
	ErrTokenExpired = errors.New("session token expired")
	// ErrTokenInvalid is returned for a malformed, tampered or revoked session token.
	ErrTokenInvalid = errors.New("session token invalid")
	// ErrUserInactiveOrMissing is returned when a valid session names a user that no longer may sign in.
	ErrUserInactiveOrMissing = errors.New("user inactive or missing")
	// ErrMalformedToken is returned when a reset token is too short to be genuine.
	ErrMalformedToken = errors.New("malformed reset token")
	// ErrInvalidResetRequest is returned when a reset token cannot be consumed.
	ErrInvalidResetRequest = errors.New("invalid or expired reset token")
	// ErrResetTokenExpired is returned when the stored reset token has expired.
	// It also matches ErrInvalidResetRequest.
	ErrResetTokenExpired error = &resetExpiredError{}
	// ErrResetPersistence is returned when a validated reset could not be written.
	ErrResetPersistence = errors.New("password reset could not be saved")
	// ErrIncorrectPassword is returned when the current password given to a change is wrong.
	ErrIncorrectPassword = errors.New("current password is incorrect")
	// ErrPasswordTooLong is returned for a new password bcrypt cannot hash.
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
	// ErrInternal hides store and hasher faults from callers.
	ErrInternal = errors.New("internal error")
)

type resetExpiredError struct{}

func (*resetExpiredError) Error() string { return "reset token expired" }

func (*resetExpiredError) Is(target error) bool { return target == ErrInvalidResetRequest }

// DuplicateIdentityError names the field that collided.
type DuplicateIdentityError struct {
	Field string
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("%s already registered", e.Field)
}

func (e *DuplicateIdentityError) Is(target error) bool { return target == ErrDuplicateIdentity }

// NewDuplicateIdentity builds a DuplicateIdentityError for field.
func NewDuplicateIdentity(field string) error {
	return &DuplicateIdentityError{Field: field}
}

// AccountLockedError carries how long the lock still holds.
type AccountLockedError struct {
	Remaining time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account temporarily locked, retry in %s", e.Remaining.Round(time.Second))
}

func (e *AccountLockedError) Is(target error) bool { return target == ErrAccountLocked }

// NewAccountLocked builds an AccountLockedError.
func NewAccountLocked(remaining time.Duration) error {
	return &AccountLockedError{Remaining: remaining}
}

// Internal wraps a cause so that it matches ErrInternal while keeping the cause for logs.
func Internal(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, cause)
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	// RetryAfter is set for lockouts and rendered as a Retry-After header.
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// RetryAfterSeconds renders RetryAfter for the header, rounded up.
func (e *HTTPError) RetryAfterSeconds() string {
	if e.RetryAfter <= 0 {
		return ""
	}
	return strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds())))
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	var dup *DuplicateIdentityError
	var locked *AccountLockedError

	switch {
	case errors.As(err, &dup):
		return NewHTTPError(http.StatusConflict, dup.Error(), "DUPLICATE_IDENTITY")
	case errors.Is(err, ErrDuplicateIdentity):
		return NewHTTPError(http.StatusConflict, ErrDuplicateIdentity.Error(), "DUPLICATE_IDENTITY")
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error(), "INVALID_CREDENTIALS")
	case errors.As(err, &locked):
		e := NewHTTPError(http.StatusLocked, ErrAccountLocked.Error(), "ACCOUNT_LOCKED")
		e.RetryAfter = locked.Remaining
		return e
	case errors.Is(err, ErrAccountLocked):
		return NewHTTPError(http.StatusLocked, ErrAccountLocked.Error(), "ACCOUNT_LOCKED")
	case errors.Is(err, ErrTokenExpired):
		return NewHTTPError(http.StatusUnauthorized, ErrTokenExpired.Error(), "TOKEN_EXPIRED")
	case errors.Is(err, ErrTokenInvalid):
		return NewHTTPError(http.StatusUnauthorized, ErrTokenInvalid.Error(), "TOKEN_INVALID")
	case errors.Is(err, ErrUserInactiveOrMissing):
		return NewHTTPError(http.StatusUnauthorized, ErrUserInactiveOrMissing.Error(), "USER_INACTIVE_OR_MISSING")
	case errors.Is(err, ErrMalformedToken):
		return NewHTTPError(http.StatusBadRequest, ErrMalformedToken.Error(), "MALFORMED_TOKEN")
	case errors.Is(err, ErrInvalidResetRequest):
		// expired tokens answer exactly like unknown ones
		return NewHTTPError(http.StatusBadRequest, ErrInvalidResetRequest.Error(), "INVALID_RESET_REQUEST")
	case errors.Is(err, ErrResetPersistence):
		return NewHTTPError(http.StatusInternalServerError, ErrResetPersistence.Error(), "RESET_PERSISTENCE_ERROR")
	case errors.Is(err, ErrIncorrectPassword):
		return NewHTTPError(http.StatusBadRequest, ErrIncorrectPassword.Error(), "INCORRECT_PASSWORD")
	case errors.Is(err, ErrPasswordTooLong):
		return NewHTTPError(http.StatusBadRequest, ErrPasswordTooLong.Error(), "VALIDATION_ERROR")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
