package auth

import "errors"

// Token-structural failures, surfaced by the token service.
var (
	ErrTokenInvalid   = errors.New("token signature or structure is invalid")
	ErrTokenExpired   = errors.New("token is expired")
	ErrWrongTokenKind = errors.New("token kind does not match expected kind")
)

// Session-policy failures, surfaced by the session service.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotConfirmed       = errors.New("account email is not confirmed")
	ErrTokenRevoked       = errors.New("refresh token has been revoked")
	ErrDuplicateEmail     = errors.New("email is already registered")
	ErrAccountNotFound    = errors.New("account not found")
)

// ErrStoreUnavailable marks transient infrastructure failures. Callers may
// retry with backoff; the core itself never retries.
var ErrStoreUnavailable = errors.New("credential store unavailable")
