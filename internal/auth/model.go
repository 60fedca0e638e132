package auth

import (
	"context"
	"time"
)

// Account is the durable identity record. RefreshFingerprint is nil when the
// account has no active session; at most one fingerprint is valid at a time.
type Account struct {
	ID                 string
	Email              string
	PasswordHash       string
	DisplayName        string
	Confirmed          bool
	RefreshFingerprint *string
	AvatarURL          *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PublicAccount is the outward shape of an account, safe to return from
// signup and profile endpoints.
type PublicAccount struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Confirmed   bool      `json:"confirmed"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (a Account) Public() PublicAccount {
	return PublicAccount{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		Confirmed:   a.Confirmed,
		AvatarURL:   a.AvatarURL,
		CreatedAt:   a.CreatedAt,
	}
}

// Identity is the request-time snapshot cached per account id. It is a
// re-derivation from the store, never authoritative state.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Confirmed bool   `json:"confirmed"`
}

// TokenPair is what login and refresh hand back to the caller.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Store is the credential store consumed by the session service. Implemented
// by Repository over Postgres; tests substitute an in-memory fake with the
// same compare-and-swap semantics.
type Store interface {
	CreateAccount(ctx context.Context, account Account) error
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	GetAccountByID(ctx context.Context, id string) (Account, error)
	ConfirmAccount(ctx context.Context, id string) error
	SetRefreshFingerprint(ctx context.Context, id, fingerprint string) error
	SwapRefreshFingerprint(ctx context.Context, id, oldFingerprint, newFingerprint string) error
	ClearRefreshFingerprint(ctx context.Context, id string) error
	UpdatePasswordAndRevoke(ctx context.Context, id, passwordHash string) error
}

// IdentityCache shields the store from a lookup on every authenticated
// request. Implementations live in internal/cache; last write wins, stale
// reads are bounded by the TTL.
type IdentityCache interface {
	Get(ctx context.Context, accountID string) (Identity, bool, error)
	Put(ctx context.Context, accountID string, identity Identity, ttl time.Duration) error
	Invalidate(ctx context.Context, accountID string) error
}
