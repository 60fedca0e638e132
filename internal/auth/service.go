package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"petregistry/internal/mail"
	"petregistry/internal/observability"
)

const (
	defaultAccessTTL   = 15 * time.Minute
	defaultRefreshTTL  = 7 * 24 * time.Hour
	defaultConfirmTTL  = 24 * time.Hour
	defaultIdentityTTL = 5 * time.Minute

	confirmSendTimeout = 10 * time.Second
)

// Service orchestrates the account-session lifecycle: signup, confirmation,
// login, refresh rotation, logout and password change. It owns no state of
// its own; everything durable lives in the Store, everything ephemeral in
// the tokens themselves.
type Service struct {
	store       Store
	tokens      *TokenService
	hasher      *PasswordHasher
	cache       IdentityCache
	mailer      mail.Sender
	logger      *observability.Logger
	accessTTL   time.Duration
	refreshTTL  time.Duration
	confirmTTL  time.Duration
	identityTTL time.Duration
}

func NewService(store Store, tokens *TokenService, hasher *PasswordHasher, cache IdentityCache, mailer mail.Sender, logger *observability.Logger) *Service {
	return &Service{
		store:       store,
		tokens:      tokens,
		hasher:      hasher,
		cache:       cache,
		mailer:      mailer,
		logger:      logger,
		accessTTL:   defaultAccessTTL,
		refreshTTL:  defaultRefreshTTL,
		confirmTTL:  defaultConfirmTTL,
		identityTTL: defaultIdentityTTL,
	}
}

func (s *Service) WithTokenTTLs(access, refresh, identity time.Duration) *Service {
	if access > 0 {
		s.accessTTL = access
	}
	if refresh > 0 {
		s.refreshTTL = refresh
	}
	if identity > 0 {
		s.identityTTL = identity
	}
	return s
}

// Signup registers a new unconfirmed account and dispatches the confirmation
// email fire-and-forget: delivery failure is logged, never rolled back.
func (s *Service) Signup(ctx context.Context, email, password, displayName string) (PublicAccount, error) {
	email = normalizeEmail(email)

	id, err := uuid.NewV7()
	if err != nil {
		return PublicAccount{}, fmt.Errorf("generate account id: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return PublicAccount{}, err
	}

	account := Account{
		ID:           id.String(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(displayName),
		Confirmed:    false,
		CreatedAt:    time.Now().UTC(),
	}
	account.UpdatedAt = account.CreatedAt

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return PublicAccount{}, err
	}

	s.sendConfirmation(account)

	return account.Public(), nil
}

func (s *Service) sendConfirmation(account Account) {
	token, err := s.tokens.Issue(account.ID, KindConfirm, s.confirmTTL)
	if err != nil {
		s.logger.Error("confirmation_token_mint_failed", map[string]any{"account_id": account.ID, "error": err.Error()})
		return
	}

	// Detached from the request: the caller must not wait on SMTP.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), confirmSendTimeout)
		defer cancel()

		if err := s.mailer.SendConfirmation(ctx, account.Email, token); err != nil {
			s.logger.Error("confirmation_email_failed", map[string]any{"account_id": account.ID, "error": err.Error()})
		}
	}()
}

// Confirm transitions confirmed=false to true. Confirming an already
// confirmed account is a no-op.
func (s *Service) Confirm(ctx context.Context, accountID string) error {
	return s.store.ConfirmAccount(ctx, accountID)
}

// ConfirmWithToken verifies an emailed confirmation token and confirms the
// account it names.
func (s *Service) ConfirmWithToken(ctx context.Context, token string) error {
	claims, err := s.tokens.Verify(token, KindConfirm)
	if err != nil {
		return err
	}

	return s.Confirm(ctx, claims.Subject)
}

// Login verifies credentials and starts a new session, implicitly revoking
// any prior one. Unknown email and wrong password return the identical error
// with the identical latency profile.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	account, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.hasher.VerifyDummy(password)
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	if !account.Confirmed {
		return TokenPair{}, ErrNotConfirmed
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		return TokenPair{}, ErrInvalidCredentials
	}

	pair, refreshFingerprint, err := s.issuePair(account.ID)
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.store.SetRefreshFingerprint(ctx, account.ID, refreshFingerprint); err != nil {
		return TokenPair{}, err
	}

	s.refillIdentity(ctx, account)

	return pair, nil
}

// Refresh rotates the session: the presented refresh token is single-use.
// The compare-and-swap in the store guarantees that of N concurrent calls
// with the same token at most one succeeds; the rest observe ErrTokenRevoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, ErrTokenInvalid
	}

	claims, err := s.tokens.Verify(refreshToken, KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	pair, newFingerprint, err := s.issuePair(claims.Subject)
	if err != nil {
		return TokenPair{}, err
	}

	oldFingerprint := Fingerprint(refreshToken)
	if err := s.store.SwapRefreshFingerprint(ctx, claims.Subject, oldFingerprint, newFingerprint); err != nil {
		return TokenPair{}, err
	}

	s.invalidateIdentity(ctx, claims.Subject)

	return pair, nil
}

// Logout clears the stored fingerprint. Idempotent; outstanding access
// tokens stay valid until expiry because they are stateless.
func (s *Service) Logout(ctx context.Context, accountID string) error {
	if err := s.store.ClearRefreshFingerprint(ctx, accountID); err != nil {
		return err
	}

	s.invalidateIdentity(ctx, accountID)

	return nil
}

// ChangePassword rehashes on proof of the old password and revokes the
// active session, forcing re-login.
func (s *Service) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	account, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(oldPassword, account.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.store.UpdatePasswordAndRevoke(ctx, accountID, hash); err != nil {
		return err
	}

	s.invalidateIdentity(ctx, accountID)

	return nil
}

// Authenticate is the request guard for the CRUD layer: verify the access
// token, then resolve the identity from the cache, falling back to the store
// on a miss. Cache failures degrade to store lookups, never to acceptance.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Identity, error) {
	claims, err := s.tokens.Verify(accessToken, KindAccess)
	if err != nil {
		return Identity{}, err
	}

	identity, hit, cacheErr := s.cache.Get(ctx, claims.Subject)
	if cacheErr != nil {
		s.logger.Warn("identity_cache_read_failed", map[string]any{"account_id": claims.Subject, "error": cacheErr.Error()})
	} else if hit {
		return identity, nil
	}

	account, err := s.store.GetAccountByID(ctx, claims.Subject)
	if err != nil {
		return Identity{}, err
	}

	identity = Identity{ID: account.ID, Email: account.Email, Confirmed: account.Confirmed}
	if err := s.cache.Put(ctx, account.ID, identity, s.identityTTL); err != nil {
		s.logger.Warn("identity_cache_write_failed", map[string]any{"account_id": account.ID, "error": err.Error()})
	}

	return identity, nil
}

func (s *Service) issuePair(accountID string) (TokenPair, string, error) {
	access, err := s.tokens.Issue(accountID, KindAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, "", err
	}

	refresh, err := s.tokens.Issue(accountID, KindRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, "", err
	}

	pair := TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}

	return pair, Fingerprint(refresh), nil
}

func (s *Service) refillIdentity(ctx context.Context, account Account) {
	if err := s.cache.Invalidate(ctx, account.ID); err != nil {
		s.logger.Warn("identity_cache_invalidate_failed", map[string]any{"account_id": account.ID, "error": err.Error()})
		return
	}

	identity := Identity{ID: account.ID, Email: account.Email, Confirmed: account.Confirmed}
	if err := s.cache.Put(ctx, account.ID, identity, s.identityTTL); err != nil {
		s.logger.Warn("identity_cache_write_failed", map[string]any{"account_id": account.ID, "error": err.Error()})
	}
}

func (s *Service) invalidateIdentity(ctx context.Context, accountID string) {
	if err := s.cache.Invalidate(ctx, accountID); err != nil {
		s.logger.Warn("identity_cache_invalidate_failed", map[string]any{"account_id": accountID, "error": err.Error()})
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
