package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
	KindConfirm TokenKind = "confirm"
)

const expiryLeeway = 5 * time.Second

// Claims is the signed payload of every token the service mints. Kind keeps
// access, refresh and confirmation tokens from being interchangeable.
type Claims struct {
	jwt.RegisteredClaims
	Kind string `json:"typ"`
}

// TokenService mints and verifies HS256-signed tokens. It is stateless: token
// validity is a pure function of signature, expiry and kind. It never touches
// the credential store.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock substitutes the wall clock, for deterministic expiry tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) Issue(subject string, kind TokenKind, ttl time.Duration) (string, error) {
	issuedAt := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		Kind: string(kind),
	})

	encoded, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}

	return encoded, nil
}

// Verify checks signature first, then expiry, then kind, and fails closed on
// anything it cannot positively classify.
func (s *TokenService) Verify(tokenStr string, expected TokenKind) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(expiryLeeway),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return Claims{}, ErrTokenInvalid
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if !token.Valid {
		return Claims{}, ErrTokenInvalid
	}

	if claims.Kind != string(expected) {
		return Claims{}, ErrWrongTokenKind
	}
	if claims.Subject == "" {
		return Claims{}, ErrTokenInvalid
	}

	return claims, nil
}

// Fingerprint is the one-way digest of a refresh token persisted on the
// account. The raw token is never stored.
func Fingerprint(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
