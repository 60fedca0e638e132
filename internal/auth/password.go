package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummyDigest is a syntactically valid bcrypt digest that matches no real
// password. Unknown-email logins compare against it so their latency is
// indistinguishable from a wrong-password login.
const dummyDigest = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// PasswordHasher wraps bcrypt. Salts are generated per call and embedded in
// the digest; comparison does not short-circuit on the first mismatched byte.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{cost: bcrypt.DefaultCost}
}

func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

func (h *PasswordHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// VerifyDummy burns a bcrypt comparison without revealing anything. Used to
// equalize the latency of the unknown-account login path.
func (h *PasswordHasher) VerifyDummy(plaintext string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyDigest), []byte(plaintext))
}
