package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"petregistry/internal/auth"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	svc := auth.NewTokenService("test-secret")

	token, err := svc.Issue("account-1", auth.KindAccess, time.Hour)
	require.NoError(t, err)

	claims, err := svc.Verify(token, auth.KindAccess)
	require.NoError(t, err)
	require.Equal(t, "account-1", claims.Subject)
	require.Equal(t, string(auth.KindAccess), claims.Kind)
}

func TestTokenKindSeparation(t *testing.T) {
	t.Parallel()

	svc := auth.NewTokenService("test-secret")

	access, err := svc.Issue("account-1", auth.KindAccess, time.Hour)
	require.NoError(t, err)
	refresh, err := svc.Issue("account-1", auth.KindRefresh, time.Hour)
	require.NoError(t, err)

	_, err = svc.Verify(access, auth.KindRefresh)
	require.ErrorIs(t, err, auth.ErrWrongTokenKind)

	_, err = svc.Verify(refresh, auth.KindAccess)
	require.ErrorIs(t, err, auth.ErrWrongTokenKind)
}

func TestTokenExpiry(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := issuedAt
	svc := auth.NewTokenService("test-secret").WithClock(func() time.Time { return clock })

	token, err := svc.Issue("account-1", auth.KindAccess, time.Minute)
	require.NoError(t, err)

	// Still valid right before expiry.
	clock = issuedAt.Add(59 * time.Second)
	_, err = svc.Verify(token, auth.KindAccess)
	require.NoError(t, err)

	// Expired by less than the leeway still passes.
	clock = issuedAt.Add(time.Minute + 2*time.Second)
	_, err = svc.Verify(token, auth.KindAccess)
	require.NoError(t, err)

	// Expired well past the leeway fails, signature notwithstanding.
	clock = issuedAt.Add(time.Minute + time.Minute)
	_, err = svc.Verify(token, auth.KindAccess)
	require.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestTokenTamperedSignature(t *testing.T) {
	t.Parallel()

	svc := auth.NewTokenService("test-secret")

	token, err := svc.Issue("account-1", auth.KindAccess, time.Hour)
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	if tampered == token {
		tampered = token[:len(token)-2] + "yy"
	}

	_, err = svc.Verify(tampered, auth.KindAccess)
	require.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestTokenWrongSecret(t *testing.T) {
	t.Parallel()

	minted, err := auth.NewTokenService("secret-a").Issue("account-1", auth.KindAccess, time.Hour)
	require.NoError(t, err)

	_, err = auth.NewTokenService("secret-b").Verify(minted, auth.KindAccess)
	require.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestTokenGarbageInput(t *testing.T) {
	t.Parallel()

	svc := auth.NewTokenService("test-secret")

	for _, input := range []string{"", "not-a-token", "a.b.c"} {
		_, err := svc.Verify(input, auth.KindAccess)
		require.ErrorIs(t, err, auth.ErrTokenInvalid, "input %q", input)
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	require.Equal(t, auth.Fingerprint("token"), auth.Fingerprint("token"))
	require.NotEqual(t, auth.Fingerprint("token-a"), auth.Fingerprint("token-b"))
	require.Len(t, auth.Fingerprint("token"), 64)
}
