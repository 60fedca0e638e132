package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"petregistry/internal/auth"
)

func TestPasswordHashAndVerify(t *testing.T) {
	t.Parallel()

	hasher := auth.NewPasswordHasher()

	digest, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotContains(t, digest, "correct horse")

	require.True(t, hasher.Verify("correct horse battery staple", digest))
	require.False(t, hasher.Verify("wrong password", digest))
	require.False(t, hasher.Verify("", digest))
}

func TestPasswordHashesAreSalted(t *testing.T) {
	t.Parallel()

	hasher := auth.NewPasswordHasher()

	first, err := hasher.Hash("same-password")
	require.NoError(t, err)
	second, err := hasher.Hash("same-password")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.True(t, hasher.Verify("same-password", first))
	require.True(t, hasher.Verify("same-password", second))
}

func TestPasswordVerifyGarbageDigest(t *testing.T) {
	t.Parallel()

	hasher := auth.NewPasswordHasher()
	require.False(t, hasher.Verify("anything", "not-a-bcrypt-digest"))
	require.False(t, hasher.Verify("anything", strings.Repeat("x", 60)))
}
