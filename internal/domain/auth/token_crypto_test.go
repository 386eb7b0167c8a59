package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRefreshTokenSealRoundTrip(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef"

	sealed, err := sealRefreshToken(key, "1//refresh-token-value")
	require.NoError(t, err)
	require.NotEmpty(t, sealed)
	require.NotContains(t, sealed, "refresh-token-value")

	opened, err := openRefreshToken(key, sealed)
	require.NoError(t, err)
	require.Equal(t, "1//refresh-token-value", opened)

	// Empty tokens pass through untouched.
	sealed, err = sealRefreshToken(key, "")
	require.NoError(t, err)
	require.Empty(t, sealed)
}

func TestRefreshTokenSealRejectsBadKeys(t *testing.T) {
	_, err := sealRefreshToken("short", "value")
	require.Error(t, err)

	_, err = openRefreshToken("0123456789abcdef", "not-base64!!")
	require.Error(t, err)

	// A token sealed under one key does not open under another.
	sealed, err := sealRefreshToken("0123456789abcdef", "value")
	require.NoError(t, err)
	_, err = openRefreshToken("fedcba9876543210", sealed)
	require.Error(t, err)
}
