package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := []byte("secret")
	token, err := GenerateToken("owner-1", secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "owner-1", claims.Owner())
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("owner-1", []byte("a"), time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(token, []byte("b"))
	require.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	token, err := GenerateToken("owner-1", secret, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(token, secret)
	require.Error(t, err)
}

func TestParseTokenRejectsMissingOwner(t *testing.T) {
	secret := []byte("secret")
	token, err := GenerateToken("", secret, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(token, secret)
	require.Error(t, err)
}
