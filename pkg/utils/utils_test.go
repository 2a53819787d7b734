package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestEncryptDecrypt(t *testing.T) {
	sealed, err := Encrypt([]byte("access-token"), []byte(testKey))
	require.NoError(t, err)
	assert.NotContains(t, sealed, "access-token")

	again, err := Encrypt([]byte("access-token"), []byte(testKey))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per call")

	plain, err := Decrypt(sealed, []byte(testKey))
	require.NoError(t, err)
	assert.Equal(t, "access-token", plain)
}

func TestDecryptFailures(t *testing.T) {
	sealed, err := Encrypt([]byte("secret"), []byte(testKey))
	require.NoError(t, err)

	_, err = Decrypt(sealed, []byte("fedcba9876543210fedcba9876543210"))
	assert.Error(t, err)

	_, err = Decrypt("not base64!", []byte(testKey))
	assert.Error(t, err)

	_, err = Decrypt("AAAA", []byte(testKey))
	assert.Error(t, err)

	_, err = Encrypt([]byte("secret"), []byte("short"))
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(testKey, "user-1", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(testKey, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, tokenIssuer, claims.Issuer)
}

func TestValidateTokenRejects(t *testing.T) {
	expired, err := GenerateToken(testKey, "user-1", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(testKey, expired)
	assert.Error(t, err)

	valid, err := GenerateToken(testKey, "user-1", time.Hour)
	require.NoError(t, err)
	_, err = ValidateToken("another-secret", valid)
	assert.Error(t, err)

	_, err = ValidateToken(testKey, "garbage")
	assert.Error(t, err)
}
