package utils

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestEncryptRoundTrip(t *testing.T) {
	sealed, err := Encrypt([]byte("page-token"), testKey)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "page-token")

	again, err := Encrypt([]byte("page-token"), testKey)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per call")

	plain, err := Decrypt(sealed, testKey)
	require.NoError(t, err)
	assert.Equal(t, "page-token", plain)
}

func TestDecryptFailures(t *testing.T) {
	sealed, err := Encrypt([]byte("secret"), testKey)
	require.NoError(t, err)

	_, err = Decrypt(sealed, []byte("fedcba9876543210fedcba9876543210"))
	assert.Error(t, err)

	_, err = Decrypt(base64.StdEncoding.EncodeToString([]byte("short")), testKey)
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	_, err = Decrypt("%%%", testKey)
	assert.Error(t, err)

	_, err = Encrypt([]byte("x"), []byte("bad key"))
	assert.Error(t, err)
}

func TestGenerateRandomKey(t *testing.T) {
	a, err := GenerateRandomKey(24)
	require.NoError(t, err)
	b, err := GenerateRandomKey(24)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.False(t, strings.ContainsAny(a, "+/="))
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("signing-secret", 42, time.Hour)
	require.NoError(t, err)

	userID, err := UserIDFromToken("signing-secret", token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)

	_, err = UserIDFromToken("other-secret", token)
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	token, err := GenerateToken("signing-secret", 7, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken("signing-secret", token)
	assert.Error(t, err)
}
