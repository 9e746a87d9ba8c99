package shopify

import (
	"errors"
	"strings"
	"testing"

	"archie-core-shopify-sync/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefixEncryption struct{}

func (prefixEncryption) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	return "enc:" + plaintext, nil
}

func (prefixEncryption) Decrypt(ciphertext string) (string, error) {
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

type failingEncryption struct{ prefixEncryption }

func (failingEncryption) Encrypt(string) (string, error) {
	return "", errors.New("cipher unavailable")
}

func TestTokenManager_SealAndOpen(t *testing.T) {
	tm := NewTokenManager(prefixEncryption{}, zerolog.Nop())
	conn := &domain.Connection{OwnerID: "owner-1"}
	creds := domain.StoreCredentials{
		Endpoint:    testShop,
		AccessToken: "shpat_secret",
		APIKey:      "key",
		APISecret:   "secret",
	}

	require.NoError(t, tm.Seal(conn, creds))
	assert.Equal(t, testShop, conn.StoreEndpoint)
	assert.Equal(t, "enc:shpat_secret", conn.EncryptedAccessToken)
	assert.Equal(t, "enc:key", conn.EncryptedAPIKey)

	opened, err := tm.Open(conn)
	require.NoError(t, err)
	assert.Equal(t, creds, opened)
}

func TestTokenManager_SealRejectsEmptyToken(t *testing.T) {
	tm := NewTokenManager(prefixEncryption{}, zerolog.Nop())

	err := tm.Seal(&domain.Connection{}, domain.StoreCredentials{Endpoint: testShop})
	var validationErr *domain.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "access_token", validationErr.Field)
}

func TestTokenManager_SealPropagatesEncryptionFailure(t *testing.T) {
	tm := NewTokenManager(failingEncryption{}, zerolog.Nop())

	err := tm.Seal(&domain.Connection{}, domain.StoreCredentials{Endpoint: testShop, AccessToken: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encrypt access token")
}

func TestTokenManager_OpenWithoutTokenRequiresReconnect(t *testing.T) {
	tm := NewTokenManager(prefixEncryption{}, zerolog.Nop())

	_, err := tm.Open(&domain.Connection{StoreEndpoint: testShop})
	var authErr *domain.AuthenticationError
	assert.True(t, errors.As(err, &authErr))
}
