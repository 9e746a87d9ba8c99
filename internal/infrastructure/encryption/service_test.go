package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"

	"archie-core-shopify-sync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := newService(testKey)
	require.NoError(t, err)
	return svc
}

func TestNewService_Keys(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "base64 32 bytes", key: testKey},
		{name: "hex 32 bytes", key: hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))},
		{name: "passphrase is derived", key: "correct horse battery staple"},
		{name: "empty", key: "", wantErr: true},
		{name: "short passphrase", key: "short", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				var cfgErr *domain.ConfigurationError
				assert.True(t, errors.As(err, &cfgErr))
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestService_RoundTrip(t *testing.T) {
	svc := newTestService(t)

	ciphertext, err := svc.Encrypt("shpat_secret_token")
	require.NoError(t, err)
	assert.NotEqual(t, "shpat_secret_token", ciphertext)

	plaintext, format := svc.DecryptWithFormat(ciphertext)
	assert.Equal(t, "shpat_secret_token", plaintext)
	assert.Equal(t, FormatNonceCiphertext, format)

	again, err := svc.Encrypt("shpat_secret_token")
	require.NoError(t, err)
	assert.NotEqual(t, ciphertext, again, "nonce must be random")
}

func TestService_EmptyValues(t *testing.T) {
	svc := newTestService(t)

	ciphertext, err := svc.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, ciphertext)

	plaintext, err := svc.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plaintext)
}

func legacyParts(t *testing.T, nonceSize int, plaintext string) (nonce, tag, body []byte) {
	t.Helper()
	block, err := aes.NewCipher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	require.NoError(t, err)

	nonce = make([]byte, nonceSize)
	_, err = rand.Read(nonce)
	require.NoError(t, err)

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return nonce, sealed[len(sealed)-gcmTagSize:], sealed[:len(sealed)-gcmTagSize]
}

func TestService_DecryptLegacyFormats(t *testing.T) {
	svc := newTestService(t)

	t.Run("nonce tag ciphertext blob", func(t *testing.T) {
		nonce, tag, body := legacyParts(t, gcmNonceSize, "legacy-blob")
		blob := append(append(append([]byte{}, nonce...), tag...), body...)

		plaintext, format := svc.DecryptWithFormat(base64.StdEncoding.EncodeToString(blob))
		assert.Equal(t, "legacy-blob", plaintext)
		assert.Equal(t, FormatNonceTagCiphertext, format)
	})

	t.Run("hex segments with 16 byte iv", func(t *testing.T) {
		nonce, tag, body := legacyParts(t, 16, "legacy-segments")
		value := hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(body)

		plaintext, format := svc.DecryptWithFormat(value)
		assert.Equal(t, "legacy-segments", plaintext)
		assert.Equal(t, FormatSegmentedNonceTagCipher, format)
	})

	t.Run("plain base64", func(t *testing.T) {
		plaintext, format := svc.DecryptWithFormat(base64.StdEncoding.EncodeToString([]byte("plain value")))
		assert.Equal(t, "plain value", plaintext)
		assert.Equal(t, FormatPlainBase64, format)
	})

	t.Run("unencoded value passes through", func(t *testing.T) {
		plaintext, err := svc.Decrypt("shpat_0123456789")
		require.NoError(t, err)
		assert.Equal(t, "shpat_0123456789", plaintext)
	})
}

func TestService_TamperedCiphertextIsNotDecrypted(t *testing.T) {
	svc := newTestService(t)

	ciphertext, err := svc.Encrypt("a secret that is long enough to matter")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	tampered := base64.StdEncoding.EncodeToString(raw)

	plaintext, format := svc.DecryptWithFormat(tampered)
	assert.NotEqual(t, "a secret that is long enough to matter", plaintext)
	assert.Equal(t, FormatPassthrough, format)
	assert.Equal(t, tampered, plaintext)
}

func TestService_WrongKeyFallsThrough(t *testing.T) {
	svc := newTestService(t)
	other, err := newService(base64.StdEncoding.EncodeToString([]byte("fedcba9876543210fedcba9876543210")))
	require.NoError(t, err)

	ciphertext, err := svc.Encrypt("tenant secret value for wrong key check")
	require.NoError(t, err)

	plaintext, format := other.DecryptWithFormat(ciphertext)
	assert.Equal(t, FormatPassthrough, format)
	assert.Equal(t, ciphertext, plaintext)
}
