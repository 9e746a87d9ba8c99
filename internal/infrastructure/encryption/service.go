package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/ports"

	"golang.org/x/crypto/hkdf"
)

const (
	keySize       = 32
	gcmNonceSize  = 12
	gcmTagSize    = 16
	hkdfInfo      = "archie-core-shopify-sync/secrets"
	segmentSep    = ":"
	maxNonceBytes = 16
)

// Format names, in the order Decrypt tries them
const (
	FormatNonceCiphertext         = "gcm-nonce-ciphertext"
	FormatNonceTagCiphertext      = "gcm-nonce-tag-ciphertext"
	FormatSegmentedNonceTagCipher = "gcm-segmented-nonce-tag-ciphertext"
	FormatPlainBase64             = "plain-base64"
	FormatPassthrough             = "passthrough"
)

var errFormatMismatch = errors.New("format mismatch")

type decoder struct {
	name   string
	decode func(s *Service, value string) (string, error)
}

// decoders is the priority list used by Decrypt. Authenticated formats only succeed when the GCM tag verifies.
var decoders = []decoder{
	{name: FormatNonceCiphertext, decode: (*Service).decodeNonceCiphertext},
	{name: FormatNonceTagCiphertext, decode: (*Service).decodeNonceTagCiphertext},
	{name: FormatSegmentedNonceTagCipher, decode: (*Service).decodeSegmented},
	{name: FormatPlainBase64, decode: decodePlainBase64},
}

// Service is an AES-256-GCM EncryptionService.
// Ciphertext is base64(nonce | ciphertext | tag).
type Service struct {
	block cipher.Block
	gcm   cipher.AEAD
}

// NewService builds the service from a base64 or hex encoded 32 byte key, or derives one from a passphrase
func NewService(key string) (ports.EncryptionService, error) {
	return newService(key)
}

func newService(key string) (*Service, error) {
	raw, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Service{block: block, gcm: gcm}, nil
}

func parseKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.NewConfigurationError("ENCRYPTION_KEY", "encryption key is required")
	}
	if raw, err := base64.StdEncoding.DecodeString(key); err == nil && len(raw) == keySize {
		return raw, nil
	}
	if raw, err := hex.DecodeString(key); err == nil && len(raw) == keySize {
		return raw, nil
	}
	if len(key) < 16 {
		return nil, domain.NewConfigurationError("ENCRYPTION_KEY", "passphrase must be at least 16 characters")
	}

	derived := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(key), nil, []byte(hkdfInfo)), derived); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return derived, nil
}

// Encrypt seals plaintext. Empty input stays empty.
func (s *Service) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(append(nonce, sealed...)), nil
}

// Decrypt tries each known format in order and returns the input unchanged when none applies
func (s *Service) Decrypt(ciphertext string) (string, error) {
	plaintext, _ := s.DecryptWithFormat(ciphertext)
	return plaintext, nil
}

// DecryptWithFormat is Decrypt that also reports which format matched
func (s *Service) DecryptWithFormat(ciphertext string) (string, string) {
	if ciphertext == "" {
		return "", FormatPassthrough
	}
	for _, d := range decoders {
		if plaintext, err := d.decode(s, ciphertext); err == nil {
			return plaintext, d.name
		}
	}
	return ciphertext, FormatPassthrough
}

func (s *Service) decodeNonceCiphertext(value string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(raw) < gcmNonceSize+gcmTagSize {
		return "", errFormatMismatch
	}
	out, err := s.gcm.Open(nil, raw[:gcmNonceSize], raw[gcmNonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// decodeNonceTagCiphertext handles base64(nonce | tag | ciphertext)
func (s *Service) decodeNonceTagCiphertext(value string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(raw) < gcmNonceSize+gcmTagSize {
		return "", errFormatMismatch
	}
	nonce := raw[:gcmNonceSize]
	tag := raw[gcmNonceSize : gcmNonceSize+gcmTagSize]
	body := raw[gcmNonceSize+gcmTagSize:]
	return s.open(s.gcm, nonce, body, tag)
}

// decodeSegmented handles nonce:tag:ciphertext with hex or base64 segments
func (s *Service) decodeSegmented(value string) (string, error) {
	parts := strings.Split(value, segmentSep)
	if len(parts) != 3 {
		return "", errFormatMismatch
	}
	segments := make([][]byte, 3)
	for i, part := range parts {
		seg, err := decodeSegment(part)
		if err != nil {
			return "", errFormatMismatch
		}
		segments[i] = seg
	}
	nonce, tag, body := segments[0], segments[1], segments[2]
	if len(tag) != gcmTagSize || len(nonce) == 0 || len(nonce) > maxNonceBytes {
		return "", errFormatMismatch
	}

	aead := s.gcm
	if len(nonce) != gcmNonceSize {
		custom, err := cipher.NewGCMWithNonceSize(s.block, len(nonce))
		if err != nil {
			return "", err
		}
		aead = custom
	}
	return s.open(aead, nonce, body, tag)
}

func (s *Service) open(aead cipher.AEAD, nonce, body, tag []byte) (string, error) {
	sealed := make([]byte, 0, len(body)+len(tag))
	sealed = append(sealed, body...)
	sealed = append(sealed, tag...)
	out, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func decodeSegment(part string) ([]byte, error) {
	if raw, err := hex.DecodeString(part); err == nil {
		return raw, nil
	}
	return base64.StdEncoding.DecodeString(part)
}

// decodePlainBase64 accepts base64 of printable UTF-8 text only
func decodePlainBase64(_ *Service, value string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(raw) == 0 || !utf8.Valid(raw) {
		return "", errFormatMismatch
	}
	for _, r := range string(raw) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return "", errFormatMismatch
		}
	}
	return string(raw), nil
}
