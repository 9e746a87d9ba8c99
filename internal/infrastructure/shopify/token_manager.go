package shopify

import (
	"fmt"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/ports"

	"github.com/rs/zerolog"
)

// TokenManager seals and opens connection credentials with the encryption service
type TokenManager struct {
	encryptionSvc ports.EncryptionService
	logger        zerolog.Logger
}

// NewTokenManager creates a new token manager
func NewTokenManager(encryptionSvc ports.EncryptionService, logger zerolog.Logger) *TokenManager {
	return &TokenManager{
		encryptionSvc: encryptionSvc,
		logger:        logger,
	}
}

// Seal encrypts creds onto the connection before storage
func (tm *TokenManager) Seal(connection *domain.Connection, creds domain.StoreCredentials) error {
	if creds.AccessToken == "" {
		return domain.NewValidationError("access_token", "access token cannot be empty")
	}

	accessToken, err := tm.encryptionSvc.Encrypt(creds.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	apiKey, err := tm.encryptionSvc.Encrypt(creds.APIKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt API key: %w", err)
	}
	apiSecret, err := tm.encryptionSvc.Encrypt(creds.APISecret)
	if err != nil {
		return fmt.Errorf("failed to encrypt API secret: %w", err)
	}

	connection.StoreEndpoint = creds.Endpoint
	connection.EncryptedAccessToken = accessToken
	connection.EncryptedAPIKey = apiKey
	connection.EncryptedAPISecret = apiSecret
	return nil
}

// Open decrypts the connection secrets after retrieval
func (tm *TokenManager) Open(connection *domain.Connection) (domain.StoreCredentials, error) {
	if connection.EncryptedAccessToken == "" {
		return domain.StoreCredentials{}, &domain.AuthenticationError{Message: "connection has no stored access token"}
	}

	accessToken, err := tm.encryptionSvc.Decrypt(connection.EncryptedAccessToken)
	if err != nil {
		return domain.StoreCredentials{}, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	apiKey, err := tm.encryptionSvc.Decrypt(connection.EncryptedAPIKey)
	if err != nil {
		return domain.StoreCredentials{}, fmt.Errorf("failed to decrypt API key: %w", err)
	}
	apiSecret, err := tm.encryptionSvc.Decrypt(connection.EncryptedAPISecret)
	if err != nil {
		return domain.StoreCredentials{}, fmt.Errorf("failed to decrypt API secret: %w", err)
	}

	return domain.StoreCredentials{
		Endpoint:    connection.StoreEndpoint,
		AccessToken: accessToken,
		APIKey:      apiKey,
		APISecret:   apiSecret,
	}, nil
}
