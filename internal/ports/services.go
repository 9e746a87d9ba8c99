package ports

import (
	"context"
	"time"

	"archie-core-shopify-sync/internal/domain"
)

// EncryptionService encrypts secrets at rest
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SyncLocker hands out short per-connection leases
type SyncLocker interface {
	// Acquire returns ok=false when the key is already held
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// SyncEventPublisher receives engine page outcomes
type SyncEventPublisher interface {
	Publish(event *domain.SyncEvent)
}

// SyncMetrics records engine outcomes
type SyncMetrics interface {
	ObservePage(resource domain.SyncResource, mode domain.SyncMode, items int, duration time.Duration)
	ObserveFailure(resource domain.SyncResource, mode domain.SyncMode, reason string)
	ObserveRunCompleted(resource domain.SyncResource, mode domain.SyncMode)
}

// CredentialVault seals and opens connection secrets
type CredentialVault interface {
	Seal(connection *domain.Connection, creds domain.StoreCredentials) error
	Open(connection *domain.Connection) (domain.StoreCredentials, error)
}

// WebhookHandler processes one class of verified webhook topics
type WebhookHandler interface {
	CanHandle(topic string) bool
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}
