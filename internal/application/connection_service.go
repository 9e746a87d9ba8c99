package application

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/ports"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	connectionLockTTL   = 30 * time.Second
	connectionLockWait  = 30 * time.Second
	connectionLockRetry = 100 * time.Millisecond
)

// ConnectionService links owners to their Shopify store
type ConnectionService struct {
	connections ports.ConnectionRepository
	client      ports.StoreClient
	vault       ports.CredentialVault
	locker      ports.SyncLocker
	lockWait    time.Duration
	validate    *validator.Validate
	logger      zerolog.Logger
}

// NewConnectionService creates a new connection service.
// locker is the sync engine's per-connection locker; nil disables waiting for in-flight syncs.
func NewConnectionService(
	connections ports.ConnectionRepository,
	client ports.StoreClient,
	vault ports.CredentialVault,
	locker ports.SyncLocker,
	logger zerolog.Logger,
) *ConnectionService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &ConnectionService{
		connections: connections,
		client:      client,
		vault:       vault,
		locker:      locker,
		lockWait:    connectionLockWait,
		validate:    validate,
		logger:      logger,
	}
}

// ConnectInput is the connect request body
type ConnectInput struct {
	OwnerID       string `json:"owner_id,omitempty" validate:"required"`
	StoreEndpoint string `json:"store_endpoint" validate:"required,max=255"`
	AccessToken   string `json:"access_token" validate:"required,min=8"`
	APIKey        string `json:"api_key" validate:"omitempty,max=255"`
	APISecret     string `json:"api_secret" validate:"omitempty,max=255"`
}

// Connect verifies the credentials against the store and replaces the owner's connection.
// It never starts a sync.
func (s *ConnectionService) Connect(ctx context.Context, input ConnectInput) (*domain.ConnectionSummary, error) {
	input.StoreEndpoint = domain.NormalizeStoreEndpoint(input.StoreEndpoint)
	input.AccessToken = strings.TrimSpace(input.AccessToken)
	if err := s.validateInput(input); err != nil {
		return nil, err
	}
	if err := domain.ValidateStoreEndpoint(input.StoreEndpoint); err != nil {
		return nil, err
	}

	creds := domain.StoreCredentials{
		Endpoint:    input.StoreEndpoint,
		AccessToken: input.AccessToken,
		APIKey:      input.APIKey,
		APISecret:   input.APISecret,
	}
	shop, err := s.client.VerifyCredentials(ctx, creds)
	if err != nil {
		s.logger.Warn().Err(err).Str("ownerId", input.OwnerID).Str("shop", input.StoreEndpoint).Msg("Store credential verification failed")
		return nil, err
	}

	conn := &domain.Connection{
		OwnerID:       input.OwnerID,
		StoreEndpoint: input.StoreEndpoint,
		ShopName:      shop.Name,
	}
	if conn.ShopName == "" {
		conn.ShopName = strings.TrimSuffix(input.StoreEndpoint, ".myshopify.com")
	}
	if err := s.vault.Seal(conn, creds); err != nil {
		return nil, fmt.Errorf("failed to seal store credentials: %w", err)
	}

	// A store change purges the old store's rows, so in-flight pages must finish first
	current, err := s.connections.GetActiveConnection(ctx, input.OwnerID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		release, err := s.holdConnection(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	saved, err := s.connections.UpsertConnection(ctx, conn)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("ownerId", input.OwnerID).Str("shop", saved.StoreEndpoint).Msg("Store connected")
	return saved.Summary(), nil
}

// Disconnect deactivates the owner's connection and removes everything synced for it
func (s *ConnectionService) Disconnect(ctx context.Context, ownerID, initiatedBy string) (*domain.SyncLogEntry, error) {
	conn, err := s.connections.GetActiveConnection(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, domain.ErrNoConnection
	}
	if initiatedBy == "" {
		initiatedBy = ownerID
	}

	release, err := s.holdConnection(ctx, conn.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	entry, err := s.connections.DeactivateAndCleanup(ctx, conn.ID, initiatedBy)
	if err != nil {
		s.logger.Error().Err(err).Str("ownerId", ownerID).Msg("Failed to disconnect store")
		return nil, err
	}

	s.logger.Info().
		Str("ownerId", ownerID).
		Str("shop", conn.StoreEndpoint).
		Int("itemsRemoved", entry.ItemsProcessed).
		Msg("Store disconnected")
	return entry, nil
}

// DisconnectShop tears down the active connection for a store domain, used by app/uninstalled
func (s *ConnectionService) DisconnectShop(ctx context.Context, shop, initiatedBy string) (*domain.SyncLogEntry, error) {
	conn, err := s.connections.GetActiveConnectionByEndpoint(ctx, domain.NormalizeStoreEndpoint(shop))
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, domain.ErrNoConnection
	}
	return s.Disconnect(ctx, conn.OwnerID, initiatedBy)
}

// GetConnection returns the owner's redacted connection
func (s *ConnectionService) GetConnection(ctx context.Context, ownerID string) (*domain.ConnectionSummary, error) {
	conn, err := s.connections.GetActiveConnection(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, domain.ErrNoConnection
	}
	return conn.Summary(), nil
}

// holdConnection takes the connection's sync lease, waiting up to lockWait for a running page
// to finish. Sync pages started while it is held fail with ErrSyncInProgress.
func (s *ConnectionService) holdConnection(ctx context.Context, connectionID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	ticker := time.NewTicker(connectionLockRetry)
	defer ticker.Stop()

	for {
		unlock, ok, err := s.locker.Acquire(ctx, connectionID, connectionLockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
				defer cancel()
				if err := unlock(releaseCtx); err != nil {
					s.logger.Warn().Err(err).Str("connectionId", connectionID).Msg("Failed to release connection lock")
				}
			}, nil
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			s.logger.Warn().Str("connectionId", connectionID).Msg("Timed out waiting for running sync")
			return nil, domain.ErrSyncInProgress
		case <-ticker.C:
		}
	}
}

func (s *ConnectionService) validateInput(input ConnectInput) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.NewValidationError("", err.Error())
	}
	first := fieldErrs[0]
	return domain.NewValidationError(first.Field(), validationMessage(first))
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "must be at least " + e.Param() + " characters"
	case "max":
		return "must be at most " + e.Param() + " characters"
	default:
		return "invalid value"
	}
}
