package domain

import (
	"strings"
	"time"
)

const shopDomainSuffix = ".myshopify.com"

// Connection is an owner's stored link to one Shopify store
type Connection struct {
	ID                   string     `json:"id"`
	OwnerID              string     `json:"owner_id"`
	StoreEndpoint        string     `json:"store_endpoint"` // normalized <shop>.myshopify.com
	ShopName             string     `json:"shop_name"`
	EncryptedAccessToken string     `json:"-"`
	EncryptedAPIKey      string     `json:"-"`
	EncryptedAPISecret   string     `json:"-"`
	IsActive             bool       `json:"is_active"`
	ConnectedAt          time.Time  `json:"connected_at"`
	LastSyncAt           *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// StoreCredentials holds decrypted credentials for one API session
type StoreCredentials struct {
	Endpoint    string
	AccessToken string
	APIKey      string
	APISecret   string
}

// NormalizeStoreEndpoint strips scheme, path and casing from a user supplied store address
func NormalizeStoreEndpoint(raw string) string {
	endpoint := strings.ToLower(strings.TrimSpace(raw))
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimRight(endpoint, "/")
	if idx := strings.Index(endpoint, "/"); idx >= 0 {
		endpoint = endpoint[:idx]
	}
	return endpoint
}

// ValidateStoreEndpoint reports whether endpoint is a bare myshopify domain
func ValidateStoreEndpoint(endpoint string) error {
	if endpoint == "" {
		return NewValidationError("store_endpoint", "store endpoint is required")
	}
	if strings.ContainsAny(endpoint, "/ \t") {
		return NewValidationError("store_endpoint", "store endpoint must be a bare domain")
	}
	if !strings.HasSuffix(endpoint, shopDomainSuffix) || len(endpoint) < len("a"+shopDomainSuffix) {
		return NewValidationError("store_endpoint", "store endpoint must end with "+shopDomainSuffix)
	}
	shop := strings.TrimSuffix(endpoint, shopDomainSuffix)
	for _, r := range shop {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-' {
			return NewValidationError("store_endpoint", "store name may only contain letters, digits and hyphens")
		}
	}
	if strings.HasPrefix(shop, "-") || strings.HasSuffix(shop, "-") {
		return NewValidationError("store_endpoint", "store name may not start or end with a hyphen")
	}
	return nil
}

// ConnectionSummary is the redacted view returned to callers
type ConnectionSummary struct {
	ID            string     `json:"id"`
	StoreEndpoint string     `json:"store_endpoint"`
	ShopName      string     `json:"shop_name,omitempty"`
	IsActive      bool       `json:"is_active"`
	ConnectedAt   time.Time  `json:"connected_at"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
}

// Summary returns the connection without any secret material
func (c *Connection) Summary() *ConnectionSummary {
	return &ConnectionSummary{
		ID:            c.ID,
		StoreEndpoint: c.StoreEndpoint,
		ShopName:      c.ShopName,
		IsActive:      c.IsActive,
		ConnectedAt:   c.ConnectedAt,
		LastSyncAt:    c.LastSyncAt,
	}
}
