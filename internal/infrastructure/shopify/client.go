package shopify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

const (
	// PageLimit is the Admin REST maximum page size
	PageLimit = 250

	maxProductPages = 400

	defaultRetryBackoff = 500 * time.Millisecond
)

// orderListQuery is encoded by go-querystring. A cursor request may only carry page_info and limit.
type orderListQuery struct {
	PageInfo     string    `url:"page_info,omitempty"`
	Limit        int       `url:"limit,omitempty"`
	Status       string    `url:"status,omitempty"`
	UpdatedAtMin time.Time `url:"updated_at_min,omitempty"`
	Order        string    `url:"order,omitempty"`
}

type productListQuery struct {
	PageInfo string `url:"page_info,omitempty"`
	Limit    int    `url:"limit,omitempty"`
}

type client struct {
	apiVersion string
	retries    int
	backoff    time.Duration
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures the store client
type Option func(*client)

// WithAPIVersion pins the Admin API version, e.g. 2024-10
func WithAPIVersion(version string) Option {
	return func(c *client) { c.apiVersion = version }
}

// WithHTTPClient replaces the transport used for every request
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) { c.httpClient = httpClient }
}

// WithRetries re-sends GET requests that fail with a 5xx status.
// A 429 is never retried here; it reaches the caller with its Retry-After.
func WithRetries(retries int) Option {
	return func(c *client) { c.retries = retries }
}

// NewClient creates a new Shopify store client adapter
func NewClient(logger zerolog.Logger, opts ...Option) ports.StoreClient {
	c := &client{backoff: defaultRetryBackoff, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// createClient is a helper to create a goshopify client for one set of credentials
func (c *client) createClient(creds domain.StoreCredentials) (*goshopify.Client, error) {
	app := goshopify.App{
		ApiKey:    creds.APIKey,
		ApiSecret: creds.APISecret,
	}
	var opts []goshopify.Option
	if c.apiVersion != "" {
		opts = append(opts, goshopify.WithVersion(c.apiVersion))
	}

	client, err := goshopify.NewClient(app, creds.Endpoint, creds.AccessToken, opts...)
	if err != nil {
		return nil, domain.NewValidationError("store_endpoint", fmt.Sprintf("failed to create client: %v", err))
	}
	if c.httpClient != nil {
		client.Client = c.httpClient
	}
	if c.retries > 0 {
		// go-shopify's own WithRetry sleeps through 429s without honoring the context
		retrying := *client.Client
		base := retrying.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		retrying.Transport = serverErrorRetry{base: base, retries: c.retries, backoff: c.backoff, logger: c.logger}
		client.Client = &retrying
	}
	return client, nil
}

// serverErrorRetry re-sends body-less GETs answered with a 5xx, backing off linearly
type serverErrorRetry struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
	logger  zerolog.Logger
}

func (t serverErrorRetry) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := t.base.RoundTrip(req)
		if err != nil || resp.StatusCode < http.StatusInternalServerError || attempt >= t.retries || req.Method != http.MethodGet {
			return resp, err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		t.logger.Debug().
			Str("path", req.URL.Path).
			Int("status", resp.StatusCode).
			Int("attempt", attempt+1).
			Msg("Retrying store request after server error")

		timer := time.NewTimer(t.backoff * time.Duration(attempt+1))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}

// VerifyCredentials makes the lightweight shop.json call
func (c *client) VerifyCredentials(ctx context.Context, creds domain.StoreCredentials) (*goshopify.Shop, error) {
	client, err := c.createClient(creds)
	if err != nil {
		return nil, err
	}
	shop, err := client.Shop.Get(ctx, nil)
	if err != nil {
		return nil, classifyError(err)
	}
	return shop, nil
}

// FetchOrdersPage fetches exactly one page of orders
func (c *client) FetchOrdersPage(ctx context.Context, creds domain.StoreCredentials, req ports.OrdersPageRequest) (*ports.OrdersPage, error) {
	client, err := c.createClient(creds)
	if err != nil {
		return nil, err
	}

	query := orderListQuery{Limit: PageLimit}
	switch {
	case req.Cursor != "":
		query.PageInfo = req.Cursor
	case req.UpdatedSince != nil:
		query.Status = "any"
		query.UpdatedAtMin = req.UpdatedSince.UTC()
		query.Order = "updated_at asc"
	default:
		query.Status = "any"
	}

	orders, pagination, err := client.Order.ListWithPagination(ctx, query)
	if err != nil {
		c.logger.Warn().Err(err).Str("shop", creds.Endpoint).Msg("Failed to fetch orders page")
		return nil, classifyError(err)
	}

	page := &ports.OrdersPage{Orders: orders, NextCursor: nextPageInfo(pagination)}
	c.logger.Debug().
		Str("shop", creds.Endpoint).
		Int("orders", len(orders)).
		Bool("hasNext", page.NextCursor != "").
		Msg("Fetched orders page")
	return page, nil
}

// FetchAllProducts loops the cursor protocol until the catalogue is exhausted
func (c *client) FetchAllProducts(ctx context.Context, creds domain.StoreCredentials) ([]goshopify.Product, error) {
	client, err := c.createClient(creds)
	if err != nil {
		return nil, err
	}

	var all []goshopify.Product
	query := productListQuery{Limit: PageLimit}
	for page := 0; page < maxProductPages; page++ {
		products, pagination, err := client.Product.ListWithPagination(ctx, query)
		if err != nil {
			c.logger.Warn().Err(err).Str("shop", creds.Endpoint).Int("page", page).Msg("Failed to fetch products page")
			return nil, classifyError(err)
		}
		all = append(all, products...)

		next := nextPageInfo(pagination)
		if next == "" || next == query.PageInfo {
			return all, nil
		}
		query = productListQuery{PageInfo: next, Limit: PageLimit}
	}

	return nil, &domain.UpstreamError{Err: fmt.Errorf("product pagination exceeded %d pages", maxProductPages)}
}

func nextPageInfo(pagination *goshopify.Pagination) string {
	if pagination == nil || pagination.NextPageOptions == nil {
		return ""
	}
	return pagination.NextPageOptions.PageInfo
}

// classifyError maps go-shopify errors to the store error taxonomy
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var rateErr goshopify.RateLimitError
	if errors.As(err, &rateErr) {
		return &domain.RateLimitError{
			RetryAfter: time.Duration(rateErr.RetryAfter) * time.Second,
			Message:    responseBody(rateErr.ResponseError),
		}
	}

	var respErr goshopify.ResponseError
	if errors.As(err, &respErr) {
		return statusError(respErr)
	}
	var respErrPtr *goshopify.ResponseError
	if errors.As(err, &respErrPtr) && respErrPtr != nil {
		return statusError(*respErrPtr)
	}

	return &domain.UpstreamError{Err: err}
}

func statusError(respErr goshopify.ResponseError) error {
	body := responseBody(respErr)
	switch respErr.Status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return &domain.AuthenticationError{Status: respErr.Status, Message: body}
	case http.StatusTooManyRequests:
		return &domain.RateLimitError{Message: body}
	default:
		return &domain.UpstreamError{Status: respErr.Status, Body: body, Err: respErr}
	}
}

func responseBody(respErr goshopify.ResponseError) string {
	parts := make([]string, 0, len(respErr.Errors)+1)
	if respErr.Message != "" {
		parts = append(parts, respErr.Message)
	}
	for _, e := range respErr.Errors {
		if e != respErr.Message {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, "; ")
}
