package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"archie-core-shopify-sync/internal/domain"

	"github.com/rs/zerolog"
)

const maxRequestBody = 1 << 20

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes and stable error codes
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("Request failed")
	}

	var rateErr *domain.RateLimitError
	if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rateErr.RetryAfter.Seconds()))))
	}

	writeJSON(w, status, ErrorResponse{Error: code, Message: err.Error()})
}

func classify(err error) (int, string) {
	var (
		validationErr *domain.ValidationError
		authErr       *domain.AuthenticationError
		rateErr       *domain.RateLimitError
		upstreamErr   *domain.UpstreamError
		persistErr    *domain.PersistenceError
		configErr     *domain.ConfigurationError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "validation_error"
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, "reconnect_required"
	case errors.As(err, &rateErr):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.As(err, &upstreamErr):
		return http.StatusBadGateway, "upstream_error"
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError, "persistence_error"
	case errors.As(err, &configErr):
		return http.StatusServiceUnavailable, "configuration_error"
	case errors.Is(err, domain.ErrNoConnection):
		return http.StatusNotFound, "no_connection"
	case errors.Is(err, domain.ErrSyncLogNotFound):
		return http.StatusNotFound, "sync_log_not_found"
	case errors.Is(err, domain.ErrSyncInProgress):
		return http.StatusConflict, "sync_in_progress"
	case errors.Is(err, domain.ErrSyncRunClosed):
		return http.StatusConflict, "sync_run_closed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeBody reads an optional JSON body into dst. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.NewValidationError("body", "request body must be valid JSON")
	}
	return nil
}
