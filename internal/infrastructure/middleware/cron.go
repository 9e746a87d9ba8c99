package middleware

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// CronSecretHeader is the preferred way for schedulers to send the shared secret
const CronSecretHeader = "X-Cron-Secret"

const maxCronBody = 1 << 16

// CronSecret guards scheduler endpoints with a shared secret sent as the X-Cron-Secret header,
// a bearer token, a "secret" field in the JSON body or a ?secret= query parameter.
// Requests are refused while no secret is configured.
func CronSecret(secret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				logger.Warn().Str("path", r.URL.Path).Msg("Cron request refused: CRON_SECRET is not configured")
				writeError(w, http.StatusServiceUnavailable, "configuration_error", "cron secret is not configured")
				return
			}

			if !secretMatches(secret, presentedSecret(r)) {
				logger.Warn().Str("path", r.URL.Path).Str("remoteAddr", r.RemoteAddr).Msg("Cron request with invalid secret")
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid cron secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func presentedSecret(r *http.Request) string {
	if v := r.Header.Get(CronSecretHeader); v != "" {
		return v
	}
	if v := bearerToken(r); v != "" {
		return v
	}
	if v := bodySecret(r); v != "" {
		return v
	}
	return r.URL.Query().Get("secret")
}

// bodySecret peeks at the JSON body and restores it for the next handler
func bodySecret(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCronBody))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil || len(body) == 0 {
		return ""
	}

	var payload struct {
		Secret string `json:"secret"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Secret
}

func secretMatches(expected, presented string) bool {
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}
