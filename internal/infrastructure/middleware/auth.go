package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"archie-core-shopify-sync/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// OwnerHeader carries the owner id in development mode, when no JWT secret is configured
const OwnerHeader = "X-Owner-ID"

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid token")
	errMissingOwner = errors.New("token has no subject")
)

// OwnerAuth resolves the calling owner and stores it in the request context.
// With a secret, an HS256 bearer token is required and its subject is the owner id.
// Without one, the X-Owner-ID header is trusted.
func OwnerAuth(jwtSecret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var ownerID string
			if len(secret) == 0 {
				ownerID = strings.TrimSpace(r.Header.Get(OwnerHeader))
				if ownerID == "" {
					writeError(w, http.StatusUnauthorized, "unauthorized", OwnerHeader+" header is required")
					return
				}
			} else {
				var err error
				ownerID, err = ownerFromToken(r, secret)
				if err != nil {
					logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected request token")
					writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(domain.WithOwnerID(r.Context(), ownerID)))
		})
	}
}

func ownerFromToken(r *http.Request, secret []byte) (string, error) {
	raw := bearerToken(r)
	if raw == "" {
		return "", errMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}
	if claims.Subject == "" {
		return "", errMissingOwner
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
