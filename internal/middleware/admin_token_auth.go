package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"medgraph-search/internal/observability"
)

const defaultAdminTokenHeader = "X-Admin-Token"

// AdminTokenAuthConfig controls shared-token authentication for admin endpoints.
type AdminTokenAuthConfig struct {
	Token      string
	HeaderName string
	// Metrics, when set, counts rejected requests.
	Metrics *observability.SecurityMetrics
}

// AdminTokenAuthMiddleware validates a shared admin token from request headers.
// The comparison runs over fixed-length digests so it stays constant-time
// regardless of token length.
func AdminTokenAuthMiddleware(cfg AdminTokenAuthConfig) (func(http.Handler) http.Handler, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("admin auth token is required")
	}
	headerName := strings.TrimSpace(cfg.HeaderName)
	if headerName == "" {
		headerName = defaultAdminTokenHeader
	}

	expectedDigest := sha256.Sum256([]byte(token))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := strings.TrimSpace(r.Header.Get(headerName))
			providedDigest := sha256.Sum256([]byte(provided))
			if subtle.ConstantTimeCompare(providedDigest[:], expectedDigest[:]) != 1 {
				if cfg.Metrics != nil {
					reason := "invalid_token"
					if provided == "" {
						reason = "missing_token"
					}
					cfg.Metrics.RecordUnauthorizedAttempt(r.Context(), r.URL.Path, reason)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = fmt.Fprint(w, `{"error":"unauthorized"}`)
				return
			}

			ctx := WithAuthContext(r.Context(), AuthContext{
				Subject: "admin_token",
				Issuer:  "admin_token",
				Claims: map[string]interface{}{
					"auth_method": "admin_token",
				},
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}
