package middleware

import (
	"crypto/subtle"
	"net/http"

	"valshop-api/pkg/apierror"
)

// AdminKeyHeader carries the operator key on admin endpoints.
const AdminKeyHeader = "X-Admin-Key"

// NewAdminAuth guards operator endpoints with a static key.
// An empty key disables the endpoints entirely.
func NewAdminAuth(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				writeError(w, apierror.Forbidden("Admin API disabled"))
				return
			}

			key := r.Header.Get(AdminKeyHeader)
			if key == "" {
				writeError(w, apierror.Unauthorized("Admin key required"))
				return
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
				writeError(w, apierror.Unauthorized("Invalid admin key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
