package auth

import (
	"net/http"
	"strings"
)

// RequireRole guards mutating endpoints. With auth disabled every request
// passes.
func RequireRole(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			token := ExtractBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := ValidateJWT(token)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if RoleFromClaims(claims) != requiredRole {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RequireOperator(next http.Handler) http.Handler {
	return RequireRole(RoleOperator)(next)
}

// IsOperatorRequest reports whether r may mutate the connection. It is true
// for every request when auth is disabled.
func IsOperatorRequest(r *http.Request) bool {
	if !Enabled() {
		return true
	}
	token := ExtractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return false
	}
	claims, err := ValidateJWT(token)
	return err == nil && RoleFromClaims(claims) == RoleOperator
}

func ExtractBearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
