package auth

import (
	"fmt"
	"log"
	"net/http"
)

// CreateAuthMiddleware creates HTTP middleware for basic authentication
func CreateAuthMiddleware(authConfig *AuthConfig) AuthMiddleware {
	if authConfig == nil || !authConfig.Enabled || authConfig.Authenticator == nil {
		// Return no-op middleware if auth is disabled
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	realm := authConfig.Realm
	if realm == "" {
		realm = defaultRealm
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				if authConfig.RequireAuth {
					challenge(w, realm)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			user, err := authConfig.Authenticator(r.Context(), username, password)
			if err != nil {
				log.Printf("[AUTH] Rejected credentials for %q from %s: %v", username, r.RemoteAddr, err)
				challenge(w, realm)
				return
			}

			// Add user to context and continue with the request
			next.ServeHTTP(w, r.WithContext(WithAuthUser(r.Context(), user)))
		})
	}
}

// challenge asks the client for basic credentials
func challenge(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Basic realm=%q, charset="UTF-8"`, realm))
	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
}
