package auth

import (
	"context"
	"net/http"
)

// AuthUser represents an authenticated user of the administrative surface
type AuthUser struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// AuthenticatorFunc validates a username and password and returns the user or an error
type AuthenticatorFunc func(ctx context.Context, username, password string) (*AuthUser, error)

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	// Enabled determines if authentication is active
	Enabled bool

	// Realm is announced in the WWW-Authenticate challenge
	Realm string

	// Authenticator is the function used to validate user credentials
	Authenticator AuthenticatorFunc

	// RequireAuth determines if requests without valid credentials are rejected.
	// If false, credentials are checked when present and anonymous access is allowed.
	RequireAuth bool
}

// AuthMiddleware wraps HTTP handlers to provide authentication
type AuthMiddleware func(http.Handler) http.Handler
