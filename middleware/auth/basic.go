package auth

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/preslavrachev/rqlitestore/config"
)

const defaultRealm = "rqlite-store"

var (
	ErrUnknownUser     = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
)

// BasicAuthUser represents a user configured for basic authentication
type BasicAuthUser struct {
	Username string
	Password string
	User     AuthUser
}

// NewBasicAuthUser creates a BasicAuthUser with the provided details
func NewBasicAuthUser(username, password string, roles []string) BasicAuthUser {
	return BasicAuthUser{
		Username: username,
		Password: password,
		User: AuthUser{
			Username: username,
			Roles:    roles,
		},
	}
}

// WithBasicAuth creates an AuthConfig that uses HTTP Basic Authentication.
// Users are provided as a map of username -> BasicAuthUser.
func WithBasicAuth(users map[string]BasicAuthUser) AuthConfig {
	authenticator := func(ctx context.Context, username, password string) (*AuthUser, error) {
		user, exists := users[username]
		if !exists {
			return nil, ErrUnknownUser
		}

		// Use constant time comparison to prevent timing attacks
		if subtle.ConstantTimeCompare([]byte(password), []byte(user.Password)) != 1 {
			return nil, ErrInvalidPassword
		}

		u := user.User
		return &u, nil
	}

	return AuthConfig{
		Enabled:       true,
		Realm:         defaultRealm,
		Authenticator: authenticator,
		RequireAuth:   true,
	}
}

// WithBasicAuthFromConfig creates an AuthConfig from the configured credentials,
// or disables authentication when none are configured
func WithBasicAuthFromConfig(cfg config.Config) AuthConfig {
	if cfg.Auth == nil || cfg.Auth.BasicAuthUser == "" {
		return WithNoAuth()
	}

	users := map[string]BasicAuthUser{
		cfg.Auth.BasicAuthUser: NewBasicAuthUser(
			cfg.Auth.BasicAuthUser,
			cfg.Auth.BasicAuthPass,
			[]string{"admin"},
		),
	}

	return WithBasicAuth(users)
}
