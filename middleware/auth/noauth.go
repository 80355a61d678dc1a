package auth

// WithNoAuth creates an AuthConfig that disables authentication.
// This is the default when no basic auth user is configured.
func WithNoAuth() AuthConfig {
	return AuthConfig{
		Enabled:       false,
		Realm:         defaultRealm,
		Authenticator: nil,
		RequireAuth:   false,
	}
}
