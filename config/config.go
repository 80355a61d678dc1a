package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Consistency levels understood by rqlite
const (
	LevelNone   = "none"
	LevelWeak   = "weak"
	LevelStrong = "strong"
)

// Config holds the adapter configuration
type Config struct {
	// Connection parameters
	Protocol         string        `json:"protocol"` // http or https
	Host             string        `json:"host"`
	Port             int           `json:"port"`
	ConsistencyLevel string        `json:"consistency_level"` // none, weak or strong
	MaxRedirects     int           `json:"maxredirects"`
	Timeout          time.Duration `json:"timeout"`

	// Merge merges the stored and incoming fields on update,
	// otherwise the row is overwritten by the incoming fields only
	Merge bool `json:"merge"`

	// IgnoreNoSuchTableError turns "no such table" into an absent/empty
	// result for load, list and remove
	IgnoreNoSuchTableError bool `json:"ignore_no_such_table_error"`

	// Administrative web surface
	Prefix string      `json:"prefix"`
	Web    WebConfig   `json:"web"`
	Auth   *AuthConfig `json:"-"`

	Messages Messages `json:"messages"`

	DebugEnabled bool `json:"debug"`
}

// WebConfig holds the administrative surface switches
type WebConfig struct {
	Dump bool `json:"dump"`
}

// AuthConfig holds basic authentication credentials for the web surface
type AuthConfig struct {
	BasicAuthUser string
	BasicAuthPass string
}

// Messages holds the error fragments matched against the database's error text
type Messages struct {
	BadArguments     string `json:"badarguments"`
	NoSuchColumn     string `json:"nosuchcolumn"`
	NoSuchTable      string `json:"nosuchtable"`
	Unique           string `json:"unique"`
	TooManyRedirects string `json:"toomuchredirects"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Protocol:               "http",
		Host:                   "127.0.0.1",
		Port:                   4001,
		ConsistencyLevel:       LevelWeak,
		MaxRedirects:           10,
		Timeout:                10 * time.Second,
		Merge:                  true,
		IgnoreNoSuchTableError: false,
		Prefix:                 "/rqlite-store",
		Web:                    WebConfig{Dump: false},
		Messages:               DefaultMessages(),
	}
}

// DefaultMessages returns the default error fragments
func DefaultMessages() Messages {
	return Messages{
		BadArguments:     "bad arguments for this function",
		NoSuchColumn:     "no such column",
		NoSuchTable:      "no such table",
		Unique:           "UNIQUE constraint failed",
		TooManyRedirects: "the maximum number of attempts to redirect to the leader is reached",
	}
}

// LoadConfig loads configuration from environment variables on top of the defaults.
// .env file is automatically loaded via autoload import
func LoadConfig() Config {
	cfg := DefaultConfig()

	cfg.Protocol = getEnvWithDefault("RQLITE_STORE_PROTOCOL", cfg.Protocol)
	cfg.Host = getEnvWithDefault("RQLITE_STORE_HOST", cfg.Host)
	cfg.Port = getIntEnvWithDefault("RQLITE_STORE_PORT", cfg.Port)
	cfg.ConsistencyLevel = getEnvWithDefault("RQLITE_STORE_CONSISTENCY_LEVEL", cfg.ConsistencyLevel)
	cfg.MaxRedirects = getIntEnvWithDefault("RQLITE_STORE_MAXREDIRECTS", cfg.MaxRedirects)
	cfg.Timeout = getDurationEnvWithDefault("RQLITE_STORE_TIMEOUT", cfg.Timeout)
	cfg.Merge = getBoolEnvWithDefault("RQLITE_STORE_MERGE", cfg.Merge)
	cfg.IgnoreNoSuchTableError = getBoolEnvWithDefault("RQLITE_STORE_IGNORE_NO_SUCH_TABLE_ERROR", cfg.IgnoreNoSuchTableError)
	cfg.Prefix = getEnvWithDefault("RQLITE_STORE_PREFIX", cfg.Prefix)
	cfg.Web.Dump = getBoolEnvWithDefault("RQLITE_STORE_WEB_DUMP", cfg.Web.Dump)
	cfg.DebugEnabled = getBoolEnvWithDefault("DEBUG", false)

	user := getEnvWithDefault("RQLITE_STORE_BASIC_AUTH_USER", "")
	pass := getEnvWithDefault("RQLITE_STORE_BASIC_AUTH_PASS", "")
	if user != "" {
		cfg.Auth = &AuthConfig{BasicAuthUser: user, BasicAuthPass: pass}
	}

	if cfg.DebugEnabled {
		log.Printf("[CONFIG] rqlite endpoint %s (level=%s, maxredirects=%d, merge=%t)",
			cfg.BaseURL(), cfg.ConsistencyLevel, cfg.MaxRedirects, cfg.Merge)
	}

	return cfg
}

// Validate checks that the configuration is usable
func (c Config) Validate() error {
	switch c.Protocol {
	case "http", "https":
	default:
		return fmt.Errorf("invalid protocol %q: expected http or https", c.Protocol)
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.ConsistencyLevel {
	case LevelNone, LevelWeak, LevelStrong:
	default:
		return fmt.Errorf("invalid consistency level %q: expected none, weak or strong", c.ConsistencyLevel)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("maxredirects cannot be negative, got %d", c.MaxRedirects)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", c.Timeout)
	}
	if c.Prefix != "" && !strings.HasPrefix(c.Prefix, "/") {
		return fmt.Errorf("prefix must start with '/', got %q", c.Prefix)
	}
	return nil
}

// BaseURL returns the rqlite endpoint, e.g. http://127.0.0.1:4001
func (c Config) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", c.Protocol, c.Host, c.Port)
}

// Redacted returns a copy safe to expose on the administrative surface
func (c Config) Redacted() Config {
	if c.Auth != nil {
		c.Auth = &AuthConfig{BasicAuthUser: c.Auth.BasicAuthUser, BasicAuthPass: "***"}
	}
	return c
}

// getEnvWithDefault gets an environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnvWithDefault gets a boolean environment variable with a default fallback
func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
		log.Printf("[CONFIG] Invalid boolean value for %s='%s', using default %t", key, value, defaultValue)
	}
	return defaultValue
}

// getIntEnvWithDefault gets an integer environment variable with a default fallback
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Printf("[CONFIG] Invalid integer value for %s='%s', using default %d", key, value, defaultValue)
	}
	return defaultValue
}

// getDurationEnvWithDefault gets a duration environment variable with a default fallback
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Printf("[CONFIG] Invalid duration value for %s='%s', using default %s", key, value, defaultValue)
	}
	return defaultValue
}
