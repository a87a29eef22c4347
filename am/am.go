// Package am holds opsgate configuration ("I am"): the server surface, the
// identity verifier, outbound mail profiles and the optional collaborators
// that back operation capabilities.
package am

// Config represents the opsgate configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server" toml:"server"`
	Auth       AuthConfig       `mapstructure:"auth" toml:"auth"`
	Mail       MailConfig       `mapstructure:"mail" toml:"mail"`
	Workspace  WorkspaceConfig  `mapstructure:"workspace" toml:"workspace"`
	Streams    StreamsConfig    `mapstructure:"streams" toml:"streams"`
	Operations OperationsConfig `mapstructure:"operations" toml:"operations"`
	Log        LogConfig        `mapstructure:"log" toml:"log"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port           int      `mapstructure:"port" toml:"port"`
	BaseURL        string   `mapstructure:"base_url" toml:"base_url"` // Public URL baked into generated clients (default: http://localhost:<port>)
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`
	DevMode        bool     `mapstructure:"dev_mode" toml:"dev_mode"` // Permissive CORS
}

// AuthConfig configures bearer token verification
type AuthConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret" toml:"jwt_secret"`
	Issuer      string `mapstructure:"issuer" toml:"issuer"`
	TokenExpiry string `mapstructure:"token_expiry" toml:"token_expiry"` // Go duration, e.g. "720h"
}

// MailConfig configures the outbound email queue
type MailConfig struct {
	IntervalMS int                 `mapstructure:"interval_ms" toml:"interval_ms"` // Minimum delay between provider calls (default: 100)
	Profiles   []MailProfileConfig `mapstructure:"profiles" toml:"profiles"`
}

// MailProfileConfig describes one delivery profile.
// Kind is "http" (transactional email API) or "workspace" (send through the mailbox).
type MailProfileConfig struct {
	Name     string   `mapstructure:"name" toml:"name"`
	Kind     string   `mapstructure:"kind" toml:"kind"`
	Domains  []string `mapstructure:"domains" toml:"domains"`
	Endpoint string   `mapstructure:"endpoint" toml:"endpoint"`
	APIKey   string   `mapstructure:"api_key" toml:"api_key"`
}

// Delivery profile kinds
const (
	ProfileKindHTTP      = "http"
	ProfileKindWorkspace = "workspace"
)

// WorkspaceConfig configures the mailbox/workspace API client
type WorkspaceConfig struct {
	ClientID     string `mapstructure:"client_id" toml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" toml:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token" toml:"refresh_token"`
	TokenURL     string `mapstructure:"token_url" toml:"token_url"`
	BaseURL      string `mapstructure:"base_url" toml:"base_url"`
}

// Enabled reports whether enough credentials are present to build a client
func (w WorkspaceConfig) Enabled() bool {
	return w.ClientID != "" && w.ClientSecret != "" && w.RefreshToken != ""
}

// StreamsConfig configures the durable stream store
type StreamsConfig struct {
	RedisURL  string `mapstructure:"redis_url" toml:"redis_url"`
	Namespace string `mapstructure:"namespace" toml:"namespace"` // Key prefix (default: "opsgate")
}

// OperationsConfig controls which built-in operations are registered
type OperationsConfig struct {
	Disabled []string `mapstructure:"disabled" toml:"disabled"` // Operation identifiers to leave out of the registry
}

// LogConfig configures logging output
type LogConfig struct {
	JSON  bool   `mapstructure:"json" toml:"json"`
	Level string `mapstructure:"level" toml:"level"`
}

// Server defaults
const (
	DefaultServerPort     = 8787
	DefaultMailIntervalMS = 100
	DefaultNamespace      = "opsgate"
)

// File system constants
const (
	DefaultDirPermissions = 0755 // Standard directory permissions (rwxr-xr-x)
)
