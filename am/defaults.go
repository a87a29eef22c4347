package am

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
	v.SetDefault("server.dev_mode", false)

	// Auth
	v.SetDefault("auth.issuer", "opsgate")
	v.SetDefault("auth.token_expiry", "720h") // Tokens are baked into generated clients

	// Mail
	v.SetDefault("mail.interval_ms", DefaultMailIntervalMS)

	// Workspace
	v.SetDefault("workspace.token_url", "https://oauth2.googleapis.com/token")
	v.SetDefault("workspace.base_url", "https://gmail.googleapis.com/gmail/v1")

	// Streams
	v.SetDefault("streams.namespace", DefaultNamespace)

	// Logging
	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("auth.jwt_secret", "OPSGATE_JWT_SECRET")
	v.BindEnv("workspace.client_secret", "OPSGATE_WORKSPACE_CLIENT_SECRET")
	v.BindEnv("workspace.refresh_token", "OPSGATE_WORKSPACE_REFRESH_TOKEN")
	v.BindEnv("streams.redis_url", "OPSGATE_REDIS_URL", "REDIS_URL")
}

// GetBaseURL returns the public base URL for generated clients
func (c *Config) GetBaseURL() string {
	if c.Server.BaseURL != "" {
		return c.Server.BaseURL
	}
	port := c.Server.Port
	if port <= 0 {
		port = DefaultServerPort
	}
	return fmt.Sprintf("http://localhost:%d", port)
}

// GetServerAllowedOrigins returns the allowed CORS origins
func (c *Config) GetServerAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return []string{
			"http://localhost",
			"https://localhost",
			"http://127.0.0.1",
			"https://127.0.0.1",
		}
	}
	return c.Server.AllowedOrigins
}

// GetMailInterval returns the minimum delay between provider calls
func (c *Config) GetMailInterval() time.Duration {
	if c.Mail.IntervalMS <= 0 {
		return DefaultMailIntervalMS * time.Millisecond
	}
	return time.Duration(c.Mail.IntervalMS) * time.Millisecond
}

// GetTokenExpiry returns the configured token lifetime (default 30 days)
func (c *Config) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.Auth.TokenExpiry)
	if err != nil || d <= 0 {
		return 30 * 24 * time.Hour
	}
	return d
}

// GetStreamsNamespace returns the key prefix for stream records
func (c *Config) GetStreamsNamespace() string {
	if c.Streams.Namespace == "" {
		return DefaultNamespace
	}
	return c.Streams.Namespace
}

// ProfileDomains returns the domains of the named mail profile, or nil
func (c *Config) ProfileDomains(name string) []string {
	for _, p := range c.Mail.Profiles {
		if p.Name == name {
			return p.Domains
		}
	}
	return nil
}

// IsOperationDisabled reports whether id is listed in operations.disabled
func (c *Config) IsOperationDisabled(id string) bool {
	for _, d := range c.Operations.Disabled {
		if d == id {
			return true
		}
	}
	return false
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Server: {Port: %d}, Mail: {Profiles: %d}, Streams: {Redis: %t}, Workspace: {Enabled: %t}}",
		c.Server.Port, len(c.Mail.Profiles), c.Streams.RedisURL != "", c.Workspace.Enabled())
}
