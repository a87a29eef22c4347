package am

import (
	"time"

	"github.com/teranos/opsgate/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 0 {
		return errors.Newf("server.port must be positive, got %d", c.Server.Port)
	}

	// 0 = use default interval, negative = invalid
	if c.Mail.IntervalMS < 0 {
		return errors.Newf("mail.interval_ms must be >= 0, got %d", c.Mail.IntervalMS)
	}

	seen := make(map[string]bool, len(c.Mail.Profiles))
	for i, p := range c.Mail.Profiles {
		if p.Name == "" {
			return errors.Newf("mail.profiles[%d].name cannot be empty", i)
		}
		if seen[p.Name] {
			return errors.Newf("mail.profiles[%d]: duplicate profile name %q", i, p.Name)
		}
		seen[p.Name] = true

		switch p.Kind {
		case ProfileKindHTTP:
			if p.Endpoint == "" {
				return errors.Newf("mail.profiles.%s.endpoint cannot be empty for kind %q", p.Name, p.Kind)
			}
		case ProfileKindWorkspace:
			if !c.Workspace.Enabled() {
				return errors.Newf("mail.profiles.%s uses kind %q but workspace credentials are not configured", p.Name, p.Kind)
			}
		default:
			return errors.Newf("mail.profiles.%s.kind must be %q or %q, got %q", p.Name, ProfileKindHTTP, ProfileKindWorkspace, p.Kind)
		}
	}

	if c.Auth.TokenExpiry != "" {
		if d, err := time.ParseDuration(c.Auth.TokenExpiry); err != nil || d <= 0 {
			return errors.Newf("auth.token_expiry must be a positive duration, got %q", c.Auth.TokenExpiry)
		}
	}

	return nil
}
