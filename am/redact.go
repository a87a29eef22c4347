package am

import (
	"github.com/BurntSushi/toml"
	"github.com/teranos/opsgate/errors"
)

const redacted = "********"

// Redacted returns a copy of c with secrets masked, for display
func (c *Config) Redacted() *Config {
	out := *c
	out.Auth.JWTSecret = mask(c.Auth.JWTSecret)
	out.Workspace.ClientSecret = mask(c.Workspace.ClientSecret)
	out.Workspace.RefreshToken = mask(c.Workspace.RefreshToken)

	out.Mail.Profiles = make([]MailProfileConfig, len(c.Mail.Profiles))
	for i, p := range c.Mail.Profiles {
		p.APIKey = mask(p.APIKey)
		p.Domains = append([]string(nil), p.Domains...)
		out.Mail.Profiles[i] = p
	}
	return &out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return redacted
}

// UnknownKeys decodes the TOML file at path and returns the keys that do
// not map onto Config, usually typos.
func UnknownKeys(path string) ([]string, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	var keys []string
	for _, k := range md.Undecoded() {
		keys = append(keys, k.String())
	}
	return keys, nil
}
