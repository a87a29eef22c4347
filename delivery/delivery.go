// Package delivery provides the mail queue's delivery profiles: a
// transactional email HTTP API and the workspace mailbox. Profile domain
// sets come from configuration and are refreshed in place on reload.
package delivery

import (
	"slices"
	"strings"
	"sync"

	"github.com/teranos/opsgate/am"
	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/internal/httpclient"
	"github.com/teranos/opsgate/mailqueue"
	"github.com/teranos/opsgate/workspace"
	"go.uber.org/zap"
)

// Profile is a mail queue profile whose domains can be replaced at runtime
type Profile interface {
	mailqueue.Profile
	SetDomains(domains []string)
}

// domainSet is a concurrency-safe, normalized list of sender domains
type domainSet struct {
	mu      sync.RWMutex
	domains []string
}

func (d *domainSet) Domains() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.domains)
}

func (d *domainSet) SetDomains(domains []string) {
	normalized := make([]string, 0, len(domains))
	for _, dom := range domains {
		dom = strings.ToLower(strings.TrimSpace(dom))
		if dom != "" {
			normalized = append(normalized, dom)
		}
	}
	d.mu.Lock()
	d.domains = normalized
	d.mu.Unlock()
}

// Build creates the profiles listed in cfg.Mail.Profiles, in order.
// ws may be nil when no workspace profile is configured.
func Build(cfg *am.Config, ws workspace.Client, client *httpclient.Client, logger *zap.SugaredLogger) ([]Profile, error) {
	profiles := make([]Profile, 0, len(cfg.Mail.Profiles))
	for _, pc := range cfg.Mail.Profiles {
		switch pc.Kind {
		case am.ProfileKindHTTP:
			profiles = append(profiles, NewHTTPProfile(pc, client, logger))
		case am.ProfileKindWorkspace:
			if ws == nil {
				return nil, errors.Newf("mail profile %s needs the workspace client, which is not configured", pc.Name)
			}
			profiles = append(profiles, NewWorkspaceProfile(pc.Name, pc.Domains, ws))
		default:
			return nil, errors.Newf("mail profile %s: unknown kind %q", pc.Name, pc.Kind)
		}
	}
	return profiles, nil
}

// Refresh updates the domain set of every profile from cfg. Profiles no
// longer present in cfg are left with no domains.
func Refresh(profiles []Profile, cfg *am.Config) {
	for _, p := range profiles {
		p.SetDomains(cfg.ProfileDomains(p.Name()))
	}
}

// QueueProfiles adapts profiles for mailqueue.New
func QueueProfiles(profiles []Profile) []mailqueue.Profile {
	out := make([]mailqueue.Profile, len(profiles))
	for i, p := range profiles {
		out[i] = p
	}
	return out
}
