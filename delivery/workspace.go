package delivery

import (
	"context"

	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/mailqueue"
	"github.com/teranos/opsgate/workspace"
)

// WorkspaceProfile delivers by sending from the workspace mailbox
type WorkspaceProfile struct {
	domainSet
	name   string
	client workspace.Client
}

var _ Profile = (*WorkspaceProfile)(nil)

// NewWorkspaceProfile creates a profile sending through client
func NewWorkspaceProfile(name string, domains []string, client workspace.Client) *WorkspaceProfile {
	p := &WorkspaceProfile{name: name, client: client}
	p.SetDomains(domains)
	return p
}

// Name returns the profile name
func (p *WorkspaceProfile) Name() string { return p.name }

// Send sends email from the mailbox
func (p *WorkspaceProfile) Send(ctx context.Context, email mailqueue.Email) error {
	_, err := p.client.SendMessage(ctx, workspace.OutgoingMessage{
		From:    email.From,
		To:      email.To,
		Subject: email.Subject,
		Body:    email.Content,
	})
	if err != nil {
		return errors.Wrapf(err, "workspace profile %s", p.name)
	}
	return nil
}
