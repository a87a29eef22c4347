// Package workspace talks to the mailbox API of a hosted workspace (Gmail
// REST v1) on behalf of a single account, authorized with an OAuth2
// refresh token.
package workspace

import (
	"context"
)

// MessageSummary is the metadata of one mailbox message
type MessageSummary struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	From     string `json:"from,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Date     string `json:"date,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
}

// OutgoingMessage is a plain-text message to send from the mailbox
type OutgoingMessage struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Client is the mailbox surface operations use
type Client interface {
	// SearchMessages returns up to max messages matching a mailbox query
	SearchMessages(ctx context.Context, query string, max int) ([]MessageSummary, error)

	// RawMessage returns the full RFC 822 bytes of a message
	RawMessage(ctx context.Context, id string) ([]byte, error)

	// SendMessage sends msg and returns the new message id
	SendMessage(ctx context.Context, msg OutgoingMessage) (string, error)
}
