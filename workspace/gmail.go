package workspace

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/teranos/opsgate/am"
	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/internal/httpclient"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the Gmail REST endpoint
const DefaultBaseURL = "https://gmail.googleapis.com/gmail/v1"

// MaxSearchResults caps SearchMessages
const MaxSearchResults = 100

var messageIDPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// GmailClient implements Client against the Gmail REST API
type GmailClient struct {
	http    *httpclient.Client
	baseURL string
	logger  *zap.SugaredLogger
}

var _ Client = (*GmailClient)(nil)

// NewGmailClient builds a client that refreshes its access token from the
// configured refresh token.
func NewGmailClient(cfg am.WorkspaceConfig, logger *zap.SugaredLogger) (*GmailClient, error) {
	if !cfg.Enabled() {
		return nil, errors.New("workspace client_id, client_secret and refresh_token are required")
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = "https://oauth2.googleapis.com/token"
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		Scopes: []string{
			"https://www.googleapis.com/auth/gmail.readonly",
			"https://www.googleapis.com/auth/gmail.send",
		},
	}
	source := oauthConfig.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})

	client := httpclient.New(httpclient.Options{
		Wrap: func(base http.RoundTripper) http.RoundTripper {
			return &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, source), Base: base}
		},
	})
	return NewGmailClientWithHTTP(client, cfg.BaseURL, logger), nil
}

// NewGmailClientWithHTTP builds a client on an already authorized HTTP client
func NewGmailClientWithHTTP(client *httpclient.Client, baseURL string, logger *zap.SugaredLogger) *GmailClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &GmailClient{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

type gmailMessage struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Snippet  string `json:"snippet"`
	Raw      string `json:"raw"`
	Payload  struct {
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
	} `json:"payload"`
}

func (m *gmailMessage) header(name string) string {
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// SearchMessages lists messages matching query with their headers
func (c *GmailClient) SearchMessages(ctx context.Context, query string, max int) ([]MessageSummary, error) {
	if max <= 0 {
		max = 10
	}
	if max > MaxSearchResults {
		max = MaxSearchResults
	}

	params := url.Values{}
	params.Set("maxResults", strconv.Itoa(max))
	if query != "" {
		params.Set("q", query)
	}

	var list struct {
		Messages []gmailMessage `json:"messages"`
	}
	if err := c.get(ctx, "/users/me/messages?"+params.Encode(), &list); err != nil {
		return nil, errors.Wrap(err, "failed to search mailbox")
	}

	summaries := make([]MessageSummary, 0, len(list.Messages))
	for _, ref := range list.Messages {
		meta := url.Values{}
		meta.Set("format", "metadata")
		meta["metadataHeaders"] = []string{"From", "Subject", "Date"}

		var msg gmailMessage
		if err := c.get(ctx, "/users/me/messages/"+url.PathEscape(ref.ID)+"?"+meta.Encode(), &msg); err != nil {
			c.logger.Warnw("Failed to fetch message metadata", "message_id", ref.ID, "error", err)
			summaries = append(summaries, MessageSummary{ID: ref.ID, ThreadID: ref.ThreadID})
			continue
		}
		summaries = append(summaries, MessageSummary{
			ID:       msg.ID,
			ThreadID: msg.ThreadID,
			From:     msg.header("From"),
			Subject:  msg.header("Subject"),
			Date:     msg.header("Date"),
			Snippet:  msg.Snippet,
		})
	}
	return summaries, nil
}

// RawMessage downloads a message in RFC 822 form
func (c *GmailClient) RawMessage(ctx context.Context, id string) ([]byte, error) {
	if !messageIDPattern.MatchString(id) {
		return nil, errors.BadRequestf("invalid message id %q", id)
	}

	var msg gmailMessage
	if err := c.get(ctx, "/users/me/messages/"+id+"?format=raw", &msg); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch message %s", id)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(msg.Raw, "="))
	if err != nil {
		return nil, errors.Wrapf(err, "message %s has invalid raw encoding", id)
	}
	return raw, nil
}

// SendMessage sends a plain-text message from the mailbox
func (c *GmailClient) SendMessage(ctx context.Context, msg OutgoingMessage) (string, error) {
	raw, err := composeMessage(msg)
	if err != nil {
		return "", err
	}

	body := map[string]string{"raw": base64.RawURLEncoding.EncodeToString(raw)}
	var sent gmailMessage
	if err := c.do(ctx, http.MethodPost, "/users/me/messages/send", body, &sent); err != nil {
		return "", errors.Wrap(err, "failed to send message")
	}
	return sent.ID, nil
}

func (c *GmailClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// do performs one API call, mapping 404 to NotFound and other remote
// failures to ServiceUnavailable.
func (c *GmailClient) do(ctx context.Context, method, path string, in, out any) error {
	err := c.http.DoJSON(ctx, method, c.baseURL+path, nil, in, out)
	if err == nil {
		return nil
	}
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return errors.WithKind(err, errors.KindNotFound)
	}
	return errors.WithKind(err, errors.KindServiceUnavailable)
}
