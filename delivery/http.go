package delivery

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/teranos/opsgate/am"
	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/internal/httpclient"
	"github.com/teranos/opsgate/logger"
	"github.com/teranos/opsgate/mailqueue"
	"go.uber.org/zap"
)

// Breaker defaults
const (
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
)

// HTTPProfile delivers through a transactional email API: one JSON POST per
// message, authorized with a bearer API key. Calls run behind a circuit
// breaker so a failing provider is not hammered for the rest of a batch.
type HTTPProfile struct {
	domainSet
	name     string
	endpoint string
	apiKey   string
	client   *httpclient.Client
	breaker  *gobreaker.CircuitBreaker[struct{}]
	logger   *zap.SugaredLogger
}

var _ Profile = (*HTTPProfile)(nil)

// NewHTTPProfile creates a profile from its config entry
func NewHTTPProfile(cfg am.MailProfileConfig, client *httpclient.Client, log *zap.SugaredLogger) *HTTPProfile {
	if client == nil {
		client = httpclient.New(httpclient.Options{})
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	p := &HTTPProfile{
		name:     cfg.Name,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   client,
		logger:   log.Named("delivery"),
	}
	p.SetDomains(cfg.Domains)

	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		// Rejections of a single message (4xx) say nothing about provider health
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var statusErr *httpclient.StatusError
			return errors.As(err, &statusErr) && !statusErr.Retryable()
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warnw("Circuit breaker state changed",
				logger.FieldProfile, name,
				"from", from.String(),
				"to", to.String())
		},
	})
	return p
}

// Name returns the profile name
func (p *HTTPProfile) Name() string { return p.name }

// State returns the circuit breaker state
func (p *HTTPProfile) State() gobreaker.State { return p.breaker.State() }

type sendRequest struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Send posts one message to the provider
func (p *HTTPProfile) Send(ctx context.Context, email mailqueue.Email) error {
	header := http.Header{}
	if p.apiKey != "" {
		header.Set("Authorization", "Bearer "+p.apiKey)
	}
	// Providers deduplicate retries of the same queued email
	header.Set("Idempotency-Key", email.ID)

	body := sendRequest{
		ID:      email.ID,
		From:    email.From,
		To:      email.To,
		Subject: email.Subject,
		Text:    email.Content,
	}

	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.client.DoJSON(ctx, http.MethodPost, p.endpoint, header, body, nil)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.WithKind(errors.Wrapf(err, "provider %s unavailable", p.name), errors.KindServiceUnavailable)
	}
	if err != nil {
		return errors.Wrapf(err, "provider %s rejected email %s", p.name, email.ID)
	}
	return nil
}
