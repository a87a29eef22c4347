// Package mailqueue holds outbound email in memory until an operator sends it.
//
// Each message is routed by its sender domain to the first delivery profile
// whose current domain set contains it. Sending is single-flight: a second
// Send while one is running fails with AlreadyInProgress. Provider calls are
// strictly sequential and spaced by a minimum interval.
package mailqueue

import (
	"context"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum delay between provider calls
const DefaultInterval = 100 * time.Millisecond

// Message is an email to enqueue
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// Email is a queued message. Emails are never updated in place.
type Email struct {
	ID       string    `json:"id"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Content  string    `json:"content"`
	QueuedAt time.Time `json:"queued_at"`
}

// Profile is a delivery route for outbound email.
// Domains is called on every routing decision so profiles may change their
// domain set at runtime.
type Profile interface {
	Name() string
	Domains() []string
	Send(ctx context.Context, email Email) error
}

// Observer receives queue events, typically for metrics
type Observer interface {
	Sent(profile string)
	Failed(profile string)
	Length(n int)
}

// Failure describes one message that was not delivered by a Send
type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// SendResult summarizes a Send
type SendResult struct {
	Sent     int       `json:"sent"`
	Errors   int       `json:"errors"`
	Message  string    `json:"message"`
	Failures []Failure `json:"failures,omitempty"`
}

// Queue is an in-memory FIFO of pending email
type Queue struct {
	mu       sync.Mutex
	emails   []Email
	profiles []Profile

	sending  atomic.Bool
	limiter  *rate.Limiter
	interval time.Duration

	now      func() time.Time
	newID    func() string
	logger   *zap.SugaredLogger
	observer Observer
}

// Option configures a Queue
type Option func(*Queue)

// WithInterval sets the minimum delay between provider calls
func WithInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.interval = d
		}
	}
}

// WithClock sets the time source used for QueuedAt
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithIDGenerator sets the generator for email ids
func WithIDGenerator(gen func() string) Option {
	return func(q *Queue) { q.newID = gen }
}

// WithLogger sets the logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithObserver registers an event observer
func WithObserver(o Observer) Option {
	return func(q *Queue) { q.observer = o }
}

// New creates a queue routing to profiles, tried in order
func New(profiles []Profile, opts ...Option) *Queue {
	q := &Queue{
		profiles: slices.Clone(profiles),
		interval: DefaultInterval,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.limiter = rate.NewLimiter(rate.Every(q.interval), 1)
	return q
}

// Profiles returns the names of the configured delivery profiles
func (q *Queue) Profiles() []string {
	names := make([]string, len(q.profiles))
	for i, p := range q.profiles {
		names[i] = p.Name()
	}
	return names
}

// SenderDomain returns the lowercased domain of a sender address
func SenderDomain(from string) (string, error) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return "", errors.BadRequestf("invalid sender address %q: %v", from, err)
	}
	at := strings.LastIndex(addr.Address, "@")
	if at < 0 || at == len(addr.Address)-1 {
		return "", errors.BadRequestf("sender address %q has no domain", from)
	}
	return strings.ToLower(addr.Address[at+1:]), nil
}

// route returns the first profile currently accepting domain
func (q *Queue) route(domain string) Profile {
	for _, p := range q.profiles {
		for _, d := range p.Domains() {
			if strings.EqualFold(strings.TrimSpace(d), domain) {
				return p
			}
		}
	}
	return nil
}

// Add validates and enqueues msg. It fails without touching the queue when
// no profile accepts the sender domain.
func (q *Queue) Add(msg Message) (Email, error) {
	domain, err := SenderDomain(msg.From)
	if err != nil {
		return Email{}, err
	}
	if _, err := mail.ParseAddressList(msg.To); err != nil {
		return Email{}, errors.BadRequestf("invalid recipient %q: %v", msg.To, err)
	}
	if q.route(domain) == nil {
		return Email{}, errors.WithHint(
			errors.BadRequestf("no delivery profile accepts sender domain %s", domain),
			"check mail.profiles domains in am.toml")
	}

	email := Email{
		ID:       q.newID(),
		From:     msg.From,
		To:       msg.To,
		Subject:  msg.Subject,
		Content:  msg.Content,
		QueuedAt: q.now(),
	}

	q.mu.Lock()
	q.emails = append(q.emails, email)
	n := len(q.emails)
	q.mu.Unlock()

	q.logger.Infow("Email queued",
		logger.FieldEmailID, email.ID,
		logger.FieldDomain, domain,
		logger.FieldCount, n)
	q.reportLength(n)
	return email, nil
}

// Send delivers the queued emails with the given ids, or all of them when
// ids is nil. Emails queued after Send starts are not part of the batch.
// Delivered emails are removed; failed ones stay queued and are listed in
// the result. Cancelling ctx does not stop a running send.
func (q *Queue) Send(ctx context.Context, ids []string) (SendResult, error) {
	if !q.sending.CompareAndSwap(false, true) {
		return SendResult{}, errors.AlreadyInProgressf("an email send is already in progress")
	}
	defer q.sending.Store(false)

	ctx = context.WithoutCancel(ctx)
	batch := q.snapshot(ids)
	log := logger.FromContext(ctx, q.logger)
	log.Infow("Email send started", logger.FieldBatchSize, len(batch))

	var result SendResult
	fail := func(email Email, profile string, err error) {
		result.Errors++
		result.Failures = append(result.Failures, Failure{ID: email.ID, Error: err.Error()})
		log.Errorw("Email send failed",
			logger.FieldEmailID, email.ID,
			logger.FieldProfile, profile,
			logger.FieldError, err)
		if q.observer != nil {
			q.observer.Failed(profile)
		}
	}

	for _, email := range batch {
		domain, err := SenderDomain(email.From)
		if err != nil {
			fail(email, "", err)
			continue
		}
		profile := q.route(domain)
		if profile == nil {
			fail(email, "", errors.Newf("no delivery profile accepts sender domain %s", domain))
			continue
		}

		if err := q.limiter.Wait(ctx); err != nil {
			fail(email, profile.Name(), errors.Wrap(err, "rate limiter"))
			continue
		}
		if err := deliver(ctx, profile, email); err != nil {
			fail(email, profile.Name(), err)
			continue
		}

		result.Sent++
		q.remove(email.ID)
		log.Infow("Email sent",
			logger.FieldEmailID, email.ID,
			logger.FieldProfile, profile.Name())
		if q.observer != nil {
			q.observer.Sent(profile.Name())
		}
	}

	result.Message = fmt.Sprintf("Sent %d of %d emails", result.Sent, len(batch))
	if result.Errors > 0 {
		result.Message += fmt.Sprintf(", %d failed and remain queued", result.Errors)
	}
	log.Infow("Email send finished",
		logger.FieldCount, result.Sent,
		"errors", result.Errors)
	return result, nil
}

// deliver calls the profile, turning a panic into an error
func deliver(ctx context.Context, p Profile, email Email) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("profile %s panicked: %v", p.Name(), r)
		}
	}()
	if err := p.Send(ctx, email); err != nil {
		return errors.Wrapf(err, "profile %s", p.Name())
	}
	return nil
}

// snapshot copies the target set out of the live queue in FIFO order
func (q *Queue) snapshot(ids []string) []Email {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ids == nil {
		return slices.Clone(q.emails)
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var batch []Email
	for _, e := range q.emails {
		if want[e.ID] {
			batch = append(batch, e)
		}
	}
	return batch
}

// remove deletes one email by id; a no-op when it is already gone
func (q *Queue) remove(id string) {
	q.mu.Lock()
	i := slices.IndexFunc(q.emails, func(e Email) bool { return e.ID == id })
	if i >= 0 {
		q.emails = slices.Delete(q.emails, i, i+1)
	}
	n := len(q.emails)
	q.mu.Unlock()
	q.reportLength(n)
}

// RemoveByIDs deletes the given emails and returns how many were removed
func (q *Queue) RemoveByIDs(ids []string) int {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	q.mu.Lock()
	before := len(q.emails)
	q.emails = slices.DeleteFunc(q.emails, func(e Email) bool { return want[e.ID] })
	n := len(q.emails)
	q.mu.Unlock()

	q.reportLength(n)
	return before - n
}

// Clear empties the queue
func (q *Queue) Clear() {
	q.mu.Lock()
	q.emails = nil
	q.mu.Unlock()
	q.reportLength(0)
}

// All returns a copy of the queued emails in FIFO order
func (q *Queue) All() []Email {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Email, len(q.emails))
	copy(out, q.emails)
	return out
}

// Len returns the number of queued emails
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.emails)
}

// Sending reports whether a Send is running
func (q *Queue) Sending() bool {
	return q.sending.Load()
}

func (q *Queue) reportLength(n int) {
	if q.observer != nil {
		q.observer.Length(n)
	}
}
