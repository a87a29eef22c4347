// Package server is the opsgate composition root. It builds the
// collaborators described by am.Config, loads the built-in operations into
// a registry and serves them through the dispatch pipeline alongside the
// reserved /_/ system routes.
package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/teranos/opsgate/am"
	"github.com/teranos/opsgate/auth"
	"github.com/teranos/opsgate/capability"
	"github.com/teranos/opsgate/delivery"
	"github.com/teranos/opsgate/dispatch"
	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/internal/httpclient"
	"github.com/teranos/opsgate/mailqueue"
	"github.com/teranos/opsgate/operation"
	"github.com/teranos/opsgate/ops"
	"github.com/teranos/opsgate/streams"
	"github.com/teranos/opsgate/telemetry"
	"github.com/teranos/opsgate/workspace"
	"go.uber.org/zap"
)

// MemoryStreamsURL selects the in-process stream store
const MemoryStreamsURL = "memory://"

// Server serves registered operations over HTTP
type Server struct {
	cfg    atomic.Pointer[am.Config]
	logger *zap.SugaredLogger

	registry     *operation.Registry
	tokens       *auth.JWTManager
	capabilities *capability.Set
	queue        *mailqueue.Queue
	profiles     []delivery.Profile
	store        streams.Store
	workspace    workspace.Client
	metrics      *telemetry.Metrics
	pipeline     *dispatch.Pipeline

	configWatcher *am.ConfigWatcher

	mu         sync.Mutex
	httpServer *http.Server
	closers    []func() error
	state      atomic.Int32
}

// Option customizes collaborator construction, mostly for tests
type Option func(*options)

type options struct {
	logger     *zap.SugaredLogger
	store      streams.Store
	workspace  workspace.Client
	httpClient *httpclient.Client
}

// WithLogger sets the server logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithStreamStore uses store instead of connecting to streams.redis_url
func WithStreamStore(store streams.Store) Option {
	return func(o *options) { o.store = store }
}

// WithWorkspace uses ws instead of building a Gmail client
func WithWorkspace(ws workspace.Client) Option {
	return func(o *options) { o.workspace = ws }
}

// WithHTTPClient sets the client used by HTTP delivery profiles
func WithHTTPClient(c *httpclient.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New builds a server from cfg. Collaborators that cannot be reached are
// logged and their capability left off; misconfiguration is an error.
func New(ctx context.Context, cfg *am.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop().Sugar()
	}

	s := &Server{
		logger:       o.logger,
		capabilities: capability.NewSet(),
		metrics:      telemetry.New(),
	}
	s.cfg.Store(cfg)

	tokens, err := auth.NewJWTManager(&cfg.Auth)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create token manager")
	}
	if tokens.GeneratedSecret() {
		s.logger.Warnw("No auth.jwt_secret configured, using a generated secret",
			"hint", "tokens will not survive a restart; set OPSGATE_JWT_SECRET")
	}
	s.tokens = tokens

	if err := s.setupWorkspace(cfg, o); err != nil {
		return nil, err
	}
	s.setupStreams(ctx, cfg, o)
	if err := s.setupMail(cfg, o); err != nil {
		return nil, err
	}

	services := operation.NewServices(s.queue, s.store, s.workspace, s.logger.Named("ops"))

	registry, err := operation.NewRegistry()
	if err != nil {
		return nil, err
	}
	s.registry = registry
	if err := s.loadOperations(cfg); err != nil {
		return nil, err
	}

	s.pipeline = dispatch.New(s.registry, s.tokens, s.capabilities, services,
		dispatch.WithLogger(s.logger.Named("dispatch")),
		dispatch.WithObserver(s.metrics))

	s.state.Store(int32(ServerStateRunning))
	s.logger.Infow("Server initialized",
		"operations", s.registry.Len(),
		"capabilities", strings.Join(s.capabilities.List(), ","))
	return s, nil
}

func (s *Server) setupWorkspace(cfg *am.Config, o *options) error {
	switch {
	case o.workspace != nil:
		s.workspace = o.workspace
	case cfg.Workspace.Enabled():
		client, err := workspace.NewGmailClient(cfg.Workspace, s.logger.Named("workspace"))
		if err != nil {
			return errors.Wrap(err, "failed to create workspace client")
		}
		s.workspace = client
	default:
		s.logger.Infow("Workspace not configured, mailbox operations disabled")
		return nil
	}
	s.capabilities.Add(capability.Workspace)
	return nil
}

func (s *Server) setupStreams(ctx context.Context, cfg *am.Config, o *options) {
	url := cfg.Streams.RedisURL
	switch {
	case o.store != nil:
		s.store = o.store
	case url == MemoryStreamsURL:
		s.logger.Infow("Using in-memory stream store, records are lost on restart")
		s.store = streams.NewMemoryStore()
	case url != "":
		store, err := streams.Connect(ctx, url, cfg.GetStreamsNamespace())
		if err != nil {
			s.logger.Warnw("Stream store unavailable, stream operations disabled", "error", err)
			return
		}
		s.store = store
		s.closers = append(s.closers, store.Close)
	default:
		return
	}
	s.capabilities.Add(capability.StreamStore)
}

func (s *Server) setupMail(cfg *am.Config, o *options) error {
	client := o.httpClient
	if client == nil {
		client = httpclient.New(httpclient.Options{})
	}

	profiles, err := delivery.Build(cfg, s.workspace, client, s.logger.Named("delivery"))
	if err != nil {
		return errors.Wrap(err, "failed to build delivery profiles")
	}
	s.profiles = profiles

	s.queue = mailqueue.New(delivery.QueueProfiles(profiles),
		mailqueue.WithInterval(cfg.GetMailInterval()),
		mailqueue.WithLogger(s.logger.Named("mailqueue")),
		mailqueue.WithObserver(s.metrics))

	if len(profiles) > 0 {
		s.capabilities.Add(capability.EmailDelivery)
	} else {
		s.logger.Infow("No mail profiles configured, email delivery disabled")
	}
	return nil
}

// loadOperations swaps the registry contents for the enabled built-ins
func (s *Server) loadOperations(cfg *am.Config) error {
	descs, err := ops.Builtins()
	if err != nil {
		return err
	}
	enabled := ops.Filter(descs, cfg.IsOperationDisabled)
	if err := s.registry.Load(enabled); err != nil {
		return errors.Wrap(err, "failed to load operations")
	}
	if skipped := len(descs) - len(enabled); skipped > 0 {
		s.logger.Infow("Operations disabled by config", "count", skipped)
	}
	return nil
}

// Reload applies a new configuration: profile domains, disabled
// operations, CORS origins and the client base URL. Collaborator
// credentials require a restart.
// Nothing is applied unless the whole config is accepted.
func (s *Server) Reload(cfg *am.Config) error {
	if cfg == nil {
		err := errors.New("config is required")
		s.metrics.ObserveReload(err)
		return err
	}
	if err := cfg.Validate(); err != nil {
		err = errors.Wrap(err, "invalid configuration")
		s.metrics.ObserveReload(err)
		return err
	}
	if err := s.loadOperations(cfg); err != nil {
		s.metrics.ObserveReload(err)
		return err
	}
	delivery.Refresh(s.profiles, cfg)
	s.cfg.Store(cfg)
	s.metrics.ObserveReload(nil)
	s.logger.Infow("Configuration applied", "operations", s.registry.Len())
	return nil
}

// Config returns the active configuration
func (s *Server) Config() *am.Config {
	return s.cfg.Load()
}

// Registry returns the operation registry
func (s *Server) Registry() *operation.Registry {
	return s.registry
}

// Capabilities returns the live capability set
func (s *Server) Capabilities() *capability.Set {
	return s.capabilities
}

// Queue returns the email queue
func (s *Server) Queue() *mailqueue.Queue {
	return s.queue
}

// Tokens returns the token manager
func (s *Server) Tokens() *auth.JWTManager {
	return s.tokens
}
