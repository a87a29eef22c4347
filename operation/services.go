package operation

import (
	"github.com/teranos/opsgate/mailqueue"
	"github.com/teranos/opsgate/streams"
	"github.com/teranos/opsgate/workspace"
	"go.uber.org/zap"
)

// Services gives operation bodies access to runtime collaborators.
// Collaborators whose capability did not come up are nil; the dispatch
// pipeline never runs a body whose capabilities are missing.
type Services interface {
	// Queue returns the outbound email queue
	Queue() *mailqueue.Queue

	// Streams returns the durable stream store
	Streams() streams.Store

	// Workspace returns the mailbox/workspace client
	Workspace() workspace.Client

	// Logger returns a logger for this domain
	Logger(domain string) *zap.SugaredLogger
}

// DefaultServices is the standard implementation of Services
type DefaultServices struct {
	queue     *mailqueue.Queue
	streams   streams.Store
	workspace workspace.Client
	logger    *zap.SugaredLogger
}

// NewServices creates a new service handle
func NewServices(queue *mailqueue.Queue, store streams.Store, ws workspace.Client, logger *zap.SugaredLogger) *DefaultServices {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &DefaultServices{
		queue:     queue,
		streams:   store,
		workspace: ws,
		logger:    logger,
	}
}

// Queue returns the outbound email queue
func (s *DefaultServices) Queue() *mailqueue.Queue {
	return s.queue
}

// Streams returns the durable stream store
func (s *DefaultServices) Streams() streams.Store {
	return s.streams
}

// Workspace returns the mailbox/workspace client
func (s *DefaultServices) Workspace() workspace.Client {
	return s.workspace
}

// Logger returns a logger for the specified domain
func (s *DefaultServices) Logger(domain string) *zap.SugaredLogger {
	return s.logger.Named(domain)
}
