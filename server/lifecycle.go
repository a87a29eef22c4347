package server

import (
	"context"
	"net"
	"net/http"

	"github.com/teranos/opsgate/am"
	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/logger"
)

// getState returns the current server state
func (s *Server) getState() ServerState {
	return ServerState(s.state.Load())
}

// setState atomically updates the server state
func (s *Server) setState(newState ServerState) {
	s.state.Store(int32(newState))
	s.logger.Infow("Server state changed", "new_state", stateString(newState))
}

// stateString returns human-readable state name
func stateString(state ServerState) string {
	switch state {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// WatchConfig reloads the server when the active config file changes.
// Without a config file there is nothing to watch.
func (s *Server) WatchConfig() {
	configPath := am.ActiveConfigFile()
	if configPath == "" {
		s.logger.Infow("No config file found, using defaults (config watching disabled)")
		return
	}

	watcher, err := am.NewConfigWatcher(configPath, s.logger.Named("config"))
	if err != nil {
		s.logger.Warnw("Failed to create config watcher, manual restart required for config changes", "error", err)
		return
	}
	watcher.OnReload(s.Reload)
	watcher.OnError(s.metrics.ObserveReload)
	watcher.Start()

	s.mu.Lock()
	s.configWatcher = watcher
	s.mu.Unlock()
	s.logger.Infow("Config watcher started", "path", configPath)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Infow("HTTP server listening",
		logger.FieldAddress, ln.Addr().String(),
		"base_url", s.Config().GetBaseURL())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	}
}

// Stop drains in-flight requests and releases collaborators
func (s *Server) Stop(ctx context.Context) error {
	if s.getState() == ServerStateStopped {
		return nil
	}
	s.logger.Infow("Initiating server shutdown")
	s.setState(ServerStateDraining)

	s.mu.Lock()
	srv := s.httpServer
	watcher := s.configWatcher
	s.configWatcher = nil
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var shutdownErr error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Warnw("HTTP shutdown did not complete", "error", err)
			shutdownErr = errors.Wrap(err, "http shutdown")
		}
	}

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			s.logger.Warnw("Failed to stop config watcher", "error", err)
		} else {
			s.logger.Infow("Config watcher stopped")
		}
	}

	for _, c := range closers {
		if err := c(); err != nil {
			s.logger.Warnw("Failed to close collaborator", "error", err)
		}
	}

	if n := s.queue.Len(); n > 0 {
		s.logger.Warnw("Shutting down with unsent email, queued messages are lost", "count", n)
	}

	s.setState(ServerStateStopped)
	s.logger.Infow("Server shutdown complete")
	return shutdownErr
}
