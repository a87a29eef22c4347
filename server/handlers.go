package server

import (
	"net/http"

	"github.com/teranos/opsgate/auth"
	"github.com/teranos/opsgate/codegen"
	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/operation"
	"github.com/teranos/opsgate/version"
)

// handleNotFound answers paths that cannot name an operation
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, errors.NotFoundf("no operation at %s", r.URL.Path))
}

// HandleHealth reports liveness, build and capability state
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:       stateString(s.getState()),
		Version:      info.Version,
		Commit:       info.Short(),
		Capabilities: s.capabilities.List(),
		Operations:   s.registry.Len(),
		QueueLength:  s.queue.Len(),
		Sending:      s.queue.Sending(),
	})
}

// HandleOperations lists the registry
func (s *Server) HandleOperations(w http.ResponseWriter, r *http.Request) {
	descs := s.registry.List()
	infos := make([]operation.Info, len(descs))
	for i, d := range descs {
		infos[i] = d.Info()
	}
	s.writeJSON(w, http.StatusOK, OperationsResponse{Operations: infos, Count: len(infos)})
}

// HandleClient serves the generated JavaScript client with the caller's
// own token baked in.
func (s *Server) HandleClient(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r)
	if token == "" {
		writeError(w, errors.Unauthorizedf("missing bearer token"))
		return
	}
	if _, err := s.tokens.Verify(r.Context(), token); err != nil {
		writeError(w, errors.WithKind(errors.Wrap(err, "invalid bearer token"), errors.KindUnauthorized))
		return
	}

	src, err := codegen.Generate(s.registry.List(), codegen.Options{
		BaseURL: s.Config().GetBaseURL(),
		Token:   token,
	})
	if err != nil {
		s.logger.Errorw("Client generation failed", "error", err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(src)
}
