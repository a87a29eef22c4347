package server

import (
	"net/http"

	"github.com/teranos/opsgate/dispatch"
	"github.com/teranos/opsgate/errors"
)

// writeJSON writes a JSON response, logging encoding failures
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	if err := dispatch.WriteJSON(w, status, data); err != nil {
		s.logger.Errorw("Failed to write JSON response", "error", err)
	}
}

// writeError writes the classified error payload used by every route
func writeError(w http.ResponseWriter, err error) {
	kind := errors.KindOf(err)
	dispatch.WriteError(w, kind.HTTPStatus(), dispatch.ErrorResponse{
		Error: err.Error(),
		Kind:  kind.String(),
	})
}
