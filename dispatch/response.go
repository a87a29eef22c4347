package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/operation"
	"github.com/teranos/opsgate/schema"
)

// ErrorResponse is the body of every failed dispatch
type ErrorResponse struct {
	Error     string              `json:"error"`
	Kind      string              `json:"kind"`
	Operation string              `json:"operation,omitempty"`
	Errors    []schema.FieldError `json:"errors,omitempty"`
	Missing   []string            `json:"missing,omitempty"`
}

// ackResponse is returned when an operation body returns nil
var ackResponse = map[string]bool{"ok": true}

// WriteJSON writes a JSON response with the given status code.
// The value is encoded before any header is written so an encoding failure
// can still be reported.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteError writes a classified JSON error response
func WriteError(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// writeResult maps an operation result to a response
func writeResult(w http.ResponseWriter, result any) error {
	switch v := result.(type) {
	case nil:
		return WriteJSON(w, http.StatusOK, ackResponse)
	case operation.Raw:
		return writeRaw(w, v)
	case *operation.Raw:
		if v == nil {
			return WriteJSON(w, http.StatusOK, ackResponse)
		}
		return writeRaw(w, *v)
	case []byte:
		return writeRaw(w, operation.Raw{Body: v})
	case string:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(v))
		return err
	default:
		return WriteJSON(w, http.StatusOK, v)
	}
}

func writeRaw(w http.ResponseWriter, raw operation.Raw) error {
	contentType := raw.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if raw.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", raw.Filename))
	}
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(raw.Body)
	return err
}

// isEncodingError reports a result that could not be serialized
func isEncodingError(err error) bool {
	var unsupported *json.UnsupportedTypeError
	var unsupportedValue *json.UnsupportedValueError
	var marshaler *json.MarshalerError
	return errors.As(err, &unsupported) || errors.As(err, &unsupportedValue) || errors.As(err, &marshaler)
}
