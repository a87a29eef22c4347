package dispatch

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/operation"
)

// readArgs collects the raw argument map: the query string for queries, the
// body for commands (JSON or form encoded).
func (p *Pipeline) readArgs(r *http.Request, kind operation.Kind) (map[string]any, error) {
	if kind == operation.Query {
		return flattenValues(r.URL.Query()), nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, p.maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		return decodeJSONBody(r.Body)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(p.maxBodyBytes); err != nil {
			return nil, errors.BadRequestf("invalid multipart form: %v", err)
		}
		return flattenValues(r.PostForm), nil
	default:
		if err := r.ParseForm(); err != nil {
			return nil, errors.BadRequestf("invalid form body: %v", err)
		}
		return flattenValues(r.PostForm), nil
	}
}

func decodeJSONBody(body io.Reader) (map[string]any, error) {
	var args map[string]any
	err := json.NewDecoder(body).Decode(&args)
	if err == io.EOF {
		return map[string]any{}, nil
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return nil, errors.BadRequestf("request body exceeds %d bytes", maxBytes.Limit)
	}
	if err != nil {
		return nil, errors.BadRequestf("request body must be a JSON object: %v", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// flattenValues turns url.Values into an argument map. Repeated keys become
// arrays.
func flattenValues(values url.Values) map[string]any {
	args := make(map[string]any, len(values))
	for k, vs := range values {
		switch len(vs) {
		case 0:
		case 1:
			args[k] = vs[0]
		default:
			items := make([]any, len(vs))
			for i, v := range vs {
				items[i] = v
			}
			args[k] = items
		}
	}
	return args
}
