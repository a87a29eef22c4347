package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/opsgate/auth"
	"github.com/teranos/opsgate/capability"
	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/operation"
	"github.com/teranos/opsgate/schema"
	"go.uber.org/zap/zaptest"
)

type staticVerifier map[string]*auth.Claims

func (v staticVerifier) Verify(_ context.Context, token string) (*auth.Claims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, errors.Unauthorizedf("unknown token")
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) ObserveDispatch(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, op+":"+outcome)
}

func mustOp(t *testing.T, id string, kind operation.Kind, template string, body operation.Body, opts ...operation.Option) *operation.Descriptor {
	t.Helper()
	d, err := operation.New(id, kind, template, body, opts...)
	require.NoError(t, err)
	return d
}

func echo(_ context.Context, req *operation.Request) (any, error) {
	return map[string]any{"identity": req.Identity, "args": req.Args}, nil
}

type fixture struct {
	pipeline *Pipeline
	caps     *capability.Set
	observer *recordingObserver
}

func newFixture(t *testing.T, descs ...*operation.Descriptor) *fixture {
	t.Helper()
	reg, err := operation.NewRegistry(descs...)
	require.NoError(t, err)

	caps := capability.NewSet()
	obs := &recordingObserver{}
	verifier := staticVerifier{"good": {UserID: "u1", Email: "ada@example.com"}}

	return &fixture{
		pipeline: New(reg, verifier, caps, nil, WithLogger(zaptest.NewLogger(t).Sugar()), WithObserver(obs)),
		caps:     caps,
		observer: obs,
	}
}

func (f *fixture) do(method, target, token string, body string, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.pipeline.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestUnknownOperation(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/nope", "good", "", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "not_found", resp.Kind)
	assert.Equal(t, "nope", resp.Operation)
	assert.Contains(t, resp.Error, "nope")
	assert.Equal(t, []string{"unknown:not_found"}, f.observer.events)
}

func TestWrongMethod(t *testing.T) {
	f := newFixture(t,
		mustOp(t, "q", operation.Query, "query", echo),
		mustOp(t, "c", operation.Command, "command", echo),
	)

	w := f.do(http.MethodPost, "/q", "good", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodGet, w.Header().Get("Allow"))
	assert.Equal(t, "method_not_allowed", decodeError(t, w).Kind)

	w = f.do(http.MethodGet, "/c", "good", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
}

func TestAuthentication(t *testing.T) {
	f := newFixture(t,
		mustOp(t, "private", operation.Query, "private", echo),
		mustOp(t, "public", operation.Query, "public", echo, operation.Public()),
	)

	t.Run("missing token", func(t *testing.T) {
		w := f.do(http.MethodGet, "/private", "", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "unauthorized", decodeError(t, w).Kind)
	})

	t.Run("invalid token", func(t *testing.T) {
		w := f.do(http.MethodGet, "/private", "forged", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, decodeError(t, w).Error, "invalid bearer token")
	})

	t.Run("valid token", func(t *testing.T) {
		w := f.do(http.MethodGet, "/private", "good", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"identity":"ada@example.com"`)
	})

	t.Run("public operation ignores bad token", func(t *testing.T) {
		w := f.do(http.MethodGet, "/public", "forged", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"identity":""`)
	})

	t.Run("public operation still identifies", func(t *testing.T) {
		w := f.do(http.MethodGet, "/public", "good", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"identity":"ada@example.com"`)
	})
}

func TestNoVerifierOnlyAllowsPublic(t *testing.T) {
	reg, err := operation.NewRegistry(
		mustOp(t, "private", operation.Query, "private", echo),
		mustOp(t, "public", operation.Query, "public", echo, operation.Public()),
	)
	require.NoError(t, err)
	p := New(reg, nil, capability.NewSet(), nil)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/public", nil)
	w = httptest.NewRecorder()
	p.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCapabilityGate(t *testing.T) {
	called := false
	f := newFixture(t, mustOp(t, "mail", operation.Command, "send mail",
		func(context.Context, *operation.Request) (any, error) {
			called = true
			return nil, nil
		},
		operation.Requires(capability.EmailDelivery, capability.Workspace),
	))

	f.caps.Add(capability.Workspace)
	w := f.do(http.MethodPost, "/mail", "good", "{}", "application/json")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "service_unavailable", resp.Kind)
	assert.Equal(t, []string{capability.EmailDelivery}, resp.Missing)
	assert.False(t, called)

	f.caps.Add(capability.EmailDelivery)
	w = f.do(http.MethodPost, "/mail", "good", "{}", "application/json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

func TestCapabilityCheckedBeforeValidation(t *testing.T) {
	f := newFixture(t, mustOp(t, "mail", operation.Command, "send mail to [to]", echo,
		operation.Requires(capability.EmailDelivery),
		operation.WithSchema(schema.Schema{{Name: "to", Type: schema.String, Required: true}}),
	))

	w := f.do(http.MethodPost, "/mail", "good", "{}", "application/json")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestValidationFailure(t *testing.T) {
	called := false
	f := newFixture(t, mustOp(t, "add", operation.Command, "add [a] and [b]",
		func(context.Context, *operation.Request) (any, error) {
			called = true
			return nil, nil
		},
		operation.WithSchema(schema.Schema{
			{Name: "a", Type: schema.Number, Required: true},
			{Name: "b", Type: schema.Number, Required: true},
		}),
	))

	w := f.do(http.MethodPost, "/add", "good", `{"a":"x"}`, "application/json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "bad_request", resp.Kind)
	require.Len(t, resp.Errors, 2)
	assert.Equal(t, schema.InvalidType, resp.Errors[0].Code)
	assert.Equal(t, "a", resp.Errors[0].Field)
	assert.Equal(t, schema.MissingRequired, resp.Errors[1].Code)
	assert.False(t, called)
}

func TestCommandBodies(t *testing.T) {
	s := schema.Schema{
		{Name: "to", Type: schema.String, Required: true},
		{Name: "count", Type: schema.Number, Default: float64(1)},
	}
	f := newFixture(t, mustOp(t, "queue", operation.Command, "queue [to]", echo, operation.WithSchema(s)))

	cases := []struct {
		name        string
		body        string
		contentType string
	}{
		{"json", `{"to":"a@example.com","count":"3"}`, "application/json"},
		{"form", url.Values{"to": {"a@example.com"}, "count": {"3"}}.Encode(), "application/x-www-form-urlencoded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/queue", "good", tc.body, tc.contentType)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var got struct {
				Args map[string]any `json:"args"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, "a@example.com", got.Args["to"])
			assert.Equal(t, float64(3), got.Args["count"])
		})
	}
}

func TestMalformedJSONBody(t *testing.T) {
	f := newFixture(t, mustOp(t, "c", operation.Command, "command", echo))

	w := f.do(http.MethodPost, "/c", "good", `[1,2]`, "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/c", "good", `{"a":`, "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBodyTooLarge(t *testing.T) {
	reg, err := operation.NewRegistry(mustOp(t, "c", operation.Command, "command", echo))
	require.NoError(t, err)
	p := New(reg, staticVerifier{"good": {UserID: "u1"}}, capability.NewSet(), nil, WithMaxBodyBytes(16))

	req := httptest.NewRequest(http.MethodPost, "/c", strings.NewReader(`{"text":"`+strings.Repeat("x", 64)+`"}`))
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryArguments(t *testing.T) {
	f := newFixture(t, mustOp(t, "read", operation.Query, "read [limit] records from stream [streamName]", echo,
		operation.WithSchema(schema.Schema{
			{Name: "limit", Type: schema.Number, Default: "10"},
			{Name: "streamName", Type: schema.String, Default: "demo"},
		}),
	))

	w := f.do(http.MethodGet, "/read?limit=5", "good", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Args map[string]any `json:"args"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, float64(5), got.Args["limit"])
	assert.Equal(t, "demo", got.Args["streamName"])
}

func TestQueryIsIdempotent(t *testing.T) {
	f := newFixture(t, mustOp(t, "who", operation.Query, "who am I", echo))

	first := f.do(http.MethodGet, "/who?x=1", "good", "", "")
	second := f.do(http.MethodGet, "/who?x=1", "good", "", "")

	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, first.Header().Get("Content-Type"), second.Header().Get("Content-Type"))
}

func TestBodyErrorKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{errors.NotFoundf("no such message"), http.StatusNotFound, "not_found"},
		{errors.BadRequestf("bad recipient"), http.StatusBadRequest, "bad_request"},
		{errors.AlreadyInProgressf("send already running"), http.StatusConflict, "already_in_progress"},
		{errors.ServiceUnavailablef("redis down"), http.StatusServiceUnavailable, "service_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			err := tc.err
			f := newFixture(t, mustOp(t, "op", operation.Command, "op",
				func(context.Context, *operation.Request) (any, error) { return nil, err }))

			w := f.do(http.MethodPost, "/op", "good", "", "")

			assert.Equal(t, tc.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tc.kind, resp.Kind)
			assert.Equal(t, "op", resp.Operation)
			assert.Equal(t, err.Error(), resp.Error)
			assert.Equal(t, []string{"op:" + tc.kind}, f.observer.events)
		})
	}
}

func TestPanicBecomesInternalError(t *testing.T) {
	f := newFixture(t, mustOp(t, "bad", operation.Command, "bad",
		func(context.Context, *operation.Request) (any, error) { panic("kaboom") }))

	w := f.do(http.MethodPost, "/bad", "good", "", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "internal_error", resp.Kind)
	assert.NotContains(t, resp.Error, "kaboom")
}

func TestResponseMapping(t *testing.T) {
	results := map[string]any{
		"raw":     operation.Raw{ContentType: "message/rfc822", Filename: "m.eml", Body: []byte("Subject: hi\r\n\r\nbody")},
		"bytes":   []byte{0x01, 0x02},
		"text":    "plain answer",
		"nothing": nil,
		"json":    map[string]int{"count": 2},
	}

	var descs []*operation.Descriptor
	for id, result := range results {
		result := result
		descs = append(descs, mustOp(t, id, operation.Query, id,
			func(context.Context, *operation.Request) (any, error) { return result, nil }))
	}
	f := newFixture(t, descs...)

	w := f.do(http.MethodGet, "/raw", "good", "", "")
	assert.Equal(t, "message/rfc822", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="m.eml"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Subject: hi\r\n\r\nbody", w.Body.String())

	w = f.do(http.MethodGet, "/bytes", "good", "", "")
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0x01, 0x02}, w.Body.Bytes())

	w = f.do(http.MethodGet, "/text", "good", "", "")
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "plain answer", w.Body.String())

	w = f.do(http.MethodGet, "/nothing", "good", "", "")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = f.do(http.MethodGet, "/json", "good", "", "")
	assert.JSONEq(t, `{"count":2}`, w.Body.String())
}

func TestUnencodableResult(t *testing.T) {
	f := newFixture(t, mustOp(t, "chan", operation.Query, "chan",
		func(context.Context, *operation.Request) (any, error) { return make(chan int), nil }))

	w := f.do(http.MethodGet, "/chan", "good", "", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal_error", decodeError(t, w).Kind)
}

func TestRequestIDPropagation(t *testing.T) {
	f := newFixture(t, mustOp(t, "who", operation.Query, "who", echo))

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	f.pipeline.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	w = f.do(http.MethodGet, "/who", "good", "", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRoutedThroughServeMux(t *testing.T) {
	f := newFixture(t, mustOp(t, "email.list", operation.Query, "list queued emails", echo))
	mux := http.NewServeMux()
	mux.Handle("/{id}", f.pipeline)

	req := httptest.NewRequest(http.MethodGet, "/email.list", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
