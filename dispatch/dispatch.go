// Package dispatch serves registered operations over HTTP.
//
// Every request runs the same ordered stages and stops at the first
// failure: lookup, identify (bearer token), capability gate, argument
// validation, execution and response mapping. Failures are classified by
// errors.Kind and returned as a structured JSON payload.
package dispatch

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teranos/opsgate/auth"
	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/logger"
	"github.com/teranos/opsgate/operation"
	"github.com/teranos/opsgate/schema"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes bounds command request bodies
const DefaultMaxBodyBytes = 1 << 20

// Capabilities reports which required capability tags are unavailable
type Capabilities interface {
	Missing(tags []string) []string
}

// Observer receives one event per dispatched request
type Observer interface {
	ObserveDispatch(operation, outcome string, elapsed time.Duration)
}

// Pipeline is the HTTP handler for /{operation}
type Pipeline struct {
	registry     *operation.Registry
	verifier     auth.Verifier
	capabilities Capabilities
	services     operation.Services

	logger       *zap.SugaredLogger
	observer     Observer
	maxBodyBytes int64
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithObserver registers a dispatch observer
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithMaxBodyBytes bounds command bodies
func WithMaxBodyBytes(n int64) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxBodyBytes = n
		}
	}
}

// New creates a pipeline. verifier may be nil, in which case only public
// operations can run.
func New(registry *operation.Registry, verifier auth.Verifier, caps Capabilities, services operation.Services, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:     registry,
		verifier:     verifier,
		capabilities: caps,
		services:     services,
		logger:       zap.NewNop().Sugar(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// failure is a terminal pipeline outcome
type failure struct {
	err     error
	status  int // overrides the kind's status when set
	kind    string
	fields  []schema.FieldError
	missing []string
}

func fail(err error) *failure {
	kind := errors.KindOf(err)
	return &failure{err: err, status: kind.HTTPStatus(), kind: kind.String()}
}

// ServeHTTP runs the pipeline for one request
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)
	ctx := logger.WithComponent(logger.WithRequestID(r.Context(), requestID), "dispatch")
	log := logger.FromContext(ctx, p.logger).With(logger.FieldMethod, r.Method, logger.FieldPath, r.URL.Path)

	id := operationID(r)
	d, ok := p.registry.Get(id)
	if !ok {
		p.finish(w, log, "unknown", id, start, fail(errors.NotFoundf("unknown operation %q", id)))
		return
	}
	if r.Method != d.Kind().Method() {
		w.Header().Set("Allow", d.Kind().Method())
		p.finish(w, log, id, id, start, &failure{
			err:    errors.Newf("%s %s requires %s", d.Kind(), id, d.Kind().Method()),
			status: http.StatusMethodNotAllowed,
			kind:   "method_not_allowed",
		})
		return
	}

	result, f := p.run(ctx, log, r, d)
	if f != nil {
		p.finish(w, log, id, id, start, f)
		return
	}

	if err := writeResult(w, result); err != nil {
		if isEncodingError(err) {
			p.finish(w, log, id, id, start, fail(errors.Wrapf(err, "operation %s returned an unencodable result", id)))
			return
		}
		// Client went away mid-write
		log.Debugw("Response write failed", logger.FieldOperation, id, logger.FieldError, err)
	}
	p.finish(w, log, id, id, start, nil)
}

// run executes the identify, gate, validate and execute stages
func (p *Pipeline) run(ctx context.Context, log *zap.SugaredLogger, r *http.Request, d *operation.Descriptor) (any, *failure) {
	claims, err := p.identify(ctx, log, r, d)
	if err != nil {
		return nil, fail(err)
	}
	identity := claims.Identity()
	if claims != nil {
		ctx = auth.WithClaims(ctx, claims)
	}

	if missing := p.missingCapabilities(d); len(missing) > 0 {
		f := fail(errors.ServiceUnavailablef("operation %s needs unavailable capabilities: %s",
			d.ID(), strings.Join(missing, ", ")))
		f.missing = missing
		return nil, f
	}

	raw, err := p.readArgs(r, d.Kind())
	if err != nil {
		return nil, fail(err)
	}
	validated := schema.Validate(d.Schema(), raw)
	if !validated.Valid {
		f := fail(errors.BadRequestf("invalid arguments for %s", d.ID()))
		f.fields = validated.Errors
		return nil, f
	}

	result, err := p.execute(ctx, log, d, &operation.Request{
		Identity: identity,
		Args:     validated.Data,
		Services: p.services,
	})
	if err != nil {
		return nil, fail(err)
	}
	return result, nil
}

// identify verifies the bearer token. For operations that do not require
// auth a bad token is ignored and the caller treated as anonymous.
func (p *Pipeline) identify(ctx context.Context, log *zap.SugaredLogger, r *http.Request, d *operation.Descriptor) (*auth.Claims, error) {
	token := auth.BearerToken(r)
	if token == "" {
		if d.AuthRequired() {
			return nil, errors.Unauthorizedf("missing bearer token")
		}
		return nil, nil
	}

	if p.verifier == nil {
		if d.AuthRequired() {
			return nil, errors.Unauthorizedf("token verification is not configured")
		}
		return nil, nil
	}

	claims, err := p.verifier.Verify(ctx, token)
	if err != nil || claims == nil {
		if d.AuthRequired() {
			if err == nil {
				err = errors.New("verifier returned no claims")
			}
			return nil, errors.WithKind(errors.Wrap(err, "invalid bearer token"), errors.KindUnauthorized)
		}
		log.Debugw("Ignoring invalid token on public operation", logger.FieldOperation, d.ID(), logger.FieldError, err)
		return nil, nil
	}
	return claims, nil
}

func (p *Pipeline) missingCapabilities(d *operation.Descriptor) []string {
	required := d.Capabilities()
	if len(required) == 0 {
		return nil
	}
	if p.capabilities == nil {
		return required
	}
	return p.capabilities.Missing(required)
}

// execute calls the body, converting a panic into an internal error
func (p *Pipeline) execute(ctx context.Context, log *zap.SugaredLogger, d *operation.Descriptor, req *operation.Request) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorw("Operation panicked",
				logger.FieldOperation, d.ID(),
				"panic", rec,
				"stack", string(debug.Stack()))
			result = nil
			err = errors.Newf("operation %s failed unexpectedly", d.ID())
		}
	}()
	return d.Call(ctx, req)
}

// finish writes the failure (if any), logs and observes the request
func (p *Pipeline) finish(w http.ResponseWriter, log *zap.SugaredLogger, label, id string, start time.Time, f *failure) {
	elapsed := time.Since(start)
	outcome := "ok"

	if f != nil {
		outcome = f.kind
		WriteError(w, f.status, ErrorResponse{
			Error:     f.err.Error(),
			Kind:      f.kind,
			Operation: id,
			Errors:    f.fields,
			Missing:   f.missing,
		})

		fields := []interface{}{
			logger.FieldOperation, id,
			logger.FieldErrorKind, f.kind,
			logger.FieldStatus, f.status,
			logger.FieldDurationMS, elapsed.Milliseconds(),
			logger.FieldError, f.err,
		}
		if f.status >= http.StatusInternalServerError && f.status != http.StatusServiceUnavailable {
			log.Errorw("Operation failed", fields...)
		} else {
			log.Infow("Operation rejected", fields...)
		}
	} else {
		log.Infow("Operation completed",
			logger.FieldOperation, id,
			logger.FieldDurationMS, elapsed.Milliseconds())
	}

	if p.observer != nil {
		p.observer.ObserveDispatch(label, outcome, elapsed)
	}
}

// operationID returns the identifier from the {id} path value, falling back
// to the last path segment.
func operationID(r *http.Request) string {
	if id := r.PathValue("id"); id != "" {
		return id
	}
	return strings.TrimPrefix(r.URL.Path, "/")
}
