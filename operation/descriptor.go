// Package operation defines the declarative operations opsgate exposes and
// the registry that indexes them.
//
// A Descriptor is built once with New and never mutated. The HTTP route,
// the generated client method and the listing output are all derived from
// it.
package operation

import (
	"context"
	"regexp"
	"strings"

	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/schema"
)

// Kind distinguishes state-changing commands from read-only queries
type Kind string

const (
	// Command reads its arguments from the request body (POST)
	Command Kind = "command"
	// Query reads its arguments from the query string (GET)
	Query Kind = "query"
)

// Method returns the HTTP method the kind is served on
func (k Kind) Method() string {
	if k == Command {
		return "POST"
	}
	return "GET"
}

// Body is the implementation of an operation.
// The returned value becomes the response: Raw or []byte pass through,
// a string is sent as text, nil is an acknowledgement and anything else
// is encoded as JSON.
type Body func(ctx context.Context, req *Request) (any, error)

// Descriptor is an immutable operation description
type Descriptor struct {
	id           string
	kind         Kind
	template     string
	description  string
	schema       schema.Schema
	authRequired bool
	capabilities []string
	body         Body
}

// Option configures a Descriptor at construction
type Option func(*Descriptor)

// WithSchema declares the argument schema explicitly instead of deriving it
// from the template placeholders.
func WithSchema(s schema.Schema) Option {
	return func(d *Descriptor) {
		d.schema = s.Clone()
	}
}

// Public lets the operation run without a bearer token
func Public() Option {
	return func(d *Descriptor) {
		d.authRequired = false
	}
}

// Requires declares capability tags that must be present to execute
func Requires(tags ...string) Option {
	return func(d *Descriptor) {
		d.capabilities = append(d.capabilities, tags...)
	}
}

// WithDescription sets the help text
func WithDescription(text string) Option {
	return func(d *Descriptor) {
		d.description = text
	}
}

var idPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)

// New builds a descriptor. Without WithSchema every [placeholder] in
// template becomes a string argument defaulting to "".
func New(id string, kind Kind, template string, body Body, opts ...Option) (*Descriptor, error) {
	if !idPattern.MatchString(id) {
		return nil, errors.Newf("invalid operation id %q", id)
	}
	if kind != Command && kind != Query {
		return nil, errors.Newf("operation %s: unknown kind %q", id, kind)
	}
	if strings.TrimSpace(template) == "" {
		return nil, errors.Newf("operation %s: template cannot be empty", id)
	}
	if body == nil {
		return nil, errors.Newf("operation %s: body cannot be nil", id)
	}

	d := &Descriptor{
		id:           id,
		kind:         kind,
		template:     template,
		authRequired: true,
		body:         body,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.schema == nil {
		d.schema = schema.FromTemplate(template)
	}
	if err := d.schema.Check(); err != nil {
		return nil, errors.Wrapf(err, "operation %s", id)
	}
	return d, nil
}

// ID returns the unique identifier (route key and client method name)
func (d *Descriptor) ID() string { return d.id }

// Kind returns Command or Query
func (d *Descriptor) Kind() Kind { return d.kind }

// Template returns the display template
func (d *Descriptor) Template() string { return d.template }

// Description returns the help text
func (d *Descriptor) Description() string { return d.description }

// AuthRequired reports whether a verified token is needed
func (d *Descriptor) AuthRequired() bool { return d.authRequired }

// Schema returns a copy of the argument schema
func (d *Descriptor) Schema() schema.Schema { return d.schema.Clone() }

// Capabilities returns a copy of the required capability tags
func (d *Descriptor) Capabilities() []string {
	if len(d.capabilities) == 0 {
		return nil
	}
	out := make([]string, len(d.capabilities))
	copy(out, d.capabilities)
	return out
}

// Call invokes the body
func (d *Descriptor) Call(ctx context.Context, req *Request) (any, error) {
	return d.body(ctx, req)
}

// Info is the serializable view of a descriptor used by listings
type Info struct {
	ID           string        `json:"id"`
	Kind         Kind          `json:"kind"`
	Method       string        `json:"method"`
	Template     string        `json:"template"`
	Description  string        `json:"description,omitempty"`
	AuthRequired bool          `json:"auth_required"`
	Capabilities []string      `json:"capabilities,omitempty"`
	Schema       schema.Schema `json:"schema"`
}

// Info returns the listing view of d
func (d *Descriptor) Info() Info {
	s := d.Schema()
	if s == nil {
		s = schema.Schema{}
	}
	return Info{
		ID:           d.id,
		Kind:         d.kind,
		Method:       d.kind.Method(),
		Template:     d.template,
		Description:  d.description,
		AuthRequired: d.authRequired,
		Capabilities: d.Capabilities(),
		Schema:       s,
	}
}
