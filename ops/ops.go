// Package ops holds the operations opsgate ships with. Builtins is the
// fixed list the server loads into its registry at startup and on reload.
package ops

import (
	"context"

	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/operation"
)

// constructor builds one descriptor
type constructor func() (*operation.Descriptor, error)

var constructors = []constructor{
	whoami,
	emailQueue,
	emailList,
	emailSend,
	emailDelete,
	emailClear,
	streamAppend,
	streamRead,
	mailSearch,
	mailRaw,
}

// Builtins constructs every built-in operation
func Builtins() ([]*operation.Descriptor, error) {
	descs := make([]*operation.Descriptor, 0, len(constructors))
	for _, c := range constructors {
		d, err := c()
		if err != nil {
			return nil, errors.Wrap(err, "failed to build built-in operation")
		}
		descs = append(descs, d)
	}
	return descs, nil
}

// Filter drops the operations whose id disabled reports true
func Filter(descs []*operation.Descriptor, disabled func(id string) bool) []*operation.Descriptor {
	if disabled == nil {
		return descs
	}
	out := make([]*operation.Descriptor, 0, len(descs))
	for _, d := range descs {
		if !disabled(d.ID()) {
			out = append(out, d)
		}
	}
	return out
}

func whoami() (*operation.Descriptor, error) {
	return operation.New("whoami", operation.Query, "who am I",
		func(_ context.Context, req *operation.Request) (any, error) {
			if req.Identity == "" {
				return "anonymous", nil
			}
			return req.Identity, nil
		},
		operation.Public(),
		operation.WithDescription("Returns the identity behind the bearer token"),
	)
}

// stringList converts a validated opaque JSON array of strings
func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
