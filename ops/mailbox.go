package ops

import (
	"context"
	"math"

	"github.com/teranos/opsgate/capability"
	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/operation"
	"github.com/teranos/opsgate/schema"
	"github.com/teranos/opsgate/workspace"
)

const maxSearchResults = 100

func workspaceOf(req *operation.Request) (workspace.Client, error) {
	if req.Services == nil || req.Services.Workspace() == nil {
		return nil, errors.ServiceUnavailablef("workspace is not configured")
	}
	return req.Services.Workspace(), nil
}

func mailSearch() (*operation.Descriptor, error) {
	return operation.New("mail.search", operation.Query, "search mailbox for [query]",
		func(ctx context.Context, req *operation.Request) (any, error) {
			ws, err := workspaceOf(req)
			if err != nil {
				return nil, err
			}
			n := req.Float("max", 10)
			if n < 1 || n != math.Trunc(n) {
				return nil, errors.BadRequestf("max must be a positive integer")
			}
			if n > maxSearchResults {
				n = maxSearchResults
			}
			return ws.SearchMessages(ctx, req.String("query"), int(n))
		},
		operation.Requires(capability.Workspace),
		operation.WithSchema(schema.Schema{
			{Name: "query", Type: schema.String, Required: true, Description: "mailbox search query"},
			{Name: "max", Type: schema.Number, Default: float64(10)},
		}),
		operation.WithDescription("Searches the workspace mailbox"),
	)
}

func mailRaw() (*operation.Descriptor, error) {
	return operation.New("mail.raw", operation.Query, "download message [id] as raw",
		func(ctx context.Context, req *operation.Request) (any, error) {
			ws, err := workspaceOf(req)
			if err != nil {
				return nil, err
			}
			id := req.String("id")
			body, err := ws.RawMessage(ctx, id)
			if err != nil {
				return nil, err
			}
			return operation.Raw{
				ContentType: "message/rfc822",
				Filename:    id + ".eml",
				Body:        body,
			}, nil
		},
		operation.Requires(capability.Workspace),
		operation.WithSchema(schema.Schema{
			{Name: "id", Type: schema.String, Required: true},
		}),
		operation.WithDescription("Downloads a mailbox message as RFC 822"),
	)
}
