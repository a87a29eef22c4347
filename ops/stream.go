package ops

import (
	"context"
	"strconv"
	"strings"

	"github.com/teranos/opsgate/capability"
	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/operation"
	"github.com/teranos/opsgate/schema"
	"github.com/teranos/opsgate/streams"
)

func storeOf(req *operation.Request) (streams.Store, error) {
	if req.Services == nil || req.Services.Streams() == nil {
		return nil, errors.ServiceUnavailablef("stream store is not available")
	}
	return req.Services.Streams(), nil
}

func streamAppend() (*operation.Descriptor, error) {
	return operation.New("stream.append", operation.Command, "append [record] to stream [streamName]",
		func(ctx context.Context, req *operation.Request) (any, error) {
			store, err := storeOf(req)
			if err != nil {
				return nil, err
			}
			name := req.String("streamName")
			if err := streams.ValidateName(name); err != nil {
				return nil, err
			}
			v, _ := req.Value("record")
			record, _ := v.(map[string]any)

			id, err := store.Append(ctx, name, record)
			if err != nil {
				return nil, err
			}
			return map[string]string{"id": id, "stream": name}, nil
		},
		operation.Requires(capability.StreamStore),
		operation.WithSchema(schema.Schema{
			{Name: "record", Type: schema.JSON, Required: true, Nested: &schema.Node{Type: schema.Object}, Description: "JSON object to append"},
			{Name: "streamName", Type: schema.String, Default: "demo"},
		}),
		operation.WithDescription("Appends a JSON record to a stream"),
	)
}

func streamRead() (*operation.Descriptor, error) {
	return operation.New("stream.read", operation.Query, "read [limit] records from stream [streamName]",
		func(ctx context.Context, req *operation.Request) (any, error) {
			store, err := storeOf(req)
			if err != nil {
				return nil, err
			}
			name := req.String("streamName")
			if err := streams.ValidateName(name); err != nil {
				return nil, err
			}
			limit, err := strconv.ParseInt(strings.TrimSpace(req.String("limit")), 10, 64)
			if err != nil || limit <= 0 {
				return nil, errors.BadRequestf("limit must be a positive integer, got %q", req.String("limit"))
			}
			return store.Read(ctx, name, limit)
		},
		operation.Requires(capability.StreamStore),
		operation.WithSchema(schema.Schema{
			{Name: "streamName", Type: schema.String, Default: "demo"},
			{Name: "limit", Type: schema.String, Default: "10", Description: "number of records, newest first"},
		}),
		operation.WithDescription("Reads the most recent records of a stream"),
	)
}
