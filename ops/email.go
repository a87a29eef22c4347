package ops

import (
	"context"

	"github.com/teranos/opsgate/capability"
	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/logger"
	"github.com/teranos/opsgate/mailqueue"
	"github.com/teranos/opsgate/operation"
	"github.com/teranos/opsgate/schema"
)

var idList = &schema.Node{Type: schema.Array, Items: &schema.Node{Type: schema.String}}

func queueOf(req *operation.Request) (*mailqueue.Queue, error) {
	if req.Services == nil || req.Services.Queue() == nil {
		return nil, errors.ServiceUnavailablef("email queue is not available")
	}
	return req.Services.Queue(), nil
}

func emailQueue() (*operation.Descriptor, error) {
	return operation.New("email.queue", operation.Command,
		"queue email from [from] to [to] subject [subject] body [content]",
		func(_ context.Context, req *operation.Request) (any, error) {
			q, err := queueOf(req)
			if err != nil {
				return nil, err
			}
			email, err := q.Add(mailqueue.Message{
				From:    req.String("from"),
				To:      req.String("to"),
				Subject: req.String("subject"),
				Content: req.String("content"),
			})
			if err != nil {
				return nil, err
			}
			req.Services.Logger("email").Infow("Email queued by operation",
				logger.FieldEmailID, email.ID,
				logger.FieldIdentity, req.Identity)
			return email, nil
		},
		operation.Requires(capability.EmailDelivery),
		operation.WithSchema(schema.Schema{
			{Name: "from", Type: schema.String, Required: true, Description: "sender address; its domain picks the delivery profile"},
			{Name: "to", Type: schema.String, Required: true, Description: "recipient address"},
			{Name: "subject", Type: schema.String, Default: ""},
			{Name: "content", Type: schema.String, Default: "", Description: "plain text body"},
		}),
		operation.WithDescription("Queues an email for the next send"),
	)
}

func emailList() (*operation.Descriptor, error) {
	return operation.New("email.list", operation.Query, "list queued emails",
		func(_ context.Context, req *operation.Request) (any, error) {
			q, err := queueOf(req)
			if err != nil {
				return nil, err
			}
			return q.All(), nil
		},
		operation.WithDescription("Lists queued emails in queue order"),
	)
}

func emailSend() (*operation.Descriptor, error) {
	return operation.New("email.send", operation.Command, "send queued emails [ids]",
		func(ctx context.Context, req *operation.Request) (any, error) {
			q, err := queueOf(req)
			if err != nil {
				return nil, err
			}
			var ids []string
			if v, ok := req.Value("ids"); ok {
				ids = stringList(v)
			}
			return q.Send(ctx, ids)
		},
		operation.Requires(capability.EmailDelivery),
		operation.WithSchema(schema.Schema{
			{Name: "ids", Type: schema.JSON, Nested: idList, Description: "JSON array of email ids; omit to send everything"},
		}),
		operation.WithDescription("Delivers queued emails through their delivery profiles"),
	)
}

func emailDelete() (*operation.Descriptor, error) {
	return operation.New("email.delete", operation.Command, "delete queued emails [ids]",
		func(_ context.Context, req *operation.Request) (any, error) {
			q, err := queueOf(req)
			if err != nil {
				return nil, err
			}
			v, _ := req.Value("ids")
			return map[string]int{"removed": q.RemoveByIDs(stringList(v))}, nil
		},
		operation.WithSchema(schema.Schema{
			{Name: "ids", Type: schema.JSON, Required: true, Nested: idList, Description: "JSON array of email ids"},
		}),
		operation.WithDescription("Removes emails from the queue without sending them"),
	)
}

func emailClear() (*operation.Descriptor, error) {
	return operation.New("email.clear", operation.Command, "clear email queue",
		func(_ context.Context, req *operation.Request) (any, error) {
			q, err := queueOf(req)
			if err != nil {
				return nil, err
			}
			q.Clear()
			return nil, nil
		},
		operation.WithDescription("Drops every queued email"),
	)
}
