package codegen

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/opsgate/operation"
	"github.com/teranos/opsgate/schema"
)

func noop(context.Context, *operation.Request) (any, error) { return nil, nil }

func mustOp(t *testing.T, id string, kind operation.Kind, template string, opts ...operation.Option) *operation.Descriptor {
	t.Helper()
	d, err := operation.New(id, kind, template, noop, opts...)
	require.NoError(t, err)
	return d
}

func TestGenerateOrdersByTemplate(t *testing.T) {
	descs := []*operation.Descriptor{
		mustOp(t, "a", operation.Query, "b operation"),
		mustOp(t, "b", operation.Query, "a operation"),
	}

	out, err := Generate(descs, Options{BaseURL: "http://localhost:8787"})
	require.NoError(t, err)

	src := string(out)
	first := strings.Index(src, "* a operation")
	second := strings.Index(src, "* b operation")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second)
	assert.Less(t, strings.Index(src, `"b": function`), strings.Index(src, `"a": function`))
}

func TestGenerateTiesBrokenByID(t *testing.T) {
	descs := []*operation.Descriptor{
		mustOp(t, "zeta", operation.Query, "same"),
		mustOp(t, "alpha", operation.Query, "same"),
	}

	out, err := Generate(descs, Options{})
	require.NoError(t, err)
	src := string(out)
	assert.Less(t, strings.Index(src, `"alpha": function`), strings.Index(src, `"zeta": function`))
}

func TestGenerateIsDeterministic(t *testing.T) {
	descs := []*operation.Descriptor{
		mustOp(t, "stream.read", operation.Query, "read [limit] records from stream [streamName]"),
		mustOp(t, "email.queue", operation.Command, "queue email from [from] to [to]"),
		mustOp(t, "whoami", operation.Query, "who am I", operation.Public()),
	}
	reversed := []*operation.Descriptor{descs[2], descs[1], descs[0]}

	first, err := Generate(descs, Options{BaseURL: "https://ops.example.com", Token: "tok"})
	require.NoError(t, err)
	second, err := Generate(reversed, Options{BaseURL: "https://ops.example.com", Token: "tok"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGenerateMethods(t *testing.T) {
	descs := []*operation.Descriptor{
		mustOp(t, "stream.read", operation.Query, "read [limit] records from stream [streamName]",
			operation.WithSchema(schema.Schema{
				{Name: "limit", Type: schema.Number, Default: float64(10)},
				{Name: "streamName", Type: schema.String, Default: "demo", Description: "stream to read"},
			})),
		mustOp(t, "email.queue", operation.Command, "queue email to [to]"),
		mustOp(t, "whoami", operation.Query, "who am I", operation.WithDescription("Returns the caller")),
	}

	out, err := Generate(descs, Options{BaseURL: "https://ops.example.com/", Token: "secret"})
	require.NoError(t, err)
	src := string(out)

	assert.True(t, strings.HasPrefix(src, "// Code generated by opsgate. DO NOT EDIT.\n"))
	assert.Contains(t, src, `const baseURL = "https://ops.example.com";`)
	assert.Contains(t, src, `const token = "secret";`)
	assert.Contains(t, src, "new URLSearchParams()")
	assert.Contains(t, src, "JSON.stringify(params)")
	assert.Contains(t, src, "throw new Error(text)")

	assert.Contains(t, src, `"stream.read": function ({ limit = 10, streamName = "demo" } = {}) {`)
	assert.Contains(t, src, `return request("GET", "stream.read", { limit, streamName });`)
	assert.Contains(t, src, `@param {string} [args.streamName="demo"] stream to read`)

	assert.Contains(t, src, `"email.queue": function ({ to = "" } = {}) {`)
	assert.Contains(t, src, `return request("POST", "email.queue", { to });`)

	assert.Contains(t, src, `"whoami": function () {`)
	assert.Contains(t, src, `return request("GET", "whoami", {});`)
	assert.Contains(t, src, "* Returns the caller")

	assert.Contains(t, src, "global.opsgate = client;")
}

func TestGenerateFlattensStructuredArguments(t *testing.T) {
	descs := []*operation.Descriptor{
		mustOp(t, "stream.append", operation.Command, "append [record] to stream [streamName]",
			operation.WithSchema(schema.Schema{
				{Name: "record", Type: schema.JSON, Default: map[string]any{"x": 5}, Nested: &schema.Node{Type: schema.Object}},
				{Name: "ids", Type: schema.Array, Default: "[]"},
				{Name: "flags", Type: schema.Object},
				{Name: "dryRun", Type: schema.Boolean, Default: false},
			})),
	}

	out, err := Generate(descs, Options{})
	require.NoError(t, err)
	src := string(out)

	assert.Contains(t, src, `record = "{\"x\":5}"`)
	assert.Contains(t, src, `ids = "[]"`)
	assert.Contains(t, src, `flags = ""`)
	assert.Contains(t, src, `dryRun = false`)
	assert.Contains(t, src, `@param {string} [args.record=`)
	assert.Contains(t, src, `@param {boolean} [args.dryRun=false]`)
}

func TestGenerateEscapesLiterals(t *testing.T) {
	out, err := Generate(nil, Options{Token: `a"b</script>`})
	require.NoError(t, err)

	src := string(out)
	assert.Contains(t, src, `const token = "a\"b\u003c/script\u003e";`)
	assert.NotContains(t, src, "</script>")
}

func TestGenerateCustomGlobal(t *testing.T) {
	out, err := Generate(nil, Options{GlobalName: "ops"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "global.ops = client;")

	_, err = Generate(nil, Options{GlobalName: "not valid"})
	assert.Error(t, err)
}

func TestGenerateRejectsUnserializableDefault(t *testing.T) {
	d := mustOp(t, "bad", operation.Command, "bad [x]",
		operation.WithSchema(schema.Schema{{Name: "x", Type: schema.Object, Default: make(chan int)}}))

	_, err := Generate([]*operation.Descriptor{d}, Options{})
	assert.Error(t, err)
}
