// Package codegen renders a JavaScript client for the registered operations.
//
// The client exposes one method per operation, keyed by operation id. Each
// method takes a single argument bag whose defaults mirror the schema and
// resolves to the response text. Output is deterministic: operations are
// ordered by template, then id, so an unchanged registry always yields the
// same bytes.
package codegen

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/operation"
	"github.com/teranos/opsgate/schema"
)

// DefaultGlobalName is the global the client is installed under
const DefaultGlobalName = "opsgate"

var globalPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Options controls generation
type Options struct {
	// BaseURL is prefixed to every operation path
	BaseURL string
	// Token is baked into the client as a bearer token. Empty sends no
	// Authorization header.
	Token string
	// GlobalName defaults to DefaultGlobalName
	GlobalName string
}

// param is one flattened method argument
type param struct {
	name        string
	jsType      string
	def         string // JS literal
	description string
}

// Generate renders the client for descs
func Generate(descs []*operation.Descriptor, opts Options) ([]byte, error) {
	global := opts.GlobalName
	if global == "" {
		global = DefaultGlobalName
	}
	if !globalPattern.MatchString(global) {
		return nil, errors.BadRequestf("global name %q is not a valid identifier", global)
	}

	sorted := make([]*operation.Descriptor, len(descs))
	copy(sorted, descs)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := sorted[i].Template(), sorted[j].Template()
		if ti != tj {
			return ti < tj
		}
		return sorted[i].ID() < sorted[j].ID()
	})

	var sb strings.Builder
	sb.WriteString("// Code generated by opsgate. DO NOT EDIT.\n")
	sb.WriteString("(function (global) {\n")
	sb.WriteString("  \"use strict\";\n\n")
	fmt.Fprintf(&sb, "  const baseURL = %s;\n", jsString(strings.TrimRight(opts.BaseURL, "/")))
	fmt.Fprintf(&sb, "  const token = %s;\n\n", jsString(opts.Token))
	sb.WriteString(requestHelper)
	sb.WriteString("\n  const client = {\n")

	for i, d := range sorted {
		params, err := flatten(d.Schema())
		if err != nil {
			return nil, errors.Wrapf(err, "operation %s", d.ID())
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		writeMethod(&sb, d, params)
	}

	sb.WriteString("  };\n\n")
	fmt.Fprintf(&sb, "  global.%s = client;\n", global)
	sb.WriteString("  if (typeof module !== \"undefined\" && module.exports) {\n")
	sb.WriteString("    module.exports = client;\n")
	sb.WriteString("  }\n")
	sb.WriteString("})(typeof globalThis !== \"undefined\" ? globalThis : this);\n")

	return []byte(sb.String()), nil
}

const requestHelper = `  async function request(method, id, params) {
    const headers = {};
    if (token) {
      headers["Authorization"] = "Bearer " + token;
    }
    let url = baseURL + "/" + id;
    const init = { method: method, headers: headers };
    if (method === "GET") {
      const query = new URLSearchParams();
      for (const [key, value] of Object.entries(params)) {
        if (value !== undefined && value !== null) {
          query.append(key, String(value));
        }
      }
      const qs = query.toString();
      if (qs) {
        url += "?" + qs;
      }
    } else {
      headers["Content-Type"] = "application/json";
      init.body = JSON.stringify(params);
    }
    const response = await fetch(url, init);
    const text = await response.text();
    if (!response.ok) {
      throw new Error(text);
    }
    return text;
  }
`

func writeMethod(sb *strings.Builder, d *operation.Descriptor, params []param) {
	sb.WriteString("    /**\n")
	fmt.Fprintf(sb, "     * %s\n", jsDocText(d.Template()))
	if d.Description() != "" {
		fmt.Fprintf(sb, "     *\n     * %s\n", jsDocText(d.Description()))
	}
	if len(params) > 0 {
		sb.WriteString("     * @param {object} [args]\n")
	}
	for _, p := range params {
		line := fmt.Sprintf("     * @param {%s} [args.%s=%s]", p.jsType, p.name, p.def)
		if p.description != "" {
			line += " " + jsDocText(p.description)
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("     * @returns {Promise<string>}\n")
	sb.WriteString("     */\n")

	method := d.Kind().Method()
	if len(params) == 0 {
		fmt.Fprintf(sb, "    %s: function () {\n", jsString(d.ID()))
		fmt.Fprintf(sb, "      return request(%s, %s, {});\n", jsString(method), jsString(d.ID()))
		sb.WriteString("    },\n")
		return
	}

	bindings := make([]string, len(params))
	names := make([]string, len(params))
	for i, p := range params {
		bindings[i] = p.name + " = " + p.def
		names[i] = p.name
	}
	fmt.Fprintf(sb, "    %s: function ({ %s } = {}) {\n", jsString(d.ID()), strings.Join(bindings, ", "))
	fmt.Fprintf(sb, "      return request(%s, %s, { %s });\n", jsString(method), jsString(d.ID()), strings.Join(names, ", "))
	sb.WriteString("    },\n")
}

// flatten maps schema fields to method parameters. Structured types travel
// as JSON strings, so their defaults are serialized.
func flatten(s schema.Schema) ([]param, error) {
	params := make([]param, 0, len(s))
	for _, f := range s {
		p := param{name: f.Name, description: f.Description}

		switch f.Type {
		case schema.Number:
			p.jsType = "number"
		case schema.Boolean:
			p.jsType = "boolean"
		default:
			p.jsType = "string"
		}

		def, err := defaultLiteral(f)
		if err != nil {
			return nil, err
		}
		p.def = def
		params = append(params, p)
	}
	return params, nil
}

func defaultLiteral(f schema.Field) (string, error) {
	if f.Default == nil {
		return `""`, nil
	}

	switch f.Type {
	case schema.JSON, schema.Array, schema.Object:
		if s, ok := f.Default.(string); ok {
			return jsString(s), nil
		}
		encoded, err := json.Marshal(f.Default)
		if err != nil {
			return "", errors.Wrapf(err, "field %s: default is not serializable", f.Name)
		}
		return jsString(string(encoded)), nil
	default:
		encoded, err := json.Marshal(f.Default)
		if err != nil {
			return "", errors.Wrapf(err, "field %s: default is not serializable", f.Name)
		}
		return string(encoded), nil
	}
}

// jsString quotes s as a JS string literal
func jsString(s string) string {
	// JSON string encoding is valid JS, and escapes U+2028/U+2029
	encoded, _ := json.Marshal(s)
	return string(encoded)
}

func jsDocText(s string) string {
	s = strings.ReplaceAll(s, "*/", "*\\/")
	return strings.Join(strings.Fields(s), " ")
}
