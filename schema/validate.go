package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Code classifies a validation failure
type Code string

// Error codes
const (
	MissingRequired Code = "missing_required"
	InvalidType     Code = "invalid_type"
	InvalidJSON     Code = "invalid_json"
)

// FieldError is one validation failure. Field is a dotted path for errors
// inside opaque JSON values ("payload.x", "ids[2]").
type FieldError struct {
	Field   string `json:"field"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Message
}

func missing(field string) FieldError {
	return FieldError{Field: field, Code: MissingRequired, Message: fmt.Sprintf("%s is required", field)}
}

func invalidType(field string, want Type) FieldError {
	return FieldError{Field: field, Code: InvalidType, Message: fmt.Sprintf("%s must be of type %s", field, want)}
}

// Result is the outcome of Validate. Data is nil unless Valid.
type Result struct {
	Valid  bool           `json:"valid"`
	Errors []FieldError   `json:"errors,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Validate checks input against s.
//
// Empty values (absent, nil or "") take the field default when there is
// one, are omitted when the field is optional and are reported missing
// when required. Other values are coerced to the field type. Opaque JSON
// fields are parsed first; a parse failure aborts with a single
// invalid_json error. Parsed values are checked with ValidateNode and
// returned parsed. All other errors of the pass are collected.
func Validate(s Schema, input map[string]any) Result {
	var errs []FieldError
	parsed := make(map[string]any)

	for _, f := range s {
		if f.Type != JSON {
			continue
		}
		raw := input[f.Name]
		if isEmpty(raw) {
			raw = f.Default
		}
		if isEmpty(raw) {
			if f.Required {
				errs = append(errs, missing(f.Name))
			}
			continue
		}

		value, err := parseOpaque(raw)
		if err != nil {
			return Result{Errors: []FieldError{{
				Field:   f.Name,
				Code:    InvalidJSON,
				Message: fmt.Sprintf("%s is not valid JSON: %s", f.Name, err.Error()),
			}}}
		}
		if value == nil && !isEmpty(f.Default) {
			// "null" counts as not supplied
			value, err = parseOpaque(f.Default)
			if err != nil {
				return Result{Errors: []FieldError{{
					Field:   f.Name,
					Code:    InvalidJSON,
					Message: fmt.Sprintf("%s default is not valid JSON: %s", f.Name, err.Error()),
				}}}
			}
		}
		if value == nil {
			if f.Required {
				errs = append(errs, missing(f.Name))
			}
			continue
		}
		errs = append(errs, ValidateNode(f.Name, f.Nested, value)...)
		parsed[f.Name] = value
	}

	data := make(map[string]any, len(s))
	for _, f := range s {
		if f.Type == JSON {
			continue
		}
		v := input[f.Name]
		if isEmpty(v) {
			switch {
			case f.Default != nil:
				data[f.Name] = f.Default
			case f.Required:
				errs = append(errs, missing(f.Name))
			}
			continue
		}

		coerced, ok := coerce(f.Type, v)
		if !ok {
			errs = append(errs, invalidType(f.Name, f.Type))
			continue
		}
		data[f.Name] = coerced
	}

	if len(errs) > 0 {
		return Result{Errors: errs}
	}
	for k, v := range parsed {
		data[k] = v
	}
	return Result{Valid: true, Data: data}
}

// ValidateNode checks a parsed JSON value against node and returns every
// error found beneath path.
func ValidateNode(path string, node *Node, value any) []FieldError {
	if node == nil {
		return nil
	}

	switch node.Type {
	case "", JSON:
		return nil
	case String:
		if _, ok := value.(string); !ok {
			return []FieldError{invalidType(path, node.Type)}
		}
	case Number:
		if _, ok := asFloat(value); !ok {
			return []FieldError{invalidType(path, node.Type)}
		}
	case Boolean:
		if _, ok := value.(bool); !ok {
			return []FieldError{invalidType(path, node.Type)}
		}
	case Array:
		items, ok := value.([]any)
		if !ok {
			return []FieldError{invalidType(path, node.Type)}
		}
		var errs []FieldError
		for i, item := range items {
			errs = append(errs, ValidateNode(fmt.Sprintf("%s[%d]", path, i), node.Items, item)...)
		}
		return errs
	case Object:
		obj, ok := value.(map[string]any)
		if !ok {
			return []FieldError{invalidType(path, node.Type)}
		}
		var errs []FieldError
		for _, name := range node.Required {
			if _, present := obj[name]; !present {
				errs = append(errs, missing(joinPath(path, name)))
			}
		}
		// Sorted for stable error order
		names := make([]string, 0, len(node.Properties))
		for name := range node.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v, present := obj[name]
			if !present {
				continue
			}
			errs = append(errs, ValidateNode(joinPath(path, name), node.Properties[name], v)...)
		}
		return errs
	default:
		return []FieldError{{Field: path, Code: InvalidType, Message: fmt.Sprintf("%s has unknown type %s", path, node.Type)}}
	}
	return nil
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// parseOpaque parses a serialized value. Values that arrive already
// structured (JSON request bodies, Go defaults) are normalized through a
// JSON round trip so nested numbers are float64.
func parseOpaque(raw any) (any, error) {
	var data []byte
	if s, ok := raw.(string); ok {
		data = []byte(s)
	} else {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		data = b
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func coerce(t Type, v any) (any, bool) {
	switch t {
	case String:
		return toString(v), true
	case Number:
		f, ok := toNumber(v)
		return f, ok
	case Boolean:
		return toBool(v), true
	case Array:
		return toShape(v, reflect.Slice)
	case Object:
		return toShape(v, reflect.Map)
	}
	return nil, false
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	}
	if f, ok := asFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		n, ok := asFloat(v)
		if !ok {
			return 0, false
		}
		f = n
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func toBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x == "true" || x == "1"
	}
	if f, ok := asFloat(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	}
	return v != nil
}

// toShape passes through values that already have the wanted kind and
// otherwise parses them from a JSON string.
func toShape(v any, kind reflect.Kind) (any, bool) {
	if reflect.ValueOf(v).Kind() == kind {
		return v, true
	}
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return nil, false
	}
	if parsed == nil || reflect.ValueOf(parsed).Kind() != kind {
		return nil, false
	}
	return parsed, true
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}
