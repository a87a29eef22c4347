package operation

import (
	"strconv"
)

// Request is what an operation body receives
type Request struct {
	// Identity is the verified caller identity, or "" when anonymous
	Identity string
	// Args is the validated argument set
	Args     map[string]any
	Services Services
}

// String returns a string argument, or "" when absent
func (r *Request) String(name string) string {
	switch v := r.Args[name].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// Float returns a numeric argument, or fallback when absent or not a number
func (r *Request) Float(name string, fallback float64) float64 {
	if v, ok := r.Args[name].(float64); ok {
		return v
	}
	return fallback
}

// Bool returns a boolean argument
func (r *Request) Bool(name string) bool {
	v, _ := r.Args[name].(bool)
	return v
}

// Value returns the raw validated argument
func (r *Request) Value(name string) (any, bool) {
	v, ok := r.Args[name]
	return v, ok
}

// Raw is a response written as-is with the given content type
type Raw struct {
	ContentType string
	Filename    string // Sets Content-Disposition: attachment when non-empty
	Body        []byte
}
