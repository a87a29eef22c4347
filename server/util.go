package server

import (
	"strings"
)

// checkOrigin reports whether origin is allowed. Matching is by prefix so
// any port of an allowed host passes.
func checkOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.HasPrefix(origin, a) {
			return true
		}
	}
	return false
}
