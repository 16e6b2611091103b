package execution

import "strings"

// Paths always exempt from context enforcement.
var operationalPaths = map[string]struct{}{
	"/health":  {},
	"/ready":   {},
	"/metrics": {},
}

// IsOperationalPath reports whether path is exempt from execution-context
// enforcement: liveness/readiness/metrics endpoints, anything under
// /documentation, and introspection sub-resources whose last segment is
// "health" or "metadata". Any query string is ignored.
func IsOperationalPath(path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	if _, ok := operationalPaths[path]; ok {
		return true
	}
	if strings.HasPrefix(path, "/documentation") {
		return true
	}

	last := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		last = path[i+1:]
	}
	return last == "health" || last == "metadata"
}
