package accessgate

import (
	"net/http"
	"strings"

	dErrors "erasure/pkg/domain-errors"
)

// Route is an exact (method, normalized path) pair.
type Route struct {
	Method string
	Path   string
}

func (r Route) String() string { return r.Method + " " + r.Path }

// DefaultAllowList is what a PENDING_DELETE account may still call.
var DefaultAllowList = []Route{
	{Method: http.MethodGet, Path: "/api/v1/account/deletion-status"},
	{Method: http.MethodPost, Path: "/api/v1/account/deletion-cancel"},
	{Method: http.MethodPost, Path: "/api/v1/auth/logout"},
	{Method: http.MethodGet, Path: "/api/v1/auth/me"},
}

// NormalizePath drops the query string and any trailing slash. The root stays "/".
func NormalizePath(path string) string {
	path, _, _ = strings.Cut(path, "?")
	path = strings.TrimRight(path, "/")
	if path == "" {
		return "/"
	}
	return path
}

// ParseRoute parses "METHOD /path".
func ParseRoute(raw string) (Route, error) {
	method, path, ok := strings.Cut(strings.TrimSpace(raw), " ")
	path = strings.TrimSpace(path)
	if !ok || method == "" || !strings.HasPrefix(path, "/") {
		return Route{}, dErrors.New(dErrors.CodeInvalidInput, "invalid route "+raw+": want \"METHOD /path\"")
	}
	return Route{Method: strings.ToUpper(method), Path: NormalizePath(path)}, nil
}

func ParseRoutes(raw []string) ([]Route, error) {
	routes := make([]Route, 0, len(raw))
	for _, r := range raw {
		route, err := ParseRoute(r)
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, nil
}
