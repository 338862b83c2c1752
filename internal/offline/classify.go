package offline

import (
	"net/http"
	"net/url"
	"strings"
)

// Class selects the caching strategy for a request.
type Class int

const (
	// ClassShell is a same-origin page or asset: cache first, refreshed in
	// the background.
	ClassShell Class = iota
	// ClassAPI is a same-origin /api/ call: network only, with a synthesized
	// offline response.
	ClassAPI
	// ClassExternal is any other origin: network first, cache as fallback.
	ClassExternal
)

func (c Class) String() string {
	switch c {
	case ClassShell:
		return "shell"
	case ClassAPI:
		return "api"
	case ClassExternal:
		return "external"
	}
	return "unknown"
}

// Classify decides the class of req relative to the app origin.
func Classify(req *http.Request, origin *url.URL) Class {
	if !sameOrigin(req.URL, origin) {
		return ClassExternal
	}
	if req.URL.Path == "/api" || strings.HasPrefix(req.URL.Path, "/api/") {
		return ClassAPI
	}
	return ClassShell
}

func sameOrigin(u, origin *url.URL) bool {
	return strings.EqualFold(u.Scheme, origin.Scheme) && strings.EqualFold(hostPort(u), hostPort(origin))
}

func hostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		return u.Hostname() + ":80"
	case "https":
		return u.Hostname() + ":443"
	}
	return u.Host
}
