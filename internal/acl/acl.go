// Package acl implements the HTTP-level access control policy: allowlists
// for the host header, the origin header and the CORS request headers.
//
// Allowlist entries are patterns in which `*` matches any run of characters,
// so entries like "localhost:*" or "https://*.example.com" work. An empty
// allowlist means allow-any.
package acl

import (
	"errors"
	"fmt"
	"strings"
)

// Classified denials. The HTTP gate maps each to a distinct 403 body.
var (
	ErrHostNotAllowed   = errors.New("host not allowed")
	ErrOriginNotAllowed = errors.New("origin not allowed")
	ErrHeaderNotAllowed = errors.New("header not allowed")
)

// Config carries the three allowlists. A nil or empty list allows anything
// for that dimension.
type Config struct {
	AllowedHosts   []string
	AllowedOrigins []string
	AllowedHeaders []string
}

// AccessControl is the immutable policy object evaluated on every request.
// The zero value allows everything.
type AccessControl struct {
	hosts   []string
	origins []string
	headers []string
}

// New builds an AccessControl from the given allowlists.
func New(cfg Config) *AccessControl {
	return &AccessControl{
		hosts:   cfg.AllowedHosts,
		origins: cfg.AllowedOrigins,
		headers: cfg.AllowedHeaders,
	}
}

// AllowAll returns a policy that accepts any host, origin and header.
func AllowAll() *AccessControl {
	return &AccessControl{}
}

// VerifyHost checks the request's host header against the host allowlist.
func (a *AccessControl) VerifyHost(host string) error {
	if len(a.hosts) == 0 {
		return nil
	}
	for _, pattern := range a.hosts {
		if matchPattern(pattern, host) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
}

// VerifyOrigin checks the request's origin header, when present, against the
// origin allowlist. Requests without an origin header pass; so does an
// origin identical to the host it is being compared against.
func (a *AccessControl) VerifyOrigin(origin, host string) error {
	if origin == "" || len(a.origins) == 0 {
		return nil
	}
	if stripScheme(origin) == host {
		return nil
	}
	for _, pattern := range a.origins {
		if matchPattern(pattern, origin) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrOriginNotAllowed, origin)
}

// VerifyHeaders checks the headers named in a CORS preflight
// (access-control-request-headers) against the header allowlist.
func (a *AccessControl) VerifyHeaders(corsRequestHeaders []string) error {
	if len(a.headers) == 0 {
		return nil
	}
	for _, requested := range corsRequestHeaders {
		allowed := false
		for _, pattern := range a.headers {
			if matchPattern(strings.ToLower(pattern), strings.ToLower(requested)) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: %s", ErrHeaderNotAllowed, requested)
		}
	}
	return nil
}

// AllowedHeadersCORSValue renders the header allowlist for the
// access-control-allow-headers preflight response header.
func (a *AccessControl) AllowedHeadersCORSValue() string {
	if len(a.headers) == 0 {
		return "*"
	}
	return strings.Join(a.headers, ", ")
}

// matchPattern matches value against pattern, where `*` matches any run of
// characters. Matching is case-sensitive; callers that need otherwise lower
// both sides first.
func matchPattern(pattern, value string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == value
	}
	if !strings.HasPrefix(value, parts[0]) {
		return false
	}
	value = value[len(parts[0]):]
	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(value, parts[i])
		if idx < 0 {
			return false
		}
		value = value[idx+len(parts[i]):]
	}
	return strings.HasSuffix(value, parts[len(parts)-1])
}

func stripScheme(origin string) string {
	if idx := strings.Index(origin, "://"); idx >= 0 {
		return origin[idx+len("://"):]
	}
	return origin
}
