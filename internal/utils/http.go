// Package utils provides small HTTP helpers shared by the server gate.
package utils

import (
	"strings"
)

// IsJSONContentType reports whether a content-type header value denotes a
// JSON-RPC payload. An optional utf-8 charset parameter is accepted,
// case-insensitively.
func IsJSONContentType(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "application/json",
		"application/json; charset=utf-8",
		"application/json;charset=utf-8":
		return true
	default:
		return false
	}
}

// CORSRequestHeaders splits an access-control-request-headers value into
// trimmed header names.
func CORSRequestHeaders(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	headers := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			headers = append(headers, name)
		}
	}
	return headers
}
