package observability

import (
	"strings"
	"unicode"
)

// Request log fields echo caller-supplied values (paths, methods, user IDs),
// so control characters are stripped and lengths capped before they reach the
// log encoder.

const (
	maxRouteLength  = 180
	maxMethodLength = 10
	maxUserIDLength = 64
)

func stripControl(value string, limit int) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := b.String()
	if limit > 0 && len(cleaned) > limit {
		runes := []rune(cleaned)
		if len(runes) > limit {
			runes = runes[:limit]
		}
		return string(runes)
	}
	return cleaned
}

// SanitizeRoute cleans a request path for logging. An empty path logs as "/".
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return stripControl(route, maxRouteLength)
}

// SanitizeMethod cleans an HTTP method for logging.
func SanitizeMethod(method string) string {
	return stripControl(method, maxMethodLength)
}

// SanitizeUserID caps identifiers before logging to limit PII exposure.
func SanitizeUserID(uid string) string {
	if uid == "" {
		return ""
	}
	return stripControl(uid, maxUserIDLength)
}
