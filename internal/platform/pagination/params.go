package pagination

import (
	"net/http"
	"strconv"
	"strings"
)

// DefaultMaxPageSize caps the supported pageSize to prevent unbounded queries.
const DefaultMaxPageSize = 100

// Params bundles the pagination values extracted from a request.
type Params struct {
	PageSize  int
	PageToken string
}

// Options control how FromRequest normalises the parsed values.
type Options struct {
	// DefaultPageSize is returned when the client omits pageSize. Zero means
	// "unset", leaving the repository to apply its own default.
	DefaultPageSize int
	MaxPageSize     int
}

// FromRequest parses pageSize and pageToken from the request query string.
// Invalid or non-positive page sizes fall back to the default rather than
// failing the request; oversized values are clamped.
func FromRequest(r *http.Request, opts Options) Params {
	if r == nil {
		return Params{PageSize: opts.DefaultPageSize}
	}
	return parse(r.URL.Query().Get("pageSize"), r.URL.Query().Get("pageToken"), opts)
}

func parse(rawSize, rawToken string, opts Options) Params {
	maxPageSize := opts.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}

	params := Params{
		PageSize:  opts.DefaultPageSize,
		PageToken: strings.TrimSpace(rawToken),
	}

	if raw := strings.TrimSpace(rawSize); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			params.PageSize = value
		}
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}
	return params
}
