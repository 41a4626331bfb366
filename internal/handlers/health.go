package handlers

import (
	"net/http"
	"sort"
	"time"
)

// ReadinessCheck probes one dependency and reports an error when it is not
// ready to serve traffic.
type ReadinessCheck func(r *http.Request) error

// HealthHandlers serves the /healthz and /readyz endpoints.
type HealthHandlers struct {
	version     string
	commitSHA   string
	environment string
	startedAt   time.Time
	now         func() time.Time
	checks      map[string]ReadinessCheck
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo sets the build metadata reported by /healthz.
func WithHealthBuildInfo(version, commitSHA, environment string) HealthOption {
	return func(h *HealthHandlers) {
		h.version = version
		h.commitSHA = commitSHA
		h.environment = environment
	}
}

// WithHealthStartedAt overrides the process start time used for uptime.
func WithHealthStartedAt(start time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if !start.IsZero() {
			h.startedAt = start
		}
	}
}

// WithHealthClock overrides the time source, used in tests.
func WithHealthClock(now func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if now != nil {
			h.now = now
		}
	}
}

// WithReadinessCheck registers a named dependency probe for /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) HealthOption {
	return func(h *HealthHandlers) {
		if name == "" || check == nil {
			return
		}
		if h.checks == nil {
			h.checks = make(map[string]ReadinessCheck)
		}
		h.checks[name] = check
	}
}

// NewHealthHandlers constructs handlers for liveness and readiness endpoints.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		startedAt: time.Now(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Healthz reports process liveness and build metadata.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	payload := map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(h.startedAt).String(),
		"timestamp": now.UTC().Format(time.RFC3339),
	}
	if h.version != "" {
		payload["version"] = h.version
	}
	if h.commitSHA != "" {
		payload["commitSha"] = h.commitSHA
	}
	if h.environment != "" {
		payload["environment"] = h.environment
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// Readyz runs the registered dependency probes and reports 503 when any fails.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	checks := make(map[string]map[string]any, len(h.checks))
	details := make([]string, 0)

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	for _, name := range names {
		entry := map[string]any{"status": "ok"}
		if err := h.checks[name](r); err != nil {
			status = "degraded"
			entry["status"] = "degraded"
			entry["error"] = err.Error()
			details = append(details, name+": "+err.Error())
		}
		checks[name] = entry
	}

	payload := map[string]any{
		"status":    status,
		"timestamp": now.UTC().Format(time.RFC3339),
		"checks":    checks,
		"details":   details,
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, code, payload)
}
