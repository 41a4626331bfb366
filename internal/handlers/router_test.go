package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestRouterNotFoundReturnsJSONError(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nowhere/at/all", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented && rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 or 501, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected JSON error, got content type %q", ct)
	}
}

func TestRouterUnknownRootPath(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/totally-unknown", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "route_not_found") {
		t.Fatalf("expected route_not_found code, got %s", rr.Body.String())
	}
}

func TestRouterMountsRegistrars(t *testing.T) {
	router := NewRouter(
		WithCategoryRoutes(func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
				writeJSONResponse(w, http.StatusOK, map[string]string{"ok": "yes"})
			})
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/categories/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRouterHealthz(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(45 * time.Second)
	health := NewHealthHandlers(
		WithHealthBuildInfo("1.2.3", "abc123", "test"),
		WithHealthStartedAt(start),
		WithHealthClock(func() time.Time { return now }),
	)
	router := NewRouter(WithHealthHandlers(health))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["version"] != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %v", body["version"])
	}
	if body["uptime"] != "45s" {
		t.Fatalf("expected uptime 45s, got %v", body["uptime"])
	}
}

func TestRouterReadyzReportsFailure(t *testing.T) {
	health := NewHealthHandlers(
		WithReadinessCheck("firestore", func(*http.Request) error { return nil }),
		WithReadinessCheck("pubsub", func(*http.Request) error { return errors.New("publish failed") }),
	)
	router := NewRouter(WithHealthHandlers(health))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	var body struct {
		Status string `json:"status"`
		Checks map[string]struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"checks"`
		Details []string `json:"details"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Status != "degraded" {
		t.Fatalf("expected degraded, got %s", body.Status)
	}
	if body.Checks["firestore"].Status != "ok" {
		t.Fatalf("expected firestore ok, got %s", body.Checks["firestore"].Status)
	}
	if body.Checks["pubsub"].Error != "publish failed" {
		t.Fatalf("expected pubsub error, got %q", body.Checks["pubsub"].Error)
	}
	if len(body.Details) != 1 {
		t.Fatalf("expected one detail, got %v", body.Details)
	}
}

func TestRouterAdminMiddlewareApplies(t *testing.T) {
	guard := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Allow") == "" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	router := NewRouter(
		WithAdminMiddlewares(guard),
		WithAdminRoutes(func(r chi.Router) {
			r.Get("/dashboard", func(w http.ResponseWriter, _ *http.Request) {
				writeJSONResponse(w, http.StatusOK, map[string]string{"ok": "yes"})
			})
		}),
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/dashboard", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without header, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/dashboard", nil)
	req.Header.Set("X-Allow", "1")
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with header, got %d", rr.Code)
	}
}
