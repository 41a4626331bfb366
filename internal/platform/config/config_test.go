package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "hm-dev",
		"API_AUTH_JWT_SECRET":      "dev-secret",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Auth.TokenTTL != defaultTokenTTL {
		t.Errorf("unexpected default token ttl: %s", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.Issuer != defaultTokenIssuer {
		t.Errorf("unexpected default issuer: %s", cfg.Auth.Issuer)
	}
	if cfg.Events.ProjectID != "hm-dev" {
		t.Errorf("expected events project to default to firestore project, got %s", cfg.Events.ProjectID)
	}
	if cfg.Events.Enabled {
		t.Error("expected events disabled by default")
	}
	if cfg.Catalog.LowStockThreshold != 10 {
		t.Errorf("unexpected low stock threshold: %d", cfg.Catalog.LowStockThreshold)
	}
	if cfg.RateLimits.DefaultPerMinute != 120 {
		t.Errorf("unexpected default rate limit: %d", cfg.RateLimits.DefaultPerMinute)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                 "9090",
		"API_SERVER_READ_TIMEOUT":         "20s",
		"API_SERVER_WRITE_TIMEOUT":        "25s",
		"API_SERVER_IDLE_TIMEOUT":         "2m",
		"API_FIRESTORE_PROJECT_ID":        "hm-prod",
		"API_FIRESTORE_EMULATOR_HOST":     "localhost:8200",
		"API_AUTH_JWT_SECRET":             "prod-secret",
		"API_AUTH_ISSUER":                 "hatchmart-prod",
		"API_AUTH_TOKEN_TTL":              "12h",
		"API_EVENTS_PROJECT_ID":           "hm-events",
		"API_EVENTS_ORDER_TOPIC":          "orders-prod",
		"API_EVENTS_ENABLED":              "true",
		"API_CATALOG_LOW_STOCK_THRESHOLD": "7",
		"API_RATELIMIT_DEFAULT_PER_MIN":   "60",
		"API_IDEMPOTENCY_TTL":             "48h",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("port = %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("idle timeout = %s", cfg.Server.IdleTimeout)
	}
	if cfg.Firestore.EmulatorHost != "localhost:8200" {
		t.Errorf("emulator host = %s", cfg.Firestore.EmulatorHost)
	}
	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Errorf("token ttl = %s", cfg.Auth.TokenTTL)
	}
	if cfg.Events.ProjectID != "hm-events" || cfg.Events.OrderTopic != "orders-prod" || !cfg.Events.Enabled {
		t.Errorf("unexpected events config: %+v", cfg.Events)
	}
	if cfg.Catalog.LowStockThreshold != 7 {
		t.Errorf("low stock threshold = %d", cfg.Catalog.LowStockThreshold)
	}
	if cfg.RateLimits.DefaultPerMinute != 60 {
		t.Errorf("rate limit = %d", cfg.RateLimits.DefaultPerMinute)
	}
	if cfg.Idempotency.TTL != 48*time.Hour {
		t.Errorf("idempotency ttl = %s", cfg.Idempotency.TTL)
	}
}

func TestLoadValidationFailure(t *testing.T) {
	_, err := Load(WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error")
	}

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	fields := validation.Fields()
	want := map[string]bool{"Firestore.ProjectID": false, "Auth.JWTSecret": false}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Errorf("expected %s in validation fields %v", field, fields)
		}
	}
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	contents := "API_FIRESTORE_PROJECT_ID=hm-local\nexport API_AUTH_JWT_SECRET=\"file-secret\"\n# comment\nAPI_SERVER_PORT=7070\n"
	if err := os.WriteFile(envPath, []byte(contents), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Firestore.ProjectID != "hm-local" {
		t.Errorf("project id = %s", cfg.Firestore.ProjectID)
	}
	if cfg.Auth.JWTSecret != "file-secret" {
		t.Errorf("jwt secret = %s", cfg.Auth.JWTSecret)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("port = %s", cfg.Server.Port)
	}
}

func TestLoadEnvMapPrecedesDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("API_SERVER_PORT=7070\nAPI_FIRESTORE_PROJECT_ID=hm-file\nAPI_AUTH_JWT_SECRET=s\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(
		WithEnvFile(envPath),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"API_SERVER_PORT": "9999"}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9999" {
		t.Errorf("expected env map to win, got port %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "hm-file" {
		t.Errorf("project id = %s", cfg.Firestore.ProjectID)
	}
}
