package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestManager(t *testing.T, opts ...TokenOption) *TokenManager {
	t.Helper()
	manager, err := NewTokenManager([]byte("test-secret"), opts...)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return manager
}

func TestTokenManagerIssueAndVerify(t *testing.T) {
	manager := newTestManager(t)

	token, expiresAt, err := manager.Issue(Identity{UID: "usr_123", Email: "shopper@example.com", Roles: []string{RoleCustomer}})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected expiry in the future, got %v", expiresAt)
	}

	identity, err := manager.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if identity.UID != "usr_123" {
		t.Fatalf("uid = %q", identity.UID)
	}
	if identity.Email != "shopper@example.com" {
		t.Fatalf("email = %q", identity.Email)
	}
	if !identity.HasRole(RoleCustomer) {
		t.Fatalf("expected customer role, got %v", identity.Roles)
	}
}

func TestTokenManagerRejectsExpired(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	issuing := newTestManager(t, WithClock(func() time.Time { return past }), WithTokenTTL(time.Hour))

	token, _, err := issuing.Issue(Identity{UID: "usr_123"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := newTestManager(t).Verify(token); err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenManagerRejectsForeignSignature(t *testing.T) {
	other, err := NewTokenManager([]byte("other-secret"))
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	token, _, err := other.Issue(Identity{UID: "usr_123"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := newTestManager(t).Verify(token); err == nil {
		t.Fatal("expected verification failure for foreign signature")
	}
}

func TestRequireAuthMissingHeader(t *testing.T) {
	authn := NewAuthenticator(newTestManager(t))
	handler := authn.RequireAuth()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthPropagatesIdentity(t *testing.T) {
	manager := newTestManager(t)
	token, _, err := manager.Issue(Identity{UID: "usr_123", Roles: []string{RoleCustomer}})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var seen *Identity
	authn := NewAuthenticator(manager)
	handler := authn.RequireAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if seen == nil || seen.UID != "usr_123" {
		t.Fatalf("identity not propagated: %+v", seen)
	}
}

func TestRequireAuthEnforcesRole(t *testing.T) {
	manager := newTestManager(t)
	token, _, err := manager.Issue(Identity{UID: "usr_123", Roles: []string{RoleCustomer}})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	authn := NewAuthenticator(manager)
	handler := authn.RequireAuth(RoleStaff, RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
