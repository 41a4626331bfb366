package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/hatchmart/api/internal/domain"
	"github.com/hatchmart/api/internal/platform/auth"
	"github.com/hatchmart/api/internal/services"
)

type stubUserService struct {
	registerFn  func(ctx context.Context, cmd services.RegisterCommand) (services.AuthSession, error)
	loginFn     func(ctx context.Context, cmd services.LoginCommand) (services.AuthSession, error)
	profileFn   func(ctx context.Context, userID string) (services.User, error)
	listFn      func(ctx context.Context, query services.ListUsersQuery) (domain.CursorPage[services.UserAccount], error)
	setRoleFn   func(ctx context.Context, cmd services.SetUserRoleCommand) (services.User, error)
	setActiveFn func(ctx context.Context, cmd services.SetUserActiveCommand) (services.User, error)
}

func (s *stubUserService) Register(ctx context.Context, cmd services.RegisterCommand) (services.AuthSession, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, cmd)
	}
	return services.AuthSession{}, nil
}

func (s *stubUserService) Authenticate(ctx context.Context, cmd services.LoginCommand) (services.AuthSession, error) {
	if s.loginFn != nil {
		return s.loginFn(ctx, cmd)
	}
	return services.AuthSession{}, nil
}

func (s *stubUserService) GetProfile(ctx context.Context, userID string) (services.User, error) {
	if s.profileFn != nil {
		return s.profileFn(ctx, userID)
	}
	return services.User{}, nil
}

func (s *stubUserService) ListUsers(ctx context.Context, query services.ListUsersQuery) (domain.CursorPage[services.UserAccount], error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return domain.CursorPage[services.UserAccount]{}, nil
}

func (s *stubUserService) SetUserRole(ctx context.Context, cmd services.SetUserRoleCommand) (services.User, error) {
	if s.setRoleFn != nil {
		return s.setRoleFn(ctx, cmd)
	}
	return services.User{}, nil
}

func (s *stubUserService) SetUserActive(ctx context.Context, cmd services.SetUserActiveCommand) (services.User, error) {
	if s.setActiveFn != nil {
		return s.setActiveFn(ctx, cmd)
	}
	return services.User{}, nil
}

var _ services.UserService = (*stubUserService)(nil)

func newAuthRouter(svc services.UserService, opts ...AuthOption) chi.Router {
	r := chi.NewRouter()
	handlers := NewAuthHandlers(nil, svc, opts...)
	r.Route("/auth", handlers.Routes)
	return r
}

func TestAuthHandlersRegister(t *testing.T) {
	expires := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	svc := &stubUserService{
		registerFn: func(_ context.Context, cmd services.RegisterCommand) (services.AuthSession, error) {
			if cmd.Email != "jo@example.com" {
				t.Fatalf("expected email jo@example.com, got %s", cmd.Email)
			}
			return services.AuthSession{
				User:      services.User{ID: "usr_1", Email: cmd.Email, Role: domain.RoleCustomer, Active: true},
				Token:     "signed-token",
				ExpiresAt: expires,
			}, nil
		},
	}

	router := newAuthRouter(svc)
	rr := httptest.NewRecorder()
	body := `{"email":"jo@example.com","password":"hunter2hunter2","display_name":"Jo"}`
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body)))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp sessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Token != "signed-token" {
		t.Fatalf("expected token in response, got %q", resp.Token)
	}
	if resp.User.Role != "customer" {
		t.Fatalf("expected customer role, got %s", resp.User.Role)
	}
}

func TestAuthHandlersRegisterDuplicateEmail(t *testing.T) {
	svc := &stubUserService{
		registerFn: func(context.Context, services.RegisterCommand) (services.AuthSession, error) {
			return services.AuthSession{}, services.ErrUserEmailTaken
		},
	}

	router := newAuthRouter(svc)
	rr := httptest.NewRecorder()
	body := `{"email":"jo@example.com","password":"hunter2hunter2"}`
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body)))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestAuthHandlersLoginInvalidCredentials(t *testing.T) {
	svc := &stubUserService{
		loginFn: func(context.Context, services.LoginCommand) (services.AuthSession, error) {
			return services.AuthSession{}, services.ErrUserInvalidCredentials
		},
	}

	router := newAuthRouter(svc)
	rr := httptest.NewRecorder()
	body := `{"email":"jo@example.com","password":"wrong"}`
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "invalid_credentials") {
		t.Fatalf("expected invalid_credentials code, got %s", rr.Body.String())
	}
}

func TestAuthHandlersLoginRateLimited(t *testing.T) {
	svc := &stubUserService{
		loginFn: func(context.Context, services.LoginCommand) (services.AuthSession, error) {
			return services.AuthSession{}, services.ErrUserInvalidCredentials
		},
	}

	router := newAuthRouter(svc, WithCredentialRateLimit(2, time.Minute))
	body := `{"email":"jo@example.com","password":"wrong"}`

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rr.Code)
	}
}

func TestAuthHandlersMe(t *testing.T) {
	svc := &stubUserService{
		profileFn: func(_ context.Context, userID string) (services.User, error) {
			if userID != "usr_1" {
				t.Fatalf("expected usr_1, got %s", userID)
			}
			return services.User{ID: "usr_1", Email: "jo@example.com", Role: domain.RoleCustomer, Active: true}, nil
		},
	}

	router := newAuthRouter(svc)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/auth/me", "", &auth.Identity{UID: "usr_1"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp userResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.User.Email != "jo@example.com" {
		t.Fatalf("expected profile email, got %s", resp.User.Email)
	}
}

func TestAuthHandlersLogout(t *testing.T) {
	router := newAuthRouter(&stubUserService{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/auth/logout", "", &auth.Identity{UID: "usr_1"}))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rr.Code)
	}
}
