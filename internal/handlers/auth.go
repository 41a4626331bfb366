package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/hatchmart/api/internal/domain"
	"github.com/hatchmart/api/internal/platform/auth"
	"github.com/hatchmart/api/internal/platform/httpx"
	"github.com/hatchmart/api/internal/services"
)

const maxAuthBodySize = 8 * 1024

// AuthHandlers exposes registration, login, and the current-user profile.
type AuthHandlers struct {
	authn   *auth.Authenticator
	users   services.UserService
	limiter rateLimiter
}

// AuthOption customises the auth handlers.
type AuthOption func(*AuthHandlers)

// WithCredentialRateLimit throttles register and login attempts per client IP.
func WithCredentialRateLimit(limit int, window time.Duration) AuthOption {
	return func(h *AuthHandlers) {
		h.limiter = newFixedWindowLimiter(limit, window, nil)
	}
}

// NewAuthHandlers constructs a new AuthHandlers instance.
func NewAuthHandlers(authn *auth.Authenticator, users services.UserService, opts ...AuthOption) *AuthHandlers {
	h := &AuthHandlers{
		authn: authn,
		users: users,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// allowAttempt applies the credential rate limit, writing a 429 when exceeded.
func (h *AuthHandlers) allowAttempt(w http.ResponseWriter, r *http.Request) bool {
	if h.limiter == nil {
		return true
	}
	if h.limiter.Allow(clientKey(r)) {
		return true
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many attempts; slow down", http.StatusTooManyRequests))
	return false
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}

// Routes registers the /auth endpoints. Register and login are public; the
// profile and logout endpoints require a bearer token.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Group(func(g chi.Router) {
		if h.authn != nil {
			g.Use(h.authn.RequireAuth())
		}
		g.Get("/me", h.me)
		g.Post("/logout", h.logout)
	})
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.allowAttempt(w, r) {
		return
	}

	var req registerRequest
	if err := decodeJSONBody(r, maxAuthBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	session, err := h.users.Register(ctx, services.RegisterCommand{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildSessionResponse(session))
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.allowAttempt(w, r) {
		return
	}

	var req loginRequest
	if err := decodeJSONBody(r, maxAuthBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	session, err := h.users.Authenticate(ctx, services.LoginCommand{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSessionResponse(session))
}

func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetProfile(ctx, identity.UID)
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, userResponse{User: buildUserPayload(user)})
}

// Tokens are stateless, so logout is the client discarding its copy. The
// endpoint exists so clients get a uniform call and a place to hook server
// side revocation later.
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandlers) writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserEmailTaken):
		httpx.WriteError(ctx, w, httpx.NewError("email_taken", "email is already registered", http.StatusConflict))
	case errors.Is(err, services.ErrUserInvalidCredentials):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "invalid email or password", http.StatusUnauthorized))
	case errors.Is(err, services.ErrUserDisabled):
		httpx.WriteError(ctx, w, httpx.NewError("account_disabled", "account is disabled", http.StatusForbidden))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("user_error", "user operation failed", http.StatusInternalServerError))
	}
}

type sessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expires_at"`
	User      userPayload `json:"user"`
}

type userResponse struct {
	User userPayload `json:"user"`
}

type userPayload struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

func buildSessionResponse(session services.AuthSession) sessionResponse {
	return sessionResponse{
		Token:     session.Token,
		ExpiresAt: formatTime(session.ExpiresAt),
		User:      buildUserPayload(session.User),
	}
}

func buildUserPayload(user domain.User) userPayload {
	payload := userPayload{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: strings.TrimSpace(user.DisplayName),
		Role:        string(user.Role),
		Active:      user.Active,
	}
	if !user.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(user.CreatedAt)
	}
	if !user.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(user.UpdatedAt)
	}
	return payload
}
