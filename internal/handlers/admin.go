package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/hatchmart/api/internal/domain"
	"github.com/hatchmart/api/internal/platform/httpx"
	"github.com/hatchmart/api/internal/services"
)

const maxAdminBodySize = 16 * 1024

// AdminHandlers exposes the staff-only dashboard and account management
// endpoints. Role enforcement happens at the router group level.
type AdminHandlers struct {
	users   services.UserService
	reports services.ReportService
}

// NewAdminHandlers constructs a new AdminHandlers instance.
func NewAdminHandlers(users services.UserService, reports services.ReportService) *AdminHandlers {
	return &AdminHandlers{
		users:   users,
		reports: reports,
	}
}

// Routes registers the dashboard and user administration endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/dashboard", h.dashboard)
	r.Get("/users", h.listUsers)
	r.Patch("/users/{userID}/role", h.setUserRole)
	r.Patch("/users/{userID}/active", h.setUserActive)
}

func (h *AdminHandlers) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.reports.DashboardStats(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("dashboard_error", "failed to assemble dashboard", http.StatusInternalServerError))
		return
	}
	writeJSONResponse(w, http.StatusOK, buildDashboardResponse(stats))
}

func (h *AdminHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	values := r.URL.Query()

	query := services.ListUsersQuery{
		Search:     strings.TrimSpace(values.Get("search")),
		OnlyStaff:  strings.EqualFold(strings.TrimSpace(values.Get("staff")), "true"),
		Pagination: parsePagination(r),
	}
	if raw := strings.ToLower(strings.TrimSpace(values.Get("role"))); raw != "" {
		role := domain.UserRole(raw)
		query.Role = &role
	}

	page, err := h.users.ListUsers(ctx, query)
	if err != nil {
		h.writeAdminUserError(ctx, w, err)
		return
	}

	items := make([]adminUserPayload, 0, len(page.Items))
	for _, account := range page.Items {
		items = append(items, adminUserPayload{
			userPayload: buildUserPayload(account.User),
			OrderCount:  account.OrderCount,
			TotalSpent:  account.TotalSpentCents,
		})
	}
	writeJSONResponse(w, http.StatusOK, userListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

type setUserRoleRequest struct {
	Role string `json:"role"`
}

func (h *AdminHandlers) setUserRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req setUserRoleRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	user, err := h.users.SetUserRole(ctx, services.SetUserRoleCommand{
		UserID: chi.URLParam(r, "userID"),
		Role:   domain.UserRole(strings.ToLower(strings.TrimSpace(req.Role))),
	})
	if err != nil {
		h.writeAdminUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, userResponse{User: buildUserPayload(user)})
}

type setUserActiveRequest struct {
	Active *bool `json:"active"`
}

func (h *AdminHandlers) setUserActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req setUserActiveRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	if req.Active == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "active is required", http.StatusBadRequest))
		return
	}

	user, err := h.users.SetUserActive(ctx, services.SetUserActiveCommand{
		UserID: chi.URLParam(r, "userID"),
		Active: *req.Active,
	})
	if err != nil {
		h.writeAdminUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, userResponse{User: buildUserPayload(user)})
}

func (h *AdminHandlers) writeAdminUserError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("user_error", "user operation failed", http.StatusInternalServerError))
	}
}

type userListResponse struct {
	Items         []adminUserPayload `json:"items"`
	NextPageToken string             `json:"next_page_token,omitempty"`
}

type adminUserPayload struct {
	userPayload
	OrderCount int64 `json:"order_count"`
	TotalSpent int64 `json:"total_spent"`
}

type dashboardResponse struct {
	TotalUsers    int64                      `json:"total_users"`
	TotalProducts int64                      `json:"total_products"`
	TotalOrders   int64                      `json:"total_orders"`
	TotalRevenue  int64                      `json:"total_revenue"`
	PendingOrders int64                      `json:"pending_orders"`
	LowStockCount int64                      `json:"low_stock_count"`
	RecentOrders  []orderSummaryPayload      `json:"recent_orders"`
	TopCategories []dashboardCategoryPayload `json:"top_categories"`
	GeneratedAt   string                     `json:"generated_at"`
}

type dashboardCategoryPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Products int64  `json:"products"`
}

func buildDashboardResponse(stats domain.DashboardStats) dashboardResponse {
	recent := make([]orderSummaryPayload, 0, len(stats.RecentOrders))
	for _, order := range stats.RecentOrders {
		recent = append(recent, buildOrderSummary(order))
	}
	top := make([]dashboardCategoryPayload, 0, len(stats.TopCategories))
	for _, entry := range stats.TopCategories {
		top = append(top, dashboardCategoryPayload{
			ID:       entry.Category.ID,
			Name:     entry.Category.Name,
			Products: entry.Products,
		})
	}
	return dashboardResponse{
		TotalUsers:    stats.TotalUsers,
		TotalProducts: stats.TotalProducts,
		TotalOrders:   stats.TotalOrders,
		TotalRevenue:  stats.TotalRevenue,
		PendingOrders: stats.PendingOrders,
		LowStockCount: stats.LowStockCount,
		RecentOrders:  recent,
		TopCategories: top,
		GeneratedAt:   formatTime(stats.GeneratedAt),
	}
}
