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
	"github.com/hatchmart/api/internal/services"
)

type stubReportService struct {
	statsFn func(ctx context.Context) (services.DashboardStats, error)
}

func (s *stubReportService) DashboardStats(ctx context.Context) (services.DashboardStats, error) {
	if s.statsFn != nil {
		return s.statsFn(ctx)
	}
	return services.DashboardStats{}, nil
}

var _ services.ReportService = (*stubReportService)(nil)

func newAdminRouter(users services.UserService, reports services.ReportService) chi.Router {
	r := chi.NewRouter()
	handlers := NewAdminHandlers(users, reports)
	r.Route("/admin", handlers.Routes)
	return r
}

func TestAdminHandlersDashboard(t *testing.T) {
	generated := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	reports := &stubReportService{
		statsFn: func(context.Context) (services.DashboardStats, error) {
			return services.DashboardStats{
				TotalUsers:    120,
				TotalProducts: 45,
				TotalOrders:   300,
				TotalRevenue:  4_500_000,
				PendingOrders: 12,
				LowStockCount: 4,
				RecentOrders: []services.Order{
					{ID: "ord_9", OrderNumber: "HM-2025-000300", Status: domain.OrderStatusPending, TotalCents: 9900},
				},
				TopCategories: []services.CategoryCount{
					{Category: services.Category{ID: "cat_1", Name: "Ceramics"}, Products: 20},
				},
				GeneratedAt: generated,
			}, nil
		},
	}

	router := newAdminRouter(&stubUserService{}, reports)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp dashboardResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.TotalRevenue != 4_500_000 {
		t.Fatalf("expected revenue 4500000, got %d", resp.TotalRevenue)
	}
	if len(resp.RecentOrders) != 1 || resp.RecentOrders[0].OrderNumber != "HM-2025-000300" {
		t.Fatalf("unexpected recent orders: %+v", resp.RecentOrders)
	}
	if len(resp.TopCategories) != 1 || resp.TopCategories[0].Products != 20 {
		t.Fatalf("unexpected top categories: %+v", resp.TopCategories)
	}
}

func TestAdminHandlersListUsersFilters(t *testing.T) {
	var captured services.ListUsersQuery
	users := &stubUserService{
		listFn: func(_ context.Context, query services.ListUsersQuery) (domain.CursorPage[services.UserAccount], error) {
			captured = query
			return domain.CursorPage[services.UserAccount]{
				Items: []services.UserAccount{{
					User:            services.User{ID: "usr_1", Email: "jo@example.com", Role: domain.RoleStaff, Active: true},
					OrderCount:      4,
					TotalSpentCents: 98000,
				}},
			}, nil
		},
	}

	router := newAdminRouter(users, &stubReportService{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/users?search=jo&role=staff&pageSize=10", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Search != "jo" {
		t.Fatalf("expected search jo, got %q", captured.Search)
	}
	if captured.Role == nil || *captured.Role != domain.RoleStaff {
		t.Fatalf("expected staff role filter, got %+v", captured.Role)
	}
	if captured.Pagination.PageSize != 10 {
		t.Fatalf("expected page size 10, got %d", captured.Pagination.PageSize)
	}

	var resp userListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 user, got %d", len(resp.Items))
	}
	if resp.Items[0].OrderCount != 4 || resp.Items[0].TotalSpent != 98000 {
		t.Fatalf("expected order stats in listing, got %+v", resp.Items[0])
	}
}

func TestAdminHandlersSetUserRole(t *testing.T) {
	users := &stubUserService{
		setRoleFn: func(_ context.Context, cmd services.SetUserRoleCommand) (services.User, error) {
			if cmd.UserID != "usr_1" || cmd.Role != domain.RoleStaff {
				t.Fatalf("unexpected command: %+v", cmd)
			}
			return services.User{ID: "usr_1", Role: domain.RoleStaff, Active: true}, nil
		},
	}

	router := newAdminRouter(users, &stubReportService{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/admin/users/usr_1/role", strings.NewReader(`{"role":"Staff"}`))
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp userResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.User.Role != "staff" {
		t.Fatalf("expected staff, got %s", resp.User.Role)
	}
}

func TestAdminHandlersSetUserActiveRequiresFlag(t *testing.T) {
	router := newAdminRouter(&stubUserService{}, &stubReportService{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/admin/users/usr_1/active", strings.NewReader(`{}`))
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAdminHandlersSetUserActive(t *testing.T) {
	users := &stubUserService{
		setActiveFn: func(_ context.Context, cmd services.SetUserActiveCommand) (services.User, error) {
			if cmd.UserID != "usr_1" || cmd.Active {
				t.Fatalf("unexpected command: %+v", cmd)
			}
			return services.User{ID: "usr_1", Role: domain.RoleCustomer, Active: false}, nil
		},
	}

	router := newAdminRouter(users, &stubReportService{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/admin/users/usr_1/active", strings.NewReader(`{"active":false}`))
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp userResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.User.Active {
		t.Fatal("expected active false")
	}
}
