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

func newAdminOrderRouter(svc services.OrderService) chi.Router {
	r := chi.NewRouter()
	handlers := NewAdminOrderHandlers(svc)
	r.Route("/admin/orders", handlers.Routes)
	return r
}

func TestAdminOrderHandlersListAllOrders(t *testing.T) {
	var captured services.ListOrdersQuery
	svc := &stubOrderService{
		listFn: func(_ context.Context, query services.ListOrdersQuery) (domain.CursorPage[services.Order], error) {
			captured = query
			return domain.CursorPage[services.Order]{}, nil
		},
	}

	router := newAdminOrderRouter(svc)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/orders?user_id=user-3&status=delivered", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !captured.Staff {
		t.Fatal("expected staff listing")
	}
	if captured.UserID != "user-3" {
		t.Fatalf("expected user filter user-3, got %q", captured.UserID)
	}
}

func TestAdminOrderHandlersUpdateShipping(t *testing.T) {
	shipped := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	estimate := shipped.AddDate(0, 0, 5)
	var captured services.UpdateShippingCommand
	svc := &stubOrderService{
		shippingFn: func(_ context.Context, cmd services.UpdateShippingCommand) (services.Order, error) {
			captured = cmd
			return services.Order{
				ID:     cmd.OrderID,
				Status: domain.OrderStatusShipped,
				Shipping: services.Shipping{
					TrackingNumber:        "TRK-1",
					ShippedAt:             &shipped,
					EstimatedDeliveryDate: &estimate,
				},
			}, nil
		},
	}

	router := newAdminOrderRouter(svc)
	rr := httptest.NewRecorder()
	body := `{"status":"shipped","tracking_number":"TRK-1"}`
	req := httptest.NewRequest(http.MethodPatch, "/admin/orders/ord_1/shipping", strings.NewReader(body))
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Status == nil || *captured.Status != "shipped" {
		t.Fatalf("expected status shipped, got %+v", captured.Status)
	}
	if captured.TrackingNumber == nil || *captured.TrackingNumber != "TRK-1" {
		t.Fatalf("expected tracking TRK-1, got %+v", captured.TrackingNumber)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.Shipping == nil || resp.Order.Shipping.EstimatedDeliveryDate == nil {
		t.Fatalf("expected shipping block with estimate, got %+v", resp.Order.Shipping)
	}
}

func TestAdminOrderHandlersUpdateShippingInvalidStatus(t *testing.T) {
	svc := &stubOrderService{
		shippingFn: func(context.Context, services.UpdateShippingCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderInvalidStatus
		},
	}

	router := newAdminOrderRouter(svc)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/admin/orders/ord_1/shipping", strings.NewReader(`{"status":"teleported"}`))
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "invalid_status") {
		t.Fatalf("expected invalid_status code, got %s", rr.Body.String())
	}
}

func TestAdminOrderHandlersUpdateShippingRequiresField(t *testing.T) {
	router := newAdminOrderRouter(&stubOrderService{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/admin/orders/ord_1/shipping", strings.NewReader(`{}`))
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAdminOrderHandlersDeleteOrder(t *testing.T) {
	deleted := ""
	svc := &stubOrderService{
		deleteFn: func(_ context.Context, orderID string) error {
			deleted = orderID
			return nil
		},
	}

	router := newAdminOrderRouter(svc)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/admin/orders/ord_1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if deleted != "ord_1" {
		t.Fatalf("expected delete ord_1, got %q", deleted)
	}
}
