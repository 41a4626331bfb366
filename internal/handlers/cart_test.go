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

	"github.com/hatchmart/api/internal/platform/auth"
	"github.com/hatchmart/api/internal/services"
)

type stubCartService struct {
	getFn    func(ctx context.Context, userID string) (services.Cart, error)
	addFn    func(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error)
	updateFn func(ctx context.Context, cmd services.UpdateCartItemCommand) (services.Cart, error)
	removeFn func(ctx context.Context, cmd services.RemoveCartItemCommand) (services.Cart, error)
	clearFn  func(ctx context.Context, userID string) error
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (services.Cart, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return services.Cart{}, nil
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
	if s.addFn != nil {
		return s.addFn(ctx, cmd)
	}
	return services.Cart{}, nil
}

func (s *stubCartService) UpdateItemQuantity(ctx context.Context, cmd services.UpdateCartItemCommand) (services.Cart, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.Cart{}, nil
}

func (s *stubCartService) RemoveItem(ctx context.Context, cmd services.RemoveCartItemCommand) (services.Cart, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, cmd)
	}
	return services.Cart{}, nil
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	if s.clearFn != nil {
		return s.clearFn(ctx, userID)
	}
	return nil
}

func newCartRouter(svc services.CartService) chi.Router {
	r := chi.NewRouter()
	handlers := NewCartHandlers(nil, svc)
	r.Route("/cart", handlers.Routes)
	return r
}

func authedRequest(method, target string, body string, identity *auth.Identity) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	return req
}

func TestCartHandlersGetCart(t *testing.T) {
	added := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := &stubCartService{
		getFn: func(_ context.Context, userID string) (services.Cart, error) {
			if userID != "user-1" {
				t.Fatalf("expected user-1, got %s", userID)
			}
			return services.Cart{
				ID:     "user-1",
				UserID: "user-1",
				Items: []services.CartItem{
					{ProductID: "prd_1", ProductName: "Mug", UnitPriceCents: 2500, Quantity: 2, AddedAt: added},
					{ProductID: "prd_2", ProductName: "Poster", UnitPriceCents: 10000, DiscountPercent: 10, Quantity: 1, AddedAt: added},
				},
			}, nil
		},
	}

	router := newCartRouter(svc)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/cart", "", &auth.Identity{UID: "user-1"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Cart.ItemsCount != 3 {
		t.Fatalf("expected items_count 3, got %d", body.Cart.ItemsCount)
	}
	// Display total is list price; the discount only applies at checkout.
	if body.Cart.TotalPrice != 15000 {
		t.Fatalf("expected total_price 15000, got %d", body.Cart.TotalPrice)
	}
	if body.Cart.Items[1].Subtotal != 10000 {
		t.Fatalf("expected subtotal 10000, got %d", body.Cart.Items[1].Subtotal)
	}
}

func TestCartHandlersGetCartUnauthenticated(t *testing.T) {
	router := newCartRouter(&stubCartService{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/cart", "", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCartHandlersAddItem(t *testing.T) {
	var captured services.AddCartItemCommand
	svc := &stubCartService{
		addFn: func(_ context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
			captured = cmd
			return services.Cart{ID: cmd.UserID, UserID: cmd.UserID}, nil
		},
	}

	router := newCartRouter(svc)
	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/cart/items", `{"product_id":"prd_9","quantity":3}`, &auth.Identity{UID: "user-1"})
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "user-1" || captured.ProductID != "prd_9" || captured.Quantity != 3 {
		t.Fatalf("unexpected command: %+v", captured)
	}
}

func TestCartHandlersAddItemUnavailableProduct(t *testing.T) {
	svc := &stubCartService{
		addFn: func(context.Context, services.AddCartItemCommand) (services.Cart, error) {
			return services.Cart{}, services.ErrCartProductUnavailable
		},
	}

	router := newCartRouter(svc)
	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/cart/items", `{"product_id":"prd_x","quantity":1}`, &auth.Identity{UID: "user-1"})
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "product_unavailable") {
		t.Fatalf("expected product_unavailable code, got %s", rr.Body.String())
	}
}

func TestCartHandlersUpdateItemNotFound(t *testing.T) {
	svc := &stubCartService{
		updateFn: func(_ context.Context, cmd services.UpdateCartItemCommand) (services.Cart, error) {
			if cmd.ProductID != "prd_missing" {
				t.Fatalf("expected prd_missing, got %s", cmd.ProductID)
			}
			return services.Cart{}, services.ErrCartItemNotFound
		},
	}

	router := newCartRouter(svc)
	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodPatch, "/cart/items/prd_missing", `{"quantity":2}`, &auth.Identity{UID: "user-1"})
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCartHandlersClearCart(t *testing.T) {
	cleared := ""
	svc := &stubCartService{
		clearFn: func(_ context.Context, userID string) error {
			cleared = userID
			return nil
		},
	}

	router := newCartRouter(svc)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodDelete, "/cart", "", &auth.Identity{UID: "user-7"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if cleared != "user-7" {
		t.Fatalf("expected clear for user-7, got %q", cleared)
	}
}

var _ services.CartService = (*stubCartService)(nil)
