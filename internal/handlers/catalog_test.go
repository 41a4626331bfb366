package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/hatchmart/api/internal/domain"
	"github.com/hatchmart/api/internal/services"
)

type stubCatalogService struct {
	listCategoriesFn func(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Category], error)
	getCategoryFn    func(ctx context.Context, categoryID string) (services.Category, error)
	createCategoryFn func(ctx context.Context, cmd services.UpsertCategoryCommand) (services.Category, error)
	updateCategoryFn func(ctx context.Context, cmd services.UpsertCategoryCommand) (services.Category, error)
	deleteCategoryFn func(ctx context.Context, categoryID string) error

	listProductsFn  func(ctx context.Context, query services.ProductQuery) (domain.CursorPage[services.Product], error)
	getProductFn    func(ctx context.Context, productID string) (services.Product, error)
	createProductFn func(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error)
	updateProductFn func(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error)
	deleteProductFn func(ctx context.Context, productID string) error
	updateStockFn   func(ctx context.Context, cmd services.UpdateStockCommand) (services.Product, error)
}

func (s *stubCatalogService) ListCategories(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Category], error) {
	if s.listCategoriesFn != nil {
		return s.listCategoriesFn(ctx, pager)
	}
	return domain.CursorPage[services.Category]{}, nil
}

func (s *stubCatalogService) GetCategory(ctx context.Context, categoryID string) (services.Category, error) {
	if s.getCategoryFn != nil {
		return s.getCategoryFn(ctx, categoryID)
	}
	return services.Category{}, nil
}

func (s *stubCatalogService) CreateCategory(ctx context.Context, cmd services.UpsertCategoryCommand) (services.Category, error) {
	if s.createCategoryFn != nil {
		return s.createCategoryFn(ctx, cmd)
	}
	return services.Category{}, nil
}

func (s *stubCatalogService) UpdateCategory(ctx context.Context, cmd services.UpsertCategoryCommand) (services.Category, error) {
	if s.updateCategoryFn != nil {
		return s.updateCategoryFn(ctx, cmd)
	}
	return services.Category{}, nil
}

func (s *stubCatalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	if s.deleteCategoryFn != nil {
		return s.deleteCategoryFn(ctx, categoryID)
	}
	return nil
}

func (s *stubCatalogService) ListProducts(ctx context.Context, query services.ProductQuery) (domain.CursorPage[services.Product], error) {
	if s.listProductsFn != nil {
		return s.listProductsFn(ctx, query)
	}
	return domain.CursorPage[services.Product]{}, nil
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (services.Product, error) {
	if s.getProductFn != nil {
		return s.getProductFn(ctx, productID)
	}
	return services.Product{}, nil
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	if s.createProductFn != nil {
		return s.createProductFn(ctx, cmd)
	}
	return services.Product{}, nil
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	if s.updateProductFn != nil {
		return s.updateProductFn(ctx, cmd)
	}
	return services.Product{}, nil
}

func (s *stubCatalogService) DeleteProduct(ctx context.Context, productID string) error {
	if s.deleteProductFn != nil {
		return s.deleteProductFn(ctx, productID)
	}
	return nil
}

func (s *stubCatalogService) UpdateProductStock(ctx context.Context, cmd services.UpdateStockCommand) (services.Product, error) {
	if s.updateStockFn != nil {
		return s.updateStockFn(ctx, cmd)
	}
	return services.Product{}, nil
}

var _ services.CatalogService = (*stubCatalogService)(nil)

func newCatalogRouter(svc services.CatalogService) chi.Router {
	r := chi.NewRouter()
	handlers := NewCatalogHandlers(svc)
	r.Route("/categories", handlers.CategoryRoutes)
	r.Route("/products", handlers.ProductRoutes)
	return r
}

func TestCatalogHandlersListProductsForcesActive(t *testing.T) {
	var captured services.ProductQuery
	svc := &stubCatalogService{
		listProductsFn: func(_ context.Context, query services.ProductQuery) (domain.CursorPage[services.Product], error) {
			captured = query
			return domain.CursorPage[services.Product]{
				Items: []services.Product{
					{ID: "prd_1", Name: "Mug", PriceCents: 2500, DiscountPercent: 20, Stock: 3, Active: true},
				},
				NextPageToken: "next",
			}, nil
		},
	}

	router := newCatalogRouter(svc)
	rr := httptest.NewRecorder()
	target := "/products?category_id=cat_1&search=mug&min_price=100&max_price=5000&pageSize=25"
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !captured.Filter.ActiveOnly {
		t.Fatal("expected public listing to force active-only")
	}
	if captured.Filter.CategoryID != "cat_1" || captured.Filter.Search != "mug" {
		t.Fatalf("unexpected filter: %+v", captured.Filter)
	}
	if captured.Filter.Price.From == nil || *captured.Filter.Price.From != 100 {
		t.Fatalf("expected min price 100, got %+v", captured.Filter.Price.From)
	}

	var resp productListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.NextPageToken != "next" {
		t.Fatalf("expected next page token, got %q", resp.NextPageToken)
	}
	if resp.Items[0].DiscountedPrice != 2000 {
		t.Fatalf("expected discounted price 2000, got %d", resp.Items[0].DiscountedPrice)
	}
	if !resp.Items[0].InStock {
		t.Fatal("expected in_stock true")
	}
}

func TestCatalogHandlersGetProductNotFound(t *testing.T) {
	svc := &stubCatalogService{
		getProductFn: func(context.Context, string) (services.Product, error) {
			return services.Product{}, services.ErrCatalogNotFound
		},
	}

	router := newCatalogRouter(svc)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/prd_missing", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCatalogHandlersListProductsRejectsBadPrice(t *testing.T) {
	router := newCatalogRouter(&stubCatalogService{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products?min_price=cheap", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCatalogHandlersGetCategory(t *testing.T) {
	svc := &stubCatalogService{
		getCategoryFn: func(_ context.Context, categoryID string) (services.Category, error) {
			if categoryID != "cat_1" {
				t.Fatalf("expected cat_1, got %s", categoryID)
			}
			return services.Category{ID: "cat_1", Name: "Ceramics"}, nil
		},
	}

	router := newCatalogRouter(svc)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/categories/cat_1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp categoryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Category.Name != "Ceramics" {
		t.Fatalf("expected Ceramics, got %s", resp.Category.Name)
	}
}
