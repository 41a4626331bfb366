package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/hatchmart/api/internal/domain"
	"github.com/hatchmart/api/internal/platform/httpx"
	"github.com/hatchmart/api/internal/services"
)

// CatalogHandlers exposes the public browsing endpoints for categories and
// products. No authentication is required.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs a new CatalogHandlers instance.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// CategoryRoutes registers the public /categories endpoints.
func (h *CatalogHandlers) CategoryRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listCategories)
	r.Get("/{categoryID}", h.getCategory)
}

// ProductRoutes registers the public /products endpoints.
func (h *CatalogHandlers) ProductRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/{productID}", h.getProduct)
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, err := h.catalog.ListCategories(ctx, parsePagination(r))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]categoryPayload, 0, len(page.Items))
	for _, category := range page.Items {
		items = append(items, buildCategoryPayload(category))
	}
	writeJSONResponse(w, http.StatusOK, categoryListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *CatalogHandlers) getCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	category, err := h.catalog.GetCategory(ctx, chi.URLParam(r, "categoryID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, categoryResponse{Category: buildCategoryPayload(category)})
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query, err := parseProductQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	// Public browsing never surfaces deactivated products.
	query.Filter.ActiveOnly = true

	page, err := h.catalog.ListProducts(ctx, query)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductListResponse(page))
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func parseProductQuery(r *http.Request) (services.ProductQuery, error) {
	values := r.URL.Query()
	query := services.ProductQuery{
		Filter: domain.ProductFilter{
			CategoryID: strings.TrimSpace(values.Get("category_id")),
			Search:     strings.TrimSpace(values.Get("search")),
		},
		Pagination: parsePagination(r),
	}
	if raw := strings.TrimSpace(values.Get("min_price")); raw != "" {
		price, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || price < 0 {
			return query, errors.New("min_price must be a non-negative integer")
		}
		query.Filter.Price.From = &price
	}
	if raw := strings.TrimSpace(values.Get("max_price")); raw != "" {
		price, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || price < 0 {
			return query, errors.New("max_price must be a non-negative integer")
		}
		query.Filter.Price.To = &price
	}
	return query, nil
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCategoryInUse):
		httpx.WriteError(ctx, w, httpx.NewError("category_in_use", "category still has products", http.StatusConflict))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_conflict", "resource has been modified; retry", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "catalog operation failed", http.StatusInternalServerError))
	}
}

type categoryListResponse struct {
	Items         []categoryPayload `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type categoryResponse struct {
	Category categoryPayload `json:"category"`
}

type categoryPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

type productListResponse struct {
	Items         []productPayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type productResponse struct {
	Product productPayload `json:"product"`
}

type productPayload struct {
	ID              string `json:"id"`
	CategoryID      string `json:"category_id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Price           int64  `json:"price"`
	DiscountPercent int    `json:"discount_percent"`
	DiscountedPrice int64  `json:"discounted_price"`
	Stock           int    `json:"stock"`
	InStock         bool   `json:"in_stock"`
	ImageURL        string `json:"image_url,omitempty"`
	Active          bool   `json:"active"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

func buildCategoryPayload(category domain.Category) categoryPayload {
	payload := categoryPayload{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
	}
	if !category.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(category.CreatedAt)
	}
	if !category.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(category.UpdatedAt)
	}
	return payload
}

func buildProductListResponse(page domain.CursorPage[domain.Product]) productListResponse {
	items := make([]productPayload, 0, len(page.Items))
	for _, product := range page.Items {
		items = append(items, buildProductPayload(product))
	}
	return productListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	}
}

func buildProductPayload(product domain.Product) productPayload {
	payload := productPayload{
		ID:              product.ID,
		CategoryID:      product.CategoryID,
		Name:            product.Name,
		Description:     product.Description,
		Price:           product.PriceCents,
		DiscountPercent: product.DiscountPercent,
		DiscountedPrice: product.DiscountedPriceCents(),
		Stock:           product.Stock,
		InStock:         product.InStock(),
		ImageURL:        product.ImageURL,
		Active:          product.Active,
	}
	if !product.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(product.CreatedAt)
	}
	if !product.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(product.UpdatedAt)
	}
	return payload
}
