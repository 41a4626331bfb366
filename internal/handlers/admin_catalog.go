package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hatchmart/api/internal/platform/httpx"
	"github.com/hatchmart/api/internal/services"
)

// AdminCatalogHandlers exposes the staff-only category and product CRUD
// endpoints, including stock adjustments.
type AdminCatalogHandlers struct {
	catalog services.CatalogService
}

// NewAdminCatalogHandlers constructs admin catalog handlers.
func NewAdminCatalogHandlers(catalog services.CatalogService) *AdminCatalogHandlers {
	return &AdminCatalogHandlers{catalog: catalog}
}

// Routes registers the admin catalog endpoints.
func (h *AdminCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/categories", func(rt chi.Router) {
		rt.Post("/", h.createCategory)
		rt.Put("/{categoryID}", h.updateCategory)
		rt.Delete("/{categoryID}", h.deleteCategory)
	})
	r.Route("/products", func(rt chi.Router) {
		rt.Get("/", h.listProducts)
		rt.Post("/", h.createProduct)
		rt.Put("/{productID}", h.updateProduct)
		rt.Delete("/{productID}", h.deleteProduct)
		rt.Put("/{productID}/stock", h.updateStock)
	})
}

type upsertCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *AdminCatalogHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req upsertCategoryRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	category, err := h.catalog.CreateCategory(ctx, services.UpsertCategoryCommand{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, categoryResponse{Category: buildCategoryPayload(category)})
}

func (h *AdminCatalogHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req upsertCategoryRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	category, err := h.catalog.UpdateCategory(ctx, services.UpsertCategoryCommand{
		CategoryID:  chi.URLParam(r, "categoryID"),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, categoryResponse{Category: buildCategoryPayload(category)})
}

func (h *AdminCatalogHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.catalog.DeleteCategory(ctx, chi.URLParam(r, "categoryID")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *AdminCatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query, err := parseProductQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	// Staff see inactive products unless they opt into the filter.
	query.Filter.ActiveOnly = strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("active")), "true")

	page, err := h.catalog.ListProducts(ctx, query)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductListResponse(page))
}

type upsertProductRequest struct {
	CategoryID      string `json:"category_id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Price           int64  `json:"price"`
	DiscountPercent int    `json:"discount_percent"`
	Stock           int    `json:"stock"`
	ImageURL        string `json:"image_url"`
	Active          *bool  `json:"active"`
}

func (req upsertProductRequest) command(productID string) services.UpsertProductCommand {
	return services.UpsertProductCommand{
		ProductID:       productID,
		CategoryID:      strings.TrimSpace(req.CategoryID),
		Name:            req.Name,
		Description:     req.Description,
		PriceCents:      req.Price,
		DiscountPercent: req.DiscountPercent,
		Stock:           req.Stock,
		ImageURL:        strings.TrimSpace(req.ImageURL),
		Active:          req.Active,
	}
}

func (h *AdminCatalogHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req upsertProductRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	product, err := h.catalog.CreateProduct(ctx, req.command(""))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, productResponse{Product: buildProductPayload(product)})
}

func (h *AdminCatalogHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req upsertProductRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, req.command(chi.URLParam(r, "productID")))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *AdminCatalogHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.catalog.DeleteProduct(ctx, chi.URLParam(r, "productID")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type updateStockRequest struct {
	Stock *int `json:"stock"`
}

func (h *AdminCatalogHandlers) updateStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateStockRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	if req.Stock == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "stock is required", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.UpdateProductStock(ctx, services.UpdateStockCommand{
		ProductID: chi.URLParam(r, "productID"),
		Stock:     *req.Stock,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}
