package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/hatchmart/api/internal/domain"
	"github.com/hatchmart/api/internal/repositories"
)

const (
	categoryIDPrefix = "cat_"
	productIDPrefix  = "prd_"

	maxCatalogNameLength        = 200
	maxCatalogDescriptionLength = 5000
)

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid data to a catalog mutation.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogNotFound indicates the category or product does not exist.
	ErrCatalogNotFound = errors.New("catalog: not found")
	// ErrCatalogConflict indicates duplicate IDs or concurrent modification.
	ErrCatalogConflict = errors.New("catalog: conflict")
	// ErrCategoryInUse blocks deleting a category that still has products.
	ErrCategoryInUse = errors.New("catalog: category has products")
)

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Categories  repositories.CategoryRepository
	Products    repositories.ProductRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type catalogService struct {
	categories repositories.CategoryRepository
	products   repositories.ProductRepository
	clock      func() time.Time
	newID      func() string
	sanitizer  *bluemonday.Policy
}

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Categories == nil {
		return nil, errors.New("catalog service: category repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &catalogService{
		categories: deps.Categories,
		products:   deps.Products,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
		// Descriptions come from the admin UI as free text; strip all markup.
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

func (s *catalogService) ListCategories(ctx context.Context, pager Pagination) (domain.CursorPage[Category], error) {
	page, err := s.categories.List(ctx, pager)
	if err != nil {
		return domain.CursorPage[Category]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *catalogService) GetCategory(ctx context.Context, categoryID string) (Category, error) {
	id := strings.TrimSpace(categoryID)
	if id == "" {
		return Category{}, fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return Category{}, s.mapRepositoryError(err)
	}
	return category, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error) {
	name, description, err := s.cleanCategoryInput(cmd)
	if err != nil {
		return Category{}, err
	}

	now := s.clock()
	category := domain.Category{
		ID:          categoryIDPrefix + s.newID(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.categories.Insert(ctx, category); err != nil {
		return Category{}, s.mapRepositoryError(err)
	}
	return category, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error) {
	id := strings.TrimSpace(cmd.CategoryID)
	if id == "" {
		return Category{}, fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	name, description, err := s.cleanCategoryInput(cmd)
	if err != nil {
		return Category{}, err
	}

	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return Category{}, s.mapRepositoryError(err)
	}

	category.Name = name
	category.Description = description
	category.UpdatedAt = s.clock()

	if err := s.categories.Update(ctx, category); err != nil {
		return Category{}, s.mapRepositoryError(err)
	}
	return category, nil
}

// DeleteCategory refuses to remove a category that still has products, so the
// catalog never ends up with orphaned category references.
func (s *catalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	id := strings.TrimSpace(categoryID)
	if id == "" {
		return fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}

	count, err := s.categories.CountProducts(ctx, id)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %d products reference %s", ErrCategoryInUse, count, id)
	}

	if err := s.categories.Delete(ctx, id); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *catalogService) ListProducts(ctx context.Context, query ProductQuery) (domain.CursorPage[Product], error) {
	filter := repositories.ProductListFilter{
		CategoryID: strings.TrimSpace(query.Filter.CategoryID),
		Search:     strings.TrimSpace(query.Filter.Search),
		ActiveOnly: query.Filter.ActiveOnly,
		Price:      query.Filter.Price,
		Pagination: query.Pagination,
	}
	page, err := s.products.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Product]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return Product{}, s.mapRepositoryError(err)
	}
	return product, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	cleaned, err := s.cleanProductInput(ctx, cmd, true)
	if err != nil {
		return Product{}, err
	}

	now := s.clock()
	cleaned.ID = productIDPrefix + s.newID()
	cleaned.CreatedAt = now
	cleaned.UpdatedAt = now

	if err := s.products.Insert(ctx, cleaned); err != nil {
		return Product{}, s.mapRepositoryError(err)
	}
	return cleaned, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	id := strings.TrimSpace(cmd.ProductID)
	if id == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	cleaned, err := s.cleanProductInput(ctx, cmd, false)
	if err != nil {
		return Product{}, err
	}

	existing, err := s.products.FindByID(ctx, id)
	if err != nil {
		return Product{}, s.mapRepositoryError(err)
	}

	existing.CategoryID = cleaned.CategoryID
	existing.Name = cleaned.Name
	existing.Description = cleaned.Description
	existing.PriceCents = cleaned.PriceCents
	existing.DiscountPercent = cleaned.DiscountPercent
	existing.Stock = cleaned.Stock
	existing.ImageURL = cleaned.ImageURL
	if cmd.Active != nil {
		existing.Active = *cmd.Active
	}
	existing.UpdatedAt = s.clock()

	if err := s.products.Update(ctx, existing); err != nil {
		return Product{}, s.mapRepositoryError(err)
	}
	return existing, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	id := strings.TrimSpace(productID)
	if id == "" {
		return fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *catalogService) UpdateProductStock(ctx context.Context, cmd UpdateStockCommand) (Product, error) {
	id := strings.TrimSpace(cmd.ProductID)
	if id == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	if cmd.Stock < 0 {
		return Product{}, fmt.Errorf("%w: stock must not be negative", ErrCatalogInvalidInput)
	}

	product, err := s.products.UpdateStock(ctx, id, cmd.Stock, s.clock())
	if err != nil {
		return Product{}, s.mapRepositoryError(err)
	}
	return product, nil
}

func (s *catalogService) cleanCategoryInput(cmd UpsertCategoryCommand) (string, string, error) {
	name := strings.TrimSpace(s.sanitizer.Sanitize(cmd.Name))
	if name == "" {
		return "", "", fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if len(name) > maxCatalogNameLength {
		return "", "", fmt.Errorf("%w: name exceeds %d characters", ErrCatalogInvalidInput, maxCatalogNameLength)
	}
	description := strings.TrimSpace(s.sanitizer.Sanitize(cmd.Description))
	if len(description) > maxCatalogDescriptionLength {
		return "", "", fmt.Errorf("%w: description exceeds %d characters", ErrCatalogInvalidInput, maxCatalogDescriptionLength)
	}
	return name, description, nil
}

func (s *catalogService) cleanProductInput(ctx context.Context, cmd UpsertProductCommand, requireCategory bool) (Product, error) {
	name := strings.TrimSpace(s.sanitizer.Sanitize(cmd.Name))
	if name == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if len(name) > maxCatalogNameLength {
		return Product{}, fmt.Errorf("%w: name exceeds %d characters", ErrCatalogInvalidInput, maxCatalogNameLength)
	}
	description := strings.TrimSpace(s.sanitizer.Sanitize(cmd.Description))
	if len(description) > maxCatalogDescriptionLength {
		return Product{}, fmt.Errorf("%w: description exceeds %d characters", ErrCatalogInvalidInput, maxCatalogDescriptionLength)
	}

	if cmd.PriceCents < 0 {
		return Product{}, fmt.Errorf("%w: price must not be negative", ErrCatalogInvalidInput)
	}
	if cmd.DiscountPercent < 0 || cmd.DiscountPercent > 100 {
		return Product{}, fmt.Errorf("%w: discount must be between 0 and 100", ErrCatalogInvalidInput)
	}
	if cmd.Stock < 0 {
		return Product{}, fmt.Errorf("%w: stock must not be negative", ErrCatalogInvalidInput)
	}

	imageURL := strings.TrimSpace(cmd.ImageURL)
	if imageURL != "" {
		parsed, err := url.Parse(imageURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return Product{}, fmt.Errorf("%w: image url must be absolute http(s)", ErrCatalogInvalidInput)
		}
	}

	categoryID := strings.TrimSpace(cmd.CategoryID)
	if categoryID == "" && requireCategory {
		return Product{}, fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	if categoryID != "" {
		if _, err := s.categories.FindByID(ctx, categoryID); err != nil {
			return Product{}, s.mapRepositoryError(err)
		}
	}

	active := true
	if cmd.Active != nil {
		active = *cmd.Active
	}

	return Product{
		CategoryID:      categoryID,
		Name:            name,
		Description:     description,
		PriceCents:      cmd.PriceCents,
		DiscountPercent: cmd.DiscountPercent,
		Stock:           cmd.Stock,
		ImageURL:        imageURL,
		Active:          active,
	}, nil
}

func (s *catalogService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCatalogNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCatalogConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("catalog: repository unavailable: %w", err)
		}
	}

	return err
}
