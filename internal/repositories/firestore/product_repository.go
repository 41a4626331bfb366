package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hatchmart/api/internal/domain"
	pfirestore "github.com/hatchmart/api/internal/platform/firestore"
	"github.com/hatchmart/api/internal/repositories"
)

const productsCollection = "products"

type productDocument struct {
	CategoryID      string    `firestore:"categoryId"`
	Name            string    `firestore:"name"`
	NameLower       string    `firestore:"nameLower"`
	Description     string    `firestore:"description,omitempty"`
	PriceCents      int64     `firestore:"priceCents"`
	DiscountPercent int       `firestore:"discountPercent"`
	Stock           int       `firestore:"stock"`
	ImageURL        string    `firestore:"imageUrl,omitempty"`
	Active          bool      `firestore:"active"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

// ProductRepository persists catalog products within Firestore.
type ProductRepository struct {
	base     *pfirestore.BaseRepository[productDocument]
	provider *pfirestore.Provider
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		base:     pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
		provider: provider,
	}, nil
}

// Insert creates the product document.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(product.ID)
	if id == "" {
		return errors.New("product repository: product id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, encodeProductDocument(product)); err != nil {
		return pfirestore.WrapError("products.insert", err)
	}
	return nil
}

// Update overwrites the product document.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(product.ID)
	if id == "" {
		return errors.New("product repository: product id is required")
	}
	_, err := r.base.Set(ctx, id, encodeProductDocument(product))
	return err
}

// Delete removes the product document.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	return r.base.Delete(ctx, strings.TrimSpace(productID))
}

// FindByID loads a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProductDocument(doc.ID, doc.Data), nil
}

// List returns products matching the filter, most recently created first.
// Search matches name prefixes on the lowercased name field.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("product repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("product repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	categoryID := strings.TrimSpace(filter.CategoryID)
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if categoryID != "" {
			q = q.Where("categoryId", "==", categoryID)
		}
		if filter.ActiveOnly {
			q = q.Where("active", "==", true)
		}
		if filter.Price.From != nil {
			q = q.Where("priceCents", ">=", *filter.Price.From)
		}
		if filter.Price.To != nil {
			q = q.Where("priceCents", "<=", *filter.Price.To)
		}

		if search != "" {
			// Prefix match over the lowercased name. Range ordering replaces
			// the usual createdAt ordering for search queries.
			q = q.Where("nameLower", ">=", search).
				Where("nameLower", "<", search+"").
				OrderBy("nameLower", firestore.Asc).
				OrderBy(firestore.DocumentID, firestore.Asc)
			if fetchLimit > 0 {
				q = q.Limit(fetchLimit)
			}
			return q
		}

		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	nextToken := ""
	if search == "" && limit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeListToken(tokenTime, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeProductDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Product]{Items: items, NextPageToken: nextToken}, nil
}

// UpdateStock sets the stock level atomically and returns the updated product.
func (r *ProductRepository) UpdateStock(ctx context.Context, productID string, stock int, updatedAt time.Time) (domain.Product, error) {
	if r == nil || r.provider == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}
	if stock < 0 {
		return domain.Product{}, errors.New("product repository: stock must not be negative")
	}

	var updated domain.Product
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc productDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore products decode %s: %w", id, err)
		}
		doc.Stock = stock
		doc.UpdatedAt = updatedAt.UTC()
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		updated = decodeProductDocument(id, doc)
		return nil
	})
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("products.updatestock", err)
	}
	return updated, nil
}

// Count reports the total number of products.
func (r *ProductRepository) Count(ctx context.Context) (int64, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("product repository not initialised")
	}
	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return 0, err
	}
	count, err := countDocuments(ctx, coll.Query)
	if err != nil {
		return 0, pfirestore.WrapError("products.count", err)
	}
	return count, nil
}

// CountLowStock reports the number of products with stock strictly below the
// threshold.
func (r *ProductRepository) CountLowStock(ctx context.Context, threshold int) (int64, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("product repository not initialised")
	}
	if threshold < 0 {
		threshold = 0
	}
	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return 0, err
	}
	count, err := countDocuments(ctx, coll.Query.Where("stock", "<", threshold))
	if err != nil {
		return 0, pfirestore.WrapError("products.countlowstock", err)
	}
	return count, nil
}

func encodeProductDocument(product domain.Product) productDocument {
	now := time.Now().UTC()
	createdAt := product.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := product.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = now
	}
	name := strings.TrimSpace(product.Name)
	return productDocument{
		CategoryID:      strings.TrimSpace(product.CategoryID),
		Name:            name,
		NameLower:       strings.ToLower(name),
		Description:     strings.TrimSpace(product.Description),
		PriceCents:      product.PriceCents,
		DiscountPercent: product.DiscountPercent,
		Stock:           product.Stock,
		ImageURL:        strings.TrimSpace(product.ImageURL),
		Active:          product.Active,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}
}

func decodeProductDocument(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:              id,
		CategoryID:      doc.CategoryID,
		Name:            doc.Name,
		Description:     doc.Description,
		PriceCents:      doc.PriceCents,
		DiscountPercent: doc.DiscountPercent,
		Stock:           doc.Stock,
		ImageURL:        doc.ImageURL,
		Active:          doc.Active,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
