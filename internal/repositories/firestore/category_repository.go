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

const categoriesCollection = "categories"

type categoryDocument struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// CategoryRepository persists catalog categories within Firestore.
type CategoryRepository struct {
	base     *pfirestore.BaseRepository[categoryDocument]
	products *pfirestore.BaseRepository[productDocument]
	provider *pfirestore.Provider
}

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	return &CategoryRepository{
		base:     pfirestore.NewBaseRepository[categoryDocument](provider, categoriesCollection, nil, nil),
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
		provider: provider,
	}, nil
}

// Insert creates the category document.
func (r *CategoryRepository) Insert(ctx context.Context, category domain.Category) error {
	if r == nil || r.base == nil {
		return errors.New("category repository not initialised")
	}
	id := strings.TrimSpace(category.ID)
	if id == "" {
		return errors.New("category repository: category id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, encodeCategoryDocument(category)); err != nil {
		return pfirestore.WrapError("categories.insert", err)
	}
	return nil
}

// Update overwrites the category document.
func (r *CategoryRepository) Update(ctx context.Context, category domain.Category) error {
	if r == nil || r.base == nil {
		return errors.New("category repository not initialised")
	}
	id := strings.TrimSpace(category.ID)
	if id == "" {
		return errors.New("category repository: category id is required")
	}
	_, err := r.base.Set(ctx, id, encodeCategoryDocument(category))
	return err
}

// Delete removes the category document.
func (r *CategoryRepository) Delete(ctx context.Context, categoryID string) error {
	if r == nil || r.base == nil {
		return errors.New("category repository not initialised")
	}
	return r.base.Delete(ctx, strings.TrimSpace(categoryID))
}

// FindByID loads a single category.
func (r *CategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(categoryID))
	if err != nil {
		return domain.Category{}, err
	}
	return decodeCategoryDocument(doc.ID, doc.Data), nil
}

// List returns categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Category], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Category]{}, errors.New("category repository not initialised")
	}

	limit := pager.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(pager.PageToken); token != "" {
		tokenTime, tokenID, err := decodeListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Category]{}, fmt.Errorf("category repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
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
		return domain.CursorPage[domain.Category]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeListToken(tokenTime, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeCategoryDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Category]{Items: items, NextPageToken: nextToken}, nil
}

// CountProducts reports the number of products assigned to the category.
func (r *CategoryRepository) CountProducts(ctx context.Context, categoryID string) (int64, error) {
	if r == nil || r.products == nil {
		return 0, errors.New("category repository not initialised")
	}
	coll, err := r.products.CollectionRef(ctx)
	if err != nil {
		return 0, err
	}
	count, err := countDocuments(ctx, coll.Query.Where("categoryId", "==", strings.TrimSpace(categoryID)))
	if err != nil {
		return 0, pfirestore.WrapError("categories.countproducts", err)
	}
	return count, nil
}

func encodeCategoryDocument(category domain.Category) categoryDocument {
	now := time.Now().UTC()
	createdAt := category.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := category.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = now
	}
	return categoryDocument{
		Name:        strings.TrimSpace(category.Name),
		Description: strings.TrimSpace(category.Description),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

func decodeCategoryDocument(id string, doc categoryDocument) domain.Category {
	return domain.Category{
		ID:          id,
		Name:        doc.Name,
		Description: doc.Description,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

var _ repositories.CategoryRepository = (*CategoryRepository)(nil)
