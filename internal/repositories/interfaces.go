package repositories

import (
	"context"
	"time"

	domain "github.com/hatchmart/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CategoryRepository persists catalog categories.
type CategoryRepository interface {
	Insert(ctx context.Context, category domain.Category) error
	Update(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, categoryID string) error
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
	List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Category], error)
	CountProducts(ctx context.Context, categoryID string) (int64, error)
}

// ProductRepository persists catalog products.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
	UpdateStock(ctx context.Context, productID string, stock int, updatedAt time.Time) (domain.Product, error)
	Count(ctx context.Context) (int64, error)
	CountLowStock(ctx context.Context, threshold int) (int64, error)
}

// CartRepository owns cart header and item persistence. The cart document is
// keyed by user ID and items live in a subcollection keyed by product ID, so
// at most one item row can exist per product.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	AddItem(ctx context.Context, userID string, item domain.CartItem, now time.Time) (domain.Cart, error)
	SetItemQuantity(ctx context.Context, userID string, productID string, quantity int, now time.Time) (domain.Cart, error)
	RemoveItem(ctx context.Context, userID string, productID string) (domain.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// CartConverter drains a cart into an order inside one transaction. The build
// callback receives the items read inside the transaction and returns the
// order to persist; returning an error aborts without writes.
type CartConverter interface {
	ConvertCart(ctx context.Context, userID string, build func(items []domain.CartItem) (domain.Order, error)) (domain.Order, error)
}

// OrderRepository persists order documents and provides query helpers for users and admins.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status domain.OrderStatus) (int64, error)
	SumCompletedTotals(ctx context.Context) (int64, error)
	StatsForUsers(ctx context.Context, userIDs []string) (map[string]UserOrderStats, error)
}

// UserOrderStats aggregates a user's order history for admin views.
type UserOrderStats struct {
	OrderCount      int64
	TotalSpentCents int64
}

// UserRepository stores account profiles and credential hashes.
type UserRepository interface {
	Insert(ctx context.Context, user domain.User) error
	Update(ctx context.Context, user domain.User) error
	FindByID(ctx context.Context, userID string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	List(ctx context.Context, filter UserListFilter) (domain.CursorPage[domain.User], error)
	Count(ctx context.Context) (int64, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// Filter DTOs shared across repositories ------------------------------------

type ProductListFilter struct {
	CategoryID string
	Search     string
	ActiveOnly bool
	Price      domain.RangeQuery[int64]
	Pagination domain.Pagination
}

type OrderListFilter struct {
	UserID     string
	Status     []string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

type UserListFilter struct {
	Search     string
	Role       *domain.UserRole
	OnlyStaff  bool
	Pagination domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
