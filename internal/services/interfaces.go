package services

import (
	"context"
	"time"

	domain "github.com/hatchmart/api/internal/domain"
	"github.com/hatchmart/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination      = domain.Pagination
	SortOrder       = domain.SortOrder
	Category        = domain.Category
	CategoryCount   = domain.CategoryCount
	Product         = domain.Product
	Cart            = domain.Cart
	CartItem        = domain.CartItem
	Order           = domain.Order
	OrderItem       = domain.OrderItem
	OrderStatus     = domain.OrderStatus
	PaymentStatus   = domain.PaymentStatus
	Payment         = domain.Payment
	Shipping        = domain.Shipping
	ShippingAddress = domain.ShippingAddress
	User            = domain.User
	UserRole        = domain.UserRole
	DashboardStats  = domain.DashboardStats
)

// CatalogService serves category and product browsing and the admin catalog surface.
type CatalogService interface {
	ListCategories(ctx context.Context, pager Pagination) (domain.CursorPage[Category], error)
	GetCategory(ctx context.Context, categoryID string) (Category, error)
	CreateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error)
	UpdateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error

	ListProducts(ctx context.Context, query ProductQuery) (domain.CursorPage[Product], error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	UpdateProductStock(ctx context.Context, cmd UpdateStockCommand) (Product, error)
}

// CartService manages the per-user shopping cart.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	UpdateItemQuantity(ctx context.Context, cmd UpdateCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// OrderService owns checkout and the order lifecycle.
type OrderService interface {
	CreateFromCart(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, query OrderAccess) (Order, error)
	ListOrders(ctx context.Context, query ListOrdersQuery) (domain.CursorPage[Order], error)
	ProcessPayment(ctx context.Context, cmd ProcessPaymentCommand) (Order, error)
	UpdateShipping(ctx context.Context, cmd UpdateShippingCommand) (Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

// UserService handles registration, sign-in, and admin account management.
type UserService interface {
	Register(ctx context.Context, cmd RegisterCommand) (AuthSession, error)
	Authenticate(ctx context.Context, cmd LoginCommand) (AuthSession, error)
	GetProfile(ctx context.Context, userID string) (User, error)
	ListUsers(ctx context.Context, query ListUsersQuery) (domain.CursorPage[UserAccount], error)
	SetUserRole(ctx context.Context, cmd SetUserRoleCommand) (User, error)
	SetUserActive(ctx context.Context, cmd SetUserActiveCommand) (User, error)
}

// ReportService aggregates store-wide numbers for the admin dashboard.
type ReportService interface {
	DashboardStats(ctx context.Context) (DashboardStats, error)
}

// OrderEventPublisher delivers order lifecycle events to downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}

// OrderEventMessage is the payload published on the order events topic.
type OrderEventMessage struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	UserID        string    `json:"userId"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus,omitempty"`
	TotalCents    int64     `json:"totalCents,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Command and DTO definitions ------------------------------------------------

type UpsertCategoryCommand struct {
	CategoryID  string
	Name        string
	Description string
}

type ProductQuery struct {
	Filter     domain.ProductFilter
	Pagination Pagination
}

type UpsertProductCommand struct {
	ProductID       string
	CategoryID      string
	Name            string
	Description     string
	PriceCents      int64
	DiscountPercent int
	Stock           int
	ImageURL        string
	Active          *bool
}

type UpdateStockCommand struct {
	ProductID string
	Stock     int
}

type AddCartItemCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

type UpdateCartItemCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

type RemoveCartItemCommand struct {
	UserID    string
	ProductID string
}

type CreateOrderCommand struct {
	UserID          string
	ShippingAddress ShippingAddress
}

// OrderAccess identifies an order together with the caller. Staff callers may
// read any order; customers only their own.
type OrderAccess struct {
	OrderID string
	UserID  string
	Staff   bool
}

type ListOrdersQuery struct {
	UserID     string
	Staff      bool
	Status     []string
	DateRange  domain.RangeQuery[time.Time]
	Pagination Pagination
}

type ProcessPaymentCommand struct {
	OrderID       string
	UserID        string
	Method        string
	TransactionID string
}

type UpdateShippingCommand struct {
	OrderID        string
	Status         *string
	TrackingNumber *string
}

type RegisterCommand struct {
	Email       string
	Password    string
	DisplayName string
}

type LoginCommand struct {
	Email    string
	Password string
}

// AuthSession bundles the signed token with the account it represents.
type AuthSession struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

type ListUsersQuery struct {
	Search     string
	Role       *UserRole
	OnlyStaff  bool
	Pagination Pagination
}

// UserAccount pairs a user profile with its order history aggregates for
// admin listings.
type UserAccount struct {
	User
	OrderCount      int64
	TotalSpentCents int64
}

type SetUserRoleCommand struct {
	UserID string
	Role   UserRole
}

type SetUserActiveCommand struct {
	UserID string
	Active bool
}

// Filter aliases shared with the repository layer.
type (
	OrderListFilter = repositories.OrderListFilter
	UserListFilter  = repositories.UserListFilter
)
