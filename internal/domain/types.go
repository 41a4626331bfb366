package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage wraps a page of results together with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Category groups products for browsing and admin management.
type Category struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Product is a purchasable catalog entry. Prices are minor currency units.
type Product struct {
	ID              string
	CategoryID      string
	Name            string
	Description     string
	PriceCents      int64
	DiscountPercent int
	Stock           int
	ImageURL        string
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DiscountedPriceCents returns the list price reduced by the discount
// percentage, rounded half up. This is the price charged at checkout.
func (p Product) DiscountedPriceCents() int64 {
	return ApplyDiscount(p.PriceCents, p.DiscountPercent)
}

// InStock reports whether any inventory remains.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Cart aggregates the mutable pre-checkout state for a single user. A user
// has at most one cart, created lazily on first access; the cart document
// survives checkout with its items removed.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TotalItems returns the summed quantity across all line items.
func (c Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// TotalPriceCents sums quantity times catalog list price. Checkout charges
// discounted prices instead; the displayed cart total intentionally does not.
func (c Cart) TotalPriceCents() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPriceCents * int64(item.Quantity)
	}
	return total
}

// CartItem is one product/quantity pair in a cart. Product fields are
// snapshotted at add time for display; checkout re-reads the catalog.
type CartItem struct {
	ProductID       string
	ProductName     string
	UnitPriceCents  int64
	DiscountPercent int
	Quantity        int
	AddedAt         time.Time
	UpdatedAt       time.Time
}

// OrderStatus describes the fulfillment state of an order. The set is an
// open enum: any recognized value may follow any other.
type OrderStatus string

const (
	// OrderStatusPending is the initial state after checkout.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing indicates fulfillment has started.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order left the warehouse.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the carrier confirmed delivery.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// KnownOrderStatus reports whether the value belongs to the recognized enum.
func KnownOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// PaymentStatus describes the payment state of an order.
type PaymentStatus string

const (
	// PaymentStatusPending means no payment has been recorded.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted means payment metadata was recorded.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed is reachable only through gateway callbacks.
	PaymentStatusFailed PaymentStatus = "failed"
)

// ShippingAddress captures the destination supplied at checkout. Immutable
// after order creation.
type ShippingAddress struct {
	Address    string
	City       string
	PostalCode string
	Country    string
}

// Payment records the metadata written by the payment transition.
type Payment struct {
	Method        string
	TransactionID string
	PaidAt        *time.Time
}

// Shipping records fulfillment metadata written by the shipping transition.
type Shipping struct {
	TrackingNumber        string
	ShippedAt             *time.Time
	EstimatedDeliveryDate *time.Time
}

// Order is the immutable priced record created from a cart at checkout.
// Only the status fields and the payment/shipping blocks change after
// creation; the line items and total are a frozen ledger entry.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	TotalCents      int64
	Items           []OrderItem
	ShippingAddress ShippingAddress
	Payment         Payment
	Shipping        Shipping
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem stores the discounted unit price captured at checkout time.
// Later catalog changes never touch it.
type OrderItem struct {
	ProductID      string
	ProductName    string
	UnitPriceCents int64
	Quantity       int
}

// SubtotalCents returns unit price times quantity.
func (i OrderItem) SubtotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

// UserRole describes the access level of a profile.
type UserRole string

const (
	// RoleCustomer is the default role for registered users.
	RoleCustomer UserRole = "customer"
	// RoleStaff grants access to the administrative surface.
	RoleStaff UserRole = "staff"
	// RoleAdmin grants full administrative access including user management.
	RoleAdmin UserRole = "admin"
)

// User is the account profile stored alongside credentials.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsStaff reports whether the user may access the administrative surface.
func (u User) IsStaff() bool {
	return u.Role == RoleStaff || u.Role == RoleAdmin
}

// DashboardStats aggregates the headline numbers for the admin dashboard.
type DashboardStats struct {
	TotalUsers    int64
	TotalProducts int64
	TotalOrders   int64
	TotalRevenue  int64
	PendingOrders int64
	LowStockCount int64
	RecentOrders  []Order
	TopCategories []CategoryCount
	GeneratedAt   time.Time
}

// CategoryCount pairs a category with its product count for reporting.
type CategoryCount struct {
	Category Category
	Products int64
}

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	CategoryID string
	Search     string
	ActiveOnly bool
	Price      RangeQuery[int64]
}

// OrderFilter narrows order listings on the admin surface.
type OrderFilter struct {
	UserID  string
	Status  *OrderStatus
	Payment *PaymentStatus
	Created RangeQuery[time.Time]
}

// UserFilter narrows user listings on the admin surface.
type UserFilter struct {
	Search    string
	Role      *UserRole
	OnlyStaff bool
}
