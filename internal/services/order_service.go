package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/hatchmart/api/internal/domain"
	"github.com/hatchmart/api/internal/repositories"
)

const (
	orderEventCreated          = "order.created"
	orderEventPaymentCompleted = "order.payment.completed"
	orderEventShippingUpdated  = "order.shipping.updated"

	orderIDPrefix        = "ord_"
	orderCounterID       = "orders"
	defaultPaymentMethod = "credit_card"
	deliveryEstimateDays = 5
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located or is not owned by the caller.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates duplicate writes or concurrent modification.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderEmptyCart rejects checkout when the cart has no items.
	ErrOrderEmptyCart = errors.New("order: cart is empty")
	// ErrOrderInvalidStatus rejects status values outside the recognized enum.
	ErrOrderInvalidStatus = errors.New("order: invalid status")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Carts       repositories.CartConverter
	Products    repositories.ProductRepository
	Counters    repositories.CounterRepository
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders   repositories.OrderRepository
	carts    repositories.CartConverter
	products repositories.ProductRepository
	counters repositories.CounterRepository
	clock    func() time.Time
	newID    func() string
	events   OrderEventPublisher
	logger   func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart converter is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
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

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:   deps.Orders,
		carts:    deps.Carts,
		products: deps.Products,
		counters: deps.Counters,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

// CreateFromCart drains the caller's cart into a new order. Line prices are
// read from the catalog at conversion time, not from the add-to-cart snapshot,
// and the order charges discounted unit prices even though the cart display
// total does not. The conversion is atomic: an empty cart aborts before any
// write, and a failed write leaves the cart intact.
func (s *orderService) CreateFromCart(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	now := s.now()

	order, err := s.carts.ConvertCart(ctx, userID, func(items []domain.CartItem) (domain.Order, error) {
		if len(items) == 0 {
			return domain.Order{}, ErrOrderEmptyCart
		}

		lines := make([]domain.OrderItem, 0, len(items))
		var total int64
		for _, item := range items {
			name := item.ProductName
			listPrice := item.UnitPriceCents
			discount := item.DiscountPercent
			product, err := s.products.FindByID(ctx, item.ProductID)
			switch {
			case err == nil:
				name = product.Name
				listPrice = product.PriceCents
				discount = product.DiscountPercent
			case isRepositoryNotFound(err):
				// Product removed since it was added; the snapshot is the
				// only price left to charge.
			default:
				return domain.Order{}, err
			}
			// Unit prices freeze at the discounted value in effect right now.
			price := domain.ApplyDiscount(listPrice, discount)
			lines = append(lines, domain.OrderItem{
				ProductID:      item.ProductID,
				ProductName:    name,
				UnitPriceCents: price,
				Quantity:       item.Quantity,
			})
			total += price * int64(item.Quantity)
		}

		number, err := s.generateOrderNumber(ctx, now)
		if err != nil {
			return domain.Order{}, err
		}

		return domain.Order{
			ID:              orderIDPrefix + s.newID(),
			OrderNumber:     number,
			UserID:          userID,
			Status:          domain.OrderStatusPending,
			PaymentStatus:   domain.PaymentStatusPending,
			TotalCents:      total,
			Items:           lines,
			ShippingAddress: cmd.ShippingAddress,
			CreatedAt:       now,
			UpdatedAt:       now,
		}, nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderEmptyCart) {
			return Order{}, ErrOrderEmptyCart
		}
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		Type:        orderEventCreated,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      string(order.Status),
		TotalCents:  order.TotalCents,
		OccurredAt:  now,
	})

	return order, nil
}

// GetOrder loads an order. Customers only see their own orders; missing and
// foreign orders are indistinguishable to them.
func (s *orderService) GetOrder(ctx context.Context, query OrderAccess) (Order, error) {
	return s.loadAuthorized(ctx, query)
}

func (s *orderService) ListOrders(ctx context.Context, query ListOrdersQuery) (domain.CursorPage[Order], error) {
	filter := repositories.OrderListFilter{
		Status:     query.Status,
		DateRange:  query.DateRange,
		Pagination: query.Pagination,
	}
	if query.Staff {
		filter.UserID = strings.TrimSpace(query.UserID)
	} else {
		userID := strings.TrimSpace(query.UserID)
		if userID == "" {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
		}
		filter.UserID = userID
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// ProcessPayment records payment completion metadata. The transition is
// deliberately unconditional: repeated calls overwrite the method, transaction
// id, and payment date with fresh values. Guarding against double payment is a
// caller concern. Ownership is always enforced here: paying someone else's
// order reports not-found regardless of the caller's role.
func (s *orderService) ProcessPayment(ctx context.Context, cmd ProcessPaymentCommand) (Order, error) {
	order, err := s.loadAuthorized(ctx, OrderAccess{OrderID: cmd.OrderID, UserID: cmd.UserID})
	if err != nil {
		return Order{}, err
	}

	now := s.now()

	method := strings.TrimSpace(cmd.Method)
	if method == "" {
		method = defaultPaymentMethod
	}
	transactionID := strings.TrimSpace(cmd.TransactionID)
	if transactionID == "" {
		transactionID = fmt.Sprintf("TXN-%s-%d", order.ID, now.Unix())
	}

	order.Payment = domain.Payment{
		Method:        method,
		TransactionID: transactionID,
		PaidAt:        &now,
	}
	order.PaymentStatus = domain.PaymentStatusCompleted
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		Type:          orderEventPaymentCompleted,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalCents:    order.TotalCents,
		OccurredAt:    now,
	})

	return order, nil
}

// UpdateShipping applies a partial update to fulfillment state. Status and
// tracking number each change only when supplied. No transition graph is
// enforced; any recognized status may follow any other. Shipped and estimated
// delivery dates derive once and never reset:
//
//	status becomes shipped and no shipped date exists  -> shipped date = now
//	shipped date exists and no estimate exists         -> estimate = shipped date + 5 days
//
// Both rules run on every call, so a single call can set both dates.
func (s *orderService) UpdateShipping(ctx context.Context, cmd UpdateShippingCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	if cmd.Status != nil {
		candidate := domain.OrderStatus(strings.TrimSpace(*cmd.Status))
		if !domain.KnownOrderStatus(candidate) {
			return Order{}, fmt.Errorf("%w: %q", ErrOrderInvalidStatus, *cmd.Status)
		}
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	now := s.now()

	if cmd.Status != nil {
		order.Status = domain.OrderStatus(strings.TrimSpace(*cmd.Status))
	}
	if cmd.TrackingNumber != nil {
		order.Shipping.TrackingNumber = strings.TrimSpace(*cmd.TrackingNumber)
	}

	if order.Status == domain.OrderStatusShipped && order.Shipping.ShippedAt == nil {
		shipped := now
		order.Shipping.ShippedAt = &shipped
	}
	if order.Shipping.ShippedAt != nil && order.Shipping.EstimatedDeliveryDate == nil {
		estimate := order.Shipping.ShippedAt.AddDate(0, 0, deliveryEstimateDays)
		order.Shipping.EstimatedDeliveryDate = &estimate
	}

	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		Type:        orderEventShippingUpdated,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      string(order.Status),
		TotalCents:  order.TotalCents,
		OccurredAt:  now,
	})

	return order, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, orderID string) error {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *orderService) loadAuthorized(ctx context.Context, query OrderAccess) (Order, error) {
	orderID := strings.TrimSpace(query.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if !query.Staff && order.UserID != strings.TrimSpace(query.UserID) {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderCounterID, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("HM-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) publishEvent(ctx context.Context, message OrderEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  message.Type,
			"order": message.OrderID,
			"error": err.Error(),
		})
	}
}

func isRepositoryNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) now() time.Time {
	return s.clock()
}
