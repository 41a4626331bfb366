package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/hatchmart/api/internal/domain"
	"github.com/hatchmart/api/internal/platform/auth"
	"github.com/hatchmart/api/internal/platform/httpx"
	"github.com/hatchmart/api/internal/services"
)

const maxOrderBodySize = 16 * 1024

// OrderHandlers exposes checkout and order endpoints for authenticated users.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	idempotency func(http.Handler) http.Handler
}

// OrderOption customises the order handlers.
type OrderOption func(*OrderHandlers)

// WithOrderIdempotency guards the order-create and payment endpoints with the
// given idempotency middleware. Only those two routes require a key; reads and
// the rest of the API stay unkeyed.
func WithOrderIdempotency(middleware func(http.Handler) http.Handler) OrderOption {
	return func(h *OrderHandlers) {
		h.idempotency = middleware
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the /orders endpoints. The idempotency middleware hangs off
// the two mutating routes after RequireAuth so replay keys scope to the
// authenticated caller.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	keyed := r
	if h.idempotency != nil {
		keyed = r.With(h.idempotency)
	}
	keyed.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	keyed.Post("/{orderID}/payment", h.processPayment)
}

type createOrderRequest struct {
	ShippingAddress shippingAddressRequest `json:"shipping_address"`
}

type shippingAddressRequest struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	order, err := h.orders.CreateFromCart(ctx, services.CreateOrderCommand{
		UserID: identity.UID,
		ShippingAddress: domain.ShippingAddress{
			Address:    strings.TrimSpace(req.ShippingAddress.Address),
			City:       strings.TrimSpace(req.ShippingAddress.City),
			PostalCode: strings.TrimSpace(req.ShippingAddress.PostalCode),
			Country:    strings.TrimSpace(req.ShippingAddress.Country),
		},
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	query, err := parseOrderListQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	query.UserID = identity.UID
	query.Staff = false

	page, err := h.orders.ListOrders(ctx, query)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, services.OrderAccess{
		OrderID: chi.URLParam(r, "orderID"),
		UserID:  identity.UID,
		Staff:   identity.IsStaff(),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type processPaymentRequest struct {
	Method        string `json:"payment_method"`
	TransactionID string `json:"transaction_id"`
}

func (h *OrderHandlers) processPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req processPaymentRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(w, r, err)
		return
	}

	order, err := h.orders.ProcessPayment(ctx, services.ProcessPaymentCommand{
		OrderID:       chi.URLParam(r, "orderID"),
		UserID:        identity.UID,
		Method:        strings.TrimSpace(req.Method),
		TransactionID: strings.TrimSpace(req.TransactionID),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// parseOrderListQuery reads shared list parameters. Callers fill in the
// identity scoping afterwards.
func parseOrderListQuery(r *http.Request) (services.ListOrdersQuery, error) {
	values := r.URL.Query()
	query := services.ListOrdersQuery{
		Status:     parseFilterValues(values["status"]),
		Pagination: parsePagination(r),
	}
	if raw := strings.TrimSpace(values.Get("created_after")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query, errors.New("created_after must be a valid RFC3339 timestamp")
		}
		query.DateRange.From = &ts
	}
	if raw := strings.TrimSpace(values.Get("created_before")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query, errors.New("created_before must be a valid RFC3339 timestamp")
		}
		query.DateRange.To = &ts
	}
	return query, nil
}

func parseFilterValues(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	values := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				values = append(values, part)
			}
		}
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidStatus):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_status", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order has been modified; retry", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "order operation failed", http.StatusInternalServerError))
	}
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID            string `json:"id"`
	OrderNumber   string `json:"order_number"`
	UserID        string `json:"user_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Total         int64  `json:"total"`
	ItemsCount    int    `json:"items_count"`
	CreatedAt     string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID              string                 `json:"id"`
	OrderNumber     string                 `json:"order_number"`
	UserID          string                 `json:"user_id"`
	Status          string                 `json:"status"`
	PaymentStatus   string                 `json:"payment_status"`
	Total           int64                  `json:"total"`
	Items           []orderItemPayload     `json:"items"`
	ShippingAddress shippingAddressPayload `json:"shipping_address"`
	Payment         *orderPaymentPayload   `json:"payment,omitempty"`
	Shipping        *orderShippingPayload  `json:"shipping,omitempty"`
	CreatedAt       string                 `json:"created_at"`
	UpdatedAt       string                 `json:"updated_at,omitempty"`
}

type orderItemPayload struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Subtotal    int64  `json:"subtotal"`
}

type shippingAddressPayload struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type orderPaymentPayload struct {
	Method        string  `json:"method"`
	TransactionID string  `json:"transaction_id"`
	PaidAt        *string `json:"paid_at,omitempty"`
}

type orderShippingPayload struct {
	TrackingNumber        string  `json:"tracking_number,omitempty"`
	ShippedDate           *string `json:"shipped_date,omitempty"`
	EstimatedDeliveryDate *string `json:"estimated_delivery_date,omitempty"`
}

func buildOrderListResponse(page domain.CursorPage[domain.Order]) orderListResponse {
	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}
	return orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	}
}

func buildOrderSummary(order domain.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Total:         order.TotalCents,
		ItemsCount:    len(order.Items),
		CreatedAt:     formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPriceCents,
			Quantity:    item.Quantity,
			Subtotal:    item.SubtotalCents(),
		})
	}

	payload := orderPayload{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Total:         order.TotalCents,
		Items:         items,
		ShippingAddress: shippingAddressPayload{
			Address:    order.ShippingAddress.Address,
			City:       order.ShippingAddress.City,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		CreatedAt: formatTime(order.CreatedAt),
	}
	if !order.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(order.UpdatedAt)
	}
	if order.Payment.TransactionID != "" || order.Payment.Method != "" || order.Payment.PaidAt != nil {
		payload.Payment = &orderPaymentPayload{
			Method:        order.Payment.Method,
			TransactionID: order.Payment.TransactionID,
			PaidAt:        formatTimePtr(order.Payment.PaidAt),
		}
	}
	if order.Shipping.TrackingNumber != "" || order.Shipping.ShippedAt != nil || order.Shipping.EstimatedDeliveryDate != nil {
		payload.Shipping = &orderShippingPayload{
			TrackingNumber:        order.Shipping.TrackingNumber,
			ShippedDate:           formatTimePtr(order.Shipping.ShippedAt),
			EstimatedDeliveryDate: formatTimePtr(order.Shipping.EstimatedDeliveryDate),
		}
	}
	return payload
}
