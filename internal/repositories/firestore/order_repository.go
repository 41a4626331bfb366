package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/hatchmart/api/internal/domain"
	pfirestore "github.com/hatchmart/api/internal/platform/firestore"
	"github.com/hatchmart/api/internal/repositories"
)

const ordersCollection = "orders"

type orderItemDocument struct {
	ProductID      string `firestore:"productId"`
	ProductName    string `firestore:"productName"`
	UnitPriceCents int64  `firestore:"unitPriceCents"`
	Quantity       int    `firestore:"quantity"`
}

type shippingAddressDocument struct {
	Address    string `firestore:"address"`
	City       string `firestore:"city"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type paymentDocument struct {
	Method        string     `firestore:"method"`
	TransactionID string     `firestore:"transactionId"`
	PaidAt        *time.Time `firestore:"paidAt"`
}

type shippingDocument struct {
	TrackingNumber        string     `firestore:"trackingNumber"`
	ShippedAt             *time.Time `firestore:"shippedAt"`
	EstimatedDeliveryDate *time.Time `firestore:"estimatedDeliveryDate"`
}

type orderDocument struct {
	OrderNumber     string                  `firestore:"orderNumber"`
	UserID          string                  `firestore:"userId"`
	Status          string                  `firestore:"status"`
	PaymentStatus   string                  `firestore:"paymentStatus"`
	TotalCents      int64                   `firestore:"totalCents"`
	Items           []orderItemDocument     `firestore:"items"`
	ShippingAddress shippingAddressDocument `firestore:"shippingAddress"`
	Payment         paymentDocument         `firestore:"payment"`
	Shipping        shippingDocument        `firestore:"shipping"`
	CreatedAt       time.Time               `firestore:"createdAt"`
	UpdatedAt       time.Time               `firestore:"updatedAt"`
}

// OrderRepository persists orders in Firestore.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base: pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
	}, nil
}

// Insert stores a new order, failing when the ID already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, encodeOrderDocument(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update overwrites the stored order.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: id is required")
	}
	if _, err := r.base.Set(ctx, id, encodeOrderDocument(order)); err != nil {
		return err
	}
	return nil
}

// Delete removes the order document.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	return r.base.Delete(ctx, strings.TrimSpace(id), firestore.Exists)
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrderDocument(doc.ID, doc.Data), nil
}

// List returns orders newest first with cursor pagination. Filters on user,
// status set, and creation date range combine with AND semantics.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = 20
	}

	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	query := coll.Query
	if uid := strings.TrimSpace(filter.UserID); uid != "" {
		query = query.Where("userId", "==", uid)
	}
	if statuses := normaliseStatuses(filter.Status); len(statuses) > 0 {
		query = query.Where("status", "in", statuses)
	}
	if filter.DateRange.From != nil {
		query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		query = query.Where("createdAt", "<", filter.DateRange.To.UTC())
	}
	query = query.
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc).
		Limit(limit + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		createdAt, docID, err := decodeListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		query = query.StartAfter(createdAt, docID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	orders := make([]domain.Order, 0, limit)
	var nextToken string
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		var doc orderDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("firestore order decode %s: %w", snapshot.Ref.ID, err)
		}
		if len(orders) == limit {
			last := orders[len(orders)-1]
			nextToken = encodeListToken(last.CreatedAt, last.ID)
			break
		}
		orders = append(orders, decodeOrderDocument(snapshot.Ref.ID, doc))
	}

	return domain.CursorPage[domain.Order]{Items: orders, NextPageToken: nextToken}, nil
}

// Count reports the total number of orders.
func (r *OrderRepository) Count(ctx context.Context) (int64, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("order repository not initialised")
	}
	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return 0, err
	}
	return countDocuments(ctx, coll.Query)
}

// CountByStatus reports how many orders carry the given status.
func (r *OrderRepository) CountByStatus(ctx context.Context, status domain.OrderStatus) (int64, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("order repository not initialised")
	}
	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return 0, err
	}
	return countDocuments(ctx, coll.Query.Where("status", "==", string(status)))
}

// SumCompletedTotals adds up the totals of orders whose payment completed.
func (r *OrderRepository) SumCompletedTotals(ctx context.Context) (int64, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("order repository not initialised")
	}
	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return 0, err
	}

	iter := coll.Query.
		Where("paymentStatus", "==", string(domain.PaymentStatusCompleted)).
		Select("totalCents").
		Documents(ctx)
	defer iter.Stop()

	var sum int64
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return 0, pfirestore.WrapError("orders.sumtotals", err)
		}
		value, err := snapshot.DataAt("totalCents")
		if err != nil {
			continue
		}
		if cents, ok := value.(int64); ok {
			sum += cents
		}
	}
	return sum, nil
}

// StatsForUsers returns per-user order counts and lifetime spend for the
// given user IDs. Users without orders are absent from the result map.
func (r *OrderRepository) StatsForUsers(ctx context.Context, userIDs []string) (map[string]repositories.UserOrderStats, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}

	ids := make([]string, 0, len(userIDs))
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		ids = append(ids, trimmed)
	}
	if len(ids) == 0 {
		return map[string]repositories.UserOrderStats{}, nil
	}

	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]repositories.UserOrderStats, len(ids))

	// Firestore caps "in" filters, so scan the ID set in chunks.
	const chunkSize = 10
	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}

		iter := coll.Query.
			Where("userId", "in", ids[start:end]).
			Select("userId", "totalCents").
			Documents(ctx)

		for {
			snapshot, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, pfirestore.WrapError("orders.userstats", err)
			}
			userValue, err := snapshot.DataAt("userId")
			if err != nil {
				continue
			}
			userID, ok := userValue.(string)
			if !ok || userID == "" {
				continue
			}
			entry := stats[userID]
			entry.OrderCount++
			if totalValue, err := snapshot.DataAt("totalCents"); err == nil {
				if cents, ok := totalValue.(int64); ok {
					entry.TotalSpentCents += cents
				}
			}
			stats[userID] = entry
		}
		iter.Stop()
	}

	return stats, nil
}

func encodeOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
		})
	}
	return orderDocument{
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalCents:    order.TotalCents,
		Items:         items,
		ShippingAddress: shippingAddressDocument{
			Address:    order.ShippingAddress.Address,
			City:       order.ShippingAddress.City,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		Payment: paymentDocument{
			Method:        order.Payment.Method,
			TransactionID: order.Payment.TransactionID,
			PaidAt:        cloneTimePtr(order.Payment.PaidAt),
		},
		Shipping: shippingDocument{
			TrackingNumber:        order.Shipping.TrackingNumber,
			ShippedAt:             cloneTimePtr(order.Shipping.ShippedAt),
			EstimatedDeliveryDate: cloneTimePtr(order.Shipping.EstimatedDeliveryDate),
		},
		CreatedAt: order.CreatedAt.UTC(),
		UpdatedAt: order.UpdatedAt.UTC(),
	}
}

func decodeOrderDocument(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderItem{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
		})
	}
	return domain.Order{
		ID:            id,
		OrderNumber:   doc.OrderNumber,
		UserID:        doc.UserID,
		Status:        domain.OrderStatus(doc.Status),
		PaymentStatus: domain.PaymentStatus(doc.PaymentStatus),
		TotalCents:    doc.TotalCents,
		Items:         items,
		ShippingAddress: domain.ShippingAddress{
			Address:    doc.ShippingAddress.Address,
			City:       doc.ShippingAddress.City,
			PostalCode: doc.ShippingAddress.PostalCode,
			Country:    doc.ShippingAddress.Country,
		},
		Payment: domain.Payment{
			Method:        doc.Payment.Method,
			TransactionID: doc.Payment.TransactionID,
			PaidAt:        cloneTimePtr(doc.Payment.PaidAt),
		},
		Shipping: domain.Shipping{
			TrackingNumber:        doc.Shipping.TrackingNumber,
			ShippedAt:             cloneTimePtr(doc.Shipping.ShippedAt),
			EstimatedDeliveryDate: cloneTimePtr(doc.Shipping.EstimatedDeliveryDate),
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := t.UTC()
	return &copied
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
