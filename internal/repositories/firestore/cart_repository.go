package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/hatchmart/api/internal/domain"
	pfirestore "github.com/hatchmart/api/internal/platform/firestore"
	"github.com/hatchmart/api/internal/repositories"
)

const (
	cartsCollection     = "carts"
	cartItemsCollection = "items"
)

type cartDocument struct {
	ItemsCount int       `firestore:"itemsCount"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductName     string    `firestore:"productName"`
	UnitPriceCents  int64     `firestore:"unitPriceCents"`
	DiscountPercent int       `firestore:"discountPercent"`
	Quantity        int       `firestore:"quantity"`
	AddedAt         time.Time `firestore:"addedAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

// CartRepository persists carts within Firestore. The cart document is keyed
// by user ID and line items live in an items subcollection keyed by product
// ID, which makes one-row-per-product structural rather than enforced.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	orders   *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base:     pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, nil, nil),
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
		provider: provider,
	}, nil
}

// GetCart loads the cart with its items. A user with no cart document yet
// receives an empty cart; carts are created lazily on first mutation.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	cart := domain.Cart{ID: uid, UserID: uid, Items: []domain.CartItem{}}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return cart, nil
		}
		return domain.Cart{}, err
	}
	cart.CreatedAt = doc.Data.CreatedAt
	cart.UpdatedAt = doc.Data.UpdatedAt

	itemsRef, err := r.itemsCollection(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}

	iter := itemsRef.Documents(ctx)
	defer iter.Stop()
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.Cart{}, pfirestore.WrapError("carts.items", err)
		}
		var item cartItemDocument
		if err := snapshot.DataTo(&item); err != nil {
			return domain.Cart{}, fmt.Errorf("firestore cart item decode %s: %w", snapshot.Ref.ID, err)
		}
		cart.Items = append(cart.Items, decodeCartItemDocument(snapshot.Ref.ID, item))
	}
	sortCartItems(cart.Items)

	return cart, nil
}

// AddItem merges the item into the cart, incrementing quantity when the
// product is already present. The read-modify-write runs in a transaction so
// concurrent adds for the same product cannot produce duplicate rows or lost
// increments.
func (r *CartRepository) AddItem(ctx context.Context, userID string, item domain.CartItem, now time.Time) (domain.Cart, error) {
	if r == nil || r.provider == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}
	productID := strings.TrimSpace(item.ProductID)
	if productID == "" {
		return domain.Cart{}, errors.New("cart repository: product id is required")
	}
	if item.Quantity <= 0 {
		return domain.Cart{}, errors.New("cart repository: quantity must be positive")
	}
	now = now.UTC()

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		cartRef, itemsRef, err := r.refs(ctx, uid)
		if err != nil {
			return err
		}
		itemRef := itemsRef.Doc(productID)

		header, err := r.readHeader(tx, cartRef, now)
		if err != nil {
			return err
		}

		doc := cartItemDocument{
			ProductName:     strings.TrimSpace(item.ProductName),
			UnitPriceCents:  item.UnitPriceCents,
			DiscountPercent: item.DiscountPercent,
			Quantity:        item.Quantity,
			AddedAt:         now,
			UpdatedAt:       now,
		}

		snapshot, err := tx.Get(itemRef)
		switch status.Code(err) {
		case codes.NotFound:
			header.ItemsCount++
		case codes.OK:
			var existing cartItemDocument
			if err := snapshot.DataTo(&existing); err != nil {
				return fmt.Errorf("firestore cart item decode %s: %w", productID, err)
			}
			doc.Quantity += existing.Quantity
			doc.AddedAt = existing.AddedAt
		default:
			return err
		}

		if err := tx.Set(itemRef, doc); err != nil {
			return err
		}
		header.UpdatedAt = now
		return tx.Set(cartRef, header)
	})
	if err != nil {
		return domain.Cart{}, pfirestore.WrapError("carts.additem", err)
	}

	return r.GetCart(ctx, uid)
}

// SetItemQuantity replaces the quantity for a product. Quantities at or below
// zero remove the row instead of storing it.
func (r *CartRepository) SetItemQuantity(ctx context.Context, userID string, productID string, quantity int, now time.Time) (domain.Cart, error) {
	if r == nil || r.provider == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	pid := strings.TrimSpace(productID)
	if uid == "" || pid == "" {
		return domain.Cart{}, errors.New("cart repository: user id and product id are required")
	}
	now = now.UTC()

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		cartRef, itemsRef, err := r.refs(ctx, uid)
		if err != nil {
			return err
		}
		itemRef := itemsRef.Doc(pid)

		header, err := r.readHeader(tx, cartRef, now)
		if err != nil {
			return err
		}

		snapshot, err := tx.Get(itemRef)
		if err != nil {
			return err
		}
		var existing cartItemDocument
		if err := snapshot.DataTo(&existing); err != nil {
			return fmt.Errorf("firestore cart item decode %s: %w", pid, err)
		}

		if quantity <= 0 {
			if err := tx.Delete(itemRef); err != nil {
				return err
			}
			if header.ItemsCount > 0 {
				header.ItemsCount--
			}
		} else {
			existing.Quantity = quantity
			existing.UpdatedAt = now
			if err := tx.Set(itemRef, existing); err != nil {
				return err
			}
		}

		header.UpdatedAt = now
		return tx.Set(cartRef, header)
	})
	if err != nil {
		return domain.Cart{}, pfirestore.WrapError("carts.setquantity", err)
	}

	return r.GetCart(ctx, uid)
}

// RemoveItem deletes the product's row from the cart.
func (r *CartRepository) RemoveItem(ctx context.Context, userID string, productID string) (domain.Cart, error) {
	if r == nil || r.provider == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	pid := strings.TrimSpace(productID)
	if uid == "" || pid == "" {
		return domain.Cart{}, errors.New("cart repository: user id and product id are required")
	}
	now := time.Now().UTC()

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		cartRef, itemsRef, err := r.refs(ctx, uid)
		if err != nil {
			return err
		}
		itemRef := itemsRef.Doc(pid)

		header, err := r.readHeader(tx, cartRef, now)
		if err != nil {
			return err
		}
		if _, err := tx.Get(itemRef); err != nil {
			return err
		}

		if err := tx.Delete(itemRef); err != nil {
			return err
		}
		if header.ItemsCount > 0 {
			header.ItemsCount--
		}
		header.UpdatedAt = now
		return tx.Set(cartRef, header)
	})
	if err != nil {
		return domain.Cart{}, pfirestore.WrapError("carts.removeitem", err)
	}

	return r.GetCart(ctx, uid)
}

// Clear removes every item from the cart. The cart document itself survives.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if r == nil || r.provider == nil {
		return errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("cart repository: user id is required")
	}
	now := time.Now().UTC()

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		cartRef, itemsRef, err := r.refs(ctx, uid)
		if err != nil {
			return err
		}
		refs, err := r.itemRefsInTx(tx, itemsRef)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		header, err := r.readHeader(tx, cartRef, now)
		if err != nil {
			return err
		}
		header.ItemsCount = 0
		header.UpdatedAt = now
		return tx.Set(cartRef, header)
	})
	if err != nil {
		return pfirestore.WrapError("carts.clear", err)
	}
	return nil
}

// ConvertCart drains the cart into an order inside one transaction: the items
// are read, the build callback decides on the order, the order document is
// created, and every item row is deleted. Either all of it commits or none.
func (r *CartRepository) ConvertCart(ctx context.Context, userID string, build func(items []domain.CartItem) (domain.Order, error)) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Order{}, errors.New("cart repository: user id is required")
	}
	if build == nil {
		return domain.Order{}, errors.New("cart repository: build callback is required")
	}
	now := time.Now().UTC()

	var created domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		cartRef, itemsRef, err := r.refs(ctx, uid)
		if err != nil {
			return err
		}

		snapshots, err := tx.Documents(itemsRef.Query).GetAll()
		if err != nil {
			return err
		}

		items := make([]domain.CartItem, 0, len(snapshots))
		for _, snapshot := range snapshots {
			var item cartItemDocument
			if err := snapshot.DataTo(&item); err != nil {
				return fmt.Errorf("firestore cart item decode %s: %w", snapshot.Ref.ID, err)
			}
			items = append(items, decodeCartItemDocument(snapshot.Ref.ID, item))
		}
		sortCartItems(items)

		order, err := build(items)
		if err != nil {
			return err
		}

		orderRef, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := tx.Create(orderRef, encodeOrderDocument(order)); err != nil {
			return err
		}

		for _, snapshot := range snapshots {
			if err := tx.Delete(snapshot.Ref); err != nil {
				return err
			}
		}

		header, err := r.readHeader(tx, cartRef, now)
		if err != nil {
			return err
		}
		header.ItemsCount = 0
		header.UpdatedAt = now
		if err := tx.Set(cartRef, header); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		// Build callback errors surface unchanged so services can map them.
		return domain.Order{}, err
	}
	return created, nil
}

func (r *CartRepository) refs(ctx context.Context, userID string) (*firestore.DocumentRef, *firestore.CollectionRef, error) {
	cartRef, err := r.base.DocumentRef(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return cartRef, cartRef.Collection(cartItemsCollection), nil
}

func (r *CartRepository) itemsCollection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	_, itemsRef, err := r.refs(ctx, userID)
	return itemsRef, err
}

// readHeader loads the cart header inside a transaction, initialising it
// for first-time users.
func (r *CartRepository) readHeader(tx *firestore.Transaction, cartRef *firestore.DocumentRef, now time.Time) (cartDocument, error) {
	snapshot, err := tx.Get(cartRef)
	if status.Code(err) == codes.NotFound {
		return cartDocument{CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return cartDocument{}, err
	}
	var doc cartDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return cartDocument{}, fmt.Errorf("firestore cart decode %s: %w", cartRef.ID, err)
	}
	return doc, nil
}

func (r *CartRepository) itemRefsInTx(tx *firestore.Transaction, itemsRef *firestore.CollectionRef) ([]*firestore.DocumentRef, error) {
	snapshots, err := tx.Documents(itemsRef.Query).GetAll()
	if err != nil {
		return nil, err
	}
	refs := make([]*firestore.DocumentRef, 0, len(snapshots))
	for _, snapshot := range snapshots {
		refs = append(refs, snapshot.Ref)
	}
	return refs, nil
}

func decodeCartItemDocument(productID string, doc cartItemDocument) domain.CartItem {
	return domain.CartItem{
		ProductID:       productID,
		ProductName:     doc.ProductName,
		UnitPriceCents:  doc.UnitPriceCents,
		DiscountPercent: doc.DiscountPercent,
		Quantity:        doc.Quantity,
		AddedAt:         doc.AddedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

func sortCartItems(items []domain.CartItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].ProductID < items[j].ProductID
		}
		return items[i].AddedAt.Before(items[j].AddedAt)
	})
}

var (
	_ repositories.CartRepository = (*CartRepository)(nil)
	_ repositories.CartConverter  = (*CartRepository)(nil)
)
