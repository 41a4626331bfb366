package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/hatchmart/api/internal/domain"
	"github.com/hatchmart/api/internal/repositories"
)

var (
	// ErrCartInvalidInput signals the caller provided invalid data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartItemNotFound indicates the product has no row in the cart.
	ErrCartItemNotFound = errors.New("cart: item not found")
	// ErrCartProductUnavailable rejects adds for missing or inactive products.
	ErrCartProductUnavailable = errors.New("cart: product unavailable")
	// ErrCartConflict indicates a concurrent modification lost the race.
	ErrCartConflict = errors.New("cart: conflict")
)

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
	Clock    func() time.Time
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	clock    func() time.Time
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	cart, err := s.carts.GetCart(ctx, uid)
	if err != nil {
		return Cart{}, s.mapRepositoryError(err)
	}
	return cart, nil
}

// AddItem snapshots the product's current list price and discount into the
// cart row. Adding a product already in the cart increments its quantity.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	uid := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if uid == "" || productID == "" {
		return Cart{}, fmt.Errorf("%w: user id and product id are required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return Cart{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return Cart{}, fmt.Errorf("%w: %s", ErrCartProductUnavailable, productID)
		}
		return Cart{}, s.mapRepositoryError(err)
	}
	if !product.Active {
		return Cart{}, fmt.Errorf("%w: %s", ErrCartProductUnavailable, productID)
	}

	now := s.clock()
	item := domain.CartItem{
		ProductID:       product.ID,
		ProductName:     product.Name,
		UnitPriceCents:  product.PriceCents,
		DiscountPercent: product.DiscountPercent,
		Quantity:        cmd.Quantity,
	}

	cart, err := s.carts.AddItem(ctx, uid, item, now)
	if err != nil {
		return Cart{}, s.mapRepositoryError(err)
	}
	return cart, nil
}

// UpdateItemQuantity replaces the quantity for a product already in the cart.
// A quantity at or below zero removes the row.
func (s *cartService) UpdateItemQuantity(ctx context.Context, cmd UpdateCartItemCommand) (Cart, error) {
	uid := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if uid == "" || productID == "" {
		return Cart{}, fmt.Errorf("%w: user id and product id are required", ErrCartInvalidInput)
	}

	cart, err := s.carts.SetItemQuantity(ctx, uid, productID, cmd.Quantity, s.clock())
	if err != nil {
		return Cart{}, s.mapRepositoryError(err)
	}
	return cart, nil
}

func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	uid := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if uid == "" || productID == "" {
		return Cart{}, fmt.Errorf("%w: user id and product id are required", ErrCartInvalidInput)
	}

	cart, err := s.carts.RemoveItem(ctx, uid, productID)
	if err != nil {
		return Cart{}, s.mapRepositoryError(err)
	}
	return cart, nil
}

func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if err := s.carts.Clear(ctx, uid); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *cartService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCartItemNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCartConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("cart: repository unavailable: %w", err)
		}
	}

	return err
}
