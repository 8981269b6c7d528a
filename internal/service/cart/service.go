package cart

import (
	"context"
	"fmt"

	"shoporders/internal/domain"
)

// Service manages the user's cart ahead of checkout. Quantities here are
// advisory; stock is only reserved when the order is created.
type Service struct {
	carts   cartRepo
	catalog productReader
}

type cartRepo interface {
	ItemsByUser(ctx context.Context, userID string) ([]domain.CartItem, error)
	Add(ctx context.Context, userID string, product domain.Product, quantity int) error
	ChangeQuantity(ctx context.Context, userID, itemID string, quantity int) error
	Remove(ctx context.Context, userID, itemID string) error
}

type productReader interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

func New(carts cartRepo, catalog productReader) *Service {
	return &Service{carts: carts, catalog: catalog}
}

// Items returns the user's cart with current catalog names and prices.
func (s *Service) Items(ctx context.Context, userID string) ([]domain.CartItem, error) {
	return s.carts.ItemsByUser(ctx, userID)
}

// Add puts quantity units of a product in the cart, merging with an existing
// line for the same product.
func (s *Service) Add(ctx context.Context, userID, productID string, quantity int) ([]domain.CartItem, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}
	p, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Stock <= 0 {
		return nil, &domain.InsufficientStockError{ProductID: p.ID, Name: p.Name, Requested: quantity, Available: p.Stock}
	}
	if err := s.carts.Add(ctx, userID, *p, quantity); err != nil {
		return nil, err
	}
	return s.carts.ItemsByUser(ctx, userID)
}

// ChangeQuantity sets the quantity of an existing cart line.
func (s *Service) ChangeQuantity(ctx context.Context, userID, itemID string, quantity int) ([]domain.CartItem, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}
	if err := s.carts.ChangeQuantity(ctx, userID, itemID, quantity); err != nil {
		return nil, err
	}
	return s.carts.ItemsByUser(ctx, userID)
}

// Remove deletes a cart line.
func (s *Service) Remove(ctx context.Context, userID, itemID string) ([]domain.CartItem, error) {
	if err := s.carts.Remove(ctx, userID, itemID); err != nil {
		return nil, err
	}
	return s.carts.ItemsByUser(ctx, userID)
}
