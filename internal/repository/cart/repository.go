package cart

import (
	"context"

	"shoporders/internal/domain"
)

// Repository holds a user's pending selections. Items whose product has been
// removed from the catalog come back with an empty ShopID so checkout can
// name the offending line.
type Repository interface {
	ItemsByUser(ctx context.Context, userID string) ([]domain.CartItem, error)
	Add(ctx context.Context, userID string, product domain.Product, quantity int) error
	ChangeQuantity(ctx context.Context, userID, itemID string, quantity int) error
	Remove(ctx context.Context, userID, itemID string) error
}
