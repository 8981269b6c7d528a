package product

import (
	"context"

	"shoporders/internal/domain"
)

// Repository reads products and shops for the order core.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetShop(ctx context.Context, id string) (*domain.Shop, error)
	GetShopByOwner(ctx context.Context, ownerID string) (*domain.Shop, error)
}
