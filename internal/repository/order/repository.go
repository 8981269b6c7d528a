package order

import (
	"context"

	"shoporders/internal/domain"
	outboxrepo "shoporders/internal/repository/outbox"
)

// CreateInput carries everything checkout needs to commit atomically.
type CreateInput struct {
	// OrderID is assigned by the caller so notification payloads can name
	// the order before the insert commits. Empty means generate one.
	OrderID string
	UserID  string
	Method  domain.PaymentMethod
	Notes   string
	// CachedCartTotal is the cart's cached total. The server-side
	// recomputation wins; a discrepancy is logged, not rejected.
	CachedCartTotal int64
	Notify          *outboxrepo.Intent
}

// Mutation describes the side effects a read-modify-write closure asks for.
type Mutation struct {
	// ReleaseStock restores stock for every line item (cancellation).
	ReleaseStock bool
	Notify       *outboxrepo.Intent
}

// MutateFn inspects and mutates the freshly locked order. Returning
// domain.ErrNoChange commits nothing, leaving the row (and updatedAt)
// untouched.
type MutateFn func(o *domain.Order) (Mutation, error)

// Repository owns order persistence. CreateFromCart and Mutate are the only
// write paths; both are single transactions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, status domain.OrderStatus, limit int) ([]domain.Order, error)
	ListByShop(ctx context.Context, shopID string, status domain.OrderStatus, limit int) ([]domain.Order, error)
	CreateFromCart(ctx context.Context, in CreateInput) (*domain.Order, error)
	Mutate(ctx context.Context, orderID string, apply MutateFn) (*domain.Order, error)
}
