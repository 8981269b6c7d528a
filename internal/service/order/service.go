package order

import (
	"context"
	"errors"
	"fmt"

	"shoporders/internal/domain"
	orderrepo "shoporders/internal/repository/order"
	outboxrepo "shoporders/internal/repository/outbox"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service owns the order state machine: checkout, cancellation, seller
// fulfillment transitions, and pay-at-store payment confirmation.
type Service struct {
	orders  ordersRepo
	carts   cartReader
	catalog shopReader
	logger  zerolog.Logger
}

type ordersRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, status domain.OrderStatus, limit int) ([]domain.Order, error)
	ListByShop(ctx context.Context, shopID string, status domain.OrderStatus, limit int) ([]domain.Order, error)
	CreateFromCart(ctx context.Context, in orderrepo.CreateInput) (*domain.Order, error)
	Mutate(ctx context.Context, orderID string, apply orderrepo.MutateFn) (*domain.Order, error)
}

type cartReader interface {
	ItemsByUser(ctx context.Context, userID string) ([]domain.CartItem, error)
}

type shopReader interface {
	GetShop(ctx context.Context, id string) (*domain.Shop, error)
	GetShopByOwner(ctx context.Context, ownerID string) (*domain.Shop, error)
}

func New(orders ordersRepo, carts cartReader, catalog shopReader, logger zerolog.Logger) *Service {
	return &Service{orders: orders, carts: carts, catalog: catalog, logger: logger}
}

// CheckoutInput is the client's checkout request.
type CheckoutInput struct {
	PaymentMethod string `json:"paymentMethod"`
	Notes         string `json:"notes"`
}

// Checkout converts the user's cart into an order. Validation runs against a
// plain read for friendly errors; the repository re-validates and reserves
// stock under row locks inside the commit transaction.
func (s *Service) Checkout(ctx context.Context, userID string, in CheckoutInput) (*domain.Order, error) {
	method, err := domain.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return nil, err
	}

	items, err := s.carts.ItemsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", domain.ErrValidation)
	}

	shopID := ""
	for _, it := range items {
		if it.ShopID == "" {
			return nil, &domain.ProductGoneError{ProductID: it.ProductID, Name: it.Name}
		}
		if shopID == "" {
			shopID = it.ShopID
		} else if shopID != it.ShopID {
			return nil, fmt.Errorf("%w: cart contains items from more than one shop", domain.ErrValidation)
		}
	}

	orderID := uuid.NewString()
	var notify *outboxrepo.Intent
	if shop, err := s.catalog.GetShop(ctx, shopID); err != nil {
		s.logger.Warn().Err(err).Str("shop_id", shopID).Msg("shop lookup failed, skipping seller notification")
	} else {
		notify = &outboxrepo.Intent{
			EventType: domain.EventOrderCreated,
			Notification: domain.Notification{
				UserID: shop.OwnerID,
				Title:  "New order received",
				Body:   fmt.Sprintf("A customer placed a new order at %s.", shop.Name),
				Data:   map[string]string{"orderId": orderID},
			},
		}
	}

	o, err := s.orders.CreateFromCart(ctx, orderrepo.CreateInput{
		OrderID:         orderID,
		UserID:          userID,
		Method:          method,
		Notes:           in.Notes,
		CachedCartTotal: domain.CartTotal(items),
		Notify:          notify,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("order_id", o.ID).Str("user_id", userID).Int64("total", o.TotalPrice).Msg("order created")
	return o, nil
}

// Cancel lets the owning customer cancel an order that has not entered
// fulfillment. Stock is restored for every line item in the same
// transaction.
func (s *Service) Cancel(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	pre, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if pre.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if !pre.Cancellable() {
		return nil, fmt.Errorf("%w: order is %s and can no longer be cancelled", domain.ErrInvalidTransition, pre.Status)
	}

	var notify *outboxrepo.Intent
	if shop, err := s.catalog.GetShop(ctx, pre.ShopID); err != nil {
		s.logger.Warn().Err(err).Str("shop_id", pre.ShopID).Msg("shop lookup failed, skipping seller notification")
	} else {
		notify = &outboxrepo.Intent{
			EventType: domain.EventOrderCancelled,
			Notification: domain.Notification{
				UserID: shop.OwnerID,
				Title:  "Order cancelled",
				Body:   "A customer cancelled their order before fulfillment.",
				Data:   map[string]string{"orderId": orderID},
			},
		}
	}

	o, err := s.orders.Mutate(ctx, orderID, func(o *domain.Order) (orderrepo.Mutation, error) {
		if o.UserID != userID {
			return orderrepo.Mutation{}, domain.ErrForbidden
		}
		if !o.Cancellable() {
			return orderrepo.Mutation{}, fmt.Errorf("%w: order is %s and can no longer be cancelled", domain.ErrInvalidTransition, o.Status)
		}
		o.Status = domain.StatusCancelled
		o.Payment.Status = domain.PaymentCancelledByUser
		return orderrepo.Mutation{ReleaseStock: true, Notify: notify}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("order_id", orderID).Msg("order cancelled, stock restored")
	return o, nil
}

// UpdateStatusBySeller applies a seller-driven fulfillment transition after
// checking the seller owns the shop every line item came from.
func (s *Service) UpdateStatusBySeller(ctx context.Context, orderID, sellerID, newStatus string) (*domain.Order, error) {
	to, err := domain.ParseOrderStatus(newStatus)
	if err != nil {
		return nil, err
	}
	shop, err := s.sellerShop(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	return s.orders.Mutate(ctx, orderID, func(o *domain.Order) (orderrepo.Mutation, error) {
		if err := guardSellerOwnership(o, shop.ID); err != nil {
			return orderrepo.Mutation{}, err
		}
		if err := domain.GuardSellerTransition(o, to); err != nil {
			return orderrepo.Mutation{}, err
		}
		o.Status = to
		return orderrepo.Mutation{Notify: &outboxrepo.Intent{
			EventType: domain.EventStatusChanged,
			Notification: domain.Notification{
				UserID: o.UserID,
				Title:  "Order update",
				Body:   statusChangeBody(to),
				Data:   map[string]string{"orderId": o.ID, "status": string(to)},
			},
		}}, nil
	})
}

// ConfirmPayAtStorePayment records an in-person payment: marks the payment
// paid, appends any proof image URLs, and stores optional notes. The order
// status itself does not move.
func (s *Service) ConfirmPayAtStorePayment(ctx context.Context, orderID, sellerID, notes string, proofURLs []string) (*domain.Order, error) {
	shop, err := s.sellerShop(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	return s.orders.Mutate(ctx, orderID, func(o *domain.Order) (orderrepo.Mutation, error) {
		if err := guardSellerOwnership(o, shop.ID); err != nil {
			return orderrepo.Mutation{}, err
		}
		if o.Payment.Method != domain.MethodPayAtStore {
			return orderrepo.Mutation{}, fmt.Errorf("%w: only pay-at-store orders are confirmed manually", domain.ErrValidation)
		}
		if o.Status.Terminal() {
			return orderrepo.Mutation{}, fmt.Errorf("%w: order is %s", domain.ErrInvalidTransition, o.Status)
		}
		o.Payment.Status = domain.PaymentPaid
		o.Payment.ProofImageURLs = append(o.Payment.ProofImageURLs, proofURLs...)
		if notes != "" {
			o.Payment.ConfirmationNotes = notes
		}
		return orderrepo.Mutation{Notify: &outboxrepo.Intent{
			EventType: domain.EventPaymentConfirmed,
			Notification: domain.Notification{
				UserID: o.UserID,
				Title:  "Payment confirmed",
				Body:   "The shop confirmed your in-store payment.",
				Data:   map[string]string{"orderId": o.ID},
			},
		}}, nil
	})
}

// GetByID returns the order to its owner or to the seller whose shop
// fulfills it.
func (s *Service) GetByID(ctx context.Context, orderID, principalID string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID == principalID {
		return o, nil
	}
	if shop, err := s.catalog.GetShopByOwner(ctx, principalID); err == nil && shop.ID == o.ShopID {
		return o, nil
	}
	return nil, domain.ErrForbidden
}

// ListMine lists the customer's own orders, optionally filtered by status.
func (s *Service) ListMine(ctx context.Context, userID, status string, limit int) ([]domain.Order, error) {
	st, err := optionalStatus(status)
	if err != nil {
		return nil, err
	}
	return s.orders.ListByUser(ctx, userID, st, limit)
}

// ListForSeller lists orders against the seller's shop.
func (s *Service) ListForSeller(ctx context.Context, sellerID, status string, limit int) ([]domain.Order, error) {
	st, err := optionalStatus(status)
	if err != nil {
		return nil, err
	}
	shop, err := s.sellerShop(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return s.orders.ListByShop(ctx, shop.ID, st, limit)
}

func (s *Service) sellerShop(ctx context.Context, sellerID string) (*domain.Shop, error) {
	shop, err := s.catalog.GetShopByOwner(ctx, sellerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no shop registered for this account", domain.ErrForbidden)
		}
		return nil, err
	}
	return shop, nil
}

func guardSellerOwnership(o *domain.Order, shopID string) error {
	if o.ShopID != shopID {
		return domain.ErrForbidden
	}
	for _, it := range o.Items {
		if it.ShopID != shopID {
			return domain.ErrForbidden
		}
	}
	return nil
}

func optionalStatus(raw string) (domain.OrderStatus, error) {
	if raw == "" {
		return "", nil
	}
	return domain.ParseOrderStatus(raw)
}

func statusChangeBody(to domain.OrderStatus) string {
	switch to {
	case domain.StatusConfirmed:
		return "The shop confirmed your order."
	case domain.StatusProcessing:
		return "Your order is being prepared."
	case domain.StatusReadyForPickup:
		return "Your order is ready for pickup."
	case domain.StatusCompleted:
		return "Your order is complete. Thank you!"
	default:
		return fmt.Sprintf("Your order is now %s.", to)
	}
}
