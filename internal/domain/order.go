package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus is the closed set of fulfillment states an order moves through.
type OrderStatus string

const (
	StatusAwaitingPayment     OrderStatus = "AWAITING_PAYMENT"
	StatusPendingConfirmation OrderStatus = "PENDING_CONFIRMATION"
	StatusConfirmed           OrderStatus = "CONFIRMED"
	StatusProcessing          OrderStatus = "PROCESSING"
	StatusReadyForPickup      OrderStatus = "READY_FOR_PICKUP"
	StatusCompleted           OrderStatus = "COMPLETED"
	StatusCancelled           OrderStatus = "CANCELLED"
	StatusPaymentFailed       OrderStatus = "PAYMENT_FAILED"
)

// ParseOrderStatus rejects unrecognized status values at the boundary.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusAwaitingPayment, StatusPendingConfirmation, StatusConfirmed,
		StatusProcessing, StatusReadyForPickup, StatusCompleted,
		StatusCancelled, StatusPaymentFailed:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrValidation, raw)
}

// Terminal reports whether no further transition may leave the status.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// PaymentMethod selects the payment flow chosen at checkout.
type PaymentMethod string

const (
	MethodPayAtStore    PaymentMethod = "PAY_AT_STORE"
	MethodOnlinePayment PaymentMethod = "ONLINE_PAYMENT"
)

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
	switch m {
	case MethodPayAtStore, MethodOnlinePayment:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown payment method %q", ErrValidation, raw)
}

// InitialStatus is the state a freshly created order starts in.
func (m PaymentMethod) InitialStatus() OrderStatus {
	if m == MethodPayAtStore {
		return StatusPendingConfirmation
	}
	return StatusAwaitingPayment
}

// PaymentStatus tracks the payment side of an order.
type PaymentStatus string

const (
	PaymentPending         PaymentStatus = "pending"
	PaymentPendingGateway  PaymentStatus = "pending_gateway_payment"
	PaymentPaid            PaymentStatus = "paid"
	PaymentFailed          PaymentStatus = "failed"
	PaymentCancelledByUser PaymentStatus = "cancelled_by_user"
)

// PaymentDetails carries the payment state and gateway bookkeeping for an order.
type PaymentDetails struct {
	Method               PaymentMethod `json:"method"`
	Status               PaymentStatus `json:"status"`
	GatewayOrderID       string        `json:"gatewayOrderId,omitempty"`
	GatewayTransactionID string        `json:"gatewayTransactionId,omitempty"`
	SnapToken            string        `json:"snapToken,omitempty"`
	RedirectURL          string        `json:"redirectUrl,omitempty"`
	ConfirmationNotes    string        `json:"confirmationNotes,omitempty"`
	ProofImageURLs       []string      `json:"proofImageUrls,omitempty"`
}

// OrderItem is a line item snapshot taken at checkout time.
type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	ShopID    string `json:"shopId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

// Order is the central aggregate. Items and TotalPrice are immutable after
// creation; Status and Payment move only through guarded transitions.
type Order struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	ShopID     string         `json:"shopId"`
	Items      []OrderItem    `json:"items"`
	TotalPrice int64          `json:"totalPrice"`
	Status     OrderStatus    `json:"orderStatus"`
	Payment    PaymentDetails `json:"paymentDetails"`
	Notes      string         `json:"notes,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Cancellable reports whether the customer may still cancel the order.
func (o *Order) Cancellable() bool {
	return o.Status == StatusAwaitingPayment || o.Status == StatusPendingConfirmation
}

// Payable reports whether a gateway transaction may still be created or
// retried for the order.
func (o *Order) Payable() bool {
	if o.Payment.Status == PaymentPaid {
		return false
	}
	return o.Status == StatusAwaitingPayment || o.Status == StatusPaymentFailed
}

// sellerTransitions is the exhaustive table of seller-driven moves.
var sellerTransitions = map[OrderStatus][]OrderStatus{
	StatusPendingConfirmation: {StatusConfirmed},
	StatusConfirmed:           {StatusProcessing},
	StatusAwaitingPayment:     {StatusProcessing},
	StatusProcessing:          {StatusReadyForPickup},
	StatusReadyForPickup:      {StatusCompleted},
}

// GuardSellerTransition validates a seller-requested status change against the
// transition table and the payment-side guards. No-ops and moves outside the
// allowed-from set fail with distinct reasons.
func GuardSellerTransition(o *Order, to OrderStatus) error {
	if o.Status == to {
		return fmt.Errorf("%w: order is already %s", ErrInvalidTransition, to)
	}
	if o.Status.Terminal() {
		return fmt.Errorf("%w: order is %s and can no longer change", ErrInvalidTransition, o.Status)
	}
	allowed := false
	for _, next := range sellerTransitions[o.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidTransition, o.Status, to)
	}

	switch {
	case o.Status == StatusPendingConfirmation && to == StatusConfirmed:
		if o.Payment.Method != MethodPayAtStore {
			return fmt.Errorf("%w: only pay-at-store orders need confirmation", ErrInvalidTransition)
		}
	case o.Status == StatusConfirmed && to == StatusProcessing:
		if o.Payment.Method != MethodPayAtStore {
			return fmt.Errorf("%w: online orders enter processing via payment", ErrInvalidTransition)
		}
	case o.Status == StatusAwaitingPayment && to == StatusProcessing:
		if o.Payment.Method != MethodOnlinePayment {
			return fmt.Errorf("%w: pay-at-store orders must be confirmed first", ErrInvalidTransition)
		}
		if o.Payment.Status != PaymentPaid {
			return fmt.Errorf("%w: payment not completed yet", ErrInvalidTransition)
		}
	case o.Status == StatusReadyForPickup && to == StatusCompleted:
		if o.Payment.Method == MethodPayAtStore && o.Payment.Status != PaymentPaid {
			return fmt.Errorf("%w: confirm the in-store payment before completing", ErrInvalidTransition)
		}
	}
	return nil
}

// MapGatewayStatus maps a gateway transaction/fraud status pair onto the
// internal order and payment state. ok is false when the pair is not
// actionable (unknown status, or a challenged capture left for manual review).
func MapGatewayStatus(transactionStatus, fraudStatus string) (OrderStatus, PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(transactionStatus)) {
	case "capture", "settlement":
		if fs := strings.ToLower(strings.TrimSpace(fraudStatus)); fs != "" && fs != "accept" {
			return StatusAwaitingPayment, PaymentPendingGateway, true
		}
		return StatusProcessing, PaymentPaid, true
	case "pending":
		return StatusAwaitingPayment, PaymentPendingGateway, true
	case "deny", "cancel", "expire", "failure":
		return StatusPaymentFailed, PaymentFailed, true
	}
	return "", "", false
}
