package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAuthRequired indicates the request carried no valid principal.
	ErrAuthRequired = errors.New("authentication required")
	// ErrForbidden indicates an ownership or role mismatch.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates bad or missing input.
	ErrValidation = errors.New("invalid input")
	// ErrInvalidTransition indicates a status change not allowed from the
	// order's current state.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInsufficientStock indicates a reservation exceeded available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrProductGone indicates a cart line references a product that no
	// longer exists.
	ErrProductGone = errors.New("product no longer available")
	// ErrUpstreamGateway wraps payment-gateway failures.
	ErrUpstreamGateway = errors.New("payment gateway error")
	// ErrNoChange signals a read-modify-write closure decided the row is
	// already in the desired state and must not be rewritten.
	ErrNoChange = errors.New("no change")
)

// InsufficientStockError names the offending product and what was left.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.Name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ProductGoneError names the cart line whose product disappeared.
type ProductGoneError struct {
	ProductID string
	Name      string
}

func (e *ProductGoneError) Error() string {
	return fmt.Sprintf("product %q (%s) is no longer available", e.Name, e.ProductID)
}

func (e *ProductGoneError) Unwrap() error { return ErrProductGone }

// GatewayErrorKind classifies how the payment gateway failed.
type GatewayErrorKind int

const (
	// GatewayBadResponse means the gateway answered with a structured error.
	GatewayBadResponse GatewayErrorKind = iota
	// GatewayUnreachable means the gateway could not be reached at all.
	GatewayUnreachable
	// GatewayTimeout means the call exceeded the transport deadline.
	GatewayTimeout
)

// GatewayError wraps a payment-gateway failure with its classification.
type GatewayError struct {
	Kind    GatewayErrorKind
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("payment gateway: %s", e.Message)
	}
	return fmt.Sprintf("payment gateway: %v", e.Err)
}

func (e *GatewayError) Unwrap() error { return ErrUpstreamGateway }
