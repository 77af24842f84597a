package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrMissingPaymentMethod = errors.New("payment method is required")

	ErrForbidden          = errors.New("forbidden")
	ErrProductNotFound    = errors.New("product not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

// InvalidCartLineError rejects a malformed line before any row is locked.
type InvalidCartLineError struct {
	Index     int
	ProductID int64
	Quantity  int
}

func (e *InvalidCartLineError) Error() string {
	return fmt.Sprintf("cart line %d is invalid: product %d, quantity %d", e.Index, e.ProductID, e.Quantity)
}

type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %d", e.ProductID)
}

type InsufficientStockError struct {
	ProductID int64
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (product %d): available %d, requested %d",
		e.Name, e.ProductID, e.Available, e.Requested)
}

// CheckoutFailedError wraps any persistence or unexpected failure that
// rolled back a checkout.
type CheckoutFailedError struct {
	Err error
}

func (e *CheckoutFailedError) Error() string {
	return "checkout failed: " + e.Err.Error()
}

func (e *CheckoutFailedError) Unwrap() error {
	return e.Err
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Error kinds reported to API clients.
const (
	KindEmptyCart         = "empty_cart"
	KindInvalidCart       = "invalid_cart"
	KindProductNotFound   = "product_not_found"
	KindInsufficientStock = "insufficient_stock"
	KindCheckoutFailed    = "checkout_failed"
)

// CheckoutErrorKind classifies an error returned by CheckoutService.Checkout.
func CheckoutErrorKind(err error) string {
	var (
		invalid  *InvalidCartLineError
		notFound *ProductNotFoundError
		stock    *InsufficientStockError
	)
	switch {
	case errors.Is(err, ErrEmptyCart):
		return KindEmptyCart
	case errors.Is(err, ErrMissingPaymentMethod), errors.As(err, &invalid):
		return KindInvalidCart
	case errors.As(err, &notFound):
		return KindProductNotFound
	case errors.As(err, &stock):
		return KindInsufficientStock
	default:
		return KindCheckoutFailed
	}
}
