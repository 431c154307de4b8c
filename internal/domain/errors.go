package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrConflict                = errors.New("conflict")
	ErrForbidden               = errors.New("forbidden")
	ErrUnknownEnum             = errors.New("unknown enum value")
	ErrInvalidQuantity         = errors.New("quantity must be greater than zero")
	ErrInvalidAmount           = errors.New("amount must be greater than zero")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrCartNotFound            = errors.New("active cart not found")
	ErrInvalidAddress          = errors.New("address does not belong to user")
	ErrAdvanceNotCompleted     = errors.New("advance payment not completed")
	ErrPaymentIncomplete       = errors.New("final payment not completed")
	ErrPaymentAlreadyCompleted = errors.New("payment of this type already completed")
	ErrSignatureInvalid        = errors.New("payment signature invalid")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrNoActiveTaxConfig       = errors.New("no active tax configuration")
	ErrAlreadyConsumed         = errors.New("materials already consumed for order")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInsufficientMaterials   = errors.New("insufficient materials")
	ErrGateway                 = errors.New("payment gateway error")
)

type StockShortage struct {
	VariantSizeID uuid.UUID `json:"variant_size_id"`
	Requested     int       `json:"requested"`
	Available     int       `json:"available"`
}

// InsufficientStockError lists every line that cannot be covered.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", s.VariantSizeID, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

func NewInsufficientStock(id uuid.UUID, requested, available int) *InsufficientStockError {
	return &InsufficientStockError{Shortages: []StockShortage{{VariantSizeID: id, Requested: requested, Available: available}}}
}

type InsufficientMaterialsError struct {
	Shortages []MaterialShortage
}

func (e *InsufficientMaterialsError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s short by %s", s.MaterialName, s.Shortage.StringFixed(2)))
	}
	return "insufficient materials: " + strings.Join(parts, ", ")
}

func (e *InsufficientMaterialsError) Is(target error) bool { return target == ErrInsufficientMaterials }

// GatewayError wraps a failed call to the payment gateway. Status is the
// HTTP status returned by the gateway, zero when no response was received.
type GatewayError struct {
	Status int
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("payment gateway: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("payment gateway: %v", e.Err)
}

func (e *GatewayError) Unwrap() error        { return e.Err }
func (e *GatewayError) Is(target error) bool { return target == ErrGateway }
