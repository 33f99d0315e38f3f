package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned for any tracking lookup mismatch. Wrong code
// and wrong phone produce this same error so the message never reveals
// which part was wrong.
var ErrNotFound = errors.New("order not found")

// ValidationError is a user-correctable submission failure. Code is a
// stable key the frontend maps to a localized message; Message is the
// English fallback.
type ValidationError struct {
	Code    string
	Field   string
	Message string

	// Shortfall is set for minimum-order violations: how much the
	// subtotal is below the zone's minimum.
	Shortfall decimal.Decimal
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Code, e.Message)
}

// InvalidTransitionError reports a status change outside the order
// lifecycle's defined edges.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition %s -> %s", e.From, e.To)
}
