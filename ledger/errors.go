/*
errors.go - Centralized error kinds for the ledger engine

PURPOSE:
  All error types in one place. Every failure an orchestrator can report
  belongs to one of a small, closed set of kinds, so the API boundary can
  turn it into a structured result without inspecting messages.

ERROR KINDS:
  NotFound               order, item, warehouse item, closing, customer missing
  InvalidStateTransition wrong delivery/return status for the action
  InsufficientStock      deduction would drive a warehouse item negative
  InsufficientBalance    prepaid charge exceeds the customer balance
  PeriodLocked           stock write or count against a closed month
  ValidationFailed       malformed input, delivery gate rejection
  ConcurrentModification compare-and-set lost against another writer

USAGE:
  Structured errors unwrap to the sentinels:

    if errors.Is(err, ledger.ErrInsufficientStock) { ... }

    var short *ledger.InsufficientStockError
    if errors.As(err, &short) { log(short.Available) }

SEE ALSO:
  - api/result.go: converts errors into the response envelope
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidTransition      = errors.New("invalid state transition")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrPeriodLocked           = errors.New("period locked")
	ErrValidation             = errors.New("validation failed")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "order", "customer", "closing", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(kind string, id any) error {
	return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
}

// TransitionError is returned when an action is not allowed from a state.
type TransitionError struct {
	Subject string // "order" or "return"
	From    string
	Action  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %s", e.Action, e.Subject, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	WarehouseID WarehouseID
	ItemID      ItemID
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s in warehouse %s: available %s, requested %s",
		e.ItemID, e.WarehouseID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	CustomerID CustomerID
	Available  decimal.Decimal
	Requested  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for customer %s: available %s, requested %s, shortfall %s",
		e.CustomerID, e.Available, e.Requested, e.Requested.Sub(e.Available))
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// PeriodLockedError is returned for writes against a closed month.
type PeriodLockedError struct {
	WarehouseID WarehouseID
	Period      YearMonth
}

func (e *PeriodLockedError) Error() string {
	return fmt.Sprintf("period %s is closed for warehouse %s", e.Period, e.WarehouseID)
}

func (e *PeriodLockedError) Unwrap() error { return ErrPeriodLocked }

// ValidationError describes rejected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR CODES
// =============================================================================

const (
	CodeNotFound               = "not_found"
	CodeInvalidTransition      = "invalid_state_transition"
	CodeInsufficientStock      = "insufficient_stock"
	CodeInsufficientBalance    = "insufficient_balance"
	CodePeriodLocked           = "period_locked"
	CodeValidation             = "validation_failed"
	CodeConcurrentModification = "concurrent_modification"
	CodeInternal               = "internal"
)

// Code maps an error to its stable kind code. nil maps to "".
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrInsufficientStock):
		return CodeInsufficientStock
	case errors.Is(err, ErrInsufficientBalance):
		return CodeInsufficientBalance
	case errors.Is(err, ErrPeriodLocked):
		return CodePeriodLocked
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrConcurrentModification):
		return CodeConcurrentModification
	}
	return CodeInternal
}

// IsClientError returns true if the error is due to the request, not the system.
func IsClientError(err error) bool {
	c := Code(err)
	return c != "" && c != CodeInternal && c != CodeConcurrentModification
}
