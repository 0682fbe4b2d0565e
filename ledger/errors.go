/*
errors.go - Centralized error types for the ledger engine

ERROR CATEGORIES:
  1. Validation errors - malformed caller input, detected before any write
  2. Precondition errors - balance/state checks that failed, nothing written
  3. Concurrency errors - lost the race on the owning level row, retryable
  4. Store errors - database-level failures, surfaced wrapped

Domain packages (sales, transfer, pricing) wrap these with more context.
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
	// ErrValidation is returned for malformed input (negative amounts,
	// missing fields). No transaction is opened.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced owner entity
	// (station, client, barracks, item) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientBalance is returned when a precondition rejects the
	// movement against the resolved balance. Nothing is written.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrConflict is returned when the owning level row changed between
	// resolve and commit. The caller should retry the whole operation.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrStoreRequired is returned when an operation needs an extended
	// store capability the configured store does not provide.
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError reports a stock or balance shortage.
type InsufficientBalanceError struct {
	Owner     OwnerKey
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: available %s, requested %s",
		e.Owner, e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// NotFoundError names the missing entity kind ("station", "client", ...).
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ValidationError carries a caller-facing message about bad input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalidf builds a ValidationError with a formatted message.
func Invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is due to invalid client input
// or a failed precondition, as opposed to a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
