/*
errors.go - Centralized error types for the ledger engine

ERROR CATEGORIES:
  1. Validation errors - a record failed normalization (silent no-op upstream)
  2. Precondition errors - a dispatcher rejected user input (surfaced to caller)
  3. Persistence errors - the durable store degraded to the cache (logged only)

Dispatcher rejections wrap the sentinels so callers can classify with
errors.Is without string matching.
*/
package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRecord is returned by the validation layer when a record
	// cannot be normalized into a well-formed entity.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrInsufficientFunds is returned when an action would drive the
	// spendable balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrOutOfRange is returned when an amount violates a dispatcher
	// precondition (below minimum, outside plan bounds, not positive).
	ErrOutOfRange = errors.New("amount out of range")

	// ErrNotWithdrawable is returned when sweeping profit from an
	// investment that has not matured (or was already swept).
	ErrNotWithdrawable = errors.New("investment profit not withdrawable")

	// ErrNoSession is returned when a dispatcher runs without a signed-in user.
	ErrNoSession = errors.New("no active session")

	// ErrPlanNotFound is returned when an investment references an unknown plan.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrPersistenceUnavailable marks a durable-store failure that was
	// recovered via the local cache. Logged, never surfaced.
	ErrPersistenceUnavailable = errors.New("durable store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError reports how far an action overdrew the balance.
type InsufficientFundsError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, requested %s",
		e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// OutOfRangeError reports the violated bound.
type OutOfRangeError struct {
	Requested decimal.Decimal
	Min       decimal.Decimal
	Max       decimal.Decimal // zero when unbounded
}

func (e *OutOfRangeError) Error() string {
	if e.Max.IsZero() {
		return fmt.Sprintf("amount %s below minimum %s",
			e.Requested.StringFixed(2), e.Min.StringFixed(2))
	}
	return fmt.Sprintf("amount %s outside [%s, %s]",
		e.Requested.StringFixed(2), e.Min.StringFixed(2), e.Max.StringFixed(2))
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }

// FieldError pinpoints which field failed validation.
type FieldError struct {
	Entity string
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidRecord }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is a precondition rejection that
// should surface to the caller as a 4xx, not an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRecord) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrNotWithdrawable) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrNoSession)
}
