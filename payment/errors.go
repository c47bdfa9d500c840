/*
errors.go - Centralized error types for the payment engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Outer layers (HTTP, scheduler) match on the sentinels with errors.Is()
  and translate them into user-facing responses.

ERROR CATEGORIES:
  1. Configuration errors - Malformed percentage table (startup-fatal)
  2. Schedule errors      - Date resolution and read-back conversion failures
  3. Ledger errors        - Unknown installments, illegal refunds
  4. Guard errors         - Withdrawal attempted too late or with no schedule
  5. Store errors         - Missing orders, optimistic-locking conflicts

PROPAGATION POLICY:
  Every failure is all-or-nothing: when any of these errors is returned, no
  partial mutation of a schedule or an order state is observable.
*/
package payment

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfiguration is returned when the percentage table is empty or
	// malformed. Fatal at startup, never caught per-request.
	ErrConfiguration = errors.New("invalid payment configuration")

	// ErrScheduleDateResolution is returned when an order's target courses
	// have no eligible course run to anchor the schedule on.
	ErrScheduleDateResolution = errors.New("cannot retrieve start or end date for order")

	// ErrInvalidConversion is returned when a persisted amount or date cannot
	// be parsed back into its value type.
	ErrInvalidConversion = errors.New("invalid persisted value")

	// ErrInstallmentNotFound is returned for an unknown installment id.
	ErrInstallmentNotFound = errors.New("installment not found")

	// ErrIllegalRefund is returned when a refund is attempted outside the
	// refunding state or on a non-paid installment.
	ErrIllegalRefund = errors.New("installment cannot be refunded")

	// ErrWithdrawPastDue is returned when a withdrawal is requested after the
	// first installment's due date.
	ErrWithdrawPastDue = errors.New("cannot withdraw after the first installment due date")

	// ErrNoPaymentSchedule is returned when a withdrawal is requested on an
	// order that has no schedule yet.
	ErrNoPaymentSchedule = errors.New("order has no payment schedule")

	// ErrInvalidTransition is returned for a disallowed administrative
	// order-state transition.
	ErrInvalidTransition = errors.New("invalid order state transition")

	// ErrOrderNotFound is returned when a referenced order doesn't exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrConcurrentModification is returned when optimistic locking detects
	// a conflict. Expected under concurrent gateway events; safe to retry.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError describes why the percentage table is unusable.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid payment configuration: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// ScheduleDateResolutionError identifies the order whose dates could not be
// resolved.
type ScheduleDateResolutionError struct {
	OrderID string
}

func (e *ScheduleDateResolutionError) Error() string {
	return fmt.Sprintf("cannot retrieve start or end date for order %s", e.OrderID)
}

func (e *ScheduleDateResolutionError) Unwrap() error { return ErrScheduleDateResolution }

// InvalidConversionError reports a malformed persisted amount or date.
type InvalidConversionError struct {
	Field string
	Raw   string
	Err   error
}

func (e *InvalidConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid persisted %s %q: %v", e.Field, e.Raw, e.Err)
	}
	return fmt.Sprintf("invalid persisted %s %q", e.Field, e.Raw)
}

func (e *InvalidConversionError) Unwrap() error { return ErrInvalidConversion }

// InstallmentNotFoundError identifies the missing installment.
type InstallmentNotFoundError struct {
	OrderID       string
	InstallmentID string
}

func (e *InstallmentNotFoundError) Error() string {
	return fmt.Sprintf("installment %s not found on order %s", e.InstallmentID, e.OrderID)
}

func (e *InstallmentNotFoundError) Unwrap() error { return ErrInstallmentNotFound }

// IllegalRefundError carries the states that made the refund illegal.
type IllegalRefundError struct {
	InstallmentID    string
	OrderState       OrderState
	InstallmentState InstallmentState
}

func (e *IllegalRefundError) Error() string {
	return fmt.Sprintf("installment %s cannot be refunded (order %s, installment %s)",
		e.InstallmentID, e.OrderState, e.InstallmentState)
}

func (e *IllegalRefundError) Unwrap() error { return ErrIllegalRefund }

// WithdrawPastDueError carries the boundary that was crossed.
type WithdrawPastDueError struct {
	FirstDueDate Date
	Today        Date
}

func (e *WithdrawPastDueError) Error() string {
	return fmt.Sprintf("cannot withdraw after the first installment due date (%s, today %s)",
		e.FirstDueDate, e.Today)
}

func (e *WithdrawPastDueError) Unwrap() error { return ErrWithdrawPastDue }

// InvalidTransitionError carries the rejected state pair.
type InvalidTransitionError struct {
	From OrderState
	To   OrderState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order state transition %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrIllegalRefund) ||
		errors.Is(err, ErrWithdrawPastDue) ||
		errors.Is(err, ErrNoPaymentSchedule) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrScheduleDateResolution)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrInstallmentNotFound)
}
