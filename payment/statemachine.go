/*
statemachine.go - Order payment state machine

PURPOSE:
  Maps ledger mutations (with positional context) and administrative actions
  to order-level state. Payment-driven transitions only ever happen through
  the Ledger's SetPaid/SetRefused/SetRefunded; no other external state
  assignment is permitted.

DERIVATION RULES:
  paid    + unique-or-last position -> completed
  paid    + any other position      -> pending_payment
  refused + first position          -> no_payment
  refused + middle or last position -> failed_payment

ADMINISTRATIVE ACTIONS:
  Cancel     legal from any state, unconditional
  Withdraw   guard-checked cancel, only before the first due date
  Submit     draft -> submitted
  MarkPending, Validate, BeginRefund: checked against the transition table
*/
package payment

// allowedTransitions lists the valid administrative transitions. The key is
// the current state, the value the permitted targets. Payment-driven
// derivations and Cancel bypass the table.
var allowedTransitions = map[OrderState][]OrderState{
	OrderDraft:     {OrderSubmitted, OrderValidated},
	OrderSubmitted: {OrderPending, OrderValidated},
	OrderCanceled:  {OrderRefunding},
}

func canTransition(from, to OrderState) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (o *Order) transition(to OrderState) error {
	if !canTransition(o.State, to) {
		return &InvalidTransitionError{From: o.State, To: to}
	}
	o.State = to
	return nil
}

// stateAfterPaid derives the order state after an installment was paid at the
// given position.
func stateAfterPaid(p Position) OrderState {
	if p == PositionUnique || p == PositionLast {
		return OrderCompleted
	}
	return OrderPendingPayment
}

// stateAfterRefused derives the order state after an installment was refused
// at the given position.
func stateAfterRefused(p Position) OrderState {
	if p == PositionUnique || p == PositionFirst {
		return OrderNoPayment
	}
	return OrderFailedPayment
}

// Submit moves a draft order into the submitted state, at which point the
// schedule gets assembled.
func (o *Order) Submit() error {
	return o.transition(OrderSubmitted)
}

// MarkPending records that the schedule has been assembled and the order is
// waiting for its first debit.
func (o *Order) MarkPending() error {
	return o.transition(OrderPending)
}

// Validate marks an order that requires no payment at all.
func (o *Order) Validate() error {
	return o.transition(OrderValidated)
}

// Cancel is legal from any state and unconditional.
func (o *Order) Cancel() {
	o.State = OrderCanceled
}

// Withdraw delegates to the withdrawal guard; on success the order is
// canceled, on failure it is left untouched.
func (o *Order) Withdraw(today Date) error {
	if err := AuthorizeWithdrawal(o.Schedule, today); err != nil {
		return err
	}
	o.Cancel()
	return nil
}

// BeginRefund moves a canceled order with at least one paid installment into
// the refunding state, the only state in which SetRefunded is legal.
func (o *Order) BeginRefund() error {
	if !o.Schedule.HasPaid() {
		return &InvalidTransitionError{From: o.State, To: OrderRefunding}
	}
	return o.transition(OrderRefunding)
}
