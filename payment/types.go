/*
Package payment converts a course product's price into a date-anchored,
multi-installment payment plan and drives an order's payment state from
installment lifecycle events.

KEY CONCEPTS IN THIS FILE (types.go):
  - Installment:     One scheduled partial payment (amount, due date, state)
  - PaymentSchedule: The fixed-length ordered installment list owned by an Order
  - Order:           The aggregate whose payment state is derived from its schedule
  - Position:        Where an installment sits in its schedule (unique/first/middle/last)

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal money, sum(installments) == order total exactly
  2. Ownership: the schedule is owned by its order and replaced wholesale on
     every mutation, never aliased or persisted per-installment
  3. Determinism: calendar dates in a fixed reference timezone, "today" injected
  4. Positional dispatch: order-state derivation depends on the installment's
     position in the schedule, modelled explicitly as a Position enum

SEE ALSO:
  - assembler.go: Builds a schedule from price, dates and configuration
  - ledger.go:    Mutates installment states and persists atomically
  - statemachine.go: Order-level state transitions
*/
package payment

// =============================================================================
// INSTALLMENT
// =============================================================================

// InstallmentState is the lifecycle state of a single installment.
type InstallmentState string

const (
	InstallmentPending  InstallmentState = "pending"
	InstallmentPaid     InstallmentState = "paid"
	InstallmentRefused  InstallmentState = "refused"
	InstallmentRefunded InstallmentState = "refunded"
)

func (s InstallmentState) Valid() bool {
	switch s {
	case InstallmentPending, InstallmentPaid, InstallmentRefused, InstallmentRefunded:
		return true
	}
	return false
}

// Installment is one scheduled partial payment. Created only by the Assembler,
// mutated only by the Ledger, never deleted individually.
type Installment struct {
	ID      string           `json:"id"`
	Amount  Money            `json:"amount"`
	DueDate Date             `json:"due_date"`
	State   InstallmentState `json:"state"`
}

// =============================================================================
// POSITION - Where an installment sits within its schedule
// =============================================================================

// Position is the tagged variant the order-state derivation dispatches on.
// It is computed once from index and schedule length instead of being
// re-derived ad hoc at each call site.
type Position int

const (
	PositionUnique Position = iota
	PositionFirst
	PositionMiddle
	PositionLast
)

func (p Position) String() string {
	switch p {
	case PositionUnique:
		return "unique"
	case PositionFirst:
		return "first"
	case PositionMiddle:
		return "middle"
	case PositionLast:
		return "last"
	}
	return "unknown"
}

// =============================================================================
// PAYMENT SCHEDULE - Ordered, fixed-length installment list
// =============================================================================

// PaymentSchedule is an ordered sequence of installments, ascending by due
// date. Its length is fixed once assembled; only installment states change.
type PaymentSchedule []Installment

// Clone returns a copy safe to mutate without aliasing the original.
func (s PaymentSchedule) Clone() PaymentSchedule {
	if s == nil {
		return nil
	}
	out := make(PaymentSchedule, len(s))
	copy(out, s)
	return out
}

// Find returns the index of the installment with the given id.
func (s PaymentSchedule) Find(id string) (int, bool) {
	for i := range s {
		if s[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// PositionOf classifies the installment at index i.
func (s PaymentSchedule) PositionOf(i int) Position {
	switch {
	case len(s) == 1:
		return PositionUnique
	case i == 0:
		return PositionFirst
	case i == len(s)-1:
		return PositionLast
	default:
		return PositionMiddle
	}
}

// FirstRefused returns the first installment in schedule order whose state is
// refused.
func (s PaymentSchedule) FirstRefused() (Installment, bool) {
	for i := range s {
		if s[i].State == InstallmentRefused {
			return s[i], true
		}
	}
	return Installment{}, false
}

// IndexOf scans the schedule in order and returns the index of the last
// installment in the given state; with findFirst it returns the first match
// instead. The last-occurrence default mirrors the historical behavior of the
// billing system this engine replaces and is kept under review with the
// product owner (see DESIGN.md).
func (s PaymentSchedule) IndexOf(state InstallmentState, findFirst bool) (int, bool) {
	index, found := 0, false
	for i := range s {
		if s[i].State == state {
			index, found = i, true
			if findFirst {
				break
			}
		}
	}
	return index, found
}

// NextDueDate returns the due date of the first installment still pending.
func (s PaymentSchedule) NextDueDate() (Date, bool) {
	if i, ok := s.IndexOf(InstallmentPending, true); ok {
		return s[i].DueDate, true
	}
	return Date{}, false
}

// RemainingBalance sums the amounts of installments that are neither paid nor
// refunded.
func (s PaymentSchedule) RemainingBalance() Money {
	total := s.zero()
	for i := range s {
		if s[i].State == InstallmentPaid || s[i].State == InstallmentRefunded {
			continue
		}
		total = total.Add(s[i].Amount)
	}
	return total
}

// RefundedTotal sums the amounts of refunded installments.
func (s PaymentSchedule) RefundedTotal() Money {
	total := s.zero()
	for i := range s {
		if s[i].State == InstallmentRefunded {
			total = total.Add(s[i].Amount)
		}
	}
	return total
}

// HasPaid reports whether any installment has been paid.
func (s PaymentSchedule) HasPaid() bool {
	_, ok := s.IndexOf(InstallmentPaid, true)
	return ok
}

func (s PaymentSchedule) zero() Money {
	if len(s) == 0 {
		return Money{}
	}
	return s[0].Amount.Zero()
}

// =============================================================================
// ORDER
// =============================================================================

// ProductType distinguishes products whose payment plans differ.
type ProductType string

const (
	ProductCredential  ProductType = "credential"
	ProductCertificate ProductType = "certificate"
	ProductEnrollment  ProductType = "enrollment"
)

// OrderState is the order-level payment state, derived from the aggregate
// status of the order's installments plus administrative actions.
type OrderState string

const (
	OrderDraft          OrderState = "draft"
	OrderSubmitted      OrderState = "submitted"
	OrderPending        OrderState = "pending"
	OrderNoPayment      OrderState = "no_payment"
	OrderPendingPayment OrderState = "pending_payment"
	OrderFailedPayment  OrderState = "failed_payment"
	OrderCompleted      OrderState = "completed"
	OrderRefunding      OrderState = "refunding"
	OrderCanceled       OrderState = "canceled"
	OrderValidated      OrderState = "validated"
)

// Order owns its payment schedule. The schedule is generated exactly once, at
// the point the order first requires payment; thereafter only installment
// states change. Version supports optimistic concurrency: ledger mutation and
// state derivation must be observed as a single atomic step per order.
type Order struct {
	ID               string          `json:"id"`
	OwnerEmail       string          `json:"owner_email,omitempty"`
	Total            Money           `json:"total"`
	State            OrderState      `json:"state"`
	ProductType      ProductType     `json:"product_type"`
	Schedule         PaymentSchedule `json:"payment_schedule,omitempty"`
	ContractSignedOn *Date           `json:"contract_signed_on,omitempty"`
	Version          int             `json:"-"`
}

// Clone deep-copies the order so callers can mutate without aliasing.
func (o *Order) Clone() *Order {
	out := *o
	out.Schedule = o.Schedule.Clone()
	if o.ContractSignedOn != nil {
		signed := *o.ContractSignedOn
		out.ContractSignedOn = &signed
	}
	return &out
}
