/*
ledger.go - Installment ledger

PURPOSE:
  Mutates one installment's state within an order's schedule and drives the
  order-level state from the mutation. The ledger is the only writer of
  installment states.

CRITICAL INVARIANTS:
  1. ATOMIC: schedule mutation and order-state derivation are persisted as a
     single step; a reader never sees an installment paid while the order
     state still reflects the pre-mutation value.
  2. IDEMPOTENT: setting a state an installment already has is a no-op and
     does not re-trigger order-level side effects or events.
  3. ALL-OR-NOTHING: on any error the repository copy is untouched.
  4. SERIALIZED PER ORDER: concurrent gateway events for the same order are
     serialized via optimistic versioning; conflicting writes retry.

EVENTS:
  Successful paid/refused/refunded mutations emit an Event (order id,
  installment id, resulting order state) to the configured EventSink after
  the persist succeeds. Sink failures do not roll the mutation back.

SEE ALSO:
  - statemachine.go: positional state derivation
  - store/memory.go, store/sqlite: Repository implementations
*/
package payment

import "context"

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Repository persists orders wholesale. GetOrder returns a copy the caller
// may freely mutate; SaveOrder fails with ErrConcurrentModification when the
// order's version no longer matches the stored one.
type Repository interface {
	GetOrder(ctx context.Context, id string) (*Order, error)
	SaveOrder(ctx context.Context, order *Order) error
}

// EventType names the payment events produced for the external
// notifier/activity-log collaborator.
type EventType string

const (
	EventInstallmentPaid     EventType = "installment_paid"
	EventInstallmentRefused  EventType = "installment_refused"
	EventInstallmentRefunded EventType = "installment_refunded"
)

// Event is one payment event with its resulting order state.
type Event struct {
	Type          EventType  `json:"type"`
	OrderID       string     `json:"order_id"`
	InstallmentID string     `json:"installment_id"`
	OrderState    OrderState `json:"order_state"`
}

// EventSink receives payment events. Implementations must tolerate replays.
type EventSink interface {
	Record(ctx context.Context, ev Event) error
}

// =============================================================================
// LEDGER
// =============================================================================

const defaultMaxRetries = 3

// Ledger mutates installment states within one order's schedule.
type Ledger struct {
	Repo   Repository
	Events EventSink // optional
	// MaxRetries bounds optimistic-concurrency retries; zero means 3.
	MaxRetries int
}

func NewLedger(repo Repository, events EventSink) *Ledger {
	return &Ledger{Repo: repo, Events: events}
}

// SetPaid marks an installment paid and derives the order state from the
// installment's position: unique-or-last completes the order, anything else
// leaves it pending payment.
func (l *Ledger) SetPaid(ctx context.Context, orderID, installmentID string) (*Order, error) {
	return l.mutate(ctx, orderID, func(o *Order) (*Event, error) {
		idx, ok := o.Schedule.Find(installmentID)
		if !ok {
			return nil, &InstallmentNotFoundError{OrderID: orderID, InstallmentID: installmentID}
		}
		if o.Schedule[idx].State == InstallmentPaid {
			return nil, nil
		}
		schedule := o.Schedule.Clone()
		schedule[idx].State = InstallmentPaid
		o.Schedule = schedule
		o.State = stateAfterPaid(schedule.PositionOf(idx))
		return &Event{Type: EventInstallmentPaid, OrderID: o.ID, InstallmentID: installmentID, OrderState: o.State}, nil
	})
}

// SetRefused marks an installment refused: a refused first installment means
// no payment ever happened, a refused middle or last one is a failed payment.
func (l *Ledger) SetRefused(ctx context.Context, orderID, installmentID string) (*Order, error) {
	return l.mutate(ctx, orderID, func(o *Order) (*Event, error) {
		idx, ok := o.Schedule.Find(installmentID)
		if !ok {
			return nil, &InstallmentNotFoundError{OrderID: orderID, InstallmentID: installmentID}
		}
		if o.Schedule[idx].State == InstallmentRefused {
			return nil, nil
		}
		schedule := o.Schedule.Clone()
		schedule[idx].State = InstallmentRefused
		o.Schedule = schedule
		o.State = stateAfterRefused(schedule.PositionOf(idx))
		return &Event{Type: EventInstallmentRefused, OrderID: o.ID, InstallmentID: installmentID, OrderState: o.State}, nil
	})
}

// SetRefunded marks a paid installment refunded. Legal only while the order
// is refunding; replaying a refund that already happened is a no-op.
func (l *Ledger) SetRefunded(ctx context.Context, orderID, installmentID string) (*Order, error) {
	return l.mutate(ctx, orderID, func(o *Order) (*Event, error) {
		idx, ok := o.Schedule.Find(installmentID)
		if !ok {
			return nil, &InstallmentNotFoundError{OrderID: orderID, InstallmentID: installmentID}
		}
		if o.Schedule[idx].State == InstallmentRefunded {
			return nil, nil
		}
		if o.State != OrderRefunding || o.Schedule[idx].State != InstallmentPaid {
			return nil, &IllegalRefundError{
				InstallmentID:    installmentID,
				OrderState:       o.State,
				InstallmentState: o.Schedule[idx].State,
			}
		}
		schedule := o.Schedule.Clone()
		schedule[idx].State = InstallmentRefunded
		o.Schedule = schedule
		return &Event{Type: EventInstallmentRefunded, OrderID: o.ID, InstallmentID: installmentID, OrderState: o.State}, nil
	})
}

// SetState moves an installment to an arbitrary state without order-level
// derivation or events. Idempotent.
func (l *Ledger) SetState(ctx context.Context, orderID, installmentID string, state InstallmentState) (*Order, error) {
	return l.mutate(ctx, orderID, func(o *Order) (*Event, error) {
		idx, ok := o.Schedule.Find(installmentID)
		if !ok {
			return nil, &InstallmentNotFoundError{OrderID: orderID, InstallmentID: installmentID}
		}
		if o.Schedule[idx].State == state {
			return nil, nil
		}
		schedule := o.Schedule.Clone()
		schedule[idx].State = state
		o.Schedule = schedule
		return nil, nil
	})
}

// mutate loads the order, applies fn to the copy and persists it, retrying on
// optimistic-concurrency conflicts. fn returns a nil event to signal an
// idempotent no-op, in which case nothing is persisted or emitted. fn must
// replace the schedule rather than edit it in place so a failed save leaves
// no partial mutation behind.
func (l *Ledger) mutate(ctx context.Context, orderID string, fn func(*Order) (*Event, error)) (*Order, error) {
	retries := l.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		order, err := l.Repo.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}

		changed := order.Clone()
		ev, err := fn(changed)
		if err != nil {
			return nil, err
		}
		if changed.State == order.State && ev == nil && schedulesEqual(changed.Schedule, order.Schedule) {
			// No-op replay: same end state, no side effects.
			return order, nil
		}

		if err := l.Repo.SaveOrder(ctx, changed); err != nil {
			if IsRetryable(err) {
				lastErr = err
				continue
			}
			return nil, err
		}

		if l.Events != nil && ev != nil {
			// Best effort: the mutation is already durable.
			_ = l.Events.Record(ctx, *ev)
		}
		return changed, nil
	}
	return nil, lastErr
}

func schedulesEqual(a, b PaymentSchedule) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].State != b[i].State {
			return false
		}
	}
	return true
}

// =============================================================================
// QUERIES - Facts derived from one order's schedule
// =============================================================================

// FirstRefused returns the first refused installment of the order.
func (l *Ledger) FirstRefused(ctx context.Context, orderID string) (Installment, bool, error) {
	order, err := l.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return Installment{}, false, err
	}
	inst, ok := order.Schedule.FirstRefused()
	return inst, ok, nil
}

// NextDueDate returns the due date of the order's first pending installment.
func (l *Ledger) NextDueDate(ctx context.Context, orderID string) (Date, bool, error) {
	order, err := l.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return Date{}, false, err
	}
	due, ok := order.Schedule.NextDueDate()
	return due, ok, nil
}

// RemainingBalance returns the sum of amounts not yet paid or refunded.
func (l *Ledger) RemainingBalance(ctx context.Context, orderID string) (Money, error) {
	order, err := l.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return Money{}, err
	}
	return order.Schedule.RemainingBalance(), nil
}

// RefundedTotal returns the sum of refunded amounts.
func (l *Ledger) RefundedTotal(ctx context.Context, orderID string) (Money, error) {
	order, err := l.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return Money{}, err
	}
	return order.Schedule.RefundedTotal(), nil
}
