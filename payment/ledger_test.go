package payment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfun/payplan/payment"
	"github.com/openfun/payplan/payment/store"
)

func seedOrder(t *testing.T, mem *store.Memory, schedule payment.PaymentSchedule, state payment.OrderState) *payment.Order {
	t.Helper()
	order := &payment.Order{
		ID:          "ord-1",
		Total:       eur("100"),
		State:       state,
		ProductType: payment.ProductCredential,
		Schedule:    schedule,
	}
	require.NoError(t, mem.SaveOrder(context.Background(), order))
	return order
}

func pendingSchedule(n int) payment.PaymentSchedule {
	s := make(payment.PaymentSchedule, n)
	for i := range s {
		s[i] = payment.Installment{
			ID:      []string{"i0", "i1", "i2", "i3"}[i],
			Amount:  eur("25.00"),
			DueDate: date(2024, time.January, 15).AddMonths(i),
			State:   payment.InstallmentPending,
		}
	}
	return s
}

func TestLedger_SetPaid_MiddleInstallment_OrderPendingPayment(t *testing.T) {
	// GIVEN: A 4-part pending schedule
	mem := store.NewMemory()
	ledger := payment.NewLedger(mem, mem)
	seedOrder(t, mem, pendingSchedule(4), payment.OrderPending)

	// WHEN: Paying the first installment
	order, err := ledger.SetPaid(context.Background(), "ord-1", "i0")
	require.NoError(t, err)

	// THEN: The installment is paid and the order awaits the next debit
	assert.Equal(t, payment.InstallmentPaid, order.Schedule[0].State)
	assert.Equal(t, payment.OrderPendingPayment, order.State)

	events := mem.Events()
	require.Len(t, events, 1)
	assert.Equal(t, payment.EventInstallmentPaid, events[0].Type)
	assert.Equal(t, "i0", events[0].InstallmentID)
	assert.Equal(t, payment.OrderPendingPayment, events[0].OrderState)
}

func TestLedger_SetPaid_LastInstallment_CompletesOrder(t *testing.T) {
	mem := store.NewMemory()
	ledger := payment.NewLedger(mem, mem)
	s := pendingSchedule(4)
	for i := 0; i < 3; i++ {
		s[i].State = payment.InstallmentPaid
	}
	seedOrder(t, mem, s, payment.OrderPendingPayment)

	order, err := ledger.SetPaid(context.Background(), "ord-1", "i3")
	require.NoError(t, err)

	assert.Equal(t, payment.OrderCompleted, order.State)
}

func TestLedger_SetPaid_SingleInstallment_CompletesOrder(t *testing.T) {
	// A unique installment is both first and last: paying it completes.
	mem := store.NewMemory()
	ledger := payment.NewLedger(mem, mem)
	seedOrder(t, mem, pendingSchedule(1), payment.OrderPending)

	order, err := ledger.SetPaid(context.Background(), "ord-1", "i0")
	require.NoError(t, err)

	assert.Equal(t, payment.OrderCompleted, order.State)
}

func TestLedger_SetRefused_PositionDrivesOrderState(t *testing.T) {
	// GIVEN: The same 4-part schedule in two stores
	// WHEN: Refusing the first installment in one, the last in the other
	// THEN: First refusal means no payment, last means failed payment

	mem := store.NewMemory()
	ledger := payment.NewLedger(mem, mem)
	seedOrder(t, mem, pendingSchedule(4), payment.OrderPending)

	order, err := ledger.SetRefused(context.Background(), "ord-1", "i0")
	require.NoError(t, err)
	assert.Equal(t, payment.OrderNoPayment, order.State)

	mem = store.NewMemory()
	ledger = payment.NewLedger(mem, mem)
	seedOrder(t, mem, pendingSchedule(4), payment.OrderPending)

	order, err = ledger.SetRefused(context.Background(), "ord-1", "i3")
	require.NoError(t, err)
	assert.Equal(t, payment.OrderFailedPayment, order.State)
}

func TestLedger_SetRefused_SingleInstallment_NoPayment(t *testing.T) {
	mem := store.NewMemory()
	ledger := payment.NewLedger(mem, mem)
	seedOrder(t, mem, pendingSchedule(1), payment.OrderPending)

	order, err := ledger.SetRefused(context.Background(), "ord-1", "i0")
	require.NoError(t, err)

	assert.Equal(t, payment.OrderNoPayment, order.State)
}

func TestLedger_SetPaid_IdempotentReplay(t *testing.T) {
	// GIVEN: An installment already paid
	mem := store.NewMemory()
	ledger := payment.NewLedger(mem, mem)
	seedOrder(t, mem, pendingSchedule(4), payment.OrderPending)

	first, err := ledger.SetPaid(context.Background(), "ord-1", "i0")
	require.NoError(t, err)

	// WHEN: The gateway delivers the same notification again
	replay, err := ledger.SetPaid(context.Background(), "ord-1", "i0")
	require.NoError(t, err)

	// THEN: Nothing changes and no second event is emitted
	assert.Equal(t, first.State, replay.State)
	assert.Equal(t, first.Version, replay.Version)
	assert.Len(t, mem.Events(), 1)
}

func TestLedger_SetPaid_UnknownInstallment(t *testing.T) {
	mem := store.NewMemory()
	ledger := payment.NewLedger(mem, mem)
	seedOrder(t, mem, pendingSchedule(2), payment.OrderPending)

	_, err := ledger.SetPaid(context.Background(), "ord-1", "nope")

	assert.ErrorIs(t, err, payment.ErrInstallmentNotFound)
	assert.True(t, payment.IsNotFound(err))
	assert.Empty(t, mem.Events())
}

func TestLedger_SetPaid_UnknownOrder(t *testing.T) {
	mem := store.NewMemory()
	ledger := payment.NewLedger(mem, mem)

	_, err := ledger.SetPaid(context.Background(), "ghost", "i0")

	assert.ErrorIs(t, err, payment.ErrOrderNotFound)
}

func TestLedger_SetRefunded_LegalOnlyWhileRefunding(t *testing.T) {
	// GIVEN: A canceled-then-refunding order with one paid installment
	mem := store.NewMemory()
	ledger := payment.NewLedger(mem, mem)
	s := pendingSchedule(2)
	s[0].State = payment.InstallmentPaid
	seedOrder(t, mem, s, payment.OrderRefunding)

	// WHEN: Refunding the paid installment
	order, err := ledger.SetRefunded(context.Background(), "ord-1", "i0")
	require.NoError(t, err)

	// THEN: The installment is refunded; the order state is untouched
	assert.Equal(t, payment.InstallmentRefunded, order.Schedule[0].State)
	assert.Equal(t, payment.OrderRefunding, order.State)

	events := mem.Events()
	require.Len(t, events, 1)
	assert.Equal(t, payment.EventInstallmentRefunded, events[0].Type)

	// Replaying the refund is a no-op.
	_, err = ledger.SetRefunded(context.Background(), "ord-1", "i0")
	require.NoError(t, err)
	assert.Len(t, mem.Events(), 1)

	// Refunding a never-paid installment is illegal.
	_, err = ledger.SetRefunded(context.Background(), "ord-1", "i1")
	assert.ErrorIs(t, err, payment.ErrIllegalRefund)
}

func TestLedger_SetRefunded_RejectedOutsideRefundingState(t *testing.T) {
	mem := store.NewMemory()
	ledger := payment.NewLedger(mem, mem)
	s := pendingSchedule(2)
	s[0].State = payment.InstallmentPaid
	seedOrder(t, mem, s, payment.OrderPendingPayment)

	_, err := ledger.SetRefunded(context.Background(), "ord-1", "i0")

	var illegal *payment.IllegalRefundError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, payment.OrderPendingPayment, illegal.OrderState)
	assert.True(t, payment.IsClientError(err))
}

func TestLedger_SetState_NoDerivationNoEvents(t *testing.T) {
	mem := store.NewMemory()
	ledger := payment.NewLedger(mem, mem)
	seedOrder(t, mem, pendingSchedule(2), payment.OrderPending)

	order, err := ledger.SetState(context.Background(), "ord-1", "i0", payment.InstallmentRefused)
	require.NoError(t, err)

	assert.Equal(t, payment.InstallmentRefused, order.Schedule[0].State)
	assert.Equal(t, payment.OrderPending, order.State)
	assert.Empty(t, mem.Events())
}

// conflictOnce wraps a Memory store and fails the first save attempt, as a
// concurrent writer would.
type conflictOnce struct {
	*store.Memory
	fired bool
}

func (c *conflictOnce) SaveOrder(ctx context.Context, order *payment.Order) error {
	if !c.fired {
		c.fired = true
		return payment.ErrConcurrentModification
	}
	return c.Memory.SaveOrder(ctx, order)
}

func TestLedger_Mutate_RetriesOnVersionConflict(t *testing.T) {
	// GIVEN: A store that rejects the first write with a version conflict
	mem := store.NewMemory()
	repo := &conflictOnce{Memory: mem}
	ledger := payment.NewLedger(repo, mem)
	seedOrder(t, mem, pendingSchedule(2), payment.OrderPending)

	// WHEN: Paying an installment
	order, err := ledger.SetPaid(context.Background(), "ord-1", "i0")

	// THEN: The retry succeeds transparently
	require.NoError(t, err)
	assert.Equal(t, payment.InstallmentPaid, order.Schedule[0].State)
	assert.Len(t, mem.Events(), 1)
}

func TestLedger_Mutate_GivesUpAfterMaxRetries(t *testing.T) {
	mem := store.NewMemory()
	seedOrder(t, mem, pendingSchedule(2), payment.OrderPending)

	ledger := &payment.Ledger{Repo: alwaysConflict{mem}, MaxRetries: 2}
	_, err := ledger.SetPaid(context.Background(), "ord-1", "i0")

	assert.ErrorIs(t, err, payment.ErrConcurrentModification)
}

type alwaysConflict struct{ *store.Memory }

func (alwaysConflict) SaveOrder(context.Context, *payment.Order) error {
	return payment.ErrConcurrentModification
}

func TestLedger_Queries(t *testing.T) {
	mem := store.NewMemory()
	ledger := payment.NewLedger(mem, mem)
	s := pendingSchedule(4)
	s[0].State = payment.InstallmentPaid
	s[1].State = payment.InstallmentRefused
	seedOrder(t, mem, s, payment.OrderFailedPayment)

	ctx := context.Background()

	inst, ok, err := ledger.FirstRefused(ctx, "ord-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "i1", inst.ID)

	due, ok, err := ledger.NextDueDate(ctx, "ord-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, date(2024, time.March, 15), due)

	balance, err := ledger.RemainingBalance(ctx, "ord-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(eur("75.00")))

	refunded, err := ledger.RefundedTotal(ctx, "ord-1")
	require.NoError(t, err)
	assert.True(t, refunded.IsZero())
}

func TestSchedule_IsNextInstallmentToDebit(t *testing.T) {
	s := pendingSchedule(3)
	s[0].State = payment.InstallmentPaid
	// Next pending is i1, due 2024-02-15.

	cutoff := date(2024, time.February, 16)
	assert.True(t, s.IsNextInstallmentToDebit(s[1], cutoff))
	// i2 is pending but not next.
	assert.False(t, s.IsNextInstallmentToDebit(s[2], cutoff))
	// Cutoff before the due date: too early to remind.
	assert.False(t, s.IsNextInstallmentToDebit(s[1], date(2024, time.February, 10)))

	allPaid := pendingSchedule(2)
	allPaid[0].State = payment.InstallmentPaid
	allPaid[1].State = payment.InstallmentPaid
	assert.False(t, allPaid.IsNextInstallmentToDebit(allPaid[1], cutoff))
}
