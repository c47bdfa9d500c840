package api_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfun/payplan/api"
	"github.com/openfun/payplan/payment"
	"github.com/openfun/payplan/payment/store"
)

// captureSender records reminders instead of sending email.
type captureSender struct {
	mu   sync.Mutex
	sent []string // "email/orderID/installmentID"
}

func (c *captureSender) SendPaymentReminder(to, orderID string, inst payment.Installment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, to+"/"+orderID+"/"+inst.ID)
	return nil
}

func (c *captureSender) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func seedReminderOrder(t *testing.T, mem *store.Memory, id, email string, due payment.Date) {
	t.Helper()
	require.NoError(t, mem.SaveOrder(context.Background(), &payment.Order{
		ID:          id,
		OwnerEmail:  email,
		Total:       payment.MustMoney("100", "EUR"),
		State:       payment.OrderPendingPayment,
		ProductType: payment.ProductCredential,
		Schedule: payment.PaymentSchedule{
			{ID: id + "-i0", Amount: payment.MustMoney("20", "EUR"), DueDate: payment.NewDate(2024, time.January, 2), State: payment.InstallmentPaid},
			{ID: id + "-i1", Amount: payment.MustMoney("80", "EUR"), DueDate: due, State: payment.InstallmentPending},
		},
	}))
}

func TestReminderScheduler_RunOnce(t *testing.T) {
	// GIVEN: One installment due within the window, one far out, one order
	//        without an email address
	mem := store.NewMemory()
	seedReminderOrder(t, mem, "ord-soon", "soon@example.com", payment.NewDate(2024, time.February, 2))
	seedReminderOrder(t, mem, "ord-later", "later@example.com", payment.NewDate(2024, time.March, 15))
	seedReminderOrder(t, mem, "ord-anon", "", payment.NewDate(2024, time.February, 2))

	sender := &captureSender{}
	scheduler := api.NewReminderScheduler(mem, sender, 2, nil)
	scheduler.Today = func() payment.Date { return payment.NewDate(2024, time.February, 1) }

	// WHEN: Scanning
	scheduler.RunOnce(context.Background())

	// THEN: Only the imminent installment with a reachable owner is reminded
	assert.Equal(t, []string{"soon@example.com/ord-soon/ord-soon-i1"}, sender.all())

	// AND: A second scan does not repeat the reminder
	scheduler.RunOnce(context.Background())
	assert.Len(t, sender.all(), 1)
}

func TestReminderScheduler_WindowMovesForward(t *testing.T) {
	mem := store.NewMemory()
	seedReminderOrder(t, mem, "ord-1", "student@example.com", payment.NewDate(2024, time.March, 15))

	sender := &captureSender{}
	scheduler := api.NewReminderScheduler(mem, sender, 2, nil)

	today := payment.NewDate(2024, time.March, 1)
	scheduler.Today = func() payment.Date { return today }

	scheduler.RunOnce(context.Background())
	assert.Empty(t, sender.all())

	// Two days before the due date the reminder goes out.
	today = payment.NewDate(2024, time.March, 13)
	scheduler.RunOnce(context.Background())
	assert.Len(t, sender.all(), 1)
}
