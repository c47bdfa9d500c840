/*
scheduler.go - Upcoming-debit reminder scheduler

PURPOSE:
  Periodically scans orders for installments about to be debited and hands
  them to the email sender. The core engine only supplies the
  IsNextInstallmentToDebit predicate; the cron cadence, the cutoff window
  and the delivery all live here.

DESIGN:
  - robfig/cron drives a daily scan (cron spec configurable)
  - The cutoff is today + N days; an installment is reminded about when it
    is the first pending one of its schedule and due on or before the cutoff
  - A reminder is sent at most once per installment per process lifetime;
    delivery is best effort and failures are logged, never retried inline
*/
package api

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/openfun/payplan/notify"
	"github.com/openfun/payplan/payment"
)

// DefaultReminderCronSpec runs the scan every morning at 09:00.
const DefaultReminderCronSpec = "0 9 * * *"

// ReminderScheduler emails users N days before a pending installment's due
// date.
type ReminderScheduler struct {
	Store      Storage
	Sender     notify.Sender
	DaysBefore int
	CronSpec   string
	Logger     *logrus.Logger

	// Today is injected for determinism; nil means the current UTC date.
	Today func() payment.Date

	cron *cron.Cron

	mu   sync.Mutex
	sent map[string]bool
}

// NewReminderScheduler creates a scheduler with the default daily cadence.
func NewReminderScheduler(store Storage, sender notify.Sender, daysBefore int, logger *logrus.Logger) *ReminderScheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &ReminderScheduler{
		Store:      store,
		Sender:     sender,
		DaysBefore: daysBefore,
		CronSpec:   DefaultReminderCronSpec,
		Logger:     logger,
		sent:       make(map[string]bool),
	}
}

// Start registers the cron job and begins scheduling.
func (rs *ReminderScheduler) Start() error {
	rs.cron = cron.New()
	if _, err := rs.cron.AddFunc(rs.CronSpec, func() { rs.RunOnce(context.Background()) }); err != nil {
		return err
	}
	rs.cron.Start()
	rs.Logger.Infof("reminder scheduler started (spec %q, %d days before due)", rs.CronSpec, rs.DaysBefore)
	return nil
}

// Stop halts scheduling; a running scan finishes.
func (rs *ReminderScheduler) Stop() {
	if rs.cron != nil {
		rs.cron.Stop()
	}
}

// RunOnce scans all orders and sends due reminders. Exposed for tests and
// for an admin-triggered run.
func (rs *ReminderScheduler) RunOnce(ctx context.Context) {
	today := rs.today()
	cutoff := today.AddDays(rs.DaysBefore)

	orders, err := rs.Store.ListOrders(ctx)
	if err != nil {
		rs.Logger.Errorf("reminder scan failed to list orders: %v", err)
		return
	}

	sent := 0
	for _, order := range orders {
		if order.OwnerEmail == "" {
			continue
		}
		for _, inst := range order.Schedule {
			if !order.Schedule.IsNextInstallmentToDebit(inst, cutoff) {
				continue
			}
			if rs.alreadySent(inst.ID) {
				continue
			}
			if err := rs.Sender.SendPaymentReminder(order.OwnerEmail, order.ID, inst); err != nil {
				rs.Logger.Errorf("reminder for order %s installment %s failed: %v", order.ID, inst.ID, err)
				continue
			}
			rs.markSent(inst.ID)
			sent++
		}
	}
	if sent > 0 {
		rs.Logger.Infof("reminder scan complete: %d sent", sent)
	}
}

func (rs *ReminderScheduler) today() payment.Date {
	if rs.Today != nil {
		return rs.Today()
	}
	return payment.DateOf(timeNow())
}

func (rs *ReminderScheduler) alreadySent(installmentID string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.sent[installmentID]
}

func (rs *ReminderScheduler) markSent(installmentID string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.sent[installmentID] = true
}
