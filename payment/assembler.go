/*
assembler.go - Payment schedule generation

PURPOSE:
  Composes the percentage selector, the withdrawal and due-date calculators
  and the amount allocator into the persisted installment list. Runs exactly
  once per order, at submission, against dates resolved by an external
  collaborator.

COMPOSITION:
  1. Resolve (signed, course start, course end) via the DateResolver.
     Resolution failures propagate untouched; the order stays un-scheduled.
  2. Select the percentage tuple for the order's total and product type.
  3. Compute the withdrawal limit date and expand it into due dates.
     Course-end truncation may yield fewer dates than percentages; amounts
     are then recomputed against the truncated tuple so the last installment
     still absorbs the remainder.
  4. Allocate amounts, generate collision-resistant ids, zip into a schedule
     with every installment pending.
*/
package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// ScheduleDates is the resolved (signature, course start, course end) triple
// the schedule is anchored to.
type ScheduleDates struct {
	SignedOn    Date
	CourseStart Date
	CourseEnd   Date
}

// DateResolver is the collaborator that knows which course run an order
// targets. It fails with a ScheduleDateResolutionError when the order's
// target courses have no eligible course run.
type DateResolver interface {
	ResolveScheduleDates(ctx context.Context, order *Order) (ScheduleDates, error)
}

// IDGenerator produces a fresh installment id.
type IDGenerator func() string

// NewInstallmentID returns a 128-bit random hex id.
func NewInstallmentID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// Assembler builds payment schedules. All collaborators are injected; the
// zero IDGenerator falls back to NewInstallmentID.
type Assembler struct {
	Table      *PercentageTable
	Withdrawal WithdrawalCalculator
	Resolver   DateResolver
	NewID      IDGenerator
}

// Assemble generates the order's schedule. It does not attach it to the
// order; the caller persists the schedule and marks the order pending in one
// step.
func (a *Assembler) Assemble(ctx context.Context, order *Order) (PaymentSchedule, error) {
	dates, err := a.Resolver.ResolveScheduleDates(ctx, order)
	if err != nil {
		return nil, err
	}

	percentages := a.Table.Select(order.Total, order.ProductType)

	withdrawalDate := a.Withdrawal.LimitDate(dates.SignedOn, dates.CourseStart)
	dueDates := DueDates(withdrawalDate, dates.CourseStart, dates.CourseEnd, len(percentages))

	// Course-end truncation: fewer dates than percentages means the amounts
	// must be recomputed over the shortened tuple.
	if len(dueDates) < len(percentages) {
		percentages = percentages[:len(dueDates)]
	}
	amounts := Allocate(order.Total, percentages)

	newID := a.NewID
	if newID == nil {
		newID = NewInstallmentID
	}

	schedule := make(PaymentSchedule, len(dueDates))
	for i := range dueDates {
		schedule[i] = Installment{
			ID:      newID(),
			Amount:  amounts[i],
			DueDate: dueDates[i],
			State:   InstallmentPending,
		}
	}
	return schedule, nil
}
