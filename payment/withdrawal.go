/*
withdrawal.go - Legal withdrawal window arithmetic and guard

PURPOSE:
  Computes the earliest date a first debit may legally occur (the withdrawal
  limit date) and authorizes or rejects cancellation-by-withdrawal requests
  against the generated schedule.

RULES:
  - The withdrawal period is a fixed number of calendar days after the
    contract signature date (14 in every observed deployment).
  - If the limit lands on a weekend or a configured holiday it advances to
    the next business day.
  - The limit may never push the first debit past the course start: when it
    would, the signature date itself is used instead.
  - Withdrawal is only possible while today <= the first installment's due
    date, and only when a schedule exists.
*/
package payment

// DefaultWithdrawalPeriodDays is the legally mandated minimum delay before a
// first payment may be debited.
const DefaultWithdrawalPeriodDays = 14

// WithdrawalCalculator computes withdrawal limit dates against an injectable
// business-day calendar.
type WithdrawalCalculator struct {
	PeriodDays int
	Calendar   BusinessCalendar
}

// NewWithdrawalCalculator uses the default period and the given calendar.
func NewWithdrawalCalculator(cal BusinessCalendar) WithdrawalCalculator {
	return WithdrawalCalculator{PeriodDays: DefaultWithdrawalPeriodDays, Calendar: cal}
}

// LimitDate returns the earliest date a first debit may occur for a contract
// signed at signedOn, given the course start date.
func (c WithdrawalCalculator) LimitDate(signedOn Date, courseStart Date) Date {
	period := c.PeriodDays
	if period <= 0 {
		period = DefaultWithdrawalPeriodDays
	}

	limit := signedOn.AddDays(period).NextBusinessDay(c.Calendar)

	// The withdrawal window cannot extend enrollment past the course start.
	if limit.After(courseStart) {
		return signedOn
	}
	return limit
}

// AuthorizeWithdrawal decides whether a cancellation-by-withdrawal request is
// still legal today. The order is left untouched on failure; callers cancel
// only on nil.
func AuthorizeWithdrawal(schedule PaymentSchedule, today Date) error {
	if len(schedule) == 0 {
		return ErrNoPaymentSchedule
	}
	if today.After(schedule[0].DueDate) {
		return &WithdrawPastDueError{FirstDueDate: schedule[0].DueDate, Today: today}
	}
	return nil
}
