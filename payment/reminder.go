package payment

// IsNextInstallmentToDebit reports whether inst is the installment an
// upcoming-debit reminder should be sent for: it is the first pending
// installment of the schedule and its due date falls on or before the cutoff.
// The external scheduler owns the cutoff (typically today + N days) and the
// email content; this core only supplies the predicate.
func (s PaymentSchedule) IsNextInstallmentToDebit(inst Installment, cutoff Date) bool {
	idx, ok := s.IndexOf(InstallmentPending, true)
	if !ok {
		return false
	}
	next := s[idx]
	return next.ID == inst.ID && next.DueDate.BeforeOrEqual(cutoff)
}
