package payment

// DueDates expands an installment count into a concrete, non-decreasing list
// of due dates anchored to the withdrawal and course dates.
//
// The first date is always the withdrawal limit date. When the course has not
// started yet, the second date is the course start and the rest follow at a
// monthly cadence anchored on it; when the course is already running, the
// cadence is anchored on the withdrawal date itself. Month increments clamp
// the day-of-month to the target month's last valid day.
//
// Any computed date at or after courseEnd is replaced by courseEnd and
// generation stops, so a nominally n-part schedule can be shortened to end
// exactly at the course end.
func DueDates(withdrawal, courseStart, courseEnd Date, n int) []Date {
	if n <= 0 {
		return nil
	}

	dates := make([]Date, 0, n)
	dates = append(dates, withdrawal)

	for i := 1; i < n; i++ {
		var next Date
		if withdrawal.Before(courseStart) {
			if i == 1 {
				next = courseStart
			} else {
				next = courseStart.AddMonths(i - 1)
			}
		} else {
			next = withdrawal.AddMonths(i)
		}

		if next.AfterOrEqual(courseEnd) {
			dates = append(dates, courseEnd)
			break
		}
		dates = append(dates, next)
	}

	return dates
}
