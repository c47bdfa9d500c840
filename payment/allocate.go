package payment

// Allocate converts a percentage tuple into exact currency amounts that sum to
// the total. Every amount except the last is the rounded percentage share; the
// last is total minus the sum of the others, so it absorbs all rounding
// remainder. This is what keeps sum(amounts) == total exact, including for
// non-terminating fractions (999.99 split 20/30/30/20 gives a 199.99 tail).
func Allocate(total Money, percentages []int) []Money {
	n := len(percentages)
	if n == 0 {
		return nil
	}

	amounts := make([]Money, n)
	allocated := total.Zero()
	for i := 0; i < n-1; i++ {
		amounts[i] = total.Percent(percentages[i])
		allocated = allocated.Add(amounts[i])
	}
	amounts[n-1] = total.Sub(allocated)
	return amounts
}
