/*
config.go - Price-to-percentages configuration table

PURPOSE:
  Maps an order's total price to a percentage split: an ordered list of
  inclusive price ceilings, each carrying a tuple of percentages summing to
  100. The tuple length determines how many installments the order gets and
  the percentages determine their relative weight.

EXAMPLE TABLE:
  ceiling 5   -> (30, 70)
  ceiling 10  -> (30, 35, 35)
  ceiling 100 -> (20, 30, 30, 20)

SELECTION:
  - Certificate products always pay in one installment: (100).
  - Otherwise the smallest ceiling >= total wins.
  - A total above every ceiling uses the largest ceiling's tuple.

LIFECYCLE:
  Loaded once at startup, validated at construction, immutable afterwards.
  A malformed table is a ConfigurationError: fatal at startup, never a
  per-request condition.
*/
package payment

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// PercentageBucket pairs an inclusive price ceiling with its percentage tuple.
type PercentageBucket struct {
	Ceiling     decimal.Decimal
	Percentages []int
}

// PercentageTable is the process-wide, read-only price-to-percentages mapping.
// Construct with NewPercentageTable and inject where needed; never a global.
type PercentageTable struct {
	buckets []PercentageBucket
}

// NewPercentageTable validates and freezes the bucket list. Buckets are
// sorted by ascending ceiling; the input slice is not retained.
func NewPercentageTable(buckets []PercentageBucket) (*PercentageTable, error) {
	if len(buckets) == 0 {
		return nil, &ConfigurationError{Reason: "percentage table is empty"}
	}

	owned := make([]PercentageBucket, len(buckets))
	for i, b := range buckets {
		if !b.Ceiling.IsPositive() {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("ceiling %s is not positive", b.Ceiling)}
		}
		if len(b.Percentages) == 0 {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("ceiling %s has no percentages", b.Ceiling)}
		}
		sum := 0
		for _, p := range b.Percentages {
			if p <= 0 || p > 100 {
				return nil, &ConfigurationError{Reason: fmt.Sprintf("ceiling %s has out-of-range percentage %d", b.Ceiling, p)}
			}
			sum += p
		}
		if sum != 100 {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("percentages for ceiling %s sum to %d, not 100", b.Ceiling, sum)}
		}
		owned[i] = PercentageBucket{
			Ceiling:     b.Ceiling,
			Percentages: append([]int(nil), b.Percentages...),
		}
	}

	sort.Slice(owned, func(i, j int) bool { return owned[i].Ceiling.LessThan(owned[j].Ceiling) })
	for i := 1; i < len(owned); i++ {
		if owned[i].Ceiling.Equal(owned[i-1].Ceiling) {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("duplicate ceiling %s", owned[i].Ceiling)}
		}
	}

	return &PercentageTable{buckets: owned}, nil
}

// Select picks the percentage tuple for a price. Certificate products are a
// single full payment regardless of price.
func (t *PercentageTable) Select(total Money, productType ProductType) []int {
	if productType == ProductCertificate {
		return []int{100}
	}
	for _, b := range t.buckets {
		if total.Value.LessThanOrEqual(b.Ceiling) {
			return append([]int(nil), b.Percentages...)
		}
	}
	last := t.buckets[len(t.buckets)-1]
	return append([]int(nil), last.Percentages...)
}

// Buckets exposes a copy of the table for introspection endpoints.
func (t *PercentageTable) Buckets() []PercentageBucket {
	out := make([]PercentageBucket, len(t.buckets))
	for i, b := range t.buckets {
		out[i] = PercentageBucket{
			Ceiling:     b.Ceiling,
			Percentages: append([]int(nil), b.Percentages...),
		}
	}
	return out
}
