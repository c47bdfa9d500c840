package payment_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfun/payplan/payment"
)

func testTable(t *testing.T) *payment.PercentageTable {
	t.Helper()
	table, err := payment.NewPercentageTable([]payment.PercentageBucket{
		{Ceiling: decimal.NewFromInt(5), Percentages: []int{30, 70}},
		{Ceiling: decimal.NewFromInt(10), Percentages: []int{30, 35, 35}},
		{Ceiling: decimal.NewFromInt(100), Percentages: []int{20, 30, 30, 20}},
	})
	require.NoError(t, err)
	return table
}

func TestPercentageTable_Select_SmallestSufficientCeiling(t *testing.T) {
	table := testTable(t)

	assert.Equal(t, []int{30, 70}, table.Select(eur("3"), payment.ProductCredential))
	assert.Equal(t, []int{30, 70}, table.Select(eur("5"), payment.ProductCredential))
	assert.Equal(t, []int{30, 35, 35}, table.Select(eur("5.01"), payment.ProductCredential))
	assert.Equal(t, []int{20, 30, 30, 20}, table.Select(eur("100"), payment.ProductCredential))
}

func TestPercentageTable_Select_AboveAllCeilings_UsesLargest(t *testing.T) {
	table := testTable(t)

	assert.Equal(t, []int{20, 30, 30, 20}, table.Select(eur("2500"), payment.ProductCredential))
}

func TestPercentageTable_Select_CertificateAlwaysSingleInstallment(t *testing.T) {
	table := testTable(t)

	assert.Equal(t, []int{100}, table.Select(eur("3"), payment.ProductCertificate))
	assert.Equal(t, []int{100}, table.Select(eur("2500"), payment.ProductCertificate))
}

func TestNewPercentageTable_RejectsMalformedTables(t *testing.T) {
	cases := []struct {
		name    string
		buckets []payment.PercentageBucket
	}{
		{"empty table", nil},
		{"non-positive ceiling", []payment.PercentageBucket{
			{Ceiling: decimal.Zero, Percentages: []int{100}},
		}},
		{"empty percentages", []payment.PercentageBucket{
			{Ceiling: decimal.NewFromInt(5), Percentages: nil},
		}},
		{"percentage out of range", []payment.PercentageBucket{
			{Ceiling: decimal.NewFromInt(5), Percentages: []int{0, 100}},
		}},
		{"sum below 100", []payment.PercentageBucket{
			{Ceiling: decimal.NewFromInt(5), Percentages: []int{30, 60}},
		}},
		{"sum above 100", []payment.PercentageBucket{
			{Ceiling: decimal.NewFromInt(5), Percentages: []int{60, 50}},
		}},
		{"duplicate ceiling", []payment.PercentageBucket{
			{Ceiling: decimal.NewFromInt(5), Percentages: []int{30, 70}},
			{Ceiling: decimal.NewFromInt(5), Percentages: []int{100}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := payment.NewPercentageTable(tc.buckets)
			assert.ErrorIs(t, err, payment.ErrConfiguration)
		})
	}
}

func TestNewPercentageTable_SortsAndCopiesInput(t *testing.T) {
	// GIVEN: Buckets supplied out of order
	buckets := []payment.PercentageBucket{
		{Ceiling: decimal.NewFromInt(100), Percentages: []int{20, 30, 30, 20}},
		{Ceiling: decimal.NewFromInt(5), Percentages: []int{30, 70}},
	}
	table, err := payment.NewPercentageTable(buckets)
	require.NoError(t, err)

	// WHEN: The caller mutates its own slice afterwards
	buckets[1].Percentages[0] = 99

	// THEN: Selection is unaffected and buckets come back sorted
	assert.Equal(t, []int{30, 70}, table.Select(eur("3"), payment.ProductCredential))
	got := table.Buckets()
	require.Len(t, got, 2)
	assert.True(t, got[0].Ceiling.LessThan(got[1].Ceiling))
}
