package factory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfun/payplan/factory"
	"github.com/openfun/payplan/payment"
)

func TestParseSettings_Defaults(t *testing.T) {
	settings, err := factory.ParseSettings(factory.DefaultSettingsJSON())
	require.NoError(t, err)

	assert.Equal(t, "EUR", settings.Currency)
	assert.Equal(t, 14, settings.WithdrawalPeriodDays)
	assert.Equal(t, 2, settings.ReminderDaysBeforeDue)
	require.NotNil(t, settings.Table)

	total := payment.MustMoney("3", "EUR")
	assert.Equal(t, []int{30, 70}, settings.Table.Select(total, payment.ProductCredential))

	// No holidays configured: weekends only.
	calc := settings.WithdrawalCalculator()
	assert.Equal(t, 14, calc.PeriodDays)
	assert.True(t, payment.NewDate(2024, time.May, 1).IsBusinessDay(calc.Calendar))
}

func TestParseSettings_HolidaysBuildCalendar(t *testing.T) {
	settings, err := factory.ParseSettings([]byte(`{
		"currency": "EUR",
		"holidays": [{"date": "2024-05-01", "name": "Labour Day"}],
		"payment_schedule_limits": [
			{"ceiling": "100", "percentages": [100]}
		]
	}`))
	require.NoError(t, err)

	assert.False(t, payment.NewDate(2024, time.May, 1).IsBusinessDay(settings.Calendar))
	assert.True(t, payment.NewDate(2024, time.May, 2).IsBusinessDay(settings.Calendar))
}

func TestParseSettings_Malformed(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"bad ceiling", `{"payment_schedule_limits": [{"ceiling": "abc", "percentages": [100]}]}`},
		{"bad percentages", `{"payment_schedule_limits": [{"ceiling": "5", "percentages": [30, 60]}]}`},
		{"no buckets", `{"payment_schedule_limits": []}`},
		{"bad holiday", `{
			"holidays": [{"date": "01/05/2024", "name": "Labour Day"}],
			"payment_schedule_limits": [{"ceiling": "5", "percentages": [100]}]
		}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := factory.ParseSettings([]byte(tc.doc))
			assert.Error(t, err)
		})
	}
}
