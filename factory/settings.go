/*
Package factory provides JSON to Go settings conversion.

PURPOSE:
  Converts a JSON settings document into the runtime configuration the
  payment engine is constructed with: the price-to-percentages table, the
  business-day calendar, the withdrawal period and reminder lead time. This
  enables configuration without code changes - operations can adjust the
  installment buckets in JSON, and the factory builds the immutable structs.

JSON SCHEMA:
  {
    "currency": "EUR",
    "withdrawal_period_days": 14,
    "reminder_days_before_due": 2,
    "holidays": [
      {"date": "2024-05-01", "name": "Labour Day"}
    ],
    "payment_schedule_limits": [
      {"ceiling": "5",   "percentages": [30, 70]},
      {"ceiling": "10",  "percentages": [30, 35, 35]},
      {"ceiling": "100", "percentages": [20, 30, 30, 20]}
    ]
  }

VALIDATION:
  The percentage table is validated on parse (percentages must sum to 100 per
  bucket); a malformed table is a payment.ConfigurationError and fatal at
  startup. Parsing happens exactly once, at process start.

USAGE:
  settings, err := factory.ParseSettings(jsonBytes)
  assembler := &payment.Assembler{
      Table:      settings.Table,
      Withdrawal: settings.WithdrawalCalculator(),
      Resolver:   resolver,
  }
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/openfun/payplan/payment"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SettingsJSON is the JSON representation of the engine configuration.
type SettingsJSON struct {
	Currency              string        `json:"currency"`
	WithdrawalPeriodDays  int           `json:"withdrawal_period_days,omitempty"`
	ReminderDaysBeforeDue int           `json:"reminder_days_before_due,omitempty"`
	Holidays              []HolidayJSON `json:"holidays,omitempty"`
	ScheduleLimits        []BucketJSON  `json:"payment_schedule_limits"`
}

// HolidayJSON is one configured non-business day.
type HolidayJSON struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// BucketJSON pairs an inclusive price ceiling with its percentage tuple.
type BucketJSON struct {
	Ceiling     string `json:"ceiling"`
	Percentages []int  `json:"percentages"`
}

// =============================================================================
// SETTINGS - Parsed, validated runtime configuration
// =============================================================================

// Settings is the immutable runtime configuration built from JSON.
type Settings struct {
	Currency              string
	WithdrawalPeriodDays  int
	ReminderDaysBeforeDue int
	Table                 *payment.PercentageTable
	Calendar              payment.BusinessCalendar
}

// WithdrawalCalculator builds the calculator configured by these settings.
func (s *Settings) WithdrawalCalculator() payment.WithdrawalCalculator {
	return payment.WithdrawalCalculator{
		PeriodDays: s.WithdrawalPeriodDays,
		Calendar:   s.Calendar,
	}
}

// ParseSettings parses and validates a settings document. Malformed
// percentage buckets surface payment.ConfigurationError.
func ParseSettings(data []byte) (*Settings, error) {
	var raw SettingsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid settings document: %w", err)
	}

	buckets := make([]payment.PercentageBucket, 0, len(raw.ScheduleLimits))
	for _, b := range raw.ScheduleLimits {
		ceiling, err := decimal.NewFromString(b.Ceiling)
		if err != nil {
			return nil, &payment.ConfigurationError{Reason: fmt.Sprintf("invalid ceiling %q", b.Ceiling)}
		}
		buckets = append(buckets, payment.PercentageBucket{Ceiling: ceiling, Percentages: b.Percentages})
	}
	table, err := payment.NewPercentageTable(buckets)
	if err != nil {
		return nil, err
	}

	holidays := make([]payment.Holiday, 0, len(raw.Holidays))
	for _, h := range raw.Holidays {
		date, err := payment.ParseDate(h.Date)
		if err != nil {
			return nil, &payment.ConfigurationError{Reason: fmt.Sprintf("invalid holiday date %q", h.Date)}
		}
		holidays = append(holidays, payment.Holiday{Date: date, Name: h.Name})
	}

	settings := &Settings{
		Currency:              raw.Currency,
		WithdrawalPeriodDays:  raw.WithdrawalPeriodDays,
		ReminderDaysBeforeDue: raw.ReminderDaysBeforeDue,
		Table:                 table,
	}
	if settings.Currency == "" {
		settings.Currency = "EUR"
	}
	if settings.WithdrawalPeriodDays == 0 {
		settings.WithdrawalPeriodDays = payment.DefaultWithdrawalPeriodDays
	}
	if settings.ReminderDaysBeforeDue == 0 {
		settings.ReminderDaysBeforeDue = 2
	}
	if len(holidays) > 0 {
		settings.Calendar = payment.NewHolidayCalendar(holidays...)
	} else {
		settings.Calendar = payment.WeekendOnlyCalendar{}
	}
	return settings, nil
}

// DefaultSettingsJSON is the configuration used when no settings file is
// supplied: the observed production buckets with no holidays.
func DefaultSettingsJSON() []byte {
	return []byte(`{
		"currency": "EUR",
		"withdrawal_period_days": 14,
		"reminder_days_before_due": 2,
		"payment_schedule_limits": [
			{"ceiling": "5", "percentages": [30, 70]},
			{"ceiling": "10", "percentages": [30, 35, 35]},
			{"ceiling": "100", "percentages": [20, 30, 30, 20]}
		]
	}`)
}
