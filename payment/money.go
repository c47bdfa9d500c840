package payment

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Exact decimal currency value
// =============================================================================

// Money is an exact decimal amount with a currency code. decimal.Decimal is
// used everywhere so percentage proration and remainder absorption never drift
// the way binary floats would.
type Money struct {
	Value    decimal.Decimal
	Currency string
}

func NewMoney(value string, currency string) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, &InvalidConversionError{Field: "amount", Raw: value, Err: err}
	}
	return Money{Value: d, Currency: currency}, nil
}

// MustMoney is for fixtures and tests.
func MustMoney(value string, currency string) Money {
	m, err := NewMoney(value, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func MoneyFromDecimal(d decimal.Decimal, currency string) Money {
	return Money{Value: d, Currency: currency}
}

func (m Money) Zero() Money             { return Money{Value: decimal.Zero, Currency: m.Currency} }
func (m Money) Add(other Money) Money   { return Money{Value: m.Value.Add(other.Value), Currency: m.Currency} }
func (m Money) Sub(other Money) Money   { return Money{Value: m.Value.Sub(other.Value), Currency: m.Currency} }
func (m Money) IsZero() bool            { return m.Value.IsZero() }
func (m Money) IsNegative() bool        { return m.Value.IsNegative() }
func (m Money) Equal(other Money) bool  { return m.Value.Equal(other.Value) && m.Currency == other.Currency }
func (m Money) LessThan(o Money) bool   { return m.Value.LessThan(o.Value) }
func (m Money) GreaterThan(o Money) bool { return m.Value.GreaterThan(o.Value) }

// Percent returns pct% of the amount, rounded to two decimal places with
// banker's rounding.
func (m Money) Percent(pct int) Money {
	v := m.Value.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100)).RoundBank(2)
	return Money{Value: v, Currency: m.Currency}
}

func (m Money) String() string {
	return m.Value.StringFixed(2) + " " + m.Currency
}

// moneyJSON is the persisted wire shape: a decimal string plus a currency code.
type moneyJSON struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Value: m.Value.StringFixed(2), Currency: m.Currency})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return &InvalidConversionError{Field: "amount", Raw: string(data), Err: err}
	}
	parsed, err := NewMoney(raw.Value, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
