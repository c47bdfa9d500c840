package payment

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar date in the fixed reference timezone (UTC)
// =============================================================================

// Date is a calendar date with no time component. All schedule arithmetic and
// comparisons happen on Dates, never on instants, so "today" is always injected
// explicitly and tests are deterministic.
type Date struct {
	Time time.Time
}

const dateLayout = "2006-01-02"

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf extracts the date component of an instant, in UTC.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate is for fixtures and configuration defaults.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// AddMonths advances by n calendar months, clamping the day-of-month to the
// last valid day of the target month (Jan 31 + 1 month = Feb 28/29). This is
// deliberately NOT time.AddDate, which normalizes overflow into the next month.
func (d Date) AddMonths(n int) Date {
	year, month, day := d.Time.Date()
	total := int(month) - 1 + n
	year += total / 12
	total %= 12
	if total < 0 {
		total += 12
		year--
	}
	target := time.Month(total + 1)
	if last := daysInMonth(year, target); day > last {
		day = last
	}
	return NewDate(year, target, day)
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Properties
func (d Date) Year() int             { return d.Time.Year() }
func (d Date) Month() time.Month     { return d.Time.Month() }
func (d Date) Day() int              { return d.Time.Day() }
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsZero() bool          { return d.Time.IsZero() }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) String() string { return d.Time.Format(dateLayout) }

// JSON representation is the ISO-8601 date string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return &InvalidConversionError{Field: "due_date", Raw: s}
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return &InvalidConversionError{Field: "due_date", Raw: s, Err: err}
	}
	*d = parsed
	return nil
}

// =============================================================================
// BUSINESS CALENDAR - Weekends plus named holidays
// =============================================================================

// Holiday is a named non-business day.
type Holiday struct {
	Date Date
	Name string
}

// BusinessCalendar answers whether a date is a holiday. Weekend handling is
// universal and lives on Date itself; holidays vary by deployment and are
// injected, never read from global state.
type BusinessCalendar interface {
	IsHoliday(d Date) bool
}

// WeekendOnlyCalendar is the default calendar with no configured holidays.
type WeekendOnlyCalendar struct{}

func (WeekendOnlyCalendar) IsHoliday(Date) bool { return false }

// HolidayCalendar is a fixed set of named holidays.
type HolidayCalendar struct {
	byDate map[string]string
}

func NewHolidayCalendar(holidays ...Holiday) *HolidayCalendar {
	c := &HolidayCalendar{byDate: make(map[string]string, len(holidays))}
	for _, h := range holidays {
		c.byDate[h.Date.String()] = h.Name
	}
	return c
}

func (c *HolidayCalendar) IsHoliday(d Date) bool {
	_, ok := c.byDate[d.String()]
	return ok
}

// IsBusinessDay reports whether d is neither a weekend nor a holiday.
func (d Date) IsBusinessDay(cal BusinessCalendar) bool {
	if d.IsWeekend() {
		return false
	}
	if cal != nil && cal.IsHoliday(d) {
		return false
	}
	return true
}

// NextBusinessDay returns d itself when it is a business day, otherwise the
// first business day after it.
func (d Date) NextBusinessDay(cal BusinessCalendar) Date {
	current := d
	for !current.IsBusinessDay(cal) {
		current = current.AddDays(1)
	}
	return current
}
