// Package period models the calendar month a billing run reconciles.
package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidPeriod = errors.New("invalid_period")

const layout = "2006-01"

// Period is a calendar month. Its bounds are half-open in UTC:
// [first instant of the month, first instant of the next month).
type Period struct {
	Year  int
	Month time.Month
}

// Parse reads a "YYYY-MM" period.
func Parse(raw string) (Period, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != len(layout) {
		return Period{}, fmt.Errorf("%w: %q, expected YYYY-MM", ErrInvalidPeriod, raw)
	}
	t, err := time.ParseInLocation(layout, raw, time.UTC)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q, expected YYYY-MM", ErrInvalidPeriod, raw)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// ParseOrPrevious parses raw, or returns the month before now when raw is empty.
func ParseOrPrevious(raw string, now time.Time) (Period, error) {
	if strings.TrimSpace(raw) == "" {
		return Previous(now), nil
	}
	return Parse(raw)
}

func Of(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

// Previous is the calendar month before the one containing now.
func Previous(now time.Time) Period {
	return Of(now).AddMonths(-1)
}

func (p Period) AddMonths(n int) Period {
	return Of(p.Start().AddDate(0, n, 0))
}

func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is exclusive.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

func (p Period) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(p.Start()) && t.Before(p.End())
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Compact is the YYYYMM form used in invoice numbers.
func (p Period) Compact() string {
	return fmt.Sprintf("%04d%02d", p.Year, int(p.Month))
}

// NextBillingDate is billingDay of the current month while now is before it,
// otherwise billingDay of the following month.
func NextBillingDate(now time.Time, billingDay int) time.Time {
	now = now.UTC()
	candidate := time.Date(now.Year(), now.Month(), billingDay, 0, 0, 0, 0, time.UTC)
	if now.Day() < billingDay {
		return candidate
	}
	return candidate.AddDate(0, 1, 0)
}
