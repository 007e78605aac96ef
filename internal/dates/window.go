package dates

import (
	"math"
	"time"
)

// Statutory reporting period for most negative items: seven years plus the
// 180 days that precede the charge-off or collection placement.
const (
	ReportingYears      = 7
	ReportingExtraDays  = 180
	averageDaysPerMonth = 30.44
)

// Parse parses a canonical ISO date. Non-canonical input is run through
// Normalize first.
func Parse(s string) (time.Time, bool) {
	if t, err := time.Parse(ISOLayout, s); err == nil {
		return t, true
	}
	iso, ok := Normalize(s)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(ISOLayout, iso)
	return t, err == nil
}

// Format renders t as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(ISOLayout)
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ExpectedRemoval returns DOFD + 7 years + 180 days.
func ExpectedRemoval(dofd time.Time) time.Time {
	return Day(dofd).AddDate(ReportingYears, 0, 0).AddDate(0, 0, ReportingExtraDays)
}

// DaysBetween returns b - a in whole calendar days.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(Day(b).Sub(Day(a)).Hours() / 24))
}

// MonthsBetween returns round(|b - a| / 30.44 days).
func MonthsBetween(a, b time.Time) int {
	days := math.Abs(float64(DaysBetween(a, b)))
	return int(math.Round(days / averageDaysPerMonth))
}

// Window is the period during which an item may lawfully be reported.
type Window struct {
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	IsExpired     bool      `json:"isExpired"`
	DaysRemaining int       `json:"daysRemaining"`
}

// CreditReportingWindow computes the reporting window that starts at dofd
// and ends at the statutory removal date, evaluated as of asOf. It reports
// false when dofd is not a recognizable date.
func CreditReportingWindow(dofd string, asOf time.Time) (Window, bool) {
	start, ok := Parse(dofd)
	if !ok {
		return Window{}, false
	}
	end := ExpectedRemoval(start)
	remaining := DaysBetween(asOf, end)
	w := Window{
		StartDate: start,
		EndDate:   end,
		IsExpired: remaining <= 0,
	}
	if remaining > 0 {
		w.DaysRemaining = remaining
	}
	return w, true
}
