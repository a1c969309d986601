package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/fincore/internal/contracts"
)

// ErrInvalidReportDate is returned for period-end dates that cannot be parsed
var ErrInvalidReportDate = errors.New("invalid report date")

var dateLayouts = []string{
	"20060102",
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// NormalizeReportDate parses an 8-digit YYYYMMDD or ISO date into a UTC calendar date
func NormalizeReportDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidReportDate, s)
}

// ClassifyPeriod tags a period-end date as annual (December 31) or quarter.
// Months that are not quarter ends are still quarter.
func ClassifyPeriod(date string) (contracts.ReportPeriod, error) {
	t, err := NormalizeReportDate(date)
	if err != nil {
		return "", err
	}
	return PeriodOf(t), nil
}

// PeriodOf classifies an already parsed date
func PeriodOf(t time.Time) contracts.ReportPeriod {
	if t.Month() == time.December && t.Day() == 31 {
		return contracts.PeriodAnnual
	}
	return contracts.PeriodQuarter
}

// PeriodLabel renders a display label such as "2024 Q1", "2024 H1" or "2024 FY".
// Dates that are not quarter ends are rendered as ISO dates.
func PeriodLabel(t time.Time) string {
	switch t.Month() {
	case time.March:
		return fmt.Sprintf("%d Q1", t.Year())
	case time.June:
		return fmt.Sprintf("%d H1", t.Year())
	case time.September:
		return fmt.Sprintf("%d Q3", t.Year())
	case time.December:
		return fmt.Sprintf("%d FY", t.Year())
	}
	return t.Format("2006-01-02")
}
