package generic

import (
	"fmt"
	"strconv"
	"time"
)

// =============================================================================
// PERIOD - The plan-year window YTD production accumulates in
// =============================================================================

// Period is a closed date range [Start, End].
//
// Examples:
//   - Calendar plan-year 2025: Jan 1 - Dec 31
//   - Anniversary plan-year from 03-15: Mar 15 2025 - Mar 14 2026
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Key identifies the period in YTD keys and storage. It is the start date.
func (p Period) Key() string {
	return p.Start.String()
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// PeriodType defines how plan-years are calculated
type PeriodType string

const (
	PeriodCalendarYear PeriodType = "calendar_year" // Jan 1 - Dec 31
	PeriodFiscalYear   PeriodType = "fiscal_year"   // Custom start month
	PeriodAnniversary  PeriodType = "anniversary"   // Agent's MM-DD anniversary
)

// MonthDay is a recurring calendar day such as an agent's anniversary.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay accepts "MM-DD" or a full "YYYY-MM-DD" date (the year is ignored).
func ParseMonthDay(s string) (MonthDay, error) {
	if len(s) == len(DateLayout) {
		tp, err := ParseDate(s)
		if err != nil {
			return MonthDay{}, &InvalidInputError{Field: "anniversary_date", Value: s, Reason: "expected MM-DD"}
		}
		return MonthDay{Month: tp.Month(), Day: tp.Day()}, nil
	}
	if len(s) != 5 || s[2] != '-' {
		return MonthDay{}, &InvalidInputError{Field: "anniversary_date", Value: s, Reason: "expected MM-DD"}
	}
	m, errM := strconv.Atoi(s[:2])
	d, errD := strconv.Atoi(s[3:])
	if errM != nil || errD != nil {
		return MonthDay{}, &InvalidInputError{Field: "anniversary_date", Value: s, Reason: "expected MM-DD"}
	}
	md := MonthDay{Month: time.Month(m), Day: d}
	if m < 1 || m > 12 || d < 1 || d > daysIn(md.Month, 2024) {
		return MonthDay{}, &InvalidInputError{Field: "anniversary_date", Value: s, Reason: "no such calendar day"}
	}
	return md, nil
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

// In returns the occurrence of md in year. Feb 29 falls back to Feb 28 in
// non-leap years.
func (md MonthDay) In(year int) TimePoint {
	day := md.Day
	if md.Month == time.February && day == 29 && !isLeap(year) {
		day = 28
	}
	return NewTimePoint(year, md.Month, day)
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// PeriodConfig defines how to calculate plan-years
type PeriodConfig struct {
	Type PeriodType

	// For fiscal year: which month starts the fiscal year (1-12)
	FiscalYearStartMonth time.Month

	// For anniversary: the recurring start day
	Anniversary *MonthDay
}

// =============================================================================
// PERIOD CALCULATOR - Determines which plan-year a date falls into
// =============================================================================

// PeriodFor returns the period that contains the given date
func (pc PeriodConfig) PeriodFor(date TimePoint) Period {
	switch pc.Type {
	case PeriodFiscalYear:
		month := pc.FiscalYearStartMonth
		if month < time.January || month > time.December {
			month = time.January
		}
		return recurringPeriod(MonthDay{Month: month, Day: 1}, date)

	case PeriodAnniversary:
		if pc.Anniversary == nil {
			return calendarPeriod(date)
		}
		return recurringPeriod(*pc.Anniversary, date)

	default:
		return calendarPeriod(date)
	}
}

// PlanYearFor resolves the plan-year containing date: the calendar year when
// anniversary is nil, otherwise the anniversary-anchored year.
func PlanYearFor(date TimePoint, anniversary *MonthDay) Period {
	if anniversary == nil {
		return PeriodConfig{Type: PeriodCalendarYear}.PeriodFor(date)
	}
	return PeriodConfig{Type: PeriodAnniversary, Anniversary: anniversary}.PeriodFor(date)
}

func calendarPeriod(date TimePoint) Period {
	return Period{Start: StartOfYear(date.Year()), End: EndOfYear(date.Year())}
}

func recurringPeriod(anchor MonthDay, date TimePoint) Period {
	start := anchor.In(date.Year())
	if date.Before(start) {
		start = anchor.In(date.Year() - 1)
	}
	end := anchor.In(start.Year() + 1).AddDays(-1)
	return Period{Start: start, End: end}
}
