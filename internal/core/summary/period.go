package summary

import (
	"fmt"
	"time"
)

// MonthIndex returns the zero-based calendar index (0-11) for a full
// English month name, or -1 if the name is not a month.
func MonthIndex(name string) int {
	for m := time.January; m <= time.December; m++ {
		if m.String() == name {
			return int(m) - 1
		}
	}
	return -1
}

// QuarterOf maps a zero-based month index to its quarter number (1-4).
// Q1 = months 0-2, Q2 = 3-5, Q3 = 6-8, Q4 = 9-11. Total and
// non-overlapping over 0-11.
func QuarterOf(monthIndex int) int {
	return monthIndex/3 + 1
}

// QuarterLabel formats a quarter number as its period label ("Q1".."Q4").
func QuarterLabel(quarter int) string {
	return fmt.Sprintf("Q%d", quarter)
}

// QuarterFirstMonth returns the zero-based index of a quarter's first month.
func QuarterFirstMonth(quarter int) int {
	return (quarter - 1) * 3
}

// MonthStartDate returns the ISO date of the first day of the given
// month (zero-based index) in UTC.
func MonthStartDate(year, monthIndex int) string {
	return time.Date(year, time.Month(monthIndex+1), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

// QuarterStartDate returns the ISO date of the first calendar day of
// the given quarter in UTC.
func QuarterStartDate(year, quarter int) string {
	return MonthStartDate(year, QuarterFirstMonth(quarter))
}

// MonthlyKey derives the existing-record lookup key for a monthly
// period: abbreviated month plus year, e.g. "Mar 2024".
func MonthlyKey(monthName string, year int) string {
	idx := MonthIndex(monthName)
	if idx < 0 {
		return fmt.Sprintf("%s %d", monthName, year)
	}
	return fmt.Sprintf("%s %d", time.Month(idx+1).String()[:3], year)
}

// QuarterlyKey derives the existing-record lookup key for a quarterly
// period, e.g. "Q1 2024".
func QuarterlyKey(quarterLabel string, year int) string {
	return fmt.Sprintf("%s %d", quarterLabel, year)
}
