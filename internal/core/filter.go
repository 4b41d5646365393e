package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	AllMonths    MonthSelector = "all"
	CurrentMonth MonthSelector = "current"
	LastMonth    MonthSelector = "last"
)

// MonthSelector restricts records to a month relative to the reference date.
type MonthSelector string

// ParseMonthSelector maps user input onto a selector; empty means all.
func ParseMonthSelector(s string) (MonthSelector, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(AllMonths):
		return AllMonths, nil
	case string(CurrentMonth):
		return CurrentMonth, nil
	case string(LastMonth):
		return LastMonth, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthSelector, s)
	}
}

// Criteria combines every active filter with AND. Zero values mean "any".
type Criteria struct {
	Search   string
	Category string
	Type     ExpenseType
	Month    MonthSelector
}

// IsEmpty reports whether no criterion is active.
func (c Criteria) IsEmpty() bool {
	return strings.TrimSpace(c.Search) == "" &&
		c.Category == "" &&
		c.Type == "" &&
		(c.Month == "" || c.Month == AllMonths)
}

// previousMonth returns the calendar month before the one containing now.
func previousMonth(now time.Time) (int, time.Month) {
	if now.Month() == time.January {
		return now.Year() - 1, time.December
	}
	return now.Year(), now.Month() - 1
}

func (c Criteria) matches(e Expense, search string, now time.Time) bool {
	if search != "" && !strings.Contains(strings.ToLower(e.Title), search) {
		return false
	}
	if c.Category != "" && e.Category != c.Category {
		return false
	}
	if c.Type != "" && e.Type != c.Type {
		return false
	}
	switch c.Month {
	case CurrentMonth:
		return e.Date.InMonth(now.Year(), now.Month())
	case LastMonth:
		y, m := previousMonth(now)
		return e.Date.InMonth(y, m)
	}
	return true
}

// Filter returns the records matching c, in their original order. The input
// is never modified and the result is always a fresh slice.
func Filter(records []Expense, c Criteria, now time.Time) []Expense {
	search := strings.ToLower(strings.TrimSpace(c.Search))
	out := make([]Expense, 0, len(records))
	for _, e := range records {
		if c.matches(e, search, now) {
			out = append(out, e)
		}
	}
	return out
}

// View returns what a list should show: the filtered subset when any
// criterion is active, otherwise every record. filtered tells the two apart,
// so an empty filtered result is not confused with the unfiltered base.
func View(records []Expense, c Criteria, now time.Time) (out []Expense, filtered bool) {
	if c.IsEmpty() {
		return append([]Expense(nil), records...), false
	}
	return Filter(records, c, now), true
}
