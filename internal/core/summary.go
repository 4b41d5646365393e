package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	LevelOK      BudgetLevel = "ok"
	LevelWarning BudgetLevel = "warning"
	LevelDanger  BudgetLevel = "danger"
)

// NoCategory is reported as the top category when there are no records.
const NoCategory = "-"

var (
	warningThreshold = decimal.NewFromInt(80)
	dangerThreshold  = decimal.NewFromInt(100)
	hundred          = decimal.NewFromInt(100)
)

// BudgetLevel classifies how much of a budget has been consumed.
type BudgetLevel string

// LevelFor maps a consumption percentage onto a level.
func LevelFor(percentage decimal.Decimal) BudgetLevel {
	switch {
	case percentage.GreaterThanOrEqual(dangerThreshold):
		return LevelDanger
	case percentage.GreaterThanOrEqual(warningThreshold):
		return LevelWarning
	default:
		return LevelOK
	}
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// DayAmount is the total spent on one calendar date.
type DayAmount struct {
	Date   Date
	Amount decimal.Decimal
}

// TypeTotals partitions spending between required and optional expenses.
type TypeTotals struct {
	Required decimal.Decimal
	Optional decimal.Decimal
}

// Total returns Required + Optional.
func (t TypeTotals) Total() decimal.Decimal {
	return t.Required.Add(t.Optional)
}

// Summary holds the headline statistics for a set of records.
type Summary struct {
	Total       decimal.Decimal
	Count       int
	Average     decimal.Decimal
	TopCategory string
}

// BudgetStatus is the current-month consumption of one budget.
type BudgetStatus struct {
	Category     string
	Spent        decimal.Decimal
	BudgetAmount decimal.Decimal
	Percentage   decimal.Decimal
	Level        BudgetLevel
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	Total      decimal.Decimal
	ByCategory []CategoryAmount
}

// Aggregator computes derived statistics in base-currency units.
type Aggregator struct {
	conv *Converter
}

func NewAggregator(conv *Converter) *Aggregator {
	if conv == nil {
		conv = DefaultConverter()
	}
	return &Aggregator{conv: conv}
}

func (a *Aggregator) base(e Expense) (decimal.Decimal, error) {
	return a.conv.Normalize(e.Amount, e.Currency)
}

func (a *Aggregator) TotalsByType(records []Expense) (TypeTotals, error) {
	t := TypeTotals{Required: decimal.Zero, Optional: decimal.Zero}
	for _, e := range records {
		v, err := a.base(e)
		if err != nil {
			return TypeTotals{}, err
		}
		if e.Type == Required {
			t.Required = t.Required.Add(v)
		} else {
			t.Optional = t.Optional.Add(v)
		}
	}
	return t, nil
}

// TotalsByCategory sums per category, in first-seen category order.
func (a *Aggregator) TotalsByCategory(records []Expense) ([]CategoryAmount, error) {
	idx := map[string]int{}
	var out []CategoryAmount
	for _, e := range records {
		v, err := a.base(e)
		if err != nil {
			return nil, err
		}
		i, seen := idx[e.Category]
		if !seen {
			idx[e.Category] = len(out)
			out = append(out, CategoryAmount{Name: e.Category, Amount: v})
			continue
		}
		out[i].Amount = out[i].Amount.Add(v)
	}
	return out, nil
}

// DailyTotals groups by date and returns the days in ascending order.
func (a *Aggregator) DailyTotals(records []Expense) ([]DayAmount, error) {
	byDay := map[string]int{}
	var out []DayAmount
	for _, e := range records {
		v, err := a.base(e)
		if err != nil {
			return nil, err
		}
		key := e.Date.String()
		if i, ok := byDay[key]; ok {
			out[i].Amount = out[i].Amount.Add(v)
			continue
		}
		byDay[key] = len(out)
		out = append(out, DayAmount{Date: e.Date, Amount: v})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date.Time)
	})
	return out, nil
}

// Summary computes total, count, mean and the category with the highest
// total. Ties go to the category seen first.
func (a *Aggregator) Summary(records []Expense) (Summary, error) {
	cats, err := a.TotalsByCategory(records)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{Total: decimal.Zero, Average: decimal.Zero, Count: len(records), TopCategory: NoCategory}
	var top *CategoryAmount
	for i := range cats {
		s.Total = s.Total.Add(cats[i].Amount)
		if top == nil || cats[i].Amount.GreaterThan(top.Amount) {
			top = &cats[i]
		}
	}
	if top != nil {
		s.TopCategory = top.Name
	}
	if s.Count > 0 {
		s.Average = s.Total.Div(decimal.NewFromInt(int64(s.Count)))
	}
	return s, nil
}

// BudgetStatus reports consumption for every budget. Only records dated in
// now's calendar month count, whatever view the caller is showing.
func (a *Aggregator) BudgetStatus(records []Expense, budgets map[string]Budget, now time.Time) (map[string]BudgetStatus, error) {
	spent := make(map[string]decimal.Decimal, len(budgets))
	for _, e := range records {
		if _, ok := budgets[e.Category]; !ok {
			continue
		}
		if !e.Date.InMonth(now.Year(), now.Month()) {
			continue
		}
		v, err := a.base(e)
		if err != nil {
			return nil, err
		}
		spent[e.Category] = spent[e.Category].Add(v)
	}

	out := make(map[string]BudgetStatus, len(budgets))
	for cat, b := range budgets {
		s := spent[cat]
		pct := decimal.Zero
		if b.Amount.IsPositive() {
			pct = s.Div(b.Amount).Mul(hundred)
		}
		out[cat] = BudgetStatus{
			Category:     cat,
			Spent:        s,
			BudgetAmount: b.Amount,
			Percentage:   pct,
			Level:        LevelFor(pct),
		}
	}
	return out, nil
}

// BudgetSpentAllTime sums every record in category regardless of date.
func (a *Aggregator) BudgetSpentAllTime(records []Expense, category string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range records {
		if e.Category != category {
			continue
		}
		v, err := a.base(e)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(v)
	}
	return total, nil
}

// MonthOverview restricts records to one calendar month and totals them by category.
func (a *Aggregator) MonthOverview(records []Expense, year, month int) (MonthOverview, error) {
	var inMonth []Expense
	for _, e := range records {
		if e.Date.InMonth(year, time.Month(month)) {
			inMonth = append(inMonth, e)
		}
	}
	cats, err := a.TotalsByCategory(inMonth)
	if err != nil {
		return MonthOverview{}, err
	}
	total := decimal.Zero
	for _, c := range cats {
		total = total.Add(c.Amount)
	}
	return MonthOverview{Year: year, Month: month, Total: total, ByCategory: cats}, nil
}

// SortedBudgetStatus returns statuses ordered by category name.
func SortedBudgetStatus(m map[string]BudgetStatus) []BudgetStatus {
	out := make([]BudgetStatus, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
