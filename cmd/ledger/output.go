package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"budgetbook/internal/core"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func base(d decimal.Decimal) string {
	return core.FormatAmount(d, core.BaseCurrency)
}

func printExpense(w io.Writer, e core.Expense, baseAmount decimal.Decimal) {
	tw := newTable(w)
	fmt.Fprintf(tw, "ID\t%s\n", e.ID)
	fmt.Fprintf(tw, "Title\t%s\n", e.Title)
	fmt.Fprintf(tw, "Date\t%s\n", e.Date)
	fmt.Fprintf(tw, "Category\t%s\n", e.Category)
	fmt.Fprintf(tw, "Type\t%s\n", e.Type)
	fmt.Fprintf(tw, "Amount\t%s\n", core.FormatAmount(e.Amount, e.Currency))
	if e.Currency != core.BaseCurrency {
		fmt.Fprintf(tw, "In %s\t%s\n", core.BaseCurrency.Code(), base(baseAmount))
	}
	fmt.Fprintf(tw, "Recurring\t%t\n", e.Recurring)
	tw.Flush()
}

func printExpenses(w io.Writer, records []core.Expense, conv *core.Converter) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDATE\tTITLE\tCATEGORY\tTYPE\tAMOUNT\tBASE\tRECURRING")
	for _, e := range records {
		b, err := conv.Normalize(e.Amount, e.Currency)
		if err != nil {
			return err
		}
		recurring := ""
		if e.Recurring {
			recurring = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Date, e.Title, e.Category, e.Type,
			core.FormatAmount(e.Amount, e.Currency), base(b), recurring)
	}
	return tw.Flush()
}

func printStats(w io.Writer, s core.Summary, byType core.TypeTotals, byCategory []core.CategoryAmount, daily []core.DayAmount) {
	tw := newTable(w)
	fmt.Fprintf(tw, "Total\t%s\n", base(s.Total))
	fmt.Fprintf(tw, "Expenses\t%d\n", s.Count)
	fmt.Fprintf(tw, "Average\t%s\n", base(s.Average))
	fmt.Fprintf(tw, "Top category\t%s\n", s.TopCategory)
	fmt.Fprintf(tw, "Required\t%s\n", base(byType.Required))
	fmt.Fprintf(tw, "Optional\t%s\n", base(byType.Optional))
	tw.Flush()

	if len(byCategory) > 0 {
		fmt.Fprintln(w, "\nBy category")
		tw = newTable(w)
		for _, c := range byCategory {
			fmt.Fprintf(tw, "  %s\t%s\n", c.Name, base(c.Amount))
		}
		tw.Flush()
	}

	if len(daily) > 0 {
		fmt.Fprintln(w, "\nBy day")
		tw = newTable(w)
		for _, d := range daily {
			fmt.Fprintf(tw, "  %s\t%s\n", d.Date, base(d.Amount))
		}
		tw.Flush()
	}
}

func printOverview(w io.Writer, ov core.MonthOverview) {
	fmt.Fprintf(w, "%04d-%02d  %s\n", ov.Year, ov.Month, base(ov.Total))
	tw := newTable(w)
	for _, c := range ov.ByCategory {
		fmt.Fprintf(tw, "  %s\t%s\n", c.Name, base(c.Amount))
	}
	tw.Flush()
}

type budgetRow struct {
	budget core.Budget
	spent  decimal.Decimal
}

func printBudgets(w io.Writer, rows []budgetRow) {
	tw := newTable(w)
	fmt.Fprintln(tw, "CATEGORY\tBUDGET\tENTERED AS\tSPENT (ALL TIME)")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.budget.Category, base(r.budget.Amount),
			core.FormatAmount(r.budget.OriginalAmount, r.budget.Currency), base(r.spent))
	}
	tw.Flush()
}

func printBudgetStatus(w io.Writer, statuses []core.BudgetStatus) {
	tw := newTable(w)
	fmt.Fprintln(tw, "CATEGORY\tSPENT\tBUDGET\tUSED\tLEVEL")
	for _, s := range statuses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s%%\t%s\n",
			s.Category, base(s.Spent), base(s.BudgetAmount), s.Percentage.StringFixed(1), s.Level)
	}
	tw.Flush()
}
