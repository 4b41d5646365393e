package main

import (
	"context"
	"fmt"
	"os"

	"budgetbook/internal/core"
	"budgetbook/internal/csvio"
)

func (a *app) cmdBudget(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "set":
		return a.budgetSet(ctx, rest)
	case "rm":
		if len(rest) != 1 {
			return errUsage
		}
		return a.store.RemoveBudget(ctx, rest[0])
	case "list":
		return a.budgetList()
	case "status":
		return a.budgetStatus()
	default:
		return errUsage
	}
}

func (a *app) budgetSet(ctx context.Context, args []string) error {
	fs := a.flagSet("budget set")
	currency := fs.String("currency", "", "currency of the amount (default "+string(core.BaseCurrency)+")")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return errUsage
	}

	amount, err := core.ParseAmount(pos[1])
	if err != nil {
		return err
	}
	cur, err := core.ParseCurrency(*currency)
	if err != nil {
		return err
	}
	return a.store.SetBudget(ctx, pos[0], amount, cur)
}

func (a *app) budgetList() error {
	cats := a.store.BudgetCategories()
	if len(cats) == 0 {
		fmt.Fprintln(a.stdout, "No budgets set")
		return nil
	}

	records := a.store.Expenses()
	rows := make([]budgetRow, 0, len(cats))
	for _, cat := range cats {
		b, _ := a.store.Budget(cat)
		spent, err := a.agg.BudgetSpentAllTime(records, cat)
		if err != nil {
			return err
		}
		rows = append(rows, budgetRow{budget: b, spent: spent})
	}
	printBudgets(a.stdout, rows)
	return nil
}

func (a *app) budgetStatus() error {
	budgets := a.store.Budgets()
	if len(budgets) == 0 {
		fmt.Fprintln(a.stdout, "No budgets set")
		return nil
	}
	status, err := a.agg.BudgetStatus(a.store.Expenses(), budgets, a.now())
	if err != nil {
		return err
	}
	printBudgetStatus(a.stdout, core.SortedBudgetStatus(status))
	return nil
}

func (a *app) cmdImport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}

	in := a.stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()
		in = f
	}

	res, err := csvio.Import(ctx, in, a.store)
	for _, rowErr := range res.Errors {
		fmt.Fprintf(a.stderr, "skipped %v\n", rowErr)
	}
	if res.Imported > 0 || res.Failed > 0 {
		fmt.Fprintf(a.stdout, "Imported %d expenses, %d failed\n", res.Imported, res.Failed)
	}
	return err
}

func (a *app) cmdExport(args []string) error {
	fs := a.flagSet("export")
	out := fs.String("o", "", "output file, - for stdout (default expenses_<date>.csv)")
	if pos, err := parseArgs(fs, args); err != nil {
		return err
	} else if len(pos) != 0 {
		return errUsage
	}

	records := a.store.Expenses()
	if *out == "-" {
		return csvio.Export(a.stdout, records)
	}

	path := *out
	if path == "" {
		path = csvio.DefaultFileName(a.now())
	}
	if err := csvio.ExportFile(path, records); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Exported %d expenses to %s\n", len(records), path)
	return nil
}
