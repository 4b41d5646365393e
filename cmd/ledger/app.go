package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"budgetbook/internal/core"
	"budgetbook/internal/services"
)

const usage = `usage: ledger <command> [flags]

commands:
  add      -title T -amount N [-date YYYY-MM-DD] [-category C] [-type required|optional] [-currency ₹|$|€|£|¥] [-recurring]
  edit     <id> [flags of add]
  rm       <id>
  show     <id>
  list     [-search S] [-category C] [-type T] [-month all|current|last]
  stats    [-search S] [-category C] [-type T] [-month all|current|last]
  overview [YYYY-MM]
  budget   set <category> <amount> [-currency C] | rm <category> | list | status
  import   <file.csv|->
  export   [-o file.csv|-]
`

// errUsage makes run print the usage text and exit with status 2.
var errUsage = errors.New("usage")

type app struct {
	store  *services.RecordStore
	agg    *core.Aggregator
	now    func() time.Time
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// run executes one command and returns the process exit status. A failed
// snapshot write is reported as a warning and does not fail the command.
func (a *app) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(a.stderr, usage)
		return 2
	}

	var err error
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "add":
		err = a.cmdAdd(ctx, rest)
	case "edit":
		err = a.cmdEdit(ctx, rest)
	case "rm":
		err = a.cmdRemove(ctx, rest)
	case "show":
		err = a.cmdShow(rest)
	case "list":
		err = a.cmdList(rest)
	case "stats":
		err = a.cmdStats(rest)
	case "overview":
		err = a.cmdOverview(rest)
	case "budget":
		err = a.cmdBudget(ctx, rest)
	case "import":
		err = a.cmdImport(ctx, rest)
	case "export":
		err = a.cmdExport(rest)
	case "help", "-h", "--help":
		fmt.Fprint(a.stdout, usage)
		return 0
	default:
		fmt.Fprintf(a.stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case services.IsWarning(err):
		fmt.Fprintf(a.stderr, "warning: %v\n", err)
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprint(a.stderr, usage)
		return 2
	default:
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return 1
	}
}

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// parseArgs parses flags that may appear before, after or between the
// positional arguments, and returns the positionals.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %w", errUsage, err)
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

// draftFlags binds the expense fields shared by add and edit.
type draftFlags struct {
	title, amount, date, category, typ, currency string
	recurring                                    bool
}

func (f *draftFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.title, "title", "", "expense title")
	fs.StringVar(&f.amount, "amount", "", "amount in the expense currency")
	fs.StringVar(&f.date, "date", "", "date as YYYY-MM-DD (default today)")
	fs.StringVar(&f.category, "category", "", "category (default "+core.DefaultCategory+")")
	fs.StringVar(&f.typ, "type", "", "required or optional (default optional)")
	fs.StringVar(&f.currency, "currency", "", "currency symbol or ISO code (default "+string(core.BaseCurrency)+")")
	fs.BoolVar(&f.recurring, "recurring", false, "mark as recurring")
}

// apply overlays the flags that were set on base. Parse errors are collected
// into one validation error together with the draft's own checks.
func (f *draftFlags) apply(fs *flag.FlagSet, base core.Draft) (core.Draft, error) {
	verr := &core.ValidationError{}
	d := base
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if set["title"] {
		d.Title = f.title
	}
	if set["amount"] {
		amt, err := core.ParseAmount(f.amount)
		if err != nil {
			verr.Fields = append(verr.Fields, core.FieldError{Field: "amount", Err: err})
		}
		d.Amount = amt
	}
	if set["date"] {
		date, err := core.ParseDate(f.date)
		if err != nil {
			verr.Fields = append(verr.Fields, core.FieldError{Field: "date", Err: err})
		}
		d.Date = date
	}
	if set["category"] {
		d.Category = f.category
	}
	if set["type"] {
		t, err := core.ParseExpenseType(f.typ)
		if err != nil {
			verr.Fields = append(verr.Fields, core.FieldError{Field: "type", Err: err})
		}
		d.Type = t
	}
	if set["currency"] {
		c, err := core.ParseCurrency(f.currency)
		if err != nil {
			verr.Fields = append(verr.Fields, core.FieldError{Field: "currency", Err: err})
		}
		d.Currency = c
	}
	if set["recurring"] {
		d.Recurring = f.recurring
	}

	if len(verr.Fields) > 0 {
		return d, verr
	}
	return d, nil
}

func (a *app) cmdAdd(ctx context.Context, args []string) error {
	fs := a.flagSet("add")
	var f draftFlags
	f.register(fs)
	if pos, err := parseArgs(fs, args); err != nil {
		return err
	} else if len(pos) != 0 {
		return errUsage
	}

	now := a.now()
	base := core.Draft{Date: core.NewDate(now.Year(), int(now.Month()), now.Day())}
	d, err := f.apply(fs, base)
	if err != nil {
		return err
	}

	id, err := a.store.Add(ctx, d)
	if id != "" {
		fmt.Fprintln(a.stdout, id)
	}
	return err
}

func (a *app) cmdEdit(ctx context.Context, args []string) error {
	fs := a.flagSet("edit")
	var f draftFlags
	f.register(fs)
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return errUsage
	}
	id := core.ExpenseID(pos[0])

	current, ok := a.store.Get(id)
	if !ok {
		return fmt.Errorf("edit %s: %w", id, core.ErrNotFound)
	}
	d, err := f.apply(fs, current.Draft())
	if err != nil {
		return err
	}
	return a.store.Update(ctx, id, d)
}

func (a *app) cmdRemove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	return a.store.Remove(ctx, core.ExpenseID(args[0]))
}

func (a *app) cmdShow(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	e, ok := a.store.Get(core.ExpenseID(args[0]))
	if !ok {
		return fmt.Errorf("show %s: %w", args[0], core.ErrNotFound)
	}
	base, err := a.store.Converter().Normalize(e.Amount, e.Currency)
	if err != nil {
		return err
	}
	printExpense(a.stdout, e, base)
	return nil
}

// criteriaFlags binds the filter criteria shared by list and stats.
type criteriaFlags struct {
	search, category, typ, month string
}

func (f *criteriaFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.search, "search", "", "case-insensitive text in the title")
	fs.StringVar(&f.category, "category", "", "exact category")
	fs.StringVar(&f.typ, "type", "", "required or optional")
	fs.StringVar(&f.month, "month", "all", "all, current or last")
}

func (f *criteriaFlags) criteria() (core.Criteria, error) {
	t, err := core.ParseExpenseType(f.typ)
	if err != nil {
		return core.Criteria{}, err
	}
	m, err := core.ParseMonthSelector(f.month)
	if err != nil {
		return core.Criteria{}, err
	}
	return core.Criteria{Search: f.search, Category: strings.TrimSpace(f.category), Type: t, Month: m}, nil
}

func (a *app) filtered(name string, args []string) ([]core.Expense, bool, error) {
	fs := a.flagSet(name)
	var f criteriaFlags
	f.register(fs)
	if pos, err := parseArgs(fs, args); err != nil {
		return nil, false, err
	} else if len(pos) != 0 {
		return nil, false, errUsage
	}
	c, err := f.criteria()
	if err != nil {
		return nil, false, err
	}
	records, filtered := core.View(a.store.Expenses(), c, a.now())
	return records, filtered, nil
}

func (a *app) cmdList(args []string) error {
	records, filtered, err := a.filtered("list", args)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.stdout, "No expenses found")
		return nil
	}
	if err := printExpenses(a.stdout, records, a.store.Converter()); err != nil {
		return err
	}
	if filtered {
		fmt.Fprintf(a.stdout, "\n%d of %d expenses\n", len(records), a.store.Len())
	}
	return nil
}

func (a *app) cmdStats(args []string) error {
	records, _, err := a.filtered("stats", args)
	if err != nil {
		return err
	}

	summary, err := a.agg.Summary(records)
	if err != nil {
		return err
	}
	byType, err := a.agg.TotalsByType(records)
	if err != nil {
		return err
	}
	byCategory, err := a.agg.TotalsByCategory(records)
	if err != nil {
		return err
	}
	daily, err := a.agg.DailyTotals(records)
	if err != nil {
		return err
	}
	printStats(a.stdout, summary, byType, byCategory, daily)
	return nil
}

// cmdOverview prints the total and category breakdown of one calendar month,
// the current one by default.
func (a *app) cmdOverview(args []string) error {
	month := a.now()
	switch len(args) {
	case 0:
	case 1:
		t, err := time.Parse("2006-01", args[0])
		if err != nil {
			return fmt.Errorf("invalid month %q, want YYYY-MM", args[0])
		}
		month = t
	default:
		return errUsage
	}

	ov, err := a.agg.MonthOverview(a.store.Expenses(), month.Year(), int(month.Month()))
	if err != nil {
		return err
	}
	printOverview(a.stdout, ov)
	return nil
}
