package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budgetbook/internal/core"
	"budgetbook/internal/kv"
	"budgetbook/internal/kv/memory"
	"budgetbook/internal/services"
)

type failingStore struct {
	*memory.Store
}

func (failingStore) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

type testApp struct {
	*app
	out, errOut *bytes.Buffer
}

func newTestApp(t *testing.T, store kv.Store) *testApp {
	t.Helper()
	rs := services.NewRecordStore(store, core.DefaultConverter())
	if err := rs.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &testApp{
		app: &app{
			store:  rs,
			agg:    core.NewAggregator(rs.Converter()),
			now:    func() time.Time { return time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC) },
			stdin:  strings.NewReader(""),
			stdout: out,
			stderr: errOut,
		},
		out:    out,
		errOut: errOut,
	}
}

func (a *testApp) exec(t *testing.T, args ...string) int {
	t.Helper()
	a.out.Reset()
	a.errOut.Reset()
	return a.run(context.Background(), args)
}

func TestRunUsage(t *testing.T) {
	a := newTestApp(t, memory.New())

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no command", nil, 2},
		{"unknown command", []string{"frobnicate"}, 2},
		{"help", []string{"help"}, 0},
		{"rm without id", []string{"rm"}, 2},
		{"budget without subcommand", []string{"budget"}, 2},
		{"unknown flag", []string{"list", "-colour", "red"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := a.exec(t, tt.args...); code != tt.code {
				t.Errorf("exit code = %d, want %d (stderr %q)", code, tt.code, a.errOut.String())
			}
		})
	}
}

func TestAddDefaultsAndShow(t *testing.T) {
	a := newTestApp(t, memory.New())

	if code := a.exec(t, "add", "-title", "Lunch", "-amount", "12,50"); code != 0 {
		t.Fatalf("add exit %d: %s", code, a.errOut.String())
	}
	id := strings.TrimSpace(a.out.String())

	e, ok := a.store.Get(core.ExpenseID(id))
	if !ok {
		t.Fatalf("expense %q not stored", id)
	}
	if e.Date.String() != "2024-03-15" {
		t.Errorf("date = %s, want today", e.Date)
	}
	if e.Category != core.DefaultCategory || e.Type != core.Optional || e.Currency != core.BaseCurrency {
		t.Errorf("unexpected defaults: %+v", e)
	}
	if !e.Amount.Equal(mustAmount(t, "12.5")) {
		t.Errorf("amount = %s", e.Amount)
	}

	if code := a.exec(t, "show", id); code != 0 {
		t.Fatalf("show exit %d", code)
	}
	if !strings.Contains(a.out.String(), "₹12.50") {
		t.Errorf("show output missing amount:\n%s", a.out.String())
	}
}

func TestAddValidation(t *testing.T) {
	a := newTestApp(t, memory.New())

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing title", []string{"add", "-amount", "5"}, "title"},
		{"bad amount", []string{"add", "-title", "x", "-amount", "abc"}, "amount"},
		{"bad date", []string{"add", "-title", "x", "-amount", "5", "-date", "2024-02-30"}, "date"},
		{"bad type", []string{"add", "-title", "x", "-amount", "5", "-type", "maybe"}, "type"},
		{"bad currency", []string{"add", "-title", "x", "-amount", "5", "-currency", "XYZ"}, "currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := a.exec(t, tt.args...); code != 1 {
				t.Fatalf("exit code = %d, want 1", code)
			}
			if !strings.Contains(a.errOut.String(), tt.want) {
				t.Errorf("stderr %q does not mention %q", a.errOut.String(), tt.want)
			}
		})
	}
	if a.store.Len() != 0 {
		t.Errorf("invalid adds stored %d expenses", a.store.Len())
	}
}

func TestEditKeepsUnsetFields(t *testing.T) {
	a := newTestApp(t, memory.New())
	a.exec(t, "add", "-title", "Taxi", "-amount", "10", "-currency", "USD", "-category", "Travel", "-date", "2024-03-01")
	id := strings.TrimSpace(a.out.String())

	if code := a.exec(t, "edit", id, "-amount", "20"); code != 0 {
		t.Fatalf("edit exit %d: %s", code, a.errOut.String())
	}
	e, _ := a.store.Get(core.ExpenseID(id))
	if e.Title != "Taxi" || e.Category != "Travel" || e.Currency != core.USD || e.Date.String() != "2024-03-01" {
		t.Errorf("edit changed unrelated fields: %+v", e)
	}
	if !e.Amount.Equal(mustAmount(t, "20")) {
		t.Errorf("amount = %s, want 20", e.Amount)
	}

	if code := a.exec(t, "edit", "missing-id", "-amount", "1"); code != 1 {
		t.Errorf("edit of unknown id exit %d, want 1", code)
	}
}

func TestRemove(t *testing.T) {
	a := newTestApp(t, memory.New())
	a.exec(t, "add", "-title", "Coffee", "-amount", "3")
	id := strings.TrimSpace(a.out.String())

	if code := a.exec(t, "rm", id); code != 0 {
		t.Fatalf("rm exit %d", code)
	}
	if a.store.Len() != 0 {
		t.Errorf("expense not removed")
	}
	if code := a.exec(t, "rm", id); code != 0 {
		t.Errorf("rm of unknown id exit %d, want 0", code)
	}
}

func TestListFilters(t *testing.T) {
	a := newTestApp(t, memory.New())
	a.exec(t, "add", "-title", "Groceries", "-amount", "40", "-category", "Food", "-date", "2024-03-02")
	a.exec(t, "add", "-title", "Rent", "-amount", "900", "-category", "Home", "-type", "required", "-date", "2024-02-01")

	if code := a.exec(t, "list"); code != 0 {
		t.Fatalf("list exit %d", code)
	}
	if !strings.Contains(a.out.String(), "Groceries") || !strings.Contains(a.out.String(), "Rent") {
		t.Errorf("list missing rows:\n%s", a.out.String())
	}
	if strings.Contains(a.out.String(), " of ") {
		t.Errorf("unfiltered list shows a count:\n%s", a.out.String())
	}

	a.exec(t, "list", "-month", "current")
	if strings.Contains(a.out.String(), "Rent") || !strings.Contains(a.out.String(), "1 of 2 expenses") {
		t.Errorf("current month list:\n%s", a.out.String())
	}

	a.exec(t, "list", "-search", "nothing-matches")
	if !strings.Contains(a.out.String(), "No expenses found") {
		t.Errorf("empty list:\n%s", a.out.String())
	}

	if code := a.exec(t, "list", "-month", "next"); code != 1 {
		t.Errorf("invalid month selector exit %d, want 1", code)
	}
}

func TestStats(t *testing.T) {
	a := newTestApp(t, memory.New())
	a.exec(t, "add", "-title", "Book", "-amount", "5", "-currency", "$", "-category", "Fun")
	a.exec(t, "add", "-title", "Bus", "-amount", "1", "-category", "Travel", "-type", "required")

	if code := a.exec(t, "stats"); code != 0 {
		t.Fatalf("stats exit %d: %s", code, a.errOut.String())
	}
	out := a.out.String()
	for _, want := range []string{"Total", "₹418.50", "Top category", "Fun", "Required", "₹1.00", "2024-03-15"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
}

func TestOverview(t *testing.T) {
	a := newTestApp(t, memory.New())
	a.exec(t, "add", "-title", "Rent", "-amount", "900", "-category", "Home", "-date", "2024-02-01")
	a.exec(t, "add", "-title", "Lunch", "-amount", "10", "-category", "Food")

	if code := a.exec(t, "overview"); code != 0 {
		t.Fatalf("overview exit %d: %s", code, a.errOut.String())
	}
	if out := a.out.String(); !strings.Contains(out, "2024-03") || !strings.Contains(out, "Food") || strings.Contains(out, "Home") {
		t.Errorf("current month overview:\n%s", out)
	}

	a.exec(t, "overview", "2024-02")
	if out := a.out.String(); !strings.Contains(out, "₹900.00") || !strings.Contains(out, "Home") {
		t.Errorf("february overview:\n%s", out)
	}

	if code := a.exec(t, "overview", "March"); code != 1 {
		t.Errorf("invalid month exit %d, want 1", code)
	}
}

func TestBudgetCommands(t *testing.T) {
	a := newTestApp(t, memory.New())
	a.exec(t, "add", "-title", "Dinner", "-amount", "80", "-category", "Food")

	if code := a.exec(t, "budget", "set", "Food", "100"); code != 0 {
		t.Fatalf("budget set exit %d: %s", code, a.errOut.String())
	}
	if code := a.exec(t, "budget", "set", "Fun", "10", "-currency", "EUR"); code != 0 {
		t.Fatalf("budget set with currency exit %d: %s", code, a.errOut.String())
	}

	a.exec(t, "budget", "status")
	out := a.out.String()
	if !strings.Contains(out, "80.0%") || !strings.Contains(out, string(core.LevelWarning)) {
		t.Errorf("budget status:\n%s", out)
	}

	a.exec(t, "budget", "list")
	if !strings.Contains(a.out.String(), "€10.00") {
		t.Errorf("budget list:\n%s", a.out.String())
	}

	if code := a.exec(t, "budget", "rm", "Fun"); code != 0 {
		t.Fatalf("budget rm exit %d", code)
	}
	if _, ok := a.store.Budget("Fun"); ok {
		t.Errorf("budget not removed")
	}

	if code := a.exec(t, "budget", "set", "Food", "-5"); code == 0 {
		t.Errorf("negative budget accepted")
	}
}

func TestImportExport(t *testing.T) {
	a := newTestApp(t, memory.New())
	a.stdin = strings.NewReader("Title,Amount,Date,Category,Type\nLunch,12.5,2024-03-01,Food,optional\nBad,,2024-03-01,Food,optional\n")

	if code := a.exec(t, "import", "-"); code != 0 {
		t.Fatalf("import exit %d: %s", code, a.errOut.String())
	}
	if !strings.Contains(a.out.String(), "Imported 1 expenses, 1 failed") {
		t.Errorf("import summary: %q", a.out.String())
	}
	if !strings.Contains(a.errOut.String(), "skipped") {
		t.Errorf("row error not reported: %q", a.errOut.String())
	}

	if code := a.exec(t, "export", "-o", "-"); code != 0 {
		t.Fatalf("export exit %d: %s", code, a.errOut.String())
	}
	if !strings.Contains(a.out.String(), `"Lunch",12.5,2024-03-01,Food,optional`) {
		t.Errorf("export output:\n%s", a.out.String())
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	if code := a.exec(t, "export", "-o", path); code != 0 {
		t.Fatalf("export to file exit %d: %s", code, a.errOut.String())
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export file: %v", err)
	}
}

func TestExportEmptyLedger(t *testing.T) {
	a := newTestApp(t, memory.New())
	if code := a.exec(t, "export", "-o", "-"); code != 1 {
		t.Errorf("export of empty ledger exit %d, want 1", code)
	}
}

func TestPersistFailureIsWarning(t *testing.T) {
	a := newTestApp(t, failingStore{memory.New()})

	if code := a.exec(t, "add", "-title", "Lunch", "-amount", "10"); code != 0 {
		t.Fatalf("add exit %d, want 0", code)
	}
	if !strings.HasPrefix(a.errOut.String(), "warning:") {
		t.Errorf("stderr = %q, want a warning", a.errOut.String())
	}
	if a.store.Len() != 1 {
		t.Errorf("expense not kept in memory")
	}
}

func mustAmount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := core.ParseAmount(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
