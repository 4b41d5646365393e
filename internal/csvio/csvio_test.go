package csvio

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
	"budgetbook/internal/kv/memory"
	"budgetbook/internal/services"
)

const header = "Title,Amount,Date,Category,Type,Currency,Recurring\n"

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newStore(t *testing.T) *services.RecordStore {
	t.Helper()
	s := services.NewRecordStore(memory.New(), nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestImport_BlankAmountCountsAsFailure(t *testing.T) {
	in := header +
		"Rent,1200,2024-02-01,Housing,required,₹,false\n" +
		"Snacks,,2024-02-02,Food,optional,₹,false\n"

	store := newStore(t)
	res, err := Import(context.Background(), strings.NewReader(in), store)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Imported != 1 || res.Failed != 1 {
		t.Fatalf("imported=%d failed=%d, want 1/1", res.Imported, res.Failed)
	}
	if len(res.Errors) != 1 || res.Errors[0].Line != 3 || !errors.Is(res.Errors[0], ErrMissingField) {
		t.Errorf("unexpected row errors %v", res.Errors)
	}
	if store.Len() != 1 || store.Expenses()[0].Title != "Rent" {
		t.Errorf("store = %+v", store.Expenses())
	}
}

func TestParse_Defaults(t *testing.T) {
	in := "title,AMOUNT,Date,category,type,currency,recurring\n" +
		"Bus,2.50,2024-03-01,,,,\n" +
		"Gym,30,2024-03-02,Health,Required,$,TRUE\n" +
		"Book,12,2024-03-03,Fun,weird,€,yes\n"

	drafts, res, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(drafts) != 3 || res.Failed != 0 {
		t.Fatalf("drafts=%d failed=%d", len(drafts), res.Failed)
	}

	bus := drafts[0]
	if bus.Category != core.DefaultCategory || bus.Type != core.Optional || bus.Currency != core.BaseCurrency || bus.Recurring {
		t.Errorf("defaults not applied: %+v", bus)
	}
	if !bus.Amount.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("amount = %s", bus.Amount)
	}

	gym := drafts[1]
	if gym.Type != core.Required || gym.Currency != core.USD || !gym.Recurring {
		t.Errorf("gym = %+v", gym)
	}

	book := drafts[2]
	if book.Type != core.Optional || book.Recurring {
		t.Errorf("unknown type should become optional and only 'true' is recurring: %+v", book)
	}
}

func TestParse_RowFailures(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want error
	}{
		{"missing title", ",10,2024-01-01,Food,optional,₹,false", ErrMissingField},
		{"missing date", "Tea,10,,Food,optional,₹,false", ErrMissingField},
		{"negative amount", "Tea,-3,2024-01-01,Food,optional,₹,false", core.ErrInvalidAmount},
		{"zero amount", "Tea,0,2024-01-01,Food,optional,₹,false", core.ErrInvalidAmount},
		{"bad amount", "Tea,abc,2024-01-01,Food,optional,₹,false", core.ErrInvalidAmount},
		{"bad date", "Tea,3,01/02/2024,Food,optional,₹,false", core.ErrInvalidDate},
		{"unknown currency", "Tea,3,2024-01-01,Food,optional,XYZ,false", core.ErrInvalidCurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts, res, err := Parse(strings.NewReader(header + tt.row + "\n"))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(drafts) != 0 || res.Failed != 1 {
				t.Fatalf("drafts=%d failed=%d", len(drafts), res.Failed)
			}
			if !errors.Is(res.Errors[0], tt.want) {
				t.Errorf("error = %v, want %v", res.Errors[0], tt.want)
			}
		})
	}
}

func TestParse_SkipsBlankLinesAndShortRows(t *testing.T) {
	in := header + "\n" + " , , \n" + "Tea,3,2024-01-01\n"
	drafts, res, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(drafts) != 1 || res.Failed != 0 {
		t.Fatalf("drafts=%d failed=%d", len(drafts), res.Failed)
	}
	if drafts[0].Category != core.DefaultCategory {
		t.Errorf("short row should get defaults: %+v", drafts[0])
	}
}

func TestParse_HeaderErrors(t *testing.T) {
	if _, _, err := Parse(strings.NewReader("")); !errors.Is(err, ErrMissingHeader) {
		t.Errorf("empty input: %v", err)
	}
	_, _, err := Parse(strings.NewReader("Name,Cost\nTea,3\n"))
	if !errors.Is(err, ErrMissingColumns) || !strings.Contains(err.Error(), "title, amount, date") {
		t.Errorf("missing columns: %v", err)
	}
}

func TestExport_Format(t *testing.T) {
	records := []core.Expense{
		{ID: "a", Title: "Coffee", Amount: decimal.RequireFromString("5"), Date: mustDate(t, "2024-01-10"),
			Category: "Food", Type: core.Optional, Currency: core.USD},
		{ID: "b", Title: `Say "hi", world`, Amount: decimal.RequireFromString("12.75"), Date: mustDate(t, "2024-01-11"),
			Category: "Fun, games", Type: core.Required, Currency: core.INR, Recurring: true},
	}

	var buf bytes.Buffer
	if err := Export(&buf, records); err != nil {
		t.Fatalf("Export: %v", err)
	}
	want := header +
		`"Coffee",5,2024-01-10,Food,optional,$,false` + "\n" +
		`"Say ""hi"", world",12.75,2024-01-11,"Fun, games",required,₹,true` + "\n"
	if buf.String() != want {
		t.Errorf("Export =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestExport_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, nil); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("Export(nil) = %v", err)
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written")
	}
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := ExportFile(path, nil); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("ExportFile(nil) = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no file should be created")
	}
}

func TestRoundTrip(t *testing.T) {
	original := []core.Expense{
		{ID: "1", Title: "Rent", Amount: decimal.RequireFromString("1200"), Date: mustDate(t, "2024-02-01"),
			Category: "Housing", Type: core.Required, Currency: core.INR},
		{ID: "2", Title: `Dinner "out", late`, Amount: decimal.RequireFromString("45.5"), Date: mustDate(t, "2024-02-14"),
			Category: "Food", Type: core.Optional, Currency: core.EUR, Recurring: true},
		{ID: "3", Title: "Ramen", Amount: decimal.RequireFromString("900"), Date: mustDate(t, "2024-02-20"),
			Category: "Travel, Japan", Type: core.Optional, Currency: core.JPY},
	}

	path := filepath.Join(t.TempDir(), DefaultFileName(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)))
	if err := ExportFile(path, original); err != nil {
		t.Fatalf("ExportFile: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	drafts, res, err := Parse(f)
	if err != nil || res.Failed != 0 {
		t.Fatalf("Parse: %v (failed %d)", err, res.Failed)
	}
	if len(drafts) != len(original) {
		t.Fatalf("got %d drafts", len(drafts))
	}
	for i, d := range drafts {
		o := original[i]
		if d.Title != o.Title || !d.Amount.Equal(o.Amount) || d.Date.String() != o.Date.String() ||
			d.Category != o.Category || d.Type != o.Type || d.Currency != o.Currency || d.Recurring != o.Recurring {
			t.Errorf("record %d: got %+v, want %+v", i, d, o.Draft())
		}
	}
}

func TestDefaultFileName(t *testing.T) {
	got := DefaultFileName(time.Date(2024, 3, 5, 18, 0, 0, 0, time.UTC))
	if got != "expenses_2024-03-05.csv" {
		t.Errorf("DefaultFileName = %s", got)
	}
}

type failingAdder struct{}

func (failingAdder) AddMany(context.Context, []core.Draft) ([]core.ExpenseID, error) {
	return nil, errors.New("boom")
}

func TestImport_AdderFailure(t *testing.T) {
	_, err := Import(context.Background(), strings.NewReader(header+"Tea,3,2024-01-01,,,,\n"), failingAdder{})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected adder error, got %v", err)
	}
}
