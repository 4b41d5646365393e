package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"budgetbook/internal/core"
	applog "budgetbook/internal/log"
)

var (
	ErrMissingHeader  = errors.New("csv has no header row")
	ErrMissingColumns = errors.New("csv header lacks required columns")
	ErrMissingField   = errors.New("missing required field")
)

// Columns is the header written on export and recognized on import.
var Columns = []string{"Title", "Amount", "Date", "Category", "Type", "Currency", "Recurring"}

// RowError describes one rejected row. Line is the 1-based line number in the
// input, the header being line 1.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

type ImportResult struct {
	Imported int
	Failed   int
	Errors   []RowError
}

// Adder persists a batch of drafts with a single write.
type Adder interface {
	AddMany(ctx context.Context, drafts []core.Draft) ([]core.ExpenseID, error)
}

// Parse reads a CSV export and returns the drafts of every valid row. Rows
// that cannot be turned into a valid draft are counted in the result.
func Parse(r io.Reader) ([]core.Draft, ImportResult, error) {
	var res ImportResult

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, res, ErrMissingHeader
	}
	if err != nil {
		return nil, res, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	var missing []string
	for _, name := range []string{"title", "amount", "date"} {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, res, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var drafts []core.Draft
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Failed++
				res.Errors = append(res.Errors, RowError{Line: perr.Line, Err: perr.Err})
				continue
			}
			return nil, res, fmt.Errorf("read csv: %w", err)
		}
		if isBlank(record) {
			continue
		}
		line, _ := cr.FieldPos(0)

		d, err := rowDraft(record, cols)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, RowError{Line: line, Err: err})
			continue
		}
		drafts = append(drafts, d)
	}
	return drafts, res, nil
}

// Import parses r and adds every valid row through store in one batch. A
// persistence warning from store is returned together with a full result.
func Import(ctx context.Context, r io.Reader, store Adder) (ImportResult, error) {
	logger := applog.Default(applog.ComponentCSV)

	drafts, res, err := Parse(r)
	if err != nil {
		return res, err
	}

	if len(drafts) > 0 {
		ids, err := store.AddMany(ctx, drafts)
		res.Imported = len(ids)
		if err != nil {
			if len(ids) == 0 {
				return res, fmt.Errorf("import: %w", err)
			}
			logger.WarnContext(ctx, "Imported rows not persisted", applog.FieldCount, len(ids), applog.FieldError, err)
			return res, err
		}
	}

	logger.InfoContext(ctx, "CSV import finished",
		applog.FieldOperation, applog.OpImport,
		"imported", res.Imported,
		"failed", res.Failed)
	return res, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func field(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func rowDraft(record []string, cols map[string]int) (core.Draft, error) {
	title := field(record, cols, "title")
	amount := field(record, cols, "amount")
	date := field(record, cols, "date")

	var missing []string
	if title == "" {
		missing = append(missing, "title")
	}
	if amount == "" {
		missing = append(missing, "amount")
	}
	if date == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return core.Draft{}, fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}

	amt, err := core.ParseAmount(amount)
	if err != nil {
		return core.Draft{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Draft{}, err
	}
	cur, err := core.ParseCurrency(field(record, cols, "currency"))
	if err != nil {
		return core.Draft{}, fmt.Errorf("%w: %q", err, field(record, cols, "currency"))
	}

	draft := core.Draft{
		Title:     title,
		Amount:    amt,
		Date:      d,
		Category:  field(record, cols, "category"),
		Type:      core.NormalizeExpenseType(field(record, cols, "type")),
		Currency:  cur,
		Recurring: strings.EqualFold(field(record, cols, "recurring"), "true"),
	}
	if err := draft.Validate(); err != nil {
		return core.Draft{}, err
	}
	return draft.Normalized(), nil
}
