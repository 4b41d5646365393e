package csvio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"budgetbook/internal/core"
)

var ErrNothingToExport = errors.New("no expenses to export")

// DefaultFileName is the export file name for the given day.
func DefaultFileName(now time.Time) string {
	return "expenses_" + now.Format(core.DateLayout) + ".csv"
}

// Export writes the header and one line per record. The title is always
// quoted; other fields only when they contain a separator, quote or newline.
func Export(w io.Writer, records []core.Expense) error {
	if len(records) == 0 {
		return ErrNothingToExport
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(Columns, ",") + "\n")
	for _, e := range records {
		fields := []string{
			quote(e.Title),
			e.Amount.String(),
			e.Date.String(),
			escape(e.Category),
			escape(string(e.Type)),
			escape(string(e.Currency)),
			fmt.Sprintf("%t", e.Recurring),
		}
		bw.WriteString(strings.Join(fields, ",") + "\n")
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// ExportFile writes records to path, creating or truncating it.
func ExportFile(path string, records []core.Expense) error {
	if len(records) == 0 {
		return ErrNothingToExport
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := Export(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func escape(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return quote(s)
	}
	return s
}
