package google

import (
	"fmt"
	"strings"
)

// table is the decoded A:B range of the ledger sheet.
type table struct {
	rows     map[string]int
	values   map[string]string
	rowCount int
}

func (t table) nextRow() int {
	return t.rowCount + 1
}

// parseRows converts a values matrix (as returned by Sheets API) into key
// positions and values. Blank keys and a leading "key" header are skipped;
// when a key repeats, the first row wins.
func parseRows(values [][]interface{}) table {
	t := table{
		rows:     make(map[string]int, len(values)),
		values:   make(map[string]string, len(values)),
		rowCount: len(values),
	}
	for i, row := range values {
		cols := toStrings(row)
		key := safeGet(cols, 0)
		if key == "" {
			continue
		}
		if i == 0 && strings.EqualFold(key, "key") {
			continue
		}
		if _, dup := t.rows[key]; dup {
			continue
		}
		t.rows[key] = i + 1
		t.values[key] = rawGet(row, 1)
	}
	return t
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// rawGet keeps the value untrimmed: snapshots are stored verbatim.
func rawGet(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return fmt.Sprint(row[idx])
}
