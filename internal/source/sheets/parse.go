package sheets

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"saldo/internal/core"
)

// Column layout of a record sheet. Row 1 is a header.
const (
	colID = iota
	colDate
	colAmount
	colCategory
	colNote
	numCols
)

var header = []any{"ID", "Date", "Amount", "Category", "Note"}

var errSkipRow = errors.New("skip row")

// dateLayouts are tried in order; values without a zone are read in loc.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006",
}

// sheetRow is a parsed row and its 1-based position in the sheet.
type sheetRow struct {
	Number int
	Record core.Record
}

// parseRows converts a values matrix into records. The header row, empty
// rows and rows without an id are skipped; anything else that fails to
// parse is an error naming the row.
func parseRows(values [][]any, loc *time.Location) ([]sheetRow, error) {
	out := make([]sheetRow, 0, len(values))
	for i, raw := range values {
		cols := toStrings(raw)
		if i == 0 && isHeader(cols) {
			continue
		}
		r, err := parseRow(cols, loc)
		if errors.Is(err, errSkipRow) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, sheetRow{Number: i + 1, Record: r})
	}
	return out, nil
}

func parseRow(cols []string, loc *time.Location) (core.Record, error) {
	id := safeGet(cols, colID)
	if id == "" {
		return core.Record{}, errSkipRow
	}
	ts, err := parseDate(safeGet(cols, colDate), loc)
	if err != nil {
		return core.Record{}, err
	}
	cents, err := parseAmount(safeGet(cols, colAmount))
	if err != nil {
		return core.Record{}, err
	}
	return core.Record{
		ID:               id,
		Amount:           cents,
		Category:         safeGet(cols, colCategory),
		Note:             safeGet(cols, colNote),
		OccurredAtMillis: ts.UnixMilli(),
	}, nil
}

// formatRow is the inverse of parseRow.
func formatRow(r core.Record, loc *time.Location) []any {
	return []any{
		r.ID,
		r.OccurredAt(loc).Format("2006-01-02 15:04:05"),
		core.FormatCents(r.Amount),
		r.Category,
		r.Note,
	}
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", core.ErrInvalidTimestamp, s)
}

// parseAmount accepts "12.34", "12,34" and plain zero.
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == 0 {
		return 0, nil
	}
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", err, s)
	}
	return cents, nil
}

func isHeader(cols []string) bool {
	return strings.EqualFold(safeGet(cols, colID), "id")
}

func toStrings(in []any) []string {
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
