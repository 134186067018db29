package sheets

import (
	"errors"
	"testing"
	"time"

	"saldo/internal/core"
)

func TestParseRows(t *testing.T) {
	values := [][]any{
		{"ID", "Date", "Amount", "Category", "Note"},
		{"a1", "2024-06-01", "12,50", "FOOD", "lunch"},
		{},
		{"", "", "", "", ""},
		{"a2", "2024-06-02 18:30", 7.0, "taxi"},
		{"a3", "2024-06-03T10:00:00Z", "0", "OTHERS", "free sample"},
	}
	rows, err := parseRows(values, time.UTC)
	if err != nil {
		t.Fatalf("parseRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %+v", len(rows), rows)
	}
	first := rows[0]
	if first.Number != 2 || first.Record.ID != "a1" || first.Record.Amount != 1250 || first.Record.Note != "lunch" {
		t.Fatalf("first row = %+v", first)
	}
	want := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if first.Record.OccurredAtMillis != want {
		t.Fatalf("timestamp = %d, want %d", first.Record.OccurredAtMillis, want)
	}
	if rows[1].Number != 5 || rows[1].Record.Amount != 700 || rows[1].Record.Note != "" {
		t.Fatalf("second row = %+v", rows[1])
	}
	if rows[2].Record.Amount != 0 {
		t.Fatalf("zero amounts are allowed, got %+v", rows[2])
	}
}

func TestParseRowsErrors(t *testing.T) {
	cases := []struct {
		name string
		row  []any
		want error
	}{
		{"bad date", []any{"x", "yesterday", "1.00", "FOOD"}, core.ErrInvalidTimestamp},
		{"bad amount", []any{"x", "2024-06-01", "ten", "FOOD"}, core.ErrInvalidAmount},
		{"negative amount", []any{"x", "2024-06-01", "-3", "FOOD"}, core.ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseRows([][]any{tc.row}, time.UTC)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestFormatRowRoundTrip(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	r := core.Record{ID: "id-1", Amount: 4205, Category: "LOVE", Note: "flowers",
		OccurredAtMillis: time.Date(2024, time.February, 14, 19, 30, 0, 0, loc).UnixMilli()}

	back, err := parseRow(toStrings(formatRow(r, loc)), loc)
	if err != nil {
		t.Fatalf("parseRow: %v", err)
	}
	if back != r {
		t.Fatalf("round trip = %+v, want %+v", back, r)
	}
}
