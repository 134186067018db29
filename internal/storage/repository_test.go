package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"saldo/internal/core"
	"saldo/internal/period"
	"saldo/internal/source"
)

var _ source.RecordSource = (*SQLiteRepository)(nil)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "saldo.db"), time.UTC)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func ts(y int, m time.Month, d, h int) int64 {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC).UnixMilli()
}

func TestRepositoryCreateAndQuery(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	seed := []struct {
		kind core.Kind
		rec  core.Record
	}{
		{core.Expense, core.Record{Amount: 100, Category: "FOOD", Note: "bread", OccurredAtMillis: ts(2024, 6, 1, 8)}},
		{core.Expense, core.Record{Amount: 200, Category: "TAXI", OccurredAtMillis: ts(2024, 6, 30, 23)}},
		{core.Expense, core.Record{Amount: 50, Category: "FOOD", OccurredAtMillis: ts(2024, 7, 1, 0)}},
		{core.Income, core.Record{Amount: 60000, Category: "WORK", OccurredAtMillis: ts(2024, 6, 27, 9)}},
		{core.Income, core.Record{Amount: 60000, Category: "WORK", OccurredAtMillis: ts(2023, 12, 27, 9)}},
	}
	for _, s := range seed {
		if _, err := repo.CreateRecord(ctx, s.kind, s.rec); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	june := period.MustEncode(2024, 6)
	exp, err := repo.FetchExpenses(ctx, june)
	if err != nil {
		t.Fatalf("expenses: %v", err)
	}
	if len(exp) != 2 || exp[0].Note != "bread" || exp[1].Amount != 200 {
		t.Fatalf("unexpected expenses: %+v", exp)
	}
	inc, err := repo.FetchIncome(ctx, june)
	if err != nil || len(inc) != 1 {
		t.Fatalf("income: %+v %v", inc, err)
	}
	food, err := repo.FetchByCategory(ctx, core.CategoryFood, june)
	if err != nil || len(food) != 1 || food[0].Amount != 100 {
		t.Fatalf("by category: %+v %v", food, err)
	}

	none, err := repo.FetchExpenses(ctx, period.MustEncode(2020, 1))
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("empty period must be an empty list: %+v %v", none, err)
	}

	keys, err := repo.FetchAllPeriods(ctx)
	if err != nil {
		t.Fatalf("periods: %v", err)
	}
	want := []period.Key{"072024", "062024", "122023"}
	if len(keys) != len(want) {
		t.Fatalf("periods = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("periods = %v, want %v", keys, want)
		}
	}
}

func TestRepositoryEditMovesPeriod(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.CreateRecord(ctx, core.Expense, core.Record{Amount: 100, Category: "FOOD", OccurredAtMillis: ts(2024, 6, 1, 8)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	moved := core.Record{ID: id, Amount: 300, Category: "LOVE", OccurredAtMillis: ts(2024, 5, 10, 8)}
	if err := repo.EditRecord(ctx, core.Expense, moved); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got, _ := repo.FetchExpenses(ctx, "062024"); len(got) != 0 {
		t.Fatalf("record still in June: %+v", got)
	}
	got, _ := repo.FetchExpenses(ctx, "052024")
	if len(got) != 1 || got[0].Amount != 300 || got[0].Category != "LOVE" {
		t.Fatalf("record not moved to May: %+v", got)
	}

	if err := repo.EditRecord(ctx, core.Income, moved); !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("wrong kind must be ErrNotFound, got %v", err)
	}
	if err := repo.EditRecord(ctx, core.Expense, core.Record{}); !errors.Is(err, core.ErrEmptyID) {
		t.Fatalf("expected ErrEmptyID, got %v", err)
	}
}

func TestRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	id, _ := repo.CreateRecord(ctx, core.Income, core.Record{Amount: 1, Category: "WORK", OccurredAtMillis: ts(2024, 6, 1, 8)})

	if err := repo.DeleteRecord(ctx, core.Income, id, "062024"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteRecord(ctx, core.Income, id, "062024"); !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	keys, _ := repo.FetchAllPeriods(ctx)
	if len(keys) != 0 {
		t.Fatalf("expected no periods, got %v", keys)
	}
}

func TestRepositoryRejectsMalformedPeriod(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.FetchExpenses(context.Background(), "2024-06"); !errors.Is(err, period.ErrMalformedKey) {
		t.Fatalf("expected ErrMalformedKey, got %v", err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saldo.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path, time.UTC)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		repo.Close()
	}
}
