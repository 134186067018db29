// Package storage is the SQLite record source.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"saldo/internal/core"
	"saldo/internal/period"
	"saldo/internal/source"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores records in a single table. Periods are assigned
// in loc when a record is written.
type SQLiteRepository struct {
	db  *sql.DB
	loc *time.Location
}

func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLiteRepository, error) {
	if loc == nil {
		loc = time.Local
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, loc: loc}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) FetchExpenses(ctx context.Context, key period.Key) ([]core.Record, error) {
	return r.list(ctx, core.Expense, key, "")
}

func (r *SQLiteRepository) FetchIncome(ctx context.Context, key period.Key) ([]core.Record, error) {
	return r.list(ctx, core.Income, key, "")
}

func (r *SQLiteRepository) FetchByCategory(ctx context.Context, category core.Category, key period.Key) ([]core.Record, error) {
	return r.list(ctx, category.Kind(), key, category)
}

// FetchAllPeriods returns every period holding a record, most recent first.
func (r *SQLiteRepository) FetchAllPeriods(ctx context.Context) ([]period.Key, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT period_year, period_month
		FROM records
		ORDER BY period_year DESC, period_month DESC`)
	if err != nil {
		return nil, fmt.Errorf("query periods: %w", err)
	}
	defer rows.Close()

	var keys []period.Key
	for rows.Next() {
		var year, month int
		if err := rows.Scan(&year, &month); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		k, err := period.Encode(year, month)
		if err != nil {
			return nil, fmt.Errorf("stored period %d/%d: %w", month, year, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate periods: %w", err)
	}
	return keys, nil
}

func (r *SQLiteRepository) CreateRecord(ctx context.Context, kind core.Kind, rec core.Record) (string, error) {
	if err := kind.Validate(); err != nil {
		return "", err
	}
	t := rec.OccurredAt(r.loc)
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO records (id, kind, amount_cents, category, note, occurred_at_ms, period_year, period_month)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(kind), rec.Amount, rec.Category, rec.Note, rec.OccurredAtMillis, t.Year(), int(t.Month()))
	if err != nil {
		return "", fmt.Errorf("create %s: %w", kind, err)
	}

	slog.InfoContext(ctx, "Record saved to SQLite",
		"id", id,
		"kind", kind,
		"amount_cents", rec.Amount,
		"category", rec.Category,
		"period", period.FromTime(t))

	return id, nil
}

func (r *SQLiteRepository) EditRecord(ctx context.Context, kind core.Kind, rec core.Record) error {
	if rec.ID == "" {
		return core.ErrEmptyID
	}
	t := rec.OccurredAt(r.loc)
	res, err := r.db.ExecContext(ctx, `
		UPDATE records
		SET amount_cents = ?, category = ?, note = ?, occurred_at_ms = ?,
		    period_year = ?, period_month = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND kind = ?`,
		rec.Amount, rec.Category, rec.Note, rec.OccurredAtMillis, t.Year(), int(t.Month()), rec.ID, string(kind))
	if err != nil {
		return fmt.Errorf("update %s %s: %w", kind, rec.ID, err)
	}
	return expectOneRow(res, kind, rec.ID)
}

// DeleteRecord removes a record. The period is not needed to locate it.
func (r *SQLiteRepository) DeleteRecord(ctx context.Context, kind core.Kind, id string, _ period.Key) error {
	if id == "" {
		return core.ErrEmptyID
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ? AND kind = ?`, id, string(kind))
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	if err := expectOneRow(res, kind, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Record deleted from SQLite", "id", id, "kind", kind)
	return nil
}

func (r *SQLiteRepository) list(ctx context.Context, kind core.Kind, key period.Key, category core.Category) ([]core.Record, error) {
	start, end, err := period.Bounds(key, r.loc)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, amount_cents, category, note, occurred_at_ms
		FROM records
		WHERE kind = ? AND occurred_at_ms >= ? AND occurred_at_ms < ?`
	args := []any{string(kind), start.UnixMilli(), end.UnixMilli()}
	if category != "" {
		query += ` AND UPPER(TRIM(category)) = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY occurred_at_ms, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s for %s: %w", kind, key, err)
	}
	defer rows.Close()

	out := []core.Record{}
	for rows.Next() {
		var rec core.Record
		if err := rows.Scan(&rec.ID, &rec.Amount, &rec.Category, &rec.Note, &rec.OccurredAtMillis); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", kind, err)
	}
	return out, nil
}

func expectOneRow(res sql.Result, kind core.Kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, source.ErrNotFound)
	}
	return nil
}
