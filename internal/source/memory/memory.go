package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"saldo/internal/core"
	"saldo/internal/period"
	"saldo/internal/source"
)

// SeedFile is the file NewFromDir looks for in the data directory.
const SeedFile = "seed_records.json"

// Store is an in-process RecordSource. It is used for development and tests.
type Store struct {
	mu      sync.Mutex
	loc     *time.Location
	records map[core.Kind][]core.Record
}

// New returns an empty store. Records are assigned to periods in loc.
func New(loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{loc: loc, records: map[core.Kind][]core.Record{}}
}

type seedRecord struct {
	Kind       string `json:"kind"`
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	Category   string `json:"category"`
	Note       string `json:"note"`
	OccurredAt string `json:"occurred_at"` // RFC 3339
}

// NewFromDir returns a store seeded from base/seed_records.json. A missing
// file yields an empty store; a malformed one is an error.
func NewFromDir(base string, loc *time.Location) (*Store, error) {
	s := New(loc)
	data, err := os.ReadFile(filepath.Join(base, SeedFile))
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seeds []seedRecord
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i, sr := range seeds {
		kind, err := core.ParseKind(sr.Kind)
		if err != nil {
			return nil, fmt.Errorf("seed %d: %w", i, err)
		}
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(sr.OccurredAt))
		if err != nil {
			return nil, fmt.Errorf("seed %d: %w", i, core.ErrInvalidTimestamp)
		}
		r := core.Record{
			ID:               sr.ID,
			Amount:           sr.Amount,
			Category:         sr.Category,
			Note:             sr.Note,
			OccurredAtMillis: ts.UnixMilli(),
		}
		if err := r.Validate(nil); err != nil {
			return nil, fmt.Errorf("seed %d: %w", i, err)
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.records[kind] = append(s.records[kind], r)
	}
	return s, nil
}

func (s *Store) FetchExpenses(ctx context.Context, key period.Key) ([]core.Record, error) {
	return s.fetch(ctx, core.Expense, key, "")
}

func (s *Store) FetchIncome(ctx context.Context, key period.Key) ([]core.Record, error) {
	return s.fetch(ctx, core.Income, key, "")
}

func (s *Store) FetchByCategory(ctx context.Context, category core.Category, key period.Key) ([]core.Record, error) {
	return s.fetch(ctx, category.Kind(), key, category)
}

// FetchAllPeriods returns every period holding a record, most recent first.
func (s *Store) FetchAllPeriods(ctx context.Context) ([]period.Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	type ym struct{ year, month int }
	seen := map[period.Key]ym{}
	for _, list := range s.records {
		for _, r := range list {
			t := r.OccurredAt(s.loc)
			seen[period.FromTime(t)] = ym{t.Year(), int(t.Month())}
		}
	}
	keys := make([]period.Key, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := seen[keys[i]], seen[keys[j]]
		if a.year != b.year {
			return a.year > b.year
		}
		return a.month > b.month
	})
	return keys, nil
}

// CreateRecord stores r under a fresh id.
func (s *Store) CreateRecord(ctx context.Context, kind core.Kind, r core.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := kind.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.NewString()
	s.records[kind] = append(s.records[kind], r)
	return r.ID, nil
}

// EditRecord replaces the record with r.ID.
func (s *Store) EditRecord(ctx context.Context, kind core.Kind, r core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.ID == "" {
		return core.ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.records[kind]
	for i := range list {
		if list[i].ID == r.ID {
			list[i] = r
			return nil
		}
	}
	return fmt.Errorf("%s %s: %w", kind, r.ID, source.ErrNotFound)
}

// DeleteRecord removes a record. The period is only a hint for stores that
// partition by month; here it is ignored.
func (s *Store) DeleteRecord(ctx context.Context, kind core.Kind, id string, _ period.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return core.ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.records[kind]
	for i := range list {
		if list[i].ID == id {
			s.records[kind] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s %s: %w", kind, id, source.ErrNotFound)
}

func (s *Store) fetch(ctx context.Context, kind core.Kind, key period.Key, category core.Category) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Record{}
	for _, r := range s.records[kind] {
		if period.FromMillis(r.OccurredAtMillis, s.loc) != key {
			continue
		}
		if category != "" {
			if c, err := core.ParseCategory(r.Category); err != nil || c != category {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}
