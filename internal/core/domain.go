package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Expense Kind = "expense"
	Income  Kind = "income"
)

type (
	// Kind tells which record list a Record belongs to.
	Kind string

	// Record is a single expense or income entry. Amount is in minor
	// currency units (cents). ID is empty until the record is persisted.
	Record struct {
		ID               string
		Amount           int64
		Category         string
		Note             string
		OccurredAtMillis int64
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidKind      = errors.New("invalid record kind")
	ErrEmptyID          = errors.New("empty record id")
	ErrNoteTooLong      = errors.New("note too long (max 200 characters)")
	ErrStillLoading     = errors.New("query still loading")
)

// ParseKind accepts "expense"/"expenses" and "income"/"incomes".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense", "expenses":
		return Expense, nil
	case "income", "incomes":
		return Income, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

func (k Kind) Validate() error {
	switch k {
	case Expense, Income:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, string(k))
	}
}

func (k Kind) String() string {
	return string(k)
}

// OccurredAt returns the record timestamp in loc.
func (r Record) OccurredAt(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(r.OccurredAtMillis).In(loc)
}

// Validate checks the record against the catalog. It does not require an ID.
func (r Record) Validate(catalog Catalog) error {
	if r.Amount < 0 {
		return ErrInvalidAmount
	}
	if r.OccurredAtMillis <= 0 {
		return ErrInvalidTimestamp
	}
	if len(r.Note) > 200 {
		return ErrNoteTooLong
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if _, err := catalog.Resolve(r.Category); err != nil {
		return err
	}
	return nil
}
