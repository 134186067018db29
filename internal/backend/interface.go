// Package backend builds the record source selected by configuration.
package backend

import (
	"context"
	"time"

	"saldo/internal/source"
)

// CleanupFunc releases the resources of a backend.
type CleanupFunc func() error

// PingFunc reports whether a backend can serve requests.
type PingFunc func(ctx context.Context) error

// BackendResult contains the record source and its optional hooks.
type BackendResult struct {
	Source  source.RecordSource
	Cleanup CleanupFunc
	Ping    PingFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Calendar in which timestamps are bucketed into periods
	Location *time.Location

	// Per-call deadline applied to sqlite and sheets operations
	Timeout time.Duration

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID string
	GoogleExpensesSheet string
	GoogleIncomeSheet   string

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
