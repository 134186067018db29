package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"saldo/internal/log"
	"saldo/internal/source"
	"saldo/internal/source/memory"
	"saldo/internal/source/resilient"
	"saldo/internal/source/sheets"
	"saldo/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend. Remote and disk backends
// are wrapped in a circuit breaker with read retries.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, config.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	wrapped := f.wrap(repo, "sqlite", config)
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Source:  wrapped,
		Cleanup: repo.Close,
		Ping:    breakerPing(wrapped, repo.Ping),
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := sheets.New(ctx, sheets.Options{
		SpreadsheetID: config.GoogleSpreadsheetID,
		ExpensesSheet: config.GoogleExpensesSheet,
		IncomeSheet:   config.GoogleIncomeSheet,
		Location:      config.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	wrapped := f.wrap(cli, "sheets", config)
	f.logger.Info("Initialized Google Sheets backend",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"expenses_sheet", config.GoogleExpensesSheet,
		"income_sheet", config.GoogleIncomeSheet)

	return &BackendResult{
		Source: wrapped,
		Ping:   breakerPing(wrapped, nil),
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store, err := memory.NewFromDir(dataDir, config.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to seed memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{Source: store}, nil
}

func (f *DefaultFactory) wrap(next source.RecordSource, name string, config Config) *resilient.Source {
	return resilient.Wrap(next, name, resilient.Config{
		Timeout:        config.Timeout,
		MaxRetries:     2,
		InitialBackoff: 200 * time.Millisecond,
	})
}

// breakerPing fails while the breaker is open, then defers to ping.
func breakerPing(s *resilient.Source, ping PingFunc) PingFunc {
	return func(ctx context.Context) error {
		if s.State() == gobreaker.StateOpen {
			return fmt.Errorf("record source circuit breaker is open")
		}
		if ping == nil {
			return nil
		}
		return ping(ctx)
	}
}
