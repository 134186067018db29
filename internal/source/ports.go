// Package source declares the ports through which the finance service reads
// and writes records. Adapters live in the subpackages and in storage.
package source

import (
	"context"
	"errors"

	"saldo/internal/core"
	"saldo/internal/period"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// Ports for outbound adapters.
type (
	// RecordReader answers the queries the aggregation engine needs. Every
	// method returns a complete, finished list or an error.
	RecordReader interface {
		// FetchExpenses returns the expense records of one period.
		FetchExpenses(ctx context.Context, key period.Key) ([]core.Record, error)
		// FetchIncome returns the income records of one period.
		FetchIncome(ctx context.Context, key period.Key) ([]core.Record, error)
		// FetchByCategory returns the records of one category in one period.
		// The category's kind decides which list is searched.
		FetchByCategory(ctx context.Context, category core.Category, key period.Key) ([]core.Record, error)
		// FetchAllPeriods returns every period that has at least one record,
		// most recent first.
		FetchAllPeriods(ctx context.Context) ([]period.Key, error)
	}

	// RecordWriter persists records. Validation happens before the call.
	RecordWriter interface {
		CreateRecord(ctx context.Context, kind core.Kind, r core.Record) (id string, err error)
		EditRecord(ctx context.Context, kind core.Kind, r core.Record) error
		DeleteRecord(ctx context.Context, kind core.Kind, id string, key period.Key) error
	}

	// RecordSource is a full read/write store.
	RecordSource interface {
		RecordReader
		RecordWriter
	}
)
