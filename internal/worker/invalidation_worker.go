// Package worker runs the background consumers of the service.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"saldo/internal/amqp"
	"saldo/internal/metrics"
)

// Consumer delivers RecordChanged events until ctx is done.
type Consumer interface {
	ConsumeRecordChanged(ctx context.Context, handler amqp.Handler) error
}

// Invalidator drops cached results affected by an event.
type Invalidator interface {
	HandleRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error
}

// InvalidationWorker applies RecordChanged events published by other
// instances to the local caches.
type InvalidationWorker struct {
	consumer    Consumer
	invalidator Invalidator
	metrics     *metrics.Metrics

	wg   sync.WaitGroup
	errc chan error
}

func NewInvalidationWorker(consumer Consumer, invalidator Invalidator, m *metrics.Metrics) *InvalidationWorker {
	return &InvalidationWorker{
		consumer:    consumer,
		invalidator: invalidator,
		metrics:     m,
		errc:        make(chan error, 1),
	}
}

// Start consumes in a goroutine until ctx is cancelled.
func (w *InvalidationWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(w.errc)
		err := w.consumer.ConsumeRecordChanged(ctx, w.HandleRecordChanged)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(ctx, "Invalidation worker stopped", "error", err)
			w.errc <- err
			return
		}
		slog.InfoContext(ctx, "Invalidation worker stopped")
	}()
}

// Err delivers a consumer failure, then is closed once the consumer has
// returned. After a clean stop it is closed without a value.
func (w *InvalidationWorker) Err() <-chan error {
	return w.errc
}

// Wait blocks until the consumer goroutine has returned.
func (w *InvalidationWorker) Wait() {
	w.wg.Wait()
}

// HandleRecordChanged is the amqp.Handler of the worker.
func (w *InvalidationWorker) HandleRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	if err := w.invalidator.HandleRecordChanged(ctx, msg); err != nil {
		w.metrics.IncrEvent("consumed", "error")
		slog.ErrorContext(ctx, "Failed to apply record changed event",
			"event_id", msg.EventID,
			"origin", msg.Origin,
			"error", err)
		return err
	}
	w.metrics.IncrEvent("consumed", "ok")
	slog.InfoContext(ctx, "Applied record changed event",
		"event_id", msg.EventID,
		"origin", msg.Origin,
		"action", msg.Action,
		"period", msg.Period)
	return nil
}
