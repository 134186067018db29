package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/metrics"
	"saldo/internal/period"
	"saldo/internal/source"
)

// ErrInvalidRecord wraps every validation failure of a write.
var ErrInvalidRecord = errors.New("invalid record")

// EventPublisher broadcasts RecordChanged events.
type EventPublisher interface {
	PublishRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error
	InstanceID() string
}

// RecordService forwards writes to the record source, then invalidates the
// affected cached results and announces the change.
type RecordService struct {
	writer    source.RecordWriter
	catalog   core.Catalog
	loc       *time.Location
	caches    *Caches
	publisher EventPublisher
	metrics   *metrics.Metrics
}

// NewRecordService wires the write side. caches, publisher and m may be nil.
func NewRecordService(w source.RecordWriter, catalog core.Catalog, loc *time.Location, caches *Caches, publisher EventPublisher, m *metrics.Metrics) *RecordService {
	if catalog == nil {
		catalog = core.DefaultCatalog()
	}
	if loc == nil {
		loc = time.Local
	}
	return &RecordService{
		writer:    w,
		catalog:   catalog,
		loc:       loc,
		caches:    caches,
		publisher: publisher,
		metrics:   m,
	}
}

// Create stores a new record and returns its id.
func (s *RecordService) Create(ctx context.Context, kind core.Kind, r core.Record) (string, error) {
	if err := s.validate(kind, r); err != nil {
		return "", err
	}
	id, err := s.writer.CreateRecord(ctx, kind, r)
	if err != nil {
		s.metrics.IncrSourceError("create_record")
		return "", err
	}
	key := period.FromMillis(r.OccurredAtMillis, s.loc)
	s.caches.InvalidatePeriod(key)
	s.publish(ctx, kind, amqp.ActionCreated, id, key)

	slog.InfoContext(ctx, "Record created", "kind", kind, "id", id, "period", key)
	return id, nil
}

// Edit replaces an existing record. The record may move to another period,
// so every cached result is dropped.
func (s *RecordService) Edit(ctx context.Context, kind core.Kind, r core.Record) error {
	if r.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, core.ErrEmptyID)
	}
	if err := s.validate(kind, r); err != nil {
		return err
	}
	if err := s.writer.EditRecord(ctx, kind, r); err != nil {
		if !errors.Is(err, source.ErrNotFound) {
			s.metrics.IncrSourceError("edit_record")
		}
		return err
	}
	key := period.FromMillis(r.OccurredAtMillis, s.loc)
	s.caches.InvalidateAll()
	s.publish(ctx, kind, amqp.ActionEdited, r.ID, key)

	slog.InfoContext(ctx, "Record edited", "kind", kind, "id", r.ID, "period", key)
	return nil
}

// Delete removes a record of period key.
func (s *RecordService) Delete(ctx context.Context, kind core.Kind, id string, key period.Key) error {
	if err := kind.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if id == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, core.ErrEmptyID)
	}
	if err := key.Validate(); err != nil {
		return err
	}
	if err := s.writer.DeleteRecord(ctx, kind, id, key); err != nil {
		if !errors.Is(err, source.ErrNotFound) {
			s.metrics.IncrSourceError("delete_record")
		}
		return err
	}
	s.caches.InvalidatePeriod(key)
	s.publish(ctx, kind, amqp.ActionDeleted, id, key)

	slog.InfoContext(ctx, "Record deleted", "kind", kind, "id", id, "period", key)
	return nil
}

func (s *RecordService) validate(kind core.Kind, r core.Record) error {
	if err := kind.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if err := r.Validate(s.catalog); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	d, _ := s.catalog.Resolve(r.Category)
	if d.Kind != kind {
		return fmt.Errorf("%w: %s is not an %s category", ErrInvalidRecord, d.Category, kind)
	}
	return nil
}

// publish never fails the write; the record is already stored.
func (s *RecordService) publish(ctx context.Context, kind core.Kind, action amqp.Action, id string, key period.Key) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewRecordChangedMessage(s.publisher.InstanceID(), kind, action, id, key)
	if err := s.publisher.PublishRecordChanged(ctx, msg); err != nil {
		s.metrics.IncrEvent("published", "error")
		slog.ErrorContext(ctx, "Failed to publish record changed event",
			"event_id", msg.EventID, "kind", kind, "id", id, "error", err)
		return
	}
	s.metrics.IncrEvent("published", "ok")
}
