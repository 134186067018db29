package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"saldo/internal/aggregate"
	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/period"
	"saldo/internal/source"
	"saldo/internal/source/memory"
)

type fakePublisher struct {
	err  error
	sent []*amqp.RecordChangedMessage
}

func (p *fakePublisher) PublishRecordChanged(_ context.Context, msg *amqp.RecordChangedMessage) error {
	p.sent = append(p.sent, msg)
	return p.err
}

func (p *fakePublisher) InstanceID() string { return "test-instance" }

func newRecords(pub EventPublisher, caches *Caches) (*RecordService, *memory.Store) {
	store := memory.New(time.UTC)
	return NewRecordService(store, nil, time.UTC, caches, pub, nil), store
}

func TestRecordServiceCreate(t *testing.T) {
	pub := &fakePublisher{}
	svc, store := newRecords(pub, nil)
	ctx := context.Background()

	id, err := svc.Create(ctx, core.Expense, core.Record{Amount: 1250, Category: "FOOD", OccurredAtMillis: at(4)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, _ := store.FetchExpenses(ctx, june)
	if len(got) != 1 || got[0].ID != id {
		t.Fatalf("stored = %+v", got)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("published %d events", len(pub.sent))
	}
	msg := pub.sent[0]
	if msg.Action != amqp.ActionCreated || msg.Period != june || msg.RecordID != id || msg.Origin != "test-instance" {
		t.Fatalf("event = %+v", msg)
	}
}

func TestRecordServiceValidation(t *testing.T) {
	tests := []struct {
		name    string
		kind    core.Kind
		record  core.Record
		wantErr error
	}{
		{"negative amount", core.Expense, core.Record{Amount: -1, Category: "FOOD", OccurredAtMillis: at(1)}, core.ErrInvalidAmount},
		{"zero timestamp", core.Expense, core.Record{Amount: 1, Category: "FOOD"}, core.ErrInvalidTimestamp},
		{"unknown category", core.Expense, core.Record{Amount: 1, Category: "BOATS", OccurredAtMillis: at(1)}, core.ErrUnknownCategory},
		{"bad kind", core.Kind("loan"), core.Record{Amount: 1, Category: "FOOD", OccurredAtMillis: at(1)}, core.ErrInvalidKind},
		{"income category on expense", core.Expense, core.Record{Amount: 1, Category: "WORK", OccurredAtMillis: at(1)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			svc, _ := newRecords(pub, nil)
			_, err := svc.Create(context.Background(), tt.kind, tt.record)
			if !errors.Is(err, ErrInvalidRecord) {
				t.Fatalf("err = %v, want ErrInvalidRecord", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if len(pub.sent) != 0 {
				t.Fatal("rejected writes must not publish")
			}
		})
	}
}

func TestRecordServicePublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc, _ := newRecords(pub, nil)

	if _, err := svc.Create(context.Background(), core.Income, core.Record{Amount: 10, Category: "WORK", OccurredAtMillis: at(1)}); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestRecordServiceWithoutPublisher(t *testing.T) {
	svc, _ := newRecords(nil, nil)
	if _, err := svc.Create(context.Background(), core.Expense, core.Record{Amount: 10, Category: "PETS", OccurredAtMillis: at(1)}); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestRecordServiceInvalidatesCaches(t *testing.T) {
	ctx := context.Background()
	caches := NewCaches(10, time.Minute, nil)
	svc, store := newRecords(nil, caches)
	finance := NewFinanceService(store, aggregate.New(nil, time.UTC), caches, nil)

	id, _ := svc.Create(ctx, core.Expense, core.Record{Amount: 100, Category: "FOOD", OccurredAtMillis: at(1)})
	first := mustSucceed(t, finance.GetPeriodSummary(ctx, june))
	if first.TotalExpense != 100 {
		t.Fatalf("total = %d", first.TotalExpense)
	}

	if _, err := svc.Create(ctx, core.Expense, core.Record{Amount: 50, Category: "FOOD", OccurredAtMillis: at(2)}); err != nil {
		t.Fatal(err)
	}
	if got := mustSucceed(t, finance.GetPeriodSummary(ctx, june)).TotalExpense; got != 150 {
		t.Fatalf("after create total = %d, want 150", got)
	}

	if err := svc.Edit(ctx, core.Expense, core.Record{ID: id, Amount: 10, Category: "FOOD", OccurredAtMillis: at(1)}); err != nil {
		t.Fatal(err)
	}
	if got := mustSucceed(t, finance.GetPeriodSummary(ctx, june)).TotalExpense; got != 60 {
		t.Fatalf("after edit total = %d, want 60", got)
	}

	if err := svc.Delete(ctx, core.Expense, id, june); err != nil {
		t.Fatal(err)
	}
	if got := mustSucceed(t, finance.GetPeriodSummary(ctx, june)).TotalExpense; got != 50 {
		t.Fatalf("after delete total = %d, want 50", got)
	}
}

func TestRecordServiceEditAndDelete(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc, _ := newRecords(pub, nil)

	if err := svc.Edit(ctx, core.Expense, core.Record{Amount: 1, Category: "FOOD", OccurredAtMillis: at(1)}); !errors.Is(err, core.ErrEmptyID) {
		t.Fatalf("edit without id: %v", err)
	}
	if err := svc.Edit(ctx, core.Expense, core.Record{ID: "missing", Amount: 1, Category: "FOOD", OccurredAtMillis: at(1)}); !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("edit missing: %v", err)
	}
	if err := svc.Delete(ctx, core.Expense, "missing", june); !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("delete missing: %v", err)
	}
	if err := svc.Delete(ctx, core.Expense, "x", period.Key("002024")); !errors.Is(err, period.ErrInvalidPeriod) && !errors.Is(err, period.ErrMalformedKey) {
		t.Fatalf("delete bad period: %v", err)
	}
	if len(pub.sent) != 0 {
		t.Fatalf("failed writes published %d events", len(pub.sent))
	}
}

func TestHandleRecordChanged(t *testing.T) {
	caches := NewCaches(10, time.Minute, nil)
	may := period.MustEncode(2024, 5)
	caches.Summaries.Set(summaryKey(june), core.PeriodSummary{Period: june})
	caches.Summaries.Set(summaryKey(may), core.PeriodSummary{Period: may})
	caches.Details.Set(categoryKey(core.CategoryFood, june), core.CategoryPeriodDetail{})
	caches.Months.Set(monthsKey, []period.Key{june, may})

	msg := amqp.NewRecordChangedMessage("other", core.Expense, amqp.ActionCreated, "1", june)
	if err := caches.HandleRecordChanged(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if _, ok := caches.Summaries.Get(summaryKey(june)); ok {
		t.Fatal("june summary must be dropped")
	}
	if _, ok := caches.Summaries.Get(summaryKey(may)); !ok {
		t.Fatal("may summary must survive")
	}
	if caches.Details.Size() != 0 || caches.Months.Size() != 0 {
		t.Fatal("june details and months must be dropped")
	}

	msg = amqp.NewRecordChangedMessage("other", core.Expense, amqp.ActionEdited, "1", june)
	_ = caches.HandleRecordChanged(context.Background(), msg)
	if caches.Summaries.Size() != 0 {
		t.Fatal("an edit must clear every summary")
	}
}

// gatedStore holds the first FetchIncome until release is closed, after
// signalling that FetchExpenses has returned its snapshot.
type gatedStore struct {
	*memory.Store
	expensesRead chan struct{}
	release      chan struct{}
	once         sync.Once
}

func (g *gatedStore) FetchExpenses(ctx context.Context, key period.Key) ([]core.Record, error) {
	recs, err := g.Store.FetchExpenses(ctx, key)
	g.once.Do(func() { close(g.expensesRead) })
	return recs, err
}

func (g *gatedStore) FetchIncome(ctx context.Context, key period.Key) ([]core.Record, error) {
	<-g.release
	return g.Store.FetchIncome(ctx, key)
}

func TestReadRacingWriteDoesNotCacheStaleSummary(t *testing.T) {
	ctx := context.Background()
	caches := NewCaches(10, time.Minute, nil)
	svc, store := newRecords(nil, caches)
	gated := &gatedStore{Store: store, expensesRead: make(chan struct{}), release: make(chan struct{})}
	finance := NewFinanceService(gated, aggregate.New(nil, time.UTC), caches, nil)

	raced := make(chan core.State[core.PeriodSummary], 1)
	go func() { raced <- finance.GetPeriodSummary(ctx, june) }()

	<-gated.expensesRead
	if _, err := svc.Create(ctx, core.Expense, core.Record{Amount: 500, Category: "FOOD", OccurredAtMillis: at(3)}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	close(gated.release)
	mustSucceed(t, <-raced)

	if got := mustSucceed(t, finance.GetPeriodSummary(ctx, june)).TotalExpense; got != 500 {
		t.Fatalf("total after completed write = %d, want 500", got)
	}
}

func TestCacheGenerationGuardsStores(t *testing.T) {
	ctx := context.Background()
	caches := NewCaches(10, time.Minute, nil)
	src := &fakeReader{expenses: []core.Record{{ID: "1", Amount: 100, Category: "FOOD", OccurredAtMillis: at(1)}}}
	finance := newFinance(src, caches)

	gen := caches.generation(june)
	caches.InvalidatePeriod(june)
	if caches.storeIf(june, gen, func() {}) {
		t.Fatal("store allowed after period invalidation")
	}
	gen = caches.generation(june)
	caches.InvalidateAll()
	if caches.storeIf(june, gen, func() {}) {
		t.Fatal("store allowed after full invalidation")
	}
	months := caches.generation("")
	caches.InvalidatePeriod(june)
	if caches.storeIf("", months, func() {}) {
		t.Fatal("month list store allowed after period invalidation")
	}

	mustSucceed(t, finance.GetCategoryPeriodDetail(ctx, core.CategoryFood, june))
	mustSucceed(t, finance.GetCategoryPeriodDetail(ctx, core.CategoryFood, june))
	if got := src.callsTo("category"); got != 1 {
		t.Fatalf("category reads = %d, want 1 once the generation is stable", got)
	}
}
