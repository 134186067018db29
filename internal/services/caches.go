package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/period"
)

const monthsKey = "months"

// Caches holds the query result caches shared by FinanceService (which
// fills them) and RecordService (which invalidates them).
//
// Every invalidation bumps a generation. A query captures the generation
// before it reads the source and only stores its result if no
// invalidation happened meanwhile, so a read that raced a write never
// caches the pre-write result.
type Caches struct {
	Summaries cache.Cache[core.PeriodSummary]
	Details   cache.Cache[core.CategoryPeriodDetail]
	Months    cache.Cache[[]period.Key]

	mu      sync.Mutex
	all     uint64
	periods map[period.Key]uint64
}

// generation identifies the cache contents a query started from. The
// empty period key tracks the month list.
type generation struct {
	all, period uint64
}

// NewCaches builds LRU caches and registers them with mgr when non-nil.
func NewCaches(size int, ttl time.Duration, mgr *cache.Manager) *Caches {
	summaries := cache.NewLRUCache[core.PeriodSummary](size, ttl)
	details := cache.NewLRUCache[core.CategoryPeriodDetail](size, ttl)
	months := cache.NewLRUCache[[]period.Key](1, ttl)
	if mgr != nil {
		mgr.Register(summaries)
		mgr.Register(details)
		mgr.Register(months)
	}
	return &Caches{
		Summaries: summaries,
		Details:   details,
		Months:    months,
		periods:   map[period.Key]uint64{},
	}
}

// generation returns the current generation of key; use "" for the month
// list.
func (c *Caches) generation(key period.Key) generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return generation{all: c.all, period: c.periods[key]}
}

// storeIf runs store unless key was invalidated after g was taken.
func (c *Caches) storeIf(key period.Key, g generation, store func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.all != g.all || c.periods[key] != g.period {
		return false
	}
	store()
	return true
}

func summaryKey(key period.Key) string { return "summary:" + string(key) }

func categoryKey(c core.Category, key period.Key) string {
	return "category:" + string(key) + ":" + string(c)
}

func incomeKey(key period.Key) string { return "income:" + string(key) }

// InvalidatePeriod drops everything derived from the records of key. The
// month list is dropped too since a period may have appeared or vanished.
func (c *Caches) InvalidatePeriod(key period.Key) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.periods[key]++
	c.periods[""]++
	c.Summaries.Delete(summaryKey(key))
	c.Details.DeletePrefix("category:" + string(key) + ":")
	c.Details.Delete(incomeKey(key))
	c.Months.Delete(monthsKey)
}

// InvalidateAll drops every cached result.
func (c *Caches) InvalidateAll() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.all++
	c.Summaries.Clear()
	c.Details.Clear()
	c.Months.Clear()
}

// HandleRecordChanged applies an event from another instance. Edits may
// have moved a record out of an unknown period, so they clear everything.
func (c *Caches) HandleRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	switch msg.Action {
	case amqp.ActionEdited:
		c.InvalidateAll()
	default:
		c.InvalidatePeriod(msg.Period)
	}
	slog.DebugContext(ctx, "Cache invalidated by event",
		"event_id", msg.EventID,
		"action", msg.Action,
		"period", msg.Period)
	return nil
}
