package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"saldo/internal/aggregate"
	"saldo/internal/core"
	"saldo/internal/metrics"
	"saldo/internal/period"
	"saldo/internal/source"
)

// FinanceService answers the read queries: it fetches records, runs the
// aggregation engine and reports one terminal core.State per query.
type FinanceService struct {
	source  source.RecordReader
	engine  *aggregate.Engine
	caches  *Caches
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewFinanceService wires the query side. caches and m may be nil.
func NewFinanceService(src source.RecordReader, engine *aggregate.Engine, caches *Caches, m *metrics.Metrics) *FinanceService {
	return &FinanceService{
		source:  src,
		engine:  engine,
		caches:  caches,
		metrics: m,
		now:     time.Now,
	}
}

// MonthsOptions tune GetAvailableMonths.
type MonthsOptions struct {
	// ExcludeCurrent drops the current period from the result.
	ExcludeCurrent bool
}

// CurrentPeriod returns the key of the current month in the engine's
// calendar.
func (s *FinanceService) CurrentPeriod() period.Key {
	return period.FromTime(s.now().In(s.engine.Location()))
}

// GetPeriodSummary fetches both record lists of key concurrently and
// summarizes them. Nothing is aggregated unless both reads succeed; when
// both fail the expense error is reported.
func (s *FinanceService) GetPeriodSummary(ctx context.Context, key period.Key) core.State[core.PeriodSummary] {
	start := time.Now()
	st := s.periodSummary(ctx, key)
	observe(s.metrics, "period_summary", st, start)
	return st
}

func (s *FinanceService) periodSummary(ctx context.Context, key period.Key) core.State[core.PeriodSummary] {
	if err := key.Validate(); err != nil {
		return core.Fail[core.PeriodSummary](err)
	}
	var gen generation
	if s.caches != nil {
		if v, ok := s.caches.Summaries.Get(summaryKey(key)); ok {
			s.metrics.IncrCacheHit("summary")
			return core.Succeed(v.Clone())
		}
		s.metrics.IncrCacheMiss("summary")
		gen = s.caches.generation(key)
	}

	var (
		expenses, income []core.Record
		expErr, incErr   error
	)
	// Plain Group: a failed read must not cancel its sibling.
	var g errgroup.Group
	g.Go(func() error {
		expenses, expErr = s.source.FetchExpenses(ctx, key)
		return nil
	})
	g.Go(func() error {
		income, incErr = s.source.FetchIncome(ctx, key)
		return nil
	})
	_ = g.Wait()

	if expErr != nil {
		s.sourceFailed(ctx, "fetch_expenses", key, expErr)
		if incErr != nil {
			s.sourceFailed(ctx, "fetch_income", key, incErr)
		}
		return core.Fail[core.PeriodSummary](expErr)
	}
	if incErr != nil {
		s.sourceFailed(ctx, "fetch_income", key, incErr)
		return core.Fail[core.PeriodSummary](incErr)
	}

	summary, err := s.engine.SummarizePeriod(expenses, income, key)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to summarize period", "period", key, "error", err)
		return core.Fail[core.PeriodSummary](err)
	}
	if s.caches != nil {
		cached := summary.Clone()
		s.caches.storeIf(key, gen, func() { s.caches.Summaries.Set(summaryKey(key), cached) })
	}
	return core.Succeed(summary)
}

// GetCategoryPeriodDetail returns the drill-down of one category in key.
func (s *FinanceService) GetCategoryPeriodDetail(ctx context.Context, category core.Category, key period.Key) core.State[core.CategoryPeriodDetail] {
	start := time.Now()
	st := s.detail(ctx, key, categoryKey(category, key), "fetch_by_category", func() ([]core.Record, error) {
		if _, ok := category.Descriptor(); !ok {
			return nil, fmt.Errorf("%w: %q", core.ErrUnknownCategory, string(category))
		}
		return s.source.FetchByCategory(ctx, category, key)
	})
	observe(s.metrics, "category_detail", st, start)
	return st
}

// GetIncomePeriodDetail returns the drill-down of all income in key.
func (s *FinanceService) GetIncomePeriodDetail(ctx context.Context, key period.Key) core.State[core.CategoryPeriodDetail] {
	start := time.Now()
	st := s.detail(ctx, key, incomeKey(key), "fetch_income", func() ([]core.Record, error) {
		return s.source.FetchIncome(ctx, key)
	})
	observe(s.metrics, "income_detail", st, start)
	return st
}

func (s *FinanceService) detail(ctx context.Context, key period.Key, cacheKey, op string, fetch func() ([]core.Record, error)) core.State[core.CategoryPeriodDetail] {
	if err := key.Validate(); err != nil {
		return core.Fail[core.CategoryPeriodDetail](err)
	}
	var gen generation
	if s.caches != nil {
		if v, ok := s.caches.Details.Get(cacheKey); ok {
			s.metrics.IncrCacheHit("detail")
			return core.Succeed(v.Clone())
		}
		s.metrics.IncrCacheMiss("detail")
		gen = s.caches.generation(key)
	}

	records, err := fetch()
	if err != nil {
		s.sourceFailed(ctx, op, key, err)
		return core.Fail[core.CategoryPeriodDetail](err)
	}
	detail, err := s.engine.SummarizeCategoryPeriod(records, key)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to summarize records", "period", key, "error", err)
		return core.Fail[core.CategoryPeriodDetail](err)
	}
	if s.caches != nil {
		cached := detail.Clone()
		s.caches.storeIf(key, gen, func() { s.caches.Details.Set(cacheKey, cached) })
	}
	return core.Succeed(detail)
}

// GetAvailableMonths lists the periods holding records, grouped by year.
// A malformed period label from the source fails the query.
func (s *FinanceService) GetAvailableMonths(ctx context.Context, opts MonthsOptions) core.State[[]core.YearMonths] {
	start := time.Now()
	st := s.availableMonths(ctx, opts)
	observe(s.metrics, "available_months", st, start)
	return st
}

func (s *FinanceService) availableMonths(ctx context.Context, opts MonthsOptions) core.State[[]core.YearMonths] {
	keys, cached := []period.Key(nil), false
	var gen generation
	if s.caches != nil {
		keys, cached = s.caches.Months.Get(monthsKey)
		if cached {
			s.metrics.IncrCacheHit("months")
		} else {
			s.metrics.IncrCacheMiss("months")
			gen = s.caches.generation("")
		}
	}
	if !cached {
		var err error
		keys, err = s.source.FetchAllPeriods(ctx)
		if err != nil {
			s.sourceFailed(ctx, "fetch_all_periods", "", err)
			return core.Fail[[]core.YearMonths](err)
		}
		for _, k := range keys {
			if err := k.Validate(); err != nil {
				slog.ErrorContext(ctx, "Source returned a malformed period", "period", k, "error", err)
				return core.Fail[[]core.YearMonths](err)
			}
		}
		if s.caches != nil {
			stored := slices.Clone(keys)
			s.caches.storeIf("", gen, func() { s.caches.Months.Set(monthsKey, stored) })
		}
	}

	if opts.ExcludeCurrent {
		current := s.CurrentPeriod()
		filtered := make([]period.Key, 0, len(keys))
		for _, k := range keys {
			if k != current {
				filtered = append(filtered, k)
			}
		}
		keys = filtered
	}
	return core.Succeed(aggregate.GroupMonthsByYear(keys))
}

// WatchPeriodSummary emits Loading, then the terminal state, then closes.
func (s *FinanceService) WatchPeriodSummary(ctx context.Context, key period.Key) <-chan core.State[core.PeriodSummary] {
	return watch(func() core.State[core.PeriodSummary] { return s.GetPeriodSummary(ctx, key) })
}

func (s *FinanceService) WatchCategoryPeriodDetail(ctx context.Context, category core.Category, key period.Key) <-chan core.State[core.CategoryPeriodDetail] {
	return watch(func() core.State[core.CategoryPeriodDetail] { return s.GetCategoryPeriodDetail(ctx, category, key) })
}

func (s *FinanceService) WatchIncomePeriodDetail(ctx context.Context, key period.Key) <-chan core.State[core.CategoryPeriodDetail] {
	return watch(func() core.State[core.CategoryPeriodDetail] { return s.GetIncomePeriodDetail(ctx, key) })
}

func (s *FinanceService) WatchAvailableMonths(ctx context.Context, opts MonthsOptions) <-chan core.State[[]core.YearMonths] {
	return watch(func() core.State[[]core.YearMonths] { return s.GetAvailableMonths(ctx, opts) })
}

// watch runs query in a goroutine. The channel is buffered for both
// states so the goroutine never blocks on an abandoned consumer.
func watch[T any](query func() core.State[T]) <-chan core.State[T] {
	ch := make(chan core.State[T], 2)
	ch <- core.Loading[T]{}
	go func() {
		defer close(ch)
		ch <- query()
	}()
	return ch
}

func (s *FinanceService) sourceFailed(ctx context.Context, op string, key period.Key, err error) {
	s.metrics.IncrSourceError(op)
	slog.ErrorContext(ctx, "Record source failed", "operation", op, "period", key, "error", err)
}

func observe[T any](m *metrics.Metrics, query string, st core.State[T], start time.Time) {
	status := "success"
	if _, failed := st.(core.Failure[T]); failed {
		status = "error"
	}
	m.ObserveQuery(query, status, time.Since(start))
}
