// Package aggregate turns raw record lists into the summaries shown to
// users: category breakdowns, month totals and per-day series.
//
// Everything here is pure computation over in-memory slices. An Engine is
// safe for concurrent use.
package aggregate

import (
	"fmt"
	"sort"
	"time"
	"unicode"
	"unicode/utf8"

	"saldo/internal/core"
	"saldo/internal/period"
)

// Engine computes summaries. The location decides which calendar day (and
// month) a timestamp belongs to; it must match the one used to assign
// records to periods.
type Engine struct {
	catalog core.Catalog
	loc     *time.Location
}

// New returns an Engine. Nil arguments fall back to the built-in catalog
// and the local time zone.
func New(catalog core.Catalog, loc *time.Location) *Engine {
	if catalog == nil {
		catalog = core.DefaultCatalog()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Engine{catalog: catalog, loc: loc}
}

// Location returns the calendar location used by e.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// SummarizePeriod builds the overview of one month from its expense and
// income records.
func (e *Engine) SummarizePeriod(expenses, income []core.Record, key period.Key) (core.PeriodSummary, error) {
	if err := key.Validate(); err != nil {
		return core.PeriodSummary{}, err
	}

	expenseTotal := sum(expenses)
	incomeTotal := sum(income)

	expenseGroups, err := e.group(expenses, expenseTotal)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("expenses: %w", err)
	}
	incomeGroups, err := e.group(income, incomeTotal)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("income: %w", err)
	}

	sort.SliceStable(expenseGroups, func(i, j int) bool {
		return expenseGroups[i].Percentage > expenseGroups[j].Percentage
	})
	sort.SliceStable(incomeGroups, func(i, j int) bool {
		return incomeGroups[i].TotalAmount > incomeGroups[j].TotalAmount
	})

	daily, err := e.DailySeries(expenses, key)
	if err != nil {
		return core.PeriodSummary{}, err
	}

	return core.PeriodSummary{
		Period:            key,
		Label:             key.Label(),
		TotalExpense:      expenseTotal,
		ExpenseByCategory: expenseGroups,
		TotalIncome:       incomeTotal,
		IncomeByCategory:  incomeGroups,
		MonthExpense:      monthExpense(expenseTotal, incomeTotal),
		DailyExpense:      daily,
	}, nil
}

// SummarizeCategoryPeriod builds the drill-down of a record list (usually
// one category) within a month.
func (e *Engine) SummarizeCategoryPeriod(records []core.Record, key period.Key) (core.CategoryPeriodDetail, error) {
	if err := key.Validate(); err != nil {
		return core.CategoryPeriodDetail{}, err
	}
	for _, r := range records {
		if _, err := e.catalog.Resolve(r.Category); err != nil {
			return core.CategoryPeriodDetail{}, err
		}
	}

	daily, err := e.DailySeries(records, key)
	if err != nil {
		return core.CategoryPeriodDetail{}, err
	}

	views := make([]core.RecordView, len(records))
	for i, r := range records {
		views[i] = e.decorate(r)
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].OccurredAtMillis > views[j].OccurredAtMillis
	})

	return core.CategoryPeriodDetail{
		Period:      key,
		PeriodTotal: sum(records),
		Records:     views,
		DailySeries: daily,
	}, nil
}

// DailySeries returns the amount recorded on every day of the month,
// zero-filled. Records outside the month are not counted.
func (e *Engine) DailySeries(records []core.Record, key period.Key) (core.DailySeries, error) {
	days, err := period.DaysOf(key, e.loc)
	if err != nil {
		return nil, err
	}
	recordDays := make([]time.Time, len(records))
	for i, r := range records {
		recordDays[i] = e.dayOf(r)
	}

	series := make(core.DailySeries, len(days))
	for i, day := range days {
		var amount int64
		for j, rd := range recordDays {
			if rd.Equal(day) {
				amount += records[j].Amount
			}
		}
		series[i] = core.DayAmount{Date: day, Amount: amount}
	}
	return series, nil
}

// GroupMonthsByYear groups period keys by year. Years keep the order in
// which they first appear; keys keep their input order within a year.
func GroupMonthsByYear(keys []period.Key) []core.YearMonths {
	var out []core.YearMonths
	index := map[int]int{}
	for _, k := range keys {
		y := k.Year()
		i, ok := index[y]
		if !ok {
			i = len(out)
			index[y] = i
			out = append(out, core.YearMonths{Year: y})
		}
		out[i].Periods = append(out[i].Periods, k)
	}
	return out
}

// group collapses records by category, in first-seen order.
func (e *Engine) group(records []core.Record, total int64) ([]core.CategorySummary, error) {
	var groups []core.CategorySummary
	index := map[core.Category]int{}
	for _, r := range records {
		d, err := e.catalog.Resolve(r.Category)
		if err != nil {
			return nil, err
		}
		i, ok := index[d.Category]
		if !ok {
			i = len(groups)
			index[d.Category] = i
			groups = append(groups, core.CategorySummary{Category: d.Category})
		}
		groups[i].TotalAmount += r.Amount
		groups[i].Count++
	}
	for i := range groups {
		groups[i].Percentage = percentage(groups[i].TotalAmount, total)
	}
	return groups, nil
}

func (e *Engine) dayOf(r core.Record) time.Time {
	t := r.OccurredAt(e.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, e.loc)
}

func (e *Engine) decorate(r core.Record) core.RecordView {
	day := e.dayOf(r)
	r.Note = capitalize(r.Note)
	return core.RecordView{
		Record:      r,
		Date:        day,
		DisplayDate: fmt.Sprintf("%02d %s %d", day.Day(), day.Month().String(), day.Year()),
	}
}

// percentage is round(part/total*100) with halves rounded up, 0 for an
// empty total. Integer arithmetic keeps it exact.
func percentage(part, total int64) int {
	if total <= 0 {
		return 0
	}
	return int((part*200 + total) / (2 * total))
}

// monthExpense relates spending to income. Zero income with any spending
// counts as fully spent (100).
func monthExpense(expenseTotal, incomeTotal int64) core.MonthExpense {
	pct := 100
	if incomeTotal != 0 {
		pct = int(expenseTotal * 100 / incomeTotal)
	}
	return core.MonthExpense{
		IncomeTotal:            core.MajorUnits(incomeTotal),
		ExpensePercentOfIncome: pct,
	}
}

func sum(records []core.Record) int64 {
	var total int64
	for _, r := range records {
		total += r.Amount
	}
	return total
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
