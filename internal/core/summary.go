package core

import (
	"slices"
	"time"

	"saldo/internal/period"
)

// CategorySummary aggregates the records of one category within a period.
// Percentage is relative to the total of the record list the group came from.
type CategorySummary struct {
	Category    Category
	TotalAmount int64
	Count       int
	Percentage  int
}

// MonthExpense relates a month's spending to its income.
type MonthExpense struct {
	IncomeTotal            float64 // major units
	ExpensePercentOfIncome int
}

// PeriodSummary is the overview of a single month.
type PeriodSummary struct {
	Period            period.Key
	Label             string
	TotalExpense      int64
	ExpenseByCategory []CategorySummary
	TotalIncome       int64
	IncomeByCategory  []CategorySummary
	MonthExpense      MonthExpense
	DailyExpense      DailySeries
}

// DayAmount is the amount recorded on one calendar day.
type DayAmount struct {
	Date   time.Time
	Amount int64
}

// DailySeries holds one entry per calendar day of a period, in order,
// including days without activity.
type DailySeries []DayAmount

// Total sums the series.
func (s DailySeries) Total() int64 {
	var total int64
	for _, d := range s {
		total += d.Amount
	}
	return total
}

// On returns the amount recorded on day-of-month day.
func (s DailySeries) On(day int) (int64, bool) {
	if day < 1 || day > len(s) {
		return 0, false
	}
	return s[day-1].Amount, true
}

// RecordView is a Record decorated for display.
type RecordView struct {
	Record
	Date        time.Time // local midnight of the day the record occurred
	DisplayDate string    // "02 January 2006"
}

// CategoryPeriodDetail is the drill-down of one category (or one record
// list) within a period.
type CategoryPeriodDetail struct {
	Period      period.Key
	PeriodTotal int64
	Records     []RecordView
	DailySeries DailySeries
}

// YearMonths groups the known periods of one year.
type YearMonths struct {
	Year    int
	Periods []period.Key
}

// Clone returns a copy of s that shares no slices with it.
func (s PeriodSummary) Clone() PeriodSummary {
	s.ExpenseByCategory = slices.Clone(s.ExpenseByCategory)
	s.IncomeByCategory = slices.Clone(s.IncomeByCategory)
	s.DailyExpense = slices.Clone(s.DailyExpense)
	return s
}

// Clone returns a copy of d that shares no slices with it.
func (d CategoryPeriodDetail) Clone() CategoryPeriodDetail {
	d.Records = slices.Clone(d.Records)
	d.DailySeries = slices.Clone(d.DailySeries)
	return d
}
