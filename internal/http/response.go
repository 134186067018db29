package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"saldo/internal/core"
	"saldo/internal/period"
	"saldo/internal/services"
	"saldo/internal/source"
)

const dateLayout = "2006-01-02"

type errorResponse struct {
	Error string `json:"error"`
}

type money struct {
	Cents   int64  `json:"cents"`
	Display string `json:"display"`
}

func newMoney(cents int64) money {
	return money{Cents: cents, Display: core.FormatCents(cents)}
}

type categorySummaryJSON struct {
	Category   string `json:"category"`
	Name       string `json:"name"`
	Total      money  `json:"total"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

type dayJSON struct {
	Date   string `json:"date"`
	Amount int64  `json:"amount"`
}

type periodSummaryJSON struct {
	Period            string                `json:"period"`
	Label             string                `json:"label"`
	TotalExpense      money                 `json:"total_expense"`
	ExpenseByCategory []categorySummaryJSON `json:"expense_by_category"`
	TotalIncome       money                 `json:"total_income"`
	IncomeByCategory  []categorySummaryJSON `json:"income_by_category"`
	MonthExpense      struct {
		IncomeTotal            float64 `json:"income_total"`
		ExpensePercentOfIncome int     `json:"expense_percent_of_income"`
	} `json:"month_expense"`
	DailyExpense []dayJSON `json:"daily_expense"`
}

type recordJSON struct {
	ID          string `json:"id"`
	Amount      money  `json:"amount"`
	Category    string `json:"category"`
	Note        string `json:"note"`
	OccurredAt  string `json:"occurred_at"`
	Date        string `json:"date"`
	DisplayDate string `json:"display_date"`
}

type categoryDetailJSON struct {
	Period      string       `json:"period"`
	Label       string       `json:"label"`
	PeriodTotal money        `json:"period_total"`
	Records     []recordJSON `json:"records"`
	DailySeries []dayJSON    `json:"daily_series"`
}

type periodJSON struct {
	Period string `json:"period"`
	Label  string `json:"label"`
}

type yearMonthsJSON struct {
	Year    int          `json:"year"`
	Periods []periodJSON `json:"periods"`
}

func toCategories(in []core.CategorySummary) []categorySummaryJSON {
	out := make([]categorySummaryJSON, 0, len(in))
	for _, c := range in {
		out = append(out, categorySummaryJSON{
			Category:   string(c.Category),
			Name:       c.Category.Name(),
			Total:      newMoney(c.TotalAmount),
			Count:      c.Count,
			Percentage: c.Percentage,
		})
	}
	return out
}

func toDays(in core.DailySeries) []dayJSON {
	out := make([]dayJSON, 0, len(in))
	for _, d := range in {
		out = append(out, dayJSON{Date: d.Date.Format(dateLayout), Amount: d.Amount})
	}
	return out
}

func toPeriodSummary(s core.PeriodSummary) periodSummaryJSON {
	out := periodSummaryJSON{
		Period:            string(s.Period),
		Label:             s.Label,
		TotalExpense:      newMoney(s.TotalExpense),
		ExpenseByCategory: toCategories(s.ExpenseByCategory),
		TotalIncome:       newMoney(s.TotalIncome),
		IncomeByCategory:  toCategories(s.IncomeByCategory),
		DailyExpense:      toDays(s.DailyExpense),
	}
	out.MonthExpense.IncomeTotal = s.MonthExpense.IncomeTotal
	out.MonthExpense.ExpensePercentOfIncome = s.MonthExpense.ExpensePercentOfIncome
	return out
}

func toCategoryDetail(d core.CategoryPeriodDetail, loc *time.Location) categoryDetailJSON {
	records := make([]recordJSON, 0, len(d.Records))
	for _, r := range d.Records {
		records = append(records, recordJSON{
			ID:          r.ID,
			Amount:      newMoney(r.Amount),
			Category:    r.Category,
			Note:        r.Note,
			OccurredAt:  r.OccurredAt(loc).Format(time.RFC3339),
			Date:        r.Date.Format(dateLayout),
			DisplayDate: r.DisplayDate,
		})
	}
	return categoryDetailJSON{
		Period:      string(d.Period),
		Label:       d.Period.Label(),
		PeriodTotal: newMoney(d.PeriodTotal),
		Records:     records,
		DailySeries: toDays(d.DailySeries),
	}
}

func toYearMonths(in []core.YearMonths) []yearMonthsJSON {
	out := make([]yearMonthsJSON, 0, len(in))
	for _, y := range in {
		periods := make([]periodJSON, 0, len(y.Periods))
		for _, k := range y.Periods {
			periods = append(periods, periodJSON{Period: string(k), Label: k.Label()})
		}
		out = append(out, yearMonthsJSON{Year: y.Year, Periods: periods})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeErr maps err to a status and writes its message verbatim.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

// writeState writes a terminal query state. Loading is never terminal, so
// seeing it here is a server bug.
func writeState[T any](w http.ResponseWriter, r *http.Request, st core.State[T], render func(T) any) {
	core.Match(st,
		func() struct{} {
			writeErr(w, r, core.ErrStillLoading)
			return struct{}{}
		},
		func(v T) struct{} {
			writeJSON(w, http.StatusOK, render(v))
			return struct{}{}
		},
		func(f core.Failure[T]) struct{} {
			status := statusFor(f.Err)
			if status >= 500 {
				slog.ErrorContext(r.Context(), "Query failed", "path", r.URL.Path, "status", status, "error", f.Err)
			}
			writeError(w, status, f.Message)
			return struct{}{}
		},
	)
}

var errBadRequest = errors.New("bad request")

// statusFor maps an error chain to the HTTP status of the response.
func statusFor(err error) int {
	switch {
	case errors.Is(err, period.ErrMalformedKey),
		errors.Is(err, period.ErrInvalidPeriod),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errNotRoutable),
		errors.Is(err, source.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidRecord):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrUnknownCategory),
		errors.Is(err, core.ErrStillLoading):
		return http.StatusInternalServerError
	case errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
