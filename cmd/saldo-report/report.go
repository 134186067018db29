package main

import (
	"saldo/internal/core"
)

type categoryLine struct {
	Category   string `json:"category"`
	Name       string `json:"name"`
	Total      string `json:"total"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

type summaryReport struct {
	Period                 string         `json:"period"`
	Label                  string         `json:"label"`
	TotalExpense           string         `json:"total_expense"`
	TotalIncome            string         `json:"total_income"`
	ExpensePercentOfIncome int            `json:"expense_percent_of_income"`
	Expenses               []categoryLine `json:"expenses"`
	Income                 []categoryLine `json:"income"`
}

type recordLine struct {
	Date   string `json:"date"`
	Amount string `json:"amount"`
	Note   string `json:"note,omitempty"`
}

type detailReport struct {
	Period  string       `json:"period"`
	Label   string       `json:"label"`
	Subject string       `json:"subject"`
	Total   string       `json:"total"`
	Records []recordLine `json:"records"`
}

func lines(in []core.CategorySummary) []categoryLine {
	out := make([]categoryLine, 0, len(in))
	for _, c := range in {
		out = append(out, categoryLine{
			Category:   string(c.Category),
			Name:       c.Category.Name(),
			Total:      core.FormatCents(c.TotalAmount),
			Count:      c.Count,
			Percentage: c.Percentage,
		})
	}
	return out
}

func newSummaryReport(s core.PeriodSummary) summaryReport {
	return summaryReport{
		Period:                 string(s.Period),
		Label:                  s.Label,
		TotalExpense:           core.FormatCents(s.TotalExpense),
		TotalIncome:            core.FormatCents(s.TotalIncome),
		ExpensePercentOfIncome: s.MonthExpense.ExpensePercentOfIncome,
		Expenses:               lines(s.ExpenseByCategory),
		Income:                 lines(s.IncomeByCategory),
	}
}

func newDetailReport(d core.CategoryPeriodDetail, subject string) detailReport {
	records := make([]recordLine, 0, len(d.Records))
	for _, r := range d.Records {
		records = append(records, recordLine{
			Date:   r.DisplayDate,
			Amount: core.FormatCents(r.Amount),
			Note:   r.Note,
		})
	}
	return detailReport{
		Period:  string(d.Period),
		Label:   d.Period.Label(),
		Subject: subject,
		Total:   core.FormatCents(d.PeriodTotal),
		Records: records,
	}
}
