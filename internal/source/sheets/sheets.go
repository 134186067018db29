// Package sheets is a record source backed by a Google Sheets spreadsheet:
// one sheet of expenses and one of income, one record per row.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"saldo/internal/core"
	"saldo/internal/period"
	"saldo/internal/source"
)

var _ source.RecordSource = (*Client)(nil)

// Options configure a Client.
type Options struct {
	SpreadsheetID string
	ExpensesSheet string
	IncomeSheet   string
	Location      *time.Location
}

// valuesAPI is the subset of the Sheets values API the client uses.
type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	Append(ctx context.Context, spreadsheetID, rng string, rows [][]any) error
	Update(ctx context.Context, spreadsheetID, rng string, rows [][]any) error
	Clear(ctx context.Context, spreadsheetID, rng string) error
}

type Client struct {
	values        valuesAPI
	spreadsheetID string
	expensesSheet string
	incomeSheet   string
	loc           *time.Location
}

// New creates a client authenticated with service account credentials
// from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, opts Options) (*Client, error) {
	creds, err := credentialsFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, opts,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// NewWithOptions creates a client with explicit API client options.
func NewWithOptions(ctx context.Context, opts Options, clientOpts ...goption.ClientOption) (*Client, error) {
	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newClient(serviceValues{svc: svc}, opts)
}

func newClient(values valuesAPI, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if opts.ExpensesSheet == "" {
		opts.ExpensesSheet = "Expenses"
	}
	if opts.IncomeSheet == "" {
		opts.IncomeSheet = "Income"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Client{
		values:        values,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		expensesSheet: opts.ExpensesSheet,
		incomeSheet:   opts.IncomeSheet,
		loc:           opts.Location,
	}, nil
}

func credentialsFromEnv(ctx context.Context) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func (c *Client) FetchExpenses(ctx context.Context, key period.Key) ([]core.Record, error) {
	return c.fetch(ctx, core.Expense, key, "")
}

func (c *Client) FetchIncome(ctx context.Context, key period.Key) ([]core.Record, error) {
	return c.fetch(ctx, core.Income, key, "")
}

func (c *Client) FetchByCategory(ctx context.Context, category core.Category, key period.Key) ([]core.Record, error) {
	return c.fetch(ctx, category.Kind(), key, category)
}

// FetchAllPeriods scans both sheets. Most recent period first.
func (c *Client) FetchAllPeriods(ctx context.Context) ([]period.Key, error) {
	seen := map[period.Key]int{}
	for _, kind := range []core.Kind{core.Expense, core.Income} {
		rows, err := c.rows(ctx, kind)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			t := row.Record.OccurredAt(c.loc)
			seen[period.FromTime(t)] = t.Year()*100 + int(t.Month())
		}
	}
	keys := make([]period.Key, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return seen[keys[i]] > seen[keys[j]] })
	return keys, nil
}

// CreateRecord appends a row with a fresh id.
func (c *Client) CreateRecord(ctx context.Context, kind core.Kind, r core.Record) (string, error) {
	sheet, err := c.sheetFor(kind)
	if err != nil {
		return "", err
	}
	r.ID = uuid.NewString()
	rng := fmt.Sprintf("%s!A:%s", sheet, lastColumn())
	if err := c.values.Append(ctx, c.spreadsheetID, rng, [][]any{formatRow(r, c.loc)}); err != nil {
		return "", fmt.Errorf("append to %s: %w", sheet, err)
	}
	slog.InfoContext(ctx, "Record appended to sheet", "sheet", sheet, "id", r.ID)
	return r.ID, nil
}

// EditRecord rewrites the row holding r.ID.
func (c *Client) EditRecord(ctx context.Context, kind core.Kind, r core.Record) error {
	if r.ID == "" {
		return core.ErrEmptyID
	}
	rowNum, sheet, err := c.locate(ctx, kind, r.ID)
	if err != nil {
		return err
	}
	rng := rowRange(sheet, rowNum)
	if err := c.values.Update(ctx, c.spreadsheetID, rng, [][]any{formatRow(r, c.loc)}); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// DeleteRecord blanks the row holding id. Blank rows are skipped on read.
func (c *Client) DeleteRecord(ctx context.Context, kind core.Kind, id string, _ period.Key) error {
	if id == "" {
		return core.ErrEmptyID
	}
	rowNum, sheet, err := c.locate(ctx, kind, id)
	if err != nil {
		return err
	}
	rng := rowRange(sheet, rowNum)
	if err := c.values.Clear(ctx, c.spreadsheetID, rng); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	slog.InfoContext(ctx, "Record cleared from sheet", "sheet", sheet, "id", id, "row", rowNum)
	return nil
}

func (c *Client) fetch(ctx context.Context, kind core.Kind, key period.Key, category core.Category) ([]core.Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	rows, err := c.rows(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := []core.Record{}
	for _, row := range rows {
		if period.FromMillis(row.Record.OccurredAtMillis, c.loc) != key {
			continue
		}
		if category != "" {
			if cat, err := core.ParseCategory(row.Record.Category); err != nil || cat != category {
				continue
			}
		}
		out = append(out, row.Record)
	}
	return out, nil
}

func (c *Client) rows(ctx context.Context, kind core.Kind) ([]sheetRow, error) {
	sheet, err := c.sheetFor(kind)
	if err != nil {
		return nil, err
	}
	rng := fmt.Sprintf("%s!A:%s", sheet, lastColumn())
	values, err := c.values.Get(ctx, c.spreadsheetID, rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	rows, err := parseRows(values, c.loc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", sheet, err)
	}
	return rows, nil
}

func (c *Client) locate(ctx context.Context, kind core.Kind, id string) (int, string, error) {
	rows, err := c.rows(ctx, kind)
	if err != nil {
		return 0, "", err
	}
	sheet, _ := c.sheetFor(kind)
	for _, row := range rows {
		if row.Record.ID == id {
			return row.Number, sheet, nil
		}
	}
	return 0, "", fmt.Errorf("%s %s: %w", kind, id, source.ErrNotFound)
}

func (c *Client) sheetFor(kind core.Kind) (string, error) {
	switch kind {
	case core.Expense:
		return c.expensesSheet, nil
	case core.Income:
		return c.incomeSheet, nil
	default:
		return "", kind.Validate()
	}
}

func lastColumn() string {
	return string(rune('A' + numCols - 1))
}

func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", sheet, row, lastColumn(), row)
}

// valueInputOption stores cells exactly as formatRow renders them. Sheets
// must not parse notes as formulas or reformat dates by locale.
const valueInputOption = "RAW"

// serviceValues adapts the generated Sheets client to valuesAPI.
type serviceValues struct {
	svc *gsheet.Service
}

func (s serviceValues) Get(ctx context.Context, id, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(id, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s serviceValues) Append(ctx context.Context, id, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Append(id, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return err
}

func (s serviceValues) Update(ctx context.Context, id, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Update(id, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption(valueInputOption).
		Context(ctx).Do()
	return err
}

func (s serviceValues) Clear(ctx context.Context, id, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(id, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// HeaderRow returns the header expected in row 1 of each sheet.
func HeaderRow() []any {
	return append([]any(nil), header...)
}
