// Package sheets writes dashboard exports to a Google Sheets spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budgetdash/internal/core"
	"budgetdash/internal/export"
	"budgetdash/internal/log"
)

// Credentials selects the service account used for the Sheets API.
type Credentials struct {
	JSON string
	File string
}

// Load returns the credential bytes, preferring inline JSON, then the file,
// then GOOGLE_APPLICATION_CREDENTIALS.
func (c Credentials) Load() ([]byte, error) {
	if s := strings.TrimSpace(c.JSON); s != "" {
		return []byte(s), nil
	}
	path := strings.TrimSpace(c.File)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// NewService creates a Sheets service authenticated with a service account.
// When opts are given they are used instead of the credentials.
func NewService(ctx context.Context, creds Credentials, opts ...goption.ClientOption) (*gsheet.Service, error) {
	if len(opts) > 0 {
		return gsheet.NewService(ctx, opts...)
	}
	b, err := creds.Load()
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(b),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// Writer replaces the contents of one tab per year with the latest report.
type Writer struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *log.Logger
}

var _ export.Sink = (*Writer)(nil)

func NewWriter(svc *gsheet.Service, spreadsheetID, sheetBase string, logger *log.Logger) (*Writer, error) {
	if svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if strings.TrimSpace(sheetBase) == "" {
		sheetBase = "Dashboard"
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Writer{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
		logger:        logger.WithComponent(log.ComponentExport),
	}, nil
}

// Publish clears the year's tab and writes the report rows from A1.
func (w *Writer) Publish(ctx context.Context, r export.Report) error {
	sheet := yearPrefixedName(w.sheetBase, r.Summary.AsOf.Year())
	clearRange := fmt.Sprintf("%s!A:Z", sheet)
	if _, err := w.svc.Spreadsheets.Values.Clear(w.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := Rows(r)
	rng := fmt.Sprintf("%s!A1", sheet)
	resp, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	w.logger.DebugContext(ctx, "Sheet updated", "sheet", sheet, "rows", len(rows), "updated_cells", resp.UpdatedCells)
	return nil
}

// Rows renders a report as sheet rows: totals, categories, the monthly
// series, budgets and upcoming bills, separated by blank rows.
func Rows(r export.Report) [][]any {
	s := r.Summary
	rows := [][]any{
		{"Dashboard", s.AsOf.Format(time.RFC3339)},
		{"Total to date", s.TotalToDate.Float()},
		{"Total today", s.TotalToday.Float()},
		{"Total " + core.YearMonth{Year: r.Month.Year, Month: time.Month(r.Month.Month)}.String(), r.Month.Total.Float()},
		{"Expenses", s.Count},
		{"Skipped records", s.Skipped},
		{},
		{"Category", "Spent"},
	}
	for _, c := range core.SortedCategories(s.ByCategory) {
		rows = append(rows, []any{c.Name, c.Amount.Float()})
	}

	rows = append(rows, []any{}, []any{"Month", "Spent"})
	for i, m := range s.Monthly {
		rows = append(rows, []any{time.Month(i + 1).String(), m.Float()})
	}

	rows = append(rows, []any{}, []any{"Last 7 days", "Spent"})
	for i, day := range core.WeekLabels(s.AsOf) {
		rows = append(rows, []any{day.Format("2006-01-02"), s.Weekly[i].Float()})
	}

	rows = append(rows, []any{}, []any{"Budget", "Allocated", "Spent", "Remaining", "% spent", "Over budget"})
	for _, c := range r.Budgets.Comparisons {
		rows = append(rows, []any{c.Category, c.Allocated.Float(), c.Spent.Float(), c.Remaining.Float(), c.PercentSpent, strconv.FormatBool(c.OverBudget)})
	}
	t := r.Budgets.Totals
	rows = append(rows, []any{"Total", t.Allocated.Float(), t.Spent.Float(), t.Remaining.Float()})

	rows = append(rows, []any{}, []any{"Upcoming bill", "Due", "Amount", "Category"})
	for _, b := range s.UpcomingBills {
		rows = append(rows, []any{b.Name, b.DueDate.Format("2006-01-02"), b.Amount.Float(), b.Category})
	}
	return rows
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a
// four-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if len(base) >= 5 && base[4] == ' ' {
		if y, err := strconv.Atoi(base[:4]); err == nil && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
