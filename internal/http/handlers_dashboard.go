package http

import (
	"net/http"
	"strings"

	"budgetdash/internal/core"
)

type monthExpensesResponse struct {
	Month      core.YearMonth        `json:"month"`
	Total      core.Money            `json:"total"`
	ByCategory []core.CategoryAmount `json:"byCategory"`
	Expenses   []core.Expense        `json:"expenses"`
	Version    uint64                `json:"version"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.View.Summary(s.now()))
}

func (s *Server) handleBudgetComparison(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.View.Budgets(s.now()))
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.View.Bills(s.now()))
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets := s.deps.View.Inputs().Budgets
	if budgets == nil {
		budgets = []core.Budget{}
	}
	writeJSON(w, http.StatusOK, budgets)
}

// handleMonthExpenses lists the expenses of ?month=YYYY-MM, the current
// month by default.
func (s *Server) handleMonthExpenses(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	ym := core.YearMonth{Year: now.Year(), Month: now.Month()}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		parsed, err := core.ParseYearMonth(v)
		if err != nil {
			writeError(w, r, &core.ValidationError{Field: "month", Reason: "must be YYYY-MM"})
			return
		}
		ym = parsed
	}

	ov := s.deps.View.ExpensesInMonth(ym, s.deps.Location)
	resp := monthExpensesResponse{
		Month:      ym,
		Total:      ov.Total,
		ByCategory: ov.ByCategory,
		Expenses:   ov.Expenses,
		Version:    s.deps.View.Inputs().Version,
	}
	if resp.Expenses == nil {
		resp.Expenses = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, resp)
}
