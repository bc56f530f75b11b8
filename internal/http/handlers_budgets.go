package http

import (
	"net/http"

	"budgetdash/internal/core"
)

// handleSaveBudget creates a budget on POST and replaces one on PUT.
func (s *Server) handleSaveBudget(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, ok := fields["month"]; !ok {
		writeError(w, r, &core.ValidationError{Field: "month", Reason: "is required"})
		return
	}
	b, merr := core.DecodeBudget(core.Document{ID: r.PathValue("id"), Fields: fields}, s.deps.Location)
	if merr != nil {
		writeError(w, r, invalidField(merr))
		return
	}

	status := http.StatusCreated
	if b.ID != "" {
		status = http.StatusOK
	}
	saved, err := s.deps.Budgets.SaveBudget(r.Context(), b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, saved)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Budgets.DeleteBudget(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
