package http

import (
	"net/http"

	"budgetdash/internal/core"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Payments are recorded through the bill endpoints only.
	delete(fields, "billId")

	e, merr := core.DecodeExpense(core.Document{Fields: fields}, s.deps.Location)
	if merr != nil {
		writeError(w, r, invalidField(merr))
		return
	}
	created, err := s.deps.Expenses.CreateExpense(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
