package http

import (
	"net/http"

	"budgetdash/internal/core"
	"budgetdash/internal/services"
)

type payResponse struct {
	Bill          core.Bill    `json:"bill"`
	Expense       core.Expense `json:"expense"`
	ExpenseID     string       `json:"expenseId"`
	Transactional bool         `json:"transactional"`
}

func payResponseOf(res services.MarkPaidResult) payResponse {
	e := res.Expense
	e.ID = res.ExpenseID
	return payResponse{Bill: res.Bill, Expense: e, ExpenseID: res.ExpenseID, Transactional: res.Transactional}
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	bill, merr := core.DecodeBill(core.Document{Fields: fields}, s.deps.Location)
	if merr != nil {
		writeError(w, r, invalidField(merr))
		return
	}
	created, err := s.deps.Bills.CreateBill(r.Context(), bill)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := s.deps.Bills.GetBill(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// handlePayBill marks the stored bill paid and records its expense.
func (s *Server) handlePayBill(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Bills.MarkPaidByID(r.Context(), r.PathValue("id"), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payResponseOf(res))
}

// handleCompletePayment records the missing expense of a bill whose status
// was flipped by a payment that failed halfway. The body must carry the
// pending expense from the 207 response, so paid bills whose expense
// predates bill attribution are never charged twice. Repeating it is
// harmless.
func (s *Server) handleCompletePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bill, err := s.deps.Bills.GetBill(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !bill.IsPaid() {
		writeJSON(w, http.StatusConflict, errorBody{Error: "not_paid", Message: "bill is still pending; pay it instead"})
		return
	}
	pending, err := s.pendingExpense(w, r, bill.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Bills.CompletePayment(ctx, &core.PartialFailure{
		BillID:        bill.ID,
		StatusUpdated: true,
		Pending:       pending,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payResponseOf(res))
}

// pendingExpense reads the "pending" expense of a partial failure body.
func (s *Server) pendingExpense(w http.ResponseWriter, r *http.Request, billID string) (core.Expense, error) {
	fields, err := decodeFields(w, r)
	if err != nil {
		return core.Expense{}, err
	}
	raw, ok := fields["pending"].(map[string]any)
	if !ok {
		return core.Expense{}, &core.ValidationError{Field: "pending", Reason: "is required; send the pending expense of the partial failure"}
	}
	for k, v := range raw {
		if str, ok := v.(string); ok {
			raw[k] = sanitizeInput(str)
		}
	}
	e, merr := core.DecodeExpense(core.Document{Fields: raw}, s.deps.Location)
	if merr != nil {
		return core.Expense{}, &core.ValidationError{Field: "pending." + merr.Field, Reason: merr.Err.Error()}
	}
	if e.BillID != "" && e.BillID != billID {
		return core.Expense{}, &core.ValidationError{Field: "pending.billId", Reason: "does not match the bill"}
	}
	e.ID = ""
	e.BillID = billID
	return e, nil
}
