package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"budgetdash/internal/core"
	"budgetdash/internal/log"
	"budgetdash/internal/store"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// partialFailureBody reports a half-completed bill payment. Pending is the
// expense still to be recorded through the complete endpoint.
type partialFailureBody struct {
	Error           string       `json:"error"`
	Message         string       `json:"message"`
	BillID          string       `json:"billId"`
	StatusUpdated   bool         `json:"statusUpdated"`
	ExpenseInserted bool         `json:"expenseInserted"`
	Pending         core.Expense `json:"pending"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes:
// validation 422, already paid 409, partial failure 207, not found 404,
// store unavailable 503, anything else 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	var (
		ve *core.ValidationError
		me *core.MalformedRecordError
		pf *core.PartialFailure
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation", Message: ve.Error(), Field: ve.Field})
	case errors.As(err, &pf):
		logger.WarnContext(ctx, "Partial failure", log.FieldBillID, pf.BillID, log.FieldError, err,
			log.FieldErrorType, log.ErrorTypePartial)
		writeJSON(w, http.StatusMultiStatus, partialFailureBody{
			Error:           "partial_failure",
			Message:         pf.Error(),
			BillID:          pf.BillID,
			StatusUpdated:   pf.StatusUpdated,
			ExpenseInserted: pf.ExpenseInserted,
			Pending:         pf.Pending,
		})
	case errors.Is(err, core.ErrAlreadyPaid):
		writeJSON(w, http.StatusConflict, errorBody{Error: "already_paid", Message: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: err.Error()})
	case errors.As(err, &me):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "malformed_record", Message: me.Error(), Field: me.Field})
	case errors.Is(err, core.ErrStoreUnavailable):
		logger.ErrorContext(ctx, "Record store unavailable", log.FieldError, err, log.FieldErrorType, log.ErrorTypeDatabase)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "store_unavailable", Message: "record store unavailable, retry later"})
	default:
		logger.ErrorContext(ctx, "Request failed", log.FieldError, err, log.FieldErrorType, log.ErrorTypeInternal)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal error"})
	}
}
