package core

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable marks failures to reach the backing record store.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrAlreadyPaid is returned when a paid bill is paid again.
	ErrAlreadyPaid = errors.New("bill already paid")
)

// ValidationError rejects a command before any write is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// MalformedRecordError describes a snapshot document excluded from derivation.
type MalformedRecordError struct {
	Collection Collection
	ID         string
	Field      string
	Err        error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s record %q: field %s: %v", e.Collection, e.ID, e.Field, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// PartialFailure reports that only one half of the bill payment pair was
// written. Pending carries the expense that still has to be inserted when
// StatusUpdated is true and ExpenseInserted is false.
type PartialFailure struct {
	BillID          string
	StatusUpdated   bool
	ExpenseInserted bool
	Pending         Expense
	Err             error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("partial failure paying bill %s (status updated: %t, expense inserted: %t): %v",
		e.BillID, e.StatusUpdated, e.ExpenseInserted, e.Err)
}

func (e *PartialFailure) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsPartialFailure extracts a PartialFailure from err.
func AsPartialFailure(err error) (*PartialFailure, bool) {
	var pf *PartialFailure
	if errors.As(err, &pf) {
		return pf, true
	}
	return nil, false
}
