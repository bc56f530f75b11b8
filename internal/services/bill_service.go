package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"budgetdash/internal/core"
	"budgetdash/internal/log"
	"budgetdash/internal/metrics"
	"budgetdash/internal/store"
)

// MarkPaidResult is the outcome of a completed payment.
type MarkPaidResult struct {
	Bill          core.Bill    `json:"-"`
	Expense       core.Expense `json:"-"`
	ExpenseID     string       `json:"expenseId"`
	Transactional bool         `json:"transactional"`
}

// BillService owns the bill lifecycle: creation and the pending to paid
// transition that records the matching expense.
type BillService struct {
	store   store.Store
	loc     *time.Location
	locks   *keyedMutex
	logger  *log.Logger
	slog    *log.StructuredLogger
	metrics *metrics.Metrics
}

// NewBillService reads stored dates without an offset in loc.
func NewBillService(st store.Store, loc *time.Location, logger *log.Logger, m *metrics.Metrics) *BillService {
	if logger == nil {
		logger = log.Discard()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &BillService{
		store:   st,
		loc:     loc,
		locks:   newKeyedMutex(),
		logger:  logger.WithComponent(log.ComponentBills),
		slog:    log.NewStructuredLogger(logger),
		metrics: m,
	}
}

// CreateBill validates b and stores it as pending.
func (s *BillService) CreateBill(ctx context.Context, b core.Bill) (core.Bill, error) {
	b.Status = core.BillPending
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	id, err := s.store.Insert(ctx, core.CollectionBills, core.BillFields(b))
	if err != nil {
		return core.Bill{}, fmt.Errorf("insert bill: %w", err)
	}
	b.ID = id
	s.logger.InfoContext(ctx, "Bill created",
		log.FieldBillID, id, log.FieldCategory, b.Category, log.FieldAmountCents, b.Amount.Cents)
	return b, nil
}

// GetBill reads and decodes one bill.
func (s *BillService) GetBill(ctx context.Context, id string) (core.Bill, error) {
	doc, err := s.store.Get(ctx, core.CollectionBills, id)
	if err != nil {
		return core.Bill{}, err
	}
	b, merr := core.DecodeBill(doc, s.loc)
	if merr != nil {
		return core.Bill{}, merr
	}
	return b, nil
}

// MarkPaidByID loads the bill and pays it.
func (s *BillService) MarkPaidByID(ctx context.Context, id string, now time.Time) (MarkPaidResult, error) {
	b, err := s.GetBill(ctx, id)
	if err != nil {
		return MarkPaidResult{}, fmt.Errorf("load bill %s: %w", id, err)
	}
	return s.MarkPaid(ctx, b, now)
}

// MarkPaid flips bill to paid and appends one expense attributed to it.
//
// Validation failures and already-paid bills are rejected before any write.
// Calls for the same bill are serialised. With a transactional store both
// writes commit together; otherwise the status is written first and a failed
// expense insert is returned as *core.PartialFailure.
func (s *BillService) MarkPaid(ctx context.Context, bill core.Bill, now time.Time) (MarkPaidResult, error) {
	if err := core.ValidateForPayment(bill); err != nil {
		s.observe(err)
		return MarkPaidResult{}, err
	}

	unlock := s.locks.Lock(bill.ID)
	defer unlock()

	expense := core.PaidExpense(bill, now)

	var res MarkPaidResult
	var err error
	if tr, ok := s.store.(store.Transactor); ok {
		res, err = s.payInTransaction(ctx, tr, bill, expense)
	} else {
		res, err = s.paySaga(ctx, bill, expense)
	}
	s.observe(err)
	if err != nil {
		s.logFailure(ctx, bill, err)
		return res, err
	}
	s.slog.LogBillPaid(ctx, bill.ID, bill.Category, bill.Amount.Cents, res.ExpenseID)
	return res, nil
}

func (s *BillService) payInTransaction(ctx context.Context, tr store.Transactor, bill core.Bill, expense core.Expense) (MarkPaidResult, error) {
	var expenseID string
	err := tr.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.Get(ctx, core.CollectionBills, bill.ID)
		if err != nil {
			return fmt.Errorf("read bill: %w", err)
		}
		if core.BillStatusOf(cur) == core.BillPaid {
			return core.ErrAlreadyPaid
		}
		if err := tx.Update(ctx, core.CollectionBills, bill.ID, statusPaid()); err != nil {
			return fmt.Errorf("update bill status: %w", err)
		}
		expenseID, err = tx.Insert(ctx, core.CollectionExpenses, core.ExpenseFields(expense))
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		return nil
	})
	if err != nil {
		return MarkPaidResult{}, err
	}
	return paidResult(bill, expense, expenseID, true), nil
}

func (s *BillService) paySaga(ctx context.Context, bill core.Bill, expense core.Expense) (MarkPaidResult, error) {
	cur, err := s.store.Get(ctx, core.CollectionBills, bill.ID)
	if err != nil {
		return MarkPaidResult{}, fmt.Errorf("read bill: %w", err)
	}
	if core.BillStatusOf(cur) == core.BillPaid {
		return MarkPaidResult{}, core.ErrAlreadyPaid
	}

	if err := s.store.Update(ctx, core.CollectionBills, bill.ID, statusPaid()); err != nil {
		return MarkPaidResult{}, fmt.Errorf("update bill status: %w", err)
	}

	expenseID, err := s.store.Insert(ctx, core.CollectionExpenses, core.ExpenseFields(expense))
	if err != nil {
		return MarkPaidResult{}, &core.PartialFailure{
			BillID:          bill.ID,
			StatusUpdated:   true,
			ExpenseInserted: false,
			Pending:         expense,
			Err:             err,
		}
	}
	return paidResult(bill, expense, expenseID, false), nil
}

// CompletePayment writes whichever half of pf is missing. It is safe to call
// more than once: an expense already recorded for the bill is not inserted
// again.
func (s *BillService) CompletePayment(ctx context.Context, pf *core.PartialFailure) (MarkPaidResult, error) {
	if pf == nil || strings.TrimSpace(pf.BillID) == "" {
		return MarkPaidResult{}, &core.ValidationError{Field: "billId", Reason: "is required"}
	}

	unlock := s.locks.Lock(pf.BillID)
	defer unlock()

	if !pf.StatusUpdated {
		if err := s.store.Update(ctx, core.CollectionBills, pf.BillID, statusPaid()); err != nil {
			return MarkPaidResult{}, fmt.Errorf("update bill status: %w", err)
		}
		pf.StatusUpdated = true
	}

	expense := pf.Pending
	expense.BillID = pf.BillID
	expenseID := ""
	if !pf.ExpenseInserted {
		existing, found, err := s.findPaymentExpense(ctx, pf.BillID)
		if err != nil {
			return MarkPaidResult{}, err
		}
		if found {
			expenseID = existing.ID
			expense = existing
		} else {
			expenseID, err = s.store.Insert(ctx, core.CollectionExpenses, core.ExpenseFields(expense))
			if err != nil {
				return MarkPaidResult{}, fmt.Errorf("insert expense: %w", err)
			}
		}
		pf.ExpenseInserted = true
	}

	s.metrics.Payment(metrics.PaymentCompleted)
	s.logger.InfoContext(ctx, "Payment completed",
		log.FieldBillID, pf.BillID, log.FieldExpenseID, expenseID, log.FieldOperation, log.OpComplete)

	bill, err := s.GetBill(ctx, pf.BillID)
	if err != nil {
		bill = core.Bill{ID: pf.BillID, Status: core.BillPaid}
	}
	return paidResult(bill, expense, expenseID, false), nil
}

// findPaymentExpense looks for the expense produced by paying billID.
func (s *BillService) findPaymentExpense(ctx context.Context, billID string) (core.Expense, bool, error) {
	docs, err := s.store.Snapshot(ctx, core.CollectionExpenses)
	if err != nil {
		return core.Expense{}, false, fmt.Errorf("read expenses: %w", err)
	}
	for _, d := range docs {
		if d.Fields["billId"] != billID {
			continue
		}
		e, merr := core.DecodeExpense(d, s.loc)
		if merr != nil {
			return core.Expense{ID: d.ID, BillID: billID}, true, nil
		}
		return e, true, nil
	}
	return core.Expense{}, false, nil
}

func (s *BillService) observe(err error) {
	var pf *core.PartialFailure
	switch {
	case err == nil:
		s.metrics.Payment(metrics.PaymentPaid)
	case errors.Is(err, core.ErrAlreadyPaid):
		s.metrics.Payment(metrics.PaymentAlreadyPaid)
	case core.IsValidation(err):
		s.metrics.Payment(metrics.PaymentInvalid)
	case errors.As(err, &pf):
		s.metrics.Payment(metrics.PaymentPartial)
	default:
		s.metrics.Payment(metrics.PaymentFailed)
	}
}

func (s *BillService) logFailure(ctx context.Context, bill core.Bill, err error) {
	fields := log.NewFields().WithBill(bill.ID, bill.Category, bill.Amount.Cents)
	var pf *core.PartialFailure
	switch {
	case errors.Is(err, core.ErrAlreadyPaid):
		s.logger.InfoContext(ctx, "Bill already paid", log.FieldBillID, bill.ID)
		return
	case errors.As(err, &pf):
		fields.WithErrorType(log.ErrorTypePartial)
	case errors.Is(err, core.ErrStoreUnavailable):
		fields.WithErrorType(log.ErrorTypeDatabase)
	case errors.Is(err, store.ErrNotFound):
		fields.WithErrorType(log.ErrorTypeNotFound)
	}
	s.slog.LogError(ctx, "Bill payment failed", err, log.ComponentBills, log.OpPay, fields)
}

func statusPaid() map[string]any {
	return map[string]any{"status": string(core.BillPaid)}
}

func paidResult(bill core.Bill, expense core.Expense, expenseID string, tx bool) MarkPaidResult {
	bill.Status = core.BillPaid
	expense.ID = expenseID
	return MarkPaidResult{Bill: bill, Expense: expense, ExpenseID: expenseID, Transactional: tx}
}
