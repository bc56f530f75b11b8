package services

import (
	"context"
	"fmt"
	"strings"

	"budgetdash/internal/core"
	"budgetdash/internal/log"
	"budgetdash/internal/store"
)

// ExpenseService records expenses entered directly by users.
type ExpenseService struct {
	store  store.Store
	logger *log.Logger
}

func NewExpenseService(st store.Store, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExpenseService{store: st, logger: logger.WithComponent(log.ComponentExpense)}
}

// CreateExpense validates e and inserts it. An empty payment method falls
// back to the default used for paid bills.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.Category = strings.TrimSpace(e.Category)
	e.Description = strings.TrimSpace(e.Description)
	if e.PaymentMethod == "" {
		e.PaymentMethod = core.DefaultPaymentMethod
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	id, err := s.store.Insert(ctx, core.CollectionExpenses, core.ExpenseFields(e))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	e.ID = id

	s.logger.InfoContext(ctx, "Expense created",
		log.FieldExpenseID, id,
		log.FieldCategory, e.Category,
		log.FieldAmountCents, e.Amount.Cents)
	return e, nil
}
