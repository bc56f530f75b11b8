package services

import (
	"context"
	"fmt"
	"strings"

	"budgetdash/internal/core"
	"budgetdash/internal/log"
	"budgetdash/internal/store"
)

// BudgetService creates, updates and deletes budget allocations.
type BudgetService struct {
	store  store.Store
	logger *log.Logger
}

func NewBudgetService(st store.Store, logger *log.Logger) *BudgetService {
	if logger == nil {
		logger = log.Discard()
	}
	return &BudgetService{store: st, logger: logger.WithComponent(log.ComponentBudget)}
}

// SaveBudget inserts b when it has no id and replaces the stored fields
// otherwise. startDate after endDate is rejected before any write.
func (s *BudgetService) SaveBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.Category = strings.TrimSpace(b.Category)
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	if b.ID == "" {
		id, err := s.store.Insert(ctx, core.CollectionBudgets, core.BudgetFields(b))
		if err != nil {
			return core.Budget{}, fmt.Errorf("insert budget: %w", err)
		}
		b.ID = id
		s.logger.InfoContext(ctx, "Budget created", log.FieldDocumentID, id, log.FieldCategory, b.Category)
		return b, nil
	}

	if err := s.store.Update(ctx, core.CollectionBudgets, b.ID, core.BudgetFields(b)); err != nil {
		return core.Budget{}, fmt.Errorf("update budget %s: %w", b.ID, err)
	}
	s.logger.InfoContext(ctx, "Budget updated", log.FieldDocumentID, b.ID, log.FieldCategory, b.Category)
	return b, nil
}

func (s *BudgetService) DeleteBudget(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return &core.ValidationError{Field: "id", Reason: "is required"}
	}
	if err := s.store.Delete(ctx, core.CollectionBudgets, id); err != nil {
		return fmt.Errorf("delete budget %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Budget deleted", log.FieldDocumentID, id)
	return nil
}
