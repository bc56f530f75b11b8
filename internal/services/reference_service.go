package services

import (
	"context"
	"fmt"
	"strings"

	"budgetdash/internal/core"
	"budgetdash/internal/log"
	"budgetdash/internal/store"
)

// ReferenceService manages employees, departments and positions. They are
// stored and listed but never aggregated.
type ReferenceService struct {
	store  store.Store
	logger *log.Logger
}

func NewReferenceService(st store.Store, logger *log.Logger) *ReferenceService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReferenceService{store: st, logger: logger.WithComponent(log.ComponentStorage)}
}

// List returns the documents of a reference collection.
func (s *ReferenceService) List(ctx context.Context, c core.Collection) ([]core.Document, error) {
	if !c.IsReference() {
		return nil, &core.ValidationError{Field: "collection", Reason: fmt.Sprintf("%q is not a reference collection", c)}
	}
	return s.store.Snapshot(ctx, c)
}

// SaveReference validates fields for c and inserts them, or merges them into
// the document with the given id.
func (s *ReferenceService) SaveReference(ctx context.Context, c core.Collection, id string, fields map[string]any) (core.Document, error) {
	clean, err := normaliseReference(c, fields)
	if err != nil {
		return core.Document{}, err
	}

	if id == "" {
		if id, err = s.store.Insert(ctx, c, clean); err != nil {
			return core.Document{}, fmt.Errorf("insert %s: %w", c, err)
		}
	} else if err := s.store.Update(ctx, c, id, clean); err != nil {
		return core.Document{}, fmt.Errorf("update %s/%s: %w", c, id, err)
	}

	s.logger.InfoContext(ctx, "Reference record saved", log.FieldCollection, c, log.FieldDocumentID, id)
	return core.Document{ID: id, Fields: clean}, nil
}

func (s *ReferenceService) DeleteReference(ctx context.Context, c core.Collection, id string) error {
	if !c.IsReference() {
		return &core.ValidationError{Field: "collection", Reason: fmt.Sprintf("%q is not a reference collection", c)}
	}
	if err := s.store.Delete(ctx, c, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", c, id, err)
	}
	s.logger.InfoContext(ctx, "Reference record deleted", log.FieldCollection, c, log.FieldDocumentID, id)
	return nil
}

func normaliseReference(c core.Collection, fields map[string]any) (map[string]any, error) {
	str := func(k string) string {
		v, _ := fields[k].(string)
		return strings.TrimSpace(v)
	}
	switch c {
	case core.CollectionEmployees:
		e, merr := core.DecodeEmployee(core.Document{Fields: fields})
		if merr != nil {
			return nil, &core.ValidationError{Field: merr.Field, Reason: merr.Err.Error()}
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		return core.EmployeeFields(e), nil
	case core.CollectionDepartments:
		d := core.Department{Name: str("name")}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		return map[string]any{"name": d.Name}, nil
	case core.CollectionPositions:
		p := core.Position{Title: str("title")}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return map[string]any{"title": p.Title}, nil
	default:
		return nil, &core.ValidationError{Field: "collection", Reason: fmt.Sprintf("%q is not a reference collection", c)}
	}
}
