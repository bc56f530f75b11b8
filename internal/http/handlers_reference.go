package http

import (
	"net/http"

	"budgetdash/internal/core"
)

type referenceRecord struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

func (s *Server) handleListReferences(c core.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := s.deps.References.List(r.Context(), c)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]referenceRecord, 0, len(docs))
		for _, d := range docs {
			out = append(out, referenceRecord{ID: d.ID, Fields: d.Fields})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleSaveReference(c core.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := decodeFields(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		id := r.PathValue("id")
		doc, err := s.deps.References.SaveReference(r.Context(), c, id, fields)
		if err != nil {
			writeError(w, r, err)
			return
		}
		status := http.StatusCreated
		if id != "" {
			status = http.StatusOK
		}
		writeJSON(w, status, referenceRecord{ID: doc.ID, Fields: doc.Fields})
	}
}

func (s *Server) handleDeleteReference(c core.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.deps.References.DeleteReference(r.Context(), c, r.PathValue("id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
