package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"budgetdash/internal/core"
)

const maxBodyBytes = 1 << 20

// decodeFields reads a JSON object body into a document field map. Numbers
// stay json.Number so amounts are parsed exactly by core.
func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &core.ValidationError{Field: "body", Reason: "is required"}
		}
		return nil, &core.ValidationError{Field: "body", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if fields == nil {
		return nil, &core.ValidationError{Field: "body", Reason: "must be a JSON object"}
	}
	for k, v := range fields {
		if s, ok := v.(string); ok {
			fields[k] = sanitizeInput(s)
		}
	}
	return fields, nil
}

// invalidField turns a decode failure of request input into a validation
// error for the same field.
func invalidField(m *core.MalformedRecordError) error {
	return &core.ValidationError{Field: m.Field, Reason: m.Err.Error()}
}

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
