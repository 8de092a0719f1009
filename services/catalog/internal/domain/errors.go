package domain

import (
	"fmt"
	"strings"
)

// ValidationErrors collects rule violations per field plus a base bucket for
// record-level violations that belong to no single field.
type ValidationErrors struct {
	Fields map[string][]string `json:"fields,omitempty"`
	Base   []string            `json:"base,omitempty"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{Fields: make(map[string][]string)}
}

func (e *ValidationErrors) Add(field, msg string) {
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationErrors) AddBase(msg string) {
	e.Base = append(e.Base, msg)
}

func (e *ValidationErrors) Any() bool {
	return len(e.Fields) > 0 || len(e.Base) > 0
}

func (e *ValidationErrors) On(field string) []string {
	return e.Fields[field]
}

func (e *ValidationErrors) Error() string {
	var parts []string
	for field, msgs := range e.Fields {
		for _, msg := range msgs {
			parts = append(parts, fmt.Sprintf("%s %s", field, msg))
		}
	}
	parts = append(parts, e.Base...)
	return strings.Join(parts, ", ")
}
