package docrequests

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound          = errors.New("document request not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrClientNotVerified = errors.New("client email not verified")
)

// ValidationError carries per-slot messages and an optional form-level message.
// It matches ErrInvalidInput.
type ValidationError struct {
	Fields map[string]string
	Form   string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields)+1)
	if e.Form != "" {
		parts = append(parts, e.Form)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid upload: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }
