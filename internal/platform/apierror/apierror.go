// Package apierror defines the error taxonomy shared by every store and the
// echo error handler that renders it.
package apierror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NonFieldErrors is the key for problems not tied to a single field.
const NonFieldErrors = "non_field_errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ValidationError collects messages per field. The zero value is not usable;
// call NewValidation.
type ValidationError struct {
	Fields     map[string][]string
	duplicates []*DuplicateError
}

func NewValidation() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

// Field returns a ValidationError holding a single message.
func Field(field, msg string) *ValidationError {
	v := NewValidation()
	v.Add(field, msg)
	return v
}

func (v *ValidationError) Add(field, msg string) {
	v.Fields[field] = append(v.Fields[field], msg)
}

// Has reports whether field already carries a message.
func (v *ValidationError) Has(field string) bool {
	return len(v.Fields[field]) > 0
}

func (v *ValidationError) AddDuplicate(d *DuplicateError) {
	v.duplicates = append(v.duplicates, d)
	v.Add(d.Field, d.Message())
}

// Merge folds another error's field messages into v. Errors that are not
// validation errors are returned unchanged so the caller can propagate them.
func (v *ValidationError) Merge(err error) error {
	if err == nil {
		return nil
	}
	var dup *DuplicateError
	if errors.As(err, &dup) {
		v.AddDuplicate(dup)
		return nil
	}
	var other *ValidationError
	if errors.As(err, &other) {
		for f, msgs := range other.Fields {
			v.Fields[f] = append(v.Fields[f], msgs...)
		}
		v.duplicates = append(v.duplicates, other.duplicates...)
		return nil
	}
	return err
}

// Err returns nil when nothing was collected. A lone uniqueness violation is
// returned as its DuplicateError so callers can match on it directly.
func (v *ValidationError) Err() error {
	if len(v.Fields) == 0 {
		return nil
	}
	if len(v.duplicates) == 1 && len(v.Fields) == 1 && len(v.Fields[v.duplicates[0].Field]) == 1 {
		return v.duplicates[0]
	}
	return v
}

func (v *ValidationError) Error() string {
	names := make([]string, 0, len(v.Fields))
	for f := range v.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, f := range names {
		parts = append(parts, f+": "+strings.Join(v.Fields[f], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// DuplicateError is a case-insensitive uniqueness violation on one field.
type DuplicateError struct {
	Kind  string
	Field string
	Value string
}

func (d *DuplicateError) Message() string {
	return fmt.Sprintf("%s with this %s already exists.", d.Kind, strings.ReplaceAll(d.Field, "_", " "))
}

func (d *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s %s %q", d.Kind, d.Field, d.Value)
}

// Unwrap exposes the duplicate as a ValidationError, which it specializes.
func (d *DuplicateError) Unwrap() error {
	return &ValidationError{Fields: map[string][]string{d.Field: {d.Message()}}}
}

// ParseError is a request body that is not valid JSON.
type ParseError struct {
	Err error
}

func (p *ParseError) Error() string {
	return "JSON parse error - " + p.Err.Error()
}

func (p *ParseError) Unwrap() error { return p.Err }

type detailError struct {
	kind   error
	detail string
}

func (d *detailError) Error() string { return d.detail }
func (d *detailError) Unwrap() error { return d.kind }

func Unauthorized(detail string) error {
	return &detailError{kind: ErrUnauthorized, detail: detail}
}

func Forbidden(detail string) error {
	return &detailError{kind: ErrForbidden, detail: detail}
}

// NotFound wraps ErrNotFound with the kind and id that failed to resolve.
func NotFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
}
