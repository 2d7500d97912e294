package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrDuplicateUsername   = errors.New("this username is taken")
	ErrDuplicateEmail      = errors.New("this email is taken")
	ErrDuplicateStockName  = errors.New("this stock is already created")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrQuoteUnavailable    = errors.New("quote unavailable")
)

// ValidationError reports input that was rejected before any write was attempted.
// Fields maps the JSON field name to the rule it failed.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func newValidationError(field, rule string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: rule}}
}

// PersistenceError is returned when the store rejected a commit or a query failed.
// The session has already been rolled back when a commit fails.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// translateStoreError marks constraint failures reported by SQLite so callers
// can match them with errors.Is(err, ErrConstraintViolation).
func translateStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isConstraintMessage(err.Error()) {
		return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
	}
	return err
}

func isConstraintMessage(msg string) bool {
	msg = strings.ToUpper(msg)
	for _, marker := range []string{
		"UNIQUE CONSTRAINT FAILED",
		"FOREIGN KEY CONSTRAINT FAILED",
		"CHECK CONSTRAINT FAILED",
		"NOT NULL CONSTRAINT FAILED",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
