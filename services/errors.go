package services

import (
	"Gin_postgres_redis_loan_tracker/db"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned for overlaps and duplicates (HTTP 409).
	ErrConflict = errors.New("conflict")
	// ErrPrecondition is returned when the current state forbids the operation,
	// e.g. equipment not available or a loan already returned (HTTP 400).
	ErrPrecondition = errors.New("precondition failed")
	// ErrUnauthorized is returned for bad credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the actor may not perform the operation.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError captures field level validation issues.
type ValidationError struct {
	FieldErrors map[string]string
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

func (v *ValidationError) HasErrors() bool { return v != nil && len(v.FieldErrors) > 0 }

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// errOrNil keeps callers from returning a typed nil.
func (v *ValidationError) errOrNil() error {
	if v.HasErrors() {
		return v
	}
	return nil
}

func invalid(field, message string) error {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

// fromRepo maps repository sentinels onto the service taxonomy. what names the
// record for NotFound messages.
func fromRepo(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, db.ErrDuplicate):
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	case errors.Is(err, db.ErrReservationOverlap):
		return fmt.Errorf("%w: equipment is already reserved for the selected dates", ErrConflict)
	case errors.Is(err, db.ErrEquipmentUnavailable):
		return fmt.Errorf("%w: equipment is not available", ErrPrecondition)
	case errors.Is(err, db.ErrAlreadyReturned):
		return fmt.Errorf("%w: equipment already returned", ErrPrecondition)
	case errors.Is(err, db.ErrHasOpenLoans):
		return fmt.Errorf("%w: %s has active loans", ErrPrecondition, what)
	case errors.Is(err, db.ErrReferenced):
		return fmt.Errorf("%w: %s is referenced by loan history", ErrPrecondition, what)
	}
	return err
}

// ErrorKind maps errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrPrecondition):
		return "precondition"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	return "unexpected"
}
