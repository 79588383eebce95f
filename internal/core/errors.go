package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error unwraps to exactly one of these, so callers
// branch with errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrBusinessRule = errors.New("business rule violation")
)

// Business rule identifiers reported in Error.Rule.
const (
	RuleMinorIncome        = "minor_income_forbidden"
	RuleCategoryType       = "category_type_mismatch"
	RuleUniquePersonName   = "unique_person_name"
	RuleUniqueCategoryDesc = "unique_category_description"
)

// Error is a client-facing failure of a rule engine operation.
type Error struct {
	Kind    error
	Field   string
	Rule    string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func Validation(field, message string) error {
	return &Error{Kind: ErrValidation, Field: field, Message: message}
}

func Conflict(field, rule, message string) error {
	return &Error{Kind: ErrConflict, Field: field, Rule: rule, Message: message}
}

func NotFound(field, message string) error {
	return &Error{Kind: ErrNotFound, Field: field, Message: message}
}

func BusinessRule(rule, message string) error {
	return &Error{Kind: ErrBusinessRule, Rule: rule, Message: message}
}

// KindName returns a stable name for the kind of err, or "internal" for
// anything that is not a domain error.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBusinessRule):
		return "business_rule"
	default:
		return "internal"
	}
}
