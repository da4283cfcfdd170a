// Package apperr defines the error kinds the dispatch core reports to callers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindInvalidTransition   Kind = "invalid_transition"
	KindResourceUnavailable Kind = "resource_unavailable"
	KindDuplicateKey        Kind = "duplicate_key"
	KindValidation          Kind = "validation_error"
)

// Error is a structured domain error. Field is set for duplicate-key and
// validation errors.
type Error struct {
	Kind  Kind
	Msg   string
	Field string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Msg, e.Field)
	}
	return e.Msg
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Duplicate(field string) *Error {
	return &Error{Kind: KindDuplicateKey, Msg: "duplicate value", Field: field}
}

func Invalid(field, msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg, Field: field}
}

// KindOf returns the kind of the first *Error in err's chain, or "" for
// errors that did not originate in the domain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
