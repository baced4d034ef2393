// Package apperr defines the discriminated error kinds returned by the
// domain services. Callers switch on Kind to decide how to react and read
// Code to learn which rule was violated.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error by how the caller should react to it.
type Kind string

const (
	// KindValidation means the input was structurally invalid. Recoverable by fixing input.
	KindValidation Kind = "VALIDATION_ERROR"

	// KindNotFound means the entity or a parent does not exist or is not visible.
	KindNotFound Kind = "NOT_FOUND"

	// KindPermissionDenied means the principal lacks the required capability.
	KindPermissionDenied Kind = "PERMISSION_DENIED"

	// KindConflict means the request is valid but forbidden by current state.
	KindConflict Kind = "CONFLICT"

	// KindStorage means the storage collaborator failed. Retryable.
	KindStorage Kind = "STORAGE_ERROR"
)

// Code names the specific rule behind an error.
type Code string

const (
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeForbidden           Code = "FORBIDDEN"
	CodeArchived            Code = "ARCHIVED"
	CodeNotArchived         Code = "NOT_ARCHIVED"
	CodeParentArchived      Code = "PARENT_ARCHIVED"
	CodeHasDescendants      Code = "HAS_DESCENDANTS"
	CodeHasSubtasks         Code = "HAS_SUBTASKS"
	CodeDuplicateMembership Code = "DUPLICATE_MEMBERSHIP"
	CodeOwnerImmutable      Code = "OWNER_IMMUTABLE"
	CodeDuplicateName       Code = "DUPLICATE_NAME"
	CodeDuplicateEmail      Code = "DUPLICATE_EMAIL"
	CodeSelfDependency      Code = "SELF_DEPENDENCY"
	CodeWIPLimitReached     Code = "WIP_LIMIT_REACHED"
	CodeAlreadyAssigned     Code = "ALREADY_ASSIGNED"
	CodeNotAssigned         Code = "NOT_ASSIGNED"
	CodeNotAMember          Code = "NOT_A_MEMBER"
	CodeOwnsProjects        Code = "OWNS_PROJECTS"
	CodeCrossProject        Code = "CROSS_PROJECT"
	CodeFeatureDisabled     Code = "FEATURE_DISABLED"
	CodeStorage             Code = "DATABASE_ERROR"
)

// Field is a single field-level violation carried by validation errors.
type Field struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error is the error type returned by every domain service method.
type Error struct {
	Kind    Kind    `json:"kind"`
	Code    Code    `json:"code"`
	Message string  `json:"message"`
	Fields  []Field `json:"fields,omitempty"`
	Err     error   `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(string(e.Kind)))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Field+" "+f.Message)
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind and, when the
// target carries one, the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Validation returns a validation error carrying field violations.
func Validation(fields ...Field) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidInput,
		Message: "validation failed",
		Fields:  fields,
	}
}

// NotFound returns a not-found error for the given entity and id.
func NotFound(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
}

// PermissionDenied returns an error naming the action the principal may not perform.
func PermissionDenied(action string) *Error {
	return &Error{
		Kind:    KindPermissionDenied,
		Code:    CodeForbidden,
		Message: fmt.Sprintf("not allowed to %s", action),
	}
}

// Conflict returns an error naming the violated state rule.
func Conflict(code Code, format string, args ...any) *Error {
	return &Error{
		Kind:    KindConflict,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Storage wraps a storage failure that occurred during op.
func Storage(op string, err error) *Error {
	return &Error{
		Kind:    KindStorage,
		Code:    CodeStorage,
		Message: op,
		Err:     err,
	}
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the Code of err, or "" when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsValidation(err error) bool       { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool         { return KindOf(err) == KindNotFound }
func IsPermissionDenied(err error) bool { return KindOf(err) == KindPermissionDenied }
func IsConflict(err error) bool         { return KindOf(err) == KindConflict }
func IsStorage(err error) bool          { return KindOf(err) == KindStorage }
