// Package validation performs structural checks on service payloads.
//
// Checks never touch storage: they cover types, required-ness, lengths,
// numeric ranges, enum membership and identifier format. Every check returns a
// Result instead of an error so callers can collect all violations at once.
package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"workboard/internal/apperr"
	"workboard/internal/models"
)

// Code identifies the kind of field violation.
type Code string

const (
	CodeRequired     Code = "REQUIRED"
	CodeTooShort     Code = "TOO_SHORT"
	CodeTooLong      Code = "TOO_LONG"
	CodeTooFew       Code = "TOO_FEW_ITEMS"
	CodeTooMany      Code = "TOO_MANY_ITEMS"
	CodeOutOfRange   Code = "OUT_OF_RANGE"
	CodeInvalidEnum  Code = "INVALID_ENUM"
	CodeInvalidID    Code = "INVALID_ID"
	CodeInvalidFmt   Code = "INVALID_FORMAT"
	CodeNotFinite    Code = "NOT_FINITE"
	CodeDuplicate    Code = "DUPLICATE_VALUE"
	CodeInvalidRange Code = "INVALID_RANGE"
	CodeInvalid      Code = "INVALID_VALUE"
)

// FieldError is one violation on one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    Code   `json:"code"`
}

// Result is the outcome of a validation.
type Result struct {
	IsValid bool         `json:"is_valid"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// Valid returns a passing Result.
func Valid() Result {
	return Result{IsValid: true}
}

// Add records a violation and marks the result invalid.
func (r *Result) Add(field string, code Code, message string) {
	r.IsValid = false
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message, Code: code})
}

// Merge combines results; the merged result is valid only if all are.
func Merge(results ...Result) Result {
	out := Valid()
	for _, r := range results {
		for _, e := range r.Errors {
			out.Add(e.Field, e.Code, e.Message)
		}
		if !r.IsValid && len(r.Errors) == 0 {
			out.IsValid = false
		}
	}
	return out
}

// Err converts an invalid result into an apperr validation error.
func (r Result) Err() error {
	if r.IsValid {
		return nil
	}
	fields := make([]apperr.Field, 0, len(r.Errors))
	for _, e := range r.Errors {
		fields = append(fields, apperr.Field{Field: e.Field, Message: e.Message, Code: string(e.Code)})
	}
	return apperr.Validation(fields...)
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		switch f.Kind() {
		case reflect.Float32, reflect.Float64:
			return !math.IsNaN(f.Float()) && !math.IsInf(f.Float(), 0)
		}
		return true
	})
	return v
}

// check runs the struct tags of payload and translates the failures.
func check(payload any) Result {
	err := validate.Struct(payload)
	if err == nil {
		return Valid()
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		r := Valid()
		r.Add("payload", CodeInvalid, "payload is missing or malformed")
		return r
	}

	r := Valid()
	for _, fe := range verrs {
		code, msg := describe(fe)
		r.Add(fieldPath(fe), code, msg)
	}
	return r
}

// fieldPath strips the struct name from the namespace: "CreateTaskInput.tags[0]" -> "tags[0]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) (Code, string) {
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return CodeRequired, "is required"
	case "notblank":
		return CodeRequired, "must not be blank"
	case "oneof":
		return CodeInvalidEnum, fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(param, " ", ", "))
	case "uuid", "uuid4":
		return CodeInvalidID, "must be a valid identifier"
	case "hexcolor", "url", "email":
		return CodeInvalidFmt, fmt.Sprintf("must be a valid %s", fe.Tag())
	case "finite":
		return CodeNotFinite, "must be a finite number"
	case "unique":
		return CodeDuplicate, "must not contain duplicates"
	case "min", "gte", "gt":
		return lowerBound(fe.Kind(), fe.Tag(), param)
	case "max", "lte", "lt":
		return upperBound(fe.Kind(), fe.Tag(), param)
	}
	return CodeInvalid, "is invalid"
}

func lowerBound(kind reflect.Kind, tag, param string) (Code, string) {
	switch kind {
	case reflect.String:
		return CodeTooShort, fmt.Sprintf("must be at least %s characters", param)
	case reflect.Slice, reflect.Array, reflect.Map:
		return CodeTooFew, fmt.Sprintf("must contain at least %s items", param)
	}
	if tag == "gt" {
		return CodeOutOfRange, fmt.Sprintf("must be greater than %s", param)
	}
	return CodeOutOfRange, fmt.Sprintf("must be at least %s", param)
}

func upperBound(kind reflect.Kind, tag, param string) (Code, string) {
	switch kind {
	case reflect.String:
		return CodeTooLong, fmt.Sprintf("must be at most %s characters", param)
	case reflect.Slice, reflect.Array, reflect.Map:
		return CodeTooMany, fmt.Sprintf("must contain at most %s items", param)
	}
	if tag == "lt" {
		return CodeOutOfRange, fmt.Sprintf("must be less than %s", param)
	}
	return CodeOutOfRange, fmt.Sprintf("must be at most %s", param)
}

// ValidateID checks that id is a well-formed identifier.
func ValidateID(id string) Result {
	return ValidateRef("id", id)
}

// ValidateRef checks that the identifier in field is well formed.
func ValidateRef(field, id string) Result {
	r := Valid()
	if id == "" {
		r.Add(field, CodeRequired, "is required")
		return r
	}
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		r.Add(field, CodeInvalidID, "must be a valid identifier")
	}
	return r
}

// NewID returns a fresh identifier in canonical form.
func NewID() string {
	return uuid.NewString()
}

func validateSort(s models.Sort, allowed []string) Result {
	r := check(s)
	for i := range r.Errors {
		r.Errors[i].Field = "sort." + r.Errors[i].Field
	}
	if s.Field == "" {
		return r
	}
	for _, f := range allowed {
		if f == s.Field {
			return r
		}
	}
	r.Add("sort.field", CodeInvalidEnum, fmt.Sprintf("must be one of [%s]", strings.Join(allowed, ", ")))
	return r
}

func validatePagination(p models.Pagination) Result {
	r := check(p.WithDefaults())
	for i := range r.Errors {
		r.Errors[i].Field = "pagination." + r.Errors[i].Field
	}
	return r
}
