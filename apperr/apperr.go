// ABOUTME: Error taxonomy shared by every sponsordesk component
// ABOUTME: Kinds map to HTTP status codes and carry field-level validation detail
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies an error. Kinds are strings so they serialize naturally.
type Kind string

const (
	KindConfiguration  Kind = "CONFIGURATION_ERROR"
	KindAuthentication Kind = "AUTHENTICATION_ERROR"
	KindNotFound       Kind = "NOT_FOUND"
	KindProvider       Kind = "PROVIDER_ERROR"
	KindValidation     Kind = "VALIDATION_ERROR"
	KindTransaction    Kind = "TRANSACTION_ERROR"
	KindInternal       Kind = "INTERNAL_ERROR"
)

// Error is the structured error returned by services.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Status is the upstream HTTP status for provider errors.
	Status int
	// Fields holds field-level detail for validation errors.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// WithOp returns a copy of the error tagged with the operation name.
func (e *Error) WithOp(op string) *Error {
	cp := *e
	cp.Op = op
	return &cp
}

func Configuration(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

func Authentication(message string) *Error {
	return &Error{Kind: KindAuthentication, Message: message}
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// Provider builds the error for a non-2xx response from a signing backend.
func Provider(provider string, status int) *Error {
	return &Error{
		Kind:    KindProvider,
		Status:  status,
		Message: fmt.Sprintf("%s API error %d", provider, status),
	}
}

// ProviderFailure wraps a transport-level failure talking to a signing backend.
func ProviderFailure(provider string, err error) *Error {
	return &Error{Kind: KindProvider, Message: fmt.Sprintf("%s request failed", provider), Err: err}
}

func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// InvalidField is shorthand for a single-field validation error.
func InvalidField(field, reason string) *Error {
	return Validation(map[string]string{field: reason})
}

func Transaction(err error) *Error {
	return &Error{Kind: KindTransaction, Message: "transaction failed", Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FieldsOf returns the validation fields of err, if any.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// HTTPStatus maps an error to the status code the HTTP layer responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
