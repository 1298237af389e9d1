// Package apperr defines the error kinds surfaced to API clients and the
// classification of lower-level errors into them.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/skshohagmiah/folio/internal/query"
	"github.com/skshohagmiah/folio/internal/store"
)

// Kind classifies an error for the client. Each kind maps to one HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindMissingParameter
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindDuplicateEntry
	KindValidation
	KindTooManyRequests
	KindServiceUnavailable
)

var kindNames = map[Kind]string{
	KindInternal:           "InternalError",
	KindBadRequest:         "BadRequest",
	KindMissingParameter:   "MissingParameter",
	KindUnauthorized:       "Unauthorized",
	KindForbidden:          "Forbidden",
	KindNotFound:           "NotFound",
	KindConflict:           "Conflict",
	KindDuplicateEntry:     "DuplicateEntry",
	KindValidation:         "ValidationError",
	KindTooManyRequests:    "TooManyRequests",
	KindServiceUnavailable: "ServiceUnavailable",
}

var kindStatus = map[Kind]int{
	KindInternal:           http.StatusInternalServerError,
	KindBadRequest:         http.StatusBadRequest,
	KindMissingParameter:   http.StatusBadRequest,
	KindUnauthorized:       http.StatusUnauthorized,
	KindForbidden:          http.StatusForbidden,
	KindNotFound:           http.StatusNotFound,
	KindConflict:           http.StatusConflict,
	KindDuplicateEntry:     http.StatusConflict,
	KindValidation:         http.StatusUnprocessableEntity,
	KindTooManyRequests:    http.StatusTooManyRequests,
	KindServiceUnavailable: http.StatusServiceUnavailable,
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "InternalError"
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	if status, ok := kindStatus[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// InternalMessage is the only message clients see for unclassified errors.
const InternalMessage = "internal server error"

// Error is a classified, client-facing error. Values are treated as
// immutable; WithDetails returns a copy.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	// Err is the underlying cause. It is logged, never sent to clients.
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code of the error's kind.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	cp := *e
	cp.Details = make(map[string]interface{}, len(details))
	for k, v := range details {
		cp.Details[k] = v
	}
	return &cp
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind with a client-facing message.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Factories, one per kind.
func BadRequest(message string) *Error { return New(KindBadRequest, message) }
func MissingParameter(message string) *Error { return New(KindMissingParameter, message) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error { return New(KindForbidden, message) }
func NotFound(message string) *Error { return New(KindNotFound, message) }
func Conflict(message string) *Error { return New(KindConflict, message) }
func DuplicateEntry(message string) *Error { return New(KindDuplicateEntry, message) }
func Validation(message string) *Error { return New(KindValidation, message) }
func TooManyRequests(message string) *Error { return New(KindTooManyRequests, message) }
func ServiceUnavailable(message string) *Error { return New(KindServiceUnavailable, message) }

// Internal wraps an unexpected error behind the generic message.
func Internal(err error) *Error {
	return Wrap(err, KindInternal, InternalMessage)
}

// MissingFields reports required payload fields that were absent.
func MissingFields(fields []string) *Error {
	return BadRequest("missing required fields").WithDetails(map[string]interface{}{"fields": fields})
}

// As extracts the classified error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind checks if err is classified as kind
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// From classifies any error. Already classified errors are returned as is;
// known store and query errors get their client kind; everything else is
// an InternalError whose message reveals nothing about the cause.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}

	switch {
	case errors.Is(err, store.ErrInvalidID):
		return Wrap(err, KindBadRequest, "invalid identifier")
	case errors.Is(err, store.ErrDuplicateKey):
		return Wrap(err, KindDuplicateEntry, "duplicate entry")
	case errors.Is(err, store.ErrEmptyUpdate):
		return Wrap(err, KindBadRequest, "no fields to update")
	case errors.Is(err, query.ErrUnknownOperator),
		errors.Is(err, query.ErrInvalidOperand),
		errors.Is(err, query.ErrInvalidField):
		return Wrap(err, KindBadRequest, "invalid query")
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, KindServiceUnavailable, "request timed out")
	}
	return Internal(err)
}
