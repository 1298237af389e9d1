// Package response renders the JSON envelope shared by every endpoint.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/skshohagmiah/folio/internal/apperr"
	"github.com/skshohagmiah/folio/internal/pagination"
)

// Envelope is the uniform response body. Exactly one of Data and Error is
// set, and Success reports which.
type Envelope struct {
	Success    bool             `json:"success"`
	Data       interface{}      `json:"data,omitempty"`
	Message    string           `json:"message,omitempty"`
	Error      *ErrorBody       `json:"error,omitempty"`
	Pagination *pagination.Meta `json:"pagination,omitempty"`
}

// ErrorBody is the error half of the envelope.
type ErrorBody struct {
	Kind    string                 `json:"kind"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Success wraps data in a success envelope. Nil data is sent as {} so the
// data member is always present.
func Success(data interface{}, message string) Envelope {
	if data == nil {
		data = struct{}{}
	}
	return Envelope{Success: true, Data: data, Message: message}
}

// Paginated wraps a page of items with its pagination metadata.
func Paginated[T any](result pagination.Result[T], message string) Envelope {
	meta := result.Pagination
	items := result.Items
	if items == nil {
		items = []T{}
	}
	return Envelope{Success: true, Data: items, Message: message, Pagination: &meta}
}

// Failure wraps a classified error.
func Failure(err *apperr.Error) Envelope {
	if err == nil {
		err = apperr.Internal(nil)
	}
	return Envelope{
		Success: false,
		Error: &ErrorBody{
			Kind:    err.Kind.String(),
			Message: err.Message,
			Details: err.Details,
		},
	}
}

// Write sends env with the given status.
func Write(w http.ResponseWriter, status int, env Envelope) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(env)
}

// WriteError classifies err and writes the failure envelope with the
// matching status.
func WriteError(w http.ResponseWriter, err error) error {
	ae := apperr.From(err)
	return Write(w, ae.Status(), Failure(ae))
}
