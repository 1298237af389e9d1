// Package handler adapts result-returning route functions to http.Handler,
// turning every outcome into the response envelope.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/skshohagmiah/folio/internal/apperr"
	"github.com/skshohagmiah/folio/internal/pagination"
	"github.com/skshohagmiah/folio/internal/response"
)

// Func is a route handler. It returns either a Reply or an error, never
// both; it must not write to the response itself.
type Func func(r *http.Request) (Reply, error)

// Reply is a successful handler outcome.
type Reply struct {
	Status     int
	Data       interface{}
	Message    string
	Pagination *pagination.Meta
	Cookies    []*http.Cookie
}

// OK replies 200 with data.
func OK(data interface{}) Reply {
	return Reply{Status: http.StatusOK, Data: data}
}

// Created replies 201 with the created resource.
func Created(data interface{}) Reply {
	return Reply{Status: http.StatusCreated, Data: data}
}

// Message replies 200 with a message and no data.
func Message(msg string) Reply {
	return Reply{Status: http.StatusOK, Message: msg}
}

// Page replies 200 with one page of items.
func Page[T any](result pagination.Result[T]) Reply {
	meta := result.Pagination
	items := result.Items
	if items == nil {
		items = []T{}
	}
	return Reply{Status: http.StatusOK, Data: items, Pagination: &meta}
}

// WithMessage returns a copy of r carrying msg.
func (r Reply) WithMessage(msg string) Reply {
	r.Message = msg
	return r
}

// WithCookie returns a copy of r that also sets c.
func (r Reply) WithCookie(c *http.Cookie) Reply {
	r.Cookies = append(append([]*http.Cookie(nil), r.Cookies...), c)
	return r
}

type ctxKey struct{}

// WithRequestID stores the request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Wrapper applies the envelope contract to handlers.
type Wrapper struct {
	logger *slog.Logger
}

// NewWrapper creates a Wrapper logging to logger. A nil logger uses
// slog.Default().
func NewWrapper(logger *slog.Logger) *Wrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Wrapper{logger: logger}
}

// Wrap converts fn into an http.HandlerFunc. Successful replies become
// success envelopes; classified errors keep their kind; anything else,
// including panics, is logged and answered with a generic InternalError.
func (wr *Wrapper) Wrap(fn Func) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply, err := wr.run(fn, r)
		if err != nil {
			wr.fail(w, r, err)
			return
		}

		status := reply.Status
		if status == 0 {
			status = http.StatusOK
		}
		for _, c := range reply.Cookies {
			http.SetCookie(w, c)
		}
		env := response.Success(reply.Data, reply.Message)
		env.Pagination = reply.Pagination
		if werr := response.Write(w, status, env); werr != nil {
			wr.logger.Warn("failed to write response",
				"request_id", RequestID(r.Context()),
				"error", werr)
		}
	}
}

func (wr *Wrapper) run(fn Func, r *http.Request) (reply Reply, err error) {
	defer func() {
		if p := recover(); p != nil {
			if p == http.ErrAbortHandler {
				panic(p)
			}
			wr.logger.Error("handler panic",
				"request_id", RequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()))
			reply, err = Reply{}, apperr.Internal(fmt.Errorf("panic: %v", p))
		}
	}()
	return fn(r)
}

func (wr *Wrapper) fail(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.From(err)
	attrs := []any{
		"request_id", RequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"kind", ae.Kind.String(),
		"error", err,
	}
	if ae.Kind == apperr.KindInternal || ae.Kind == apperr.KindServiceUnavailable {
		wr.logger.Error("request failed", attrs...)
	} else {
		wr.logger.Debug("request rejected", attrs...)
	}
	if werr := response.Write(w, ae.Status(), response.Failure(ae)); werr != nil {
		wr.logger.Warn("failed to write response", "request_id", RequestID(r.Context()), "error", werr)
	}
}

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// DecodeJSON decodes the request body into v. Malformed, oversized, empty
// or trailing-garbage bodies are BadRequest.
func DecodeJSON(r *http.Request, v interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return apperr.BadRequest("content type must be application/json")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.BadRequest("request body is empty")
		}
		return apperr.Wrap(err, apperr.KindBadRequest, "invalid JSON body")
	}
	if dec.More() {
		return apperr.BadRequest("request body must be a single JSON value")
	}
	return nil
}
