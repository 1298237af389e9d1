// Package params reads typed values from request query strings and paths.
package params

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/skshohagmiah/folio/internal/apperr"
	"github.com/skshohagmiah/folio/internal/objectid"
	"github.com/skshohagmiah/folio/internal/pagination"
	"github.com/skshohagmiah/folio/internal/query"
)

// Params wraps raw query values. Getters report absence and unparsable
// input the same way: ok is false.
type Params struct {
	values url.Values
}

// From reads the query parameters of r.
func From(r *http.Request) Params {
	return Params{values: r.URL.Query()}
}

// FromValues wraps already parsed values.
func FromValues(v url.Values) Params {
	return Params{values: v}
}

// String returns the trimmed value of name; empty counts as absent.
func (p Params) String(name string) (string, bool) {
	v := strings.TrimSpace(p.values.Get(name))
	return v, v != ""
}

// StringOr returns String(name) or def.
func (p Params) StringOr(name, def string) string {
	if v, ok := p.String(name); ok {
		return v
	}
	return def
}

// Number parses name as a finite float.
func (p Params) Number(name string) (float64, bool) {
	s, ok := p.String(name)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int parses name as a base-10 integer.
func (p Params) Int(name string) (int, bool) {
	s, ok := p.String(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Bool parses name with strconv.ParseBool.
func (p Params) Bool(name string) (bool, bool) {
	s, ok := p.String(name)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, false
	}
	return b, true
}

// ObjectID parses name as an identifier.
func (p Params) ObjectID(name string) (objectid.ID, bool) {
	s, ok := p.String(name)
	if !ok {
		return objectid.Nil, false
	}
	return objectid.Parse(s)
}

// RequiredString fails with MissingParameter when name is absent.
func (p Params) RequiredString(name string) (string, error) {
	v, ok := p.String(name)
	if !ok {
		return "", missing(name)
	}
	return v, nil
}

// RequiredObjectID fails with MissingParameter when name is absent and
// BadRequest when it is malformed.
func (p Params) RequiredObjectID(name string) (objectid.ID, error) {
	s, ok := p.String(name)
	if !ok {
		return objectid.Nil, missing(name)
	}
	id, ok := objectid.Parse(s)
	if !ok {
		return objectid.Nil, invalidID(name)
	}
	return id, nil
}

// Pagination reads page and limit with defaults and clamping.
func (p Params) Pagination() pagination.Request {
	page, ok := p.Int("page")
	if !ok {
		page = pagination.DefaultPage
	}
	limit, ok := p.Int("limit")
	if !ok {
		limit = pagination.DefaultLimit
	}
	return pagination.NewRequest(page, limit, pagination.MaxLimit)
}

// Sort parses name as a sort expression ("-createdAt,title"). Fields not in
// allowed are a BadRequest. An absent parameter yields def.
func (p Params) Sort(name string, def query.Sort, allowed ...string) (query.Sort, error) {
	s, ok := p.String(name)
	if !ok {
		return def, nil
	}
	parsed := query.ParseSort(s)
	for _, f := range parsed {
		if !contains(allowed, f.Field) {
			return nil, apperr.BadRequest("cannot sort by " + f.Field).
				WithDetails(map[string]interface{}{"allowed": allowed})
		}
	}
	if len(parsed) == 0 {
		return def, nil
	}
	return parsed, nil
}

// PathObjectID parses the chi path parameter name as an identifier.
func PathObjectID(r *http.Request, name string) (objectid.ID, error) {
	s := chi.URLParam(r, name)
	if s == "" {
		return objectid.Nil, missing(name)
	}
	id, ok := objectid.Parse(s)
	if !ok {
		return objectid.Nil, invalidID(name)
	}
	return id, nil
}

func missing(name string) *apperr.Error {
	return apperr.MissingParameter("missing parameter " + name).
		WithDetails(map[string]interface{}{"parameter": name})
}

func invalidID(name string) *apperr.Error {
	return apperr.BadRequest("invalid identifier for " + name).
		WithDetails(map[string]interface{}{"parameter": name})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
