package query

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/skshohagmiah/folio/internal/objectid"
)

// Filter is an immutable, ordered conjunction of conditions. Every builder
// method returns a new Filter and leaves the receiver untouched.
type Filter struct {
	conds []Condition
}

// New returns an empty filter, which matches every document.
func New() Filter {
	return Filter{}
}

// ByID returns a filter on the _id field.
func ByID(id objectid.ID) Filter {
	return New().Eq("_id", id)
}

func (f Filter) with(c Condition) Filter {
	conds := make([]Condition, len(f.conds), len(f.conds)+1)
	copy(conds, f.conds)
	return Filter{conds: append(conds, c)}
}

// Where adds a filter condition
func (f Filter) Where(field string, op Op, value interface{}) Filter {
	return f.with(Condition{Field: field, Op: op, Value: value})
}

// Eq adds an equality condition.
func (f Filter) Eq(field string, value interface{}) Filter {
	return f.Where(field, OpEq, value)
}

// Ne adds a negation condition. Documents missing the field match.
func (f Filter) Ne(field string, value interface{}) Filter {
	return f.Where(field, OpNe, value)
}

// In adds a set-membership condition. A single slice argument is expanded,
// so In("tags", []string{"a", "b"}) and In("tags", "a", "b") are equivalent.
func (f Filter) In(field string, values ...interface{}) Filter {
	return f.Where(field, OpIn, flatten(values))
}

// Nin adds a set-exclusion condition.
func (f Filter) Nin(field string, values ...interface{}) Filter {
	return f.Where(field, OpNin, flatten(values))
}

// Exists adds a condition on the presence of field.
func (f Filter) Exists(field string, exists bool) Filter {
	return f.Where(field, OpExists, exists)
}

// Regex adds a regular-expression condition on a string field.
func (f Filter) Regex(field, pattern, options string) Filter {
	return f.Where(field, OpRegex, Regex{Pattern: pattern, Options: options})
}

// Gt adds a greater-than condition
func (f Filter) Gt(field string, value interface{}) Filter {
	return f.Where(field, OpGt, value)
}

// Gte adds a greater-than-or-equal condition
func (f Filter) Gte(field string, value interface{}) Filter {
	return f.Where(field, OpGte, value)
}

// Lt adds a less-than condition
func (f Filter) Lt(field string, value interface{}) Filter {
	return f.Where(field, OpLt, value)
}

// Lte adds a less-than-or-equal condition
func (f Filter) Lte(field string, value interface{}) Filter {
	return f.Where(field, OpLte, value)
}

// And returns the conjunction of f and other.
func (f Filter) And(other Filter) Filter {
	conds := make([]Condition, 0, len(f.conds)+len(other.conds))
	conds = append(conds, f.conds...)
	conds = append(conds, other.conds...)
	return Filter{conds: conds}
}

// Conditions returns a copy of the conditions in declaration order.
func (f Filter) Conditions() []Condition {
	out := make([]Condition, len(f.conds))
	copy(out, f.conds)
	return out
}

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool {
	return len(f.conds) == 0
}

// String returns a string representation of the filter
func (f Filter) String() string {
	parts := make([]string, 0, len(f.conds))
	for _, c := range f.conds {
		parts = append(parts, fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value))
	}
	return "Filter{" + strings.Join(parts, ", ") + "}"
}

// Validate checks operator names and operand shapes.
func (f Filter) Validate() error {
	for _, c := range f.conds {
		if c.Field == "" || strings.HasPrefix(c.Field, "$") {
			return fmt.Errorf("%w: %q", ErrInvalidField, c.Field)
		}
		if !c.Op.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownOperator, c.Op)
		}
		switch c.Op {
		case OpIn, OpNin:
			if _, ok := asList(c.Value); !ok {
				return fmt.Errorf("%w: %s on %s needs a list", ErrInvalidOperand, c.Op, c.Field)
			}
		case OpExists:
			if _, ok := c.Value.(bool); !ok {
				return fmt.Errorf("%w: exists on %s needs a bool", ErrInvalidOperand, c.Field)
			}
		case OpRegex:
			re, ok := c.Value.(Regex)
			if !ok {
				return fmt.Errorf("%w: regex on %s needs a Regex", ErrInvalidOperand, c.Field)
			}
			if _, err := CompileRegex(re); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidOperand, err)
			}
		}
	}
	return nil
}

// Normalize converts string operands of conditions on identifier fields to
// native identifiers. A malformed identifier fails the whole filter with
// objectid.ErrInvalid.
func (f Filter) Normalize(idFields ...string) (Filter, error) {
	if len(idFields) == 0 || len(f.conds) == 0 {
		return f, nil
	}

	out := make([]Condition, len(f.conds))
	for i, c := range f.conds {
		out[i] = c
		if !contains(idFields, c.Field) {
			continue
		}
		switch c.Op {
		case OpEq, OpNe:
			v, err := normalizeID(c.Field, c.Value)
			if err != nil {
				return Filter{}, err
			}
			out[i].Value = v
		case OpIn, OpNin:
			list, ok := asList(c.Value)
			if !ok {
				return Filter{}, fmt.Errorf("%w: %s on %s needs a list", ErrInvalidOperand, c.Op, c.Field)
			}
			ids := make([]interface{}, len(list))
			for j, item := range list {
				v, err := normalizeID(c.Field, item)
				if err != nil {
					return Filter{}, err
				}
				ids[j] = v
			}
			out[i].Value = ids
		}
	}
	return Filter{conds: out}, nil
}

func normalizeID(field string, v interface{}) (interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	id, ok := objectid.Parse(s)
	if !ok {
		return nil, fmt.Errorf("%w: %s=%q", objectid.ErrInvalid, field, s)
	}
	return id, nil
}

// CompileRegex translates MongoDB regex flags into a Go regexp.
func CompileRegex(re Regex) (*regexp.Regexp, error) {
	var flags strings.Builder
	for _, o := range re.Options {
		switch o {
		case 'i', 'm', 's':
			flags.WriteRune(o)
		case 'x':
			// extended mode has no RE2 equivalent; whitespace is kept as-is
		default:
			return nil, fmt.Errorf("unsupported regex option %q", o)
		}
	}
	pattern := re.Pattern
	if flags.Len() > 0 {
		pattern = "(?" + flags.String() + ")" + pattern
	}
	return regexp.Compile(pattern)
}

// asList accepts any slice or array operand.
func asList(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func flatten(values []interface{}) []interface{} {
	if len(values) == 1 {
		if list, ok := asList(values[0]); ok {
			return list
		}
	}
	if values == nil {
		return []interface{}{}
	}
	return values
}

// AsList exposes the operand coercion used by in/nin to store drivers.
func AsList(v interface{}) ([]interface{}, bool) {
	return asList(v)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
