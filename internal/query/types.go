// Package query holds the tagged filter, sort and update types the store
// wrapper accepts instead of opaque maps.
package query

import "errors"

// Common errors
var (
	ErrUnknownOperator = errors.New("unknown filter operator")
	ErrInvalidOperand  = errors.New("invalid filter operand")
	ErrInvalidField    = errors.New("invalid field name")
)

// Op is the match criterion of a single condition.
type Op string

// Operator constants
const (
	OpEq     Op = "eq"
	OpNe     Op = "ne"
	OpIn     Op = "in"
	OpNin    Op = "nin"
	OpExists Op = "exists"
	OpRegex  Op = "regex"
	OpGt     Op = "gt"
	OpGte    Op = "gte"
	OpLt     Op = "lt"
	OpLte    Op = "lte"
)

// Valid reports whether op is one of the known operators.
func (op Op) Valid() bool {
	switch op {
	case OpEq, OpNe, OpIn, OpNin, OpExists, OpRegex, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Condition represents a filter condition on one field.
type Condition struct {
	Field string
	Op    Op
	Value interface{}
}

// Regex is the operand of an OpRegex condition. Options uses the MongoDB
// flag letters (i, m, s, x).
type Regex struct {
	Pattern string
	Options string
}

// FindOptions represents options for find operations. A zero Limit means
// no limit.
type FindOptions struct {
	Sort  Sort
	Skip  int64
	Limit int64
}
