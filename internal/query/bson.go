package query

import (
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var opKeys = map[Op]string{
	OpEq:     "$eq",
	OpNe:     "$ne",
	OpIn:     "$in",
	OpNin:    "$nin",
	OpExists: "$exists",
	OpGt:     "$gt",
	OpGte:    "$gte",
	OpLt:     "$lt",
	OpLte:    "$lte",
}

// BSON renders the filter as a MongoDB filter document. Conditions on the
// same field are merged into one operator document; a lone equality is
// rendered as a plain field match.
func (f Filter) BSON() bson.D {
	var order []string
	byField := map[string][]Condition{}
	for _, c := range f.conds {
		if _, seen := byField[c.Field]; !seen {
			order = append(order, c.Field)
		}
		byField[c.Field] = append(byField[c.Field], c)
	}

	d := make(bson.D, 0, len(order))
	for _, field := range order {
		conds := byField[field]
		if len(conds) == 1 && conds[0].Op == OpEq {
			d = append(d, bson.E{Key: field, Value: conds[0].Value})
			continue
		}
		ops := bson.D{}
		for _, c := range conds {
			switch c.Op {
			case OpRegex:
				re, _ := c.Value.(Regex)
				ops = append(ops, bson.E{Key: "$regex", Value: re.Pattern})
				if re.Options != "" {
					ops = append(ops, bson.E{Key: "$options", Value: re.Options})
				}
			case OpIn, OpNin:
				list, _ := asList(c.Value)
				ops = append(ops, bson.E{Key: opKeys[c.Op], Value: bson.A(list)})
			default:
				ops = append(ops, bson.E{Key: opKeys[c.Op], Value: c.Value})
			}
		}
		d = append(d, bson.E{Key: field, Value: ops})
	}
	return d
}

// FromBSON parses a MongoDB-style match document into a Filter. It accepts
// bson.D, bson.M and map[string]interface{}; top-level $and is flattened.
func FromBSON(doc interface{}) (Filter, error) {
	elems, err := elements(doc)
	if err != nil {
		return Filter{}, err
	}

	f := New()
	for _, e := range elems {
		if e.Key == "$and" {
			list, ok := asList(e.Value)
			if !ok {
				return Filter{}, fmt.Errorf("%w: $and needs a list", ErrInvalidOperand)
			}
			for _, sub := range list {
				sf, err := FromBSON(sub)
				if err != nil {
					return Filter{}, err
				}
				f = f.And(sf)
			}
			continue
		}
		if strings.HasPrefix(e.Key, "$") {
			return Filter{}, fmt.Errorf("%w: %s", ErrUnknownOperator, e.Key)
		}

		if re, ok := e.Value.(primitive.Regex); ok {
			f = f.Regex(e.Key, re.Pattern, re.Options)
			continue
		}

		ops, isOps := operatorDoc(e.Value)
		if !isOps {
			f = f.Eq(e.Key, e.Value)
			continue
		}
		parsed, err := parseOperators(e.Key, ops)
		if err != nil {
			return Filter{}, err
		}
		f = f.And(parsed)
	}
	return f, f.Validate()
}

func parseOperators(field string, ops bson.D) (Filter, error) {
	f := New()
	var options string
	var pattern *string
	for _, op := range ops {
		switch op.Key {
		case "$eq":
			f = f.Eq(field, op.Value)
		case "$ne":
			f = f.Ne(field, op.Value)
		case "$in", "$nin":
			list, ok := asList(op.Value)
			if !ok {
				return Filter{}, fmt.Errorf("%w: %s on %s needs a list", ErrInvalidOperand, op.Key, field)
			}
			if op.Key == "$in" {
				f = f.Where(field, OpIn, list)
			} else {
				f = f.Where(field, OpNin, list)
			}
		case "$exists":
			b, ok := op.Value.(bool)
			if !ok {
				return Filter{}, fmt.Errorf("%w: $exists on %s needs a bool", ErrInvalidOperand, field)
			}
			f = f.Exists(field, b)
		case "$regex":
			switch v := op.Value.(type) {
			case string:
				pattern = &v
			case primitive.Regex:
				p := v.Pattern
				pattern = &p
				if options == "" {
					options = v.Options
				}
			default:
				return Filter{}, fmt.Errorf("%w: $regex on %s needs a string", ErrInvalidOperand, field)
			}
		case "$options":
			s, _ := op.Value.(string)
			options = s
		case "$gt":
			f = f.Gt(field, op.Value)
		case "$gte":
			f = f.Gte(field, op.Value)
		case "$lt":
			f = f.Lt(field, op.Value)
		case "$lte":
			f = f.Lte(field, op.Value)
		default:
			return Filter{}, fmt.Errorf("%w: %s", ErrUnknownOperator, op.Key)
		}
	}
	if pattern != nil {
		f = f.Regex(field, *pattern, options)
	}
	return f, nil
}

// operatorDoc reports whether v is a sub-document whose keys are all
// operators.
func operatorDoc(v interface{}) (bson.D, bool) {
	switch v.(type) {
	case bson.D, bson.M, map[string]interface{}:
	default:
		return nil, false
	}
	elems, err := elements(v)
	if err != nil || len(elems) == 0 {
		return nil, false
	}
	for _, e := range elems {
		if !strings.HasPrefix(e.Key, "$") {
			return nil, false
		}
	}
	return elems, true
}

// elements returns the key/value pairs of a document. Map-backed documents
// are returned in key order so parsing is deterministic.
func elements(doc interface{}) (bson.D, error) {
	switch d := doc.(type) {
	case nil:
		return bson.D{}, nil
	case bson.D:
		return d, nil
	case bson.M:
		return mapElements(d), nil
	case map[string]interface{}:
		return mapElements(d), nil
	default:
		return nil, fmt.Errorf("%w: match document has type %T", ErrInvalidOperand, doc)
	}
}

func mapElements(m map[string]interface{}) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		d = append(d, bson.E{Key: k, Value: m[k]})
	}
	return d
}
