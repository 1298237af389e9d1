package embedded

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/skshohagmiah/folio/internal/query"
)

// lookup resolves a dotted path inside doc.
func lookup(doc interface{}, path string) (interface{}, bool) {
	cur := doc
	for _, part := range strings.Split(path, ".") {
		switch d := cur.(type) {
		case bson.M:
			v, ok := d[part]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]interface{}:
			v, ok := d[part]
			if !ok {
				return nil, false
			}
			cur = v
		case bson.D:
			found := false
			for _, e := range d {
				if e.Key == part {
					cur, found = e.Value, true
					break
				}
			}
			if !found {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return cur, true
}

func arrayOf(v interface{}) ([]interface{}, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []interface{}:
		return a, true
	}
	return nil, false
}

// matchesFilters checks if a document matches all filter conditions
func matchesFilters(doc bson.M, filter query.Filter) bool {
	for _, c := range filter.Conditions() {
		if !matchesCondition(doc, c) {
			return false
		}
	}
	return true
}

// matchesCondition checks if a document matches a single condition
func matchesCondition(doc bson.M, c query.Condition) bool {
	val, found := lookup(doc, c.Field)

	switch c.Op {
	case query.OpEq:
		return matchEq(val, found, c.Value)
	case query.OpNe:
		return !matchEq(val, found, c.Value)
	case query.OpIn:
		return matchIn(val, found, c.Value)
	case query.OpNin:
		return !matchIn(val, found, c.Value)
	case query.OpExists:
		want, _ := c.Value.(bool)
		return found == want
	case query.OpRegex:
		if !found {
			return false
		}
		re, ok := c.Value.(query.Regex)
		if !ok {
			return false
		}
		compiled, err := query.CompileRegex(re)
		if err != nil {
			return false
		}
		return anyElement(val, func(v interface{}) bool {
			s, ok := toString(v)
			return ok && compiled.MatchString(s)
		})
	case query.OpGt, query.OpGte, query.OpLt, query.OpLte:
		if !found {
			return false
		}
		return anyElement(val, func(v interface{}) bool {
			cmp, ok := compareValues(v, c.Value)
			if !ok {
				return false
			}
			switch c.Op {
			case query.OpGt:
				return cmp > 0
			case query.OpGte:
				return cmp >= 0
			case query.OpLt:
				return cmp < 0
			default:
				return cmp <= 0
			}
		})
	}
	return false
}

// matchEq follows MongoDB: a missing field equals null, and an array field
// matches when any element (or the whole array) equals the operand.
func matchEq(val interface{}, found bool, want interface{}) bool {
	if !found {
		return want == nil
	}
	if equal(val, want) {
		return true
	}
	if arr, ok := arrayOf(val); ok {
		for _, item := range arr {
			if equal(item, want) {
				return true
			}
		}
	}
	return false
}

func matchIn(val interface{}, found bool, operand interface{}) bool {
	list, ok := query.AsList(operand)
	if !ok {
		return false
	}
	for _, item := range list {
		if matchEq(val, found, item) {
			return true
		}
	}
	return false
}

// anyElement applies pred to v, or to each element when v is an array.
func anyElement(v interface{}, pred func(interface{}) bool) bool {
	if arr, ok := arrayOf(v); ok {
		for _, item := range arr {
			if pred(item) {
				return true
			}
		}
		return false
	}
	return pred(v)
}
