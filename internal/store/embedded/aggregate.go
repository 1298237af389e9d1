package embedded

import (
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/skshohagmiah/folio/internal/query"
	"github.com/skshohagmiah/folio/internal/store"
)

// runStage applies a single pipeline stage. Each stage document must hold
// exactly one operator.
func runStage(docs []bson.M, stage bson.D) ([]bson.M, error) {
	if len(stage) != 1 {
		return nil, fmt.Errorf("%w: stage must have exactly one operator", store.ErrUnsupportedStage)
	}
	op, arg := stage[0].Key, stage[0].Value

	switch op {
	case "$match":
		filter, err := query.FromBSON(arg)
		if err != nil {
			return nil, err
		}
		out := docs[:0:0]
		for _, d := range docs {
			if matchesFilters(d, filter) {
				out = append(out, d)
			}
		}
		return out, nil

	case "$sort":
		spec, err := sortSpec(arg)
		if err != nil {
			return nil, err
		}
		sortResults(docs, spec)
		return docs, nil

	case "$skip":
		n, ok := toFloat64(arg)
		if !ok || n < 0 {
			return nil, fmt.Errorf("%w: $skip must be a non-negative number", query.ErrInvalidOperand)
		}
		if int(n) >= len(docs) {
			return nil, nil
		}
		return docs[int(n):], nil

	case "$limit":
		n, ok := toFloat64(arg)
		if !ok || n <= 0 {
			return nil, fmt.Errorf("%w: $limit must be a positive number", query.ErrInvalidOperand)
		}
		if int(n) < len(docs) {
			return docs[:int(n)], nil
		}
		return docs, nil

	case "$count":
		name, ok := arg.(string)
		if !ok || name == "" || strings.HasPrefix(name, "$") || strings.Contains(name, ".") {
			return nil, fmt.Errorf("%w: $count needs a plain field name", query.ErrInvalidOperand)
		}
		if len(docs) == 0 {
			return nil, nil
		}
		return []bson.M{{name: int32(len(docs))}}, nil

	case "$project":
		fields, err := stageDoc(arg)
		if err != nil {
			return nil, err
		}
		return project(docs, fields)

	case "$group":
		fields, err := stageDoc(arg)
		if err != nil {
			return nil, err
		}
		return group(docs, fields)
	}
	return nil, fmt.Errorf("%w: %s", store.ErrUnsupportedStage, op)
}

func stageDoc(arg interface{}) (bson.D, error) {
	switch v := arg.(type) {
	case bson.D:
		return v, nil
	case bson.M:
		return sortedDoc(v), nil
	case map[string]interface{}:
		return sortedDoc(v), nil
	}
	return nil, fmt.Errorf("%w: stage argument must be a document", query.ErrInvalidOperand)
}

func sortedDoc(m map[string]interface{}) bson.D {
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

func sortSpec(arg interface{}) (query.Sort, error) {
	doc, err := stageDoc(arg)
	if err != nil {
		return nil, err
	}
	var s query.Sort
	for _, e := range doc {
		dir, ok := toFloat64(e.Value)
		if !ok || (dir != 1 && dir != -1) {
			return nil, fmt.Errorf("%w: sort direction for %q must be 1 or -1", query.ErrInvalidOperand, e.Key)
		}
		s = s.Then(e.Key, dir < 0)
	}
	return s, nil
}

// project supports inclusion (1/true), exclusion (0/false) and "$field"
// references. _id is kept unless excluded.
func project(docs []bson.M, fields bson.D) ([]bson.M, error) {
	include := false
	for _, f := range fields {
		if f.Key != "_id" && !isFalsy(f.Value) {
			include = true
		}
	}

	out := make([]bson.M, 0, len(docs))
	for _, d := range docs {
		var next bson.M
		if include {
			next = bson.M{}
			if id, ok := d["_id"]; ok {
				next["_id"] = id
			}
		} else {
			next = make(bson.M, len(d))
			for k, v := range d {
				next[k] = v
			}
		}

		for _, f := range fields {
			if ref, ok := f.Value.(string); ok && strings.HasPrefix(ref, "$") {
				if v, found := lookup(d, ref[1:]); found {
					next[f.Key] = v
				}
				continue
			}
			if isFalsy(f.Value) {
				delete(next, f.Key)
				continue
			}
			if v, found := lookup(d, f.Key); found {
				next[f.Key] = v
			}
		}
		out = append(out, next)
	}
	return out, nil
}

func isFalsy(v interface{}) bool {
	switch x := v.(type) {
	case bool:
		return !x
	case nil:
		return true
	}
	if n, ok := toFloat64(v); ok {
		return n == 0
	}
	return false
}

type accumulator struct {
	op    string
	arg   interface{}
	sum   float64
	count int64
	value interface{}
	seen  bool
	ints  bool
}

type groupState struct {
	key  interface{}
	accs map[string]*accumulator
}

// group implements $group with $sum, $avg, $min, $max, $first, $last and
// $push. Output order follows first appearance of each key.
func group(docs []bson.M, spec bson.D) ([]bson.M, error) {
	var idExpr interface{}
	hasID := false
	var outputs bson.D
	for _, e := range spec {
		if e.Key == "_id" {
			idExpr, hasID = e.Value, true
			continue
		}
		outputs = append(outputs, e)
	}
	if !hasID {
		return nil, fmt.Errorf("%w: $group requires _id", query.ErrInvalidOperand)
	}

	var order []*groupState
	groups := make(map[string]*groupState)

	for _, d := range docs {
		key := evalExpr(d, idExpr)
		fp := fingerprint(key)
		g, ok := groups[fp]
		if !ok {
			g = &groupState{key: key, accs: make(map[string]*accumulator, len(outputs))}
			for _, o := range outputs {
				acc, err := newAccumulator(o)
				if err != nil {
					return nil, err
				}
				g.accs[o.Key] = acc
			}
			groups[fp] = g
			order = append(order, g)
		}
		for _, acc := range g.accs {
			acc.add(evalExpr(d, acc.arg))
		}
	}

	out := make([]bson.M, 0, len(order))
	for _, g := range order {
		row := bson.M{"_id": g.key}
		for name, acc := range g.accs {
			row[name] = acc.result()
		}
		out = append(out, row)
	}
	return out, nil
}

func newAccumulator(e bson.E) (*accumulator, error) {
	doc, err := stageDoc(e.Value)
	if err != nil || len(doc) != 1 {
		return nil, fmt.Errorf("%w: accumulator %q must be a single-operator document", query.ErrInvalidOperand, e.Key)
	}
	op := doc[0].Key
	switch op {
	case "$sum", "$avg", "$min", "$max", "$first", "$last", "$push":
	default:
		return nil, fmt.Errorf("%w: accumulator %s", store.ErrUnsupportedStage, op)
	}
	acc := &accumulator{op: op, arg: doc[0].Value, ints: true}
	if op == "$push" {
		acc.value = bson.A{}
	}
	return acc, nil
}

// evalExpr resolves "$field" references; any other value is a literal.
func evalExpr(doc bson.M, expr interface{}) interface{} {
	switch x := expr.(type) {
	case string:
		if strings.HasPrefix(x, "$") {
			v, _ := lookup(doc, x[1:])
			return v
		}
	case bson.D:
		out := make(bson.D, 0, len(x))
		for _, e := range x {
			out = append(out, bson.E{Key: e.Key, Value: evalExpr(doc, e.Value)})
		}
		return out
	case bson.M:
		return evalExpr(doc, sortedDoc(x))
	}
	return expr
}

func (a *accumulator) add(v interface{}) {
	switch a.op {
	case "$sum", "$avg":
		n, ok := toFloat64(v)
		if !ok {
			return
		}
		switch v.(type) {
		case int, int32, int64:
		default:
			a.ints = false
		}
		a.sum += n
		a.count++
	case "$min", "$max":
		if v == nil {
			return
		}
		if !a.seen {
			a.value, a.seen = v, true
			return
		}
		c, _ := compareValues(v, a.value)
		if (a.op == "$min" && c < 0) || (a.op == "$max" && c > 0) {
			a.value = v
		}
	case "$first":
		if !a.seen {
			a.value, a.seen = v, true
		}
	case "$last":
		a.value, a.seen = v, true
	case "$push":
		a.value = append(a.value.(bson.A), v)
	}
}

func (a *accumulator) result() interface{} {
	switch a.op {
	case "$sum":
		if a.ints {
			return int64(a.sum)
		}
		return a.sum
	case "$avg":
		if a.count == 0 {
			return nil
		}
		return a.sum / float64(a.count)
	}
	return a.value
}

// fingerprint gives equal group keys equal strings.
func fingerprint(v interface{}) string {
	if n, ok := toFloat64(v); ok {
		return fmt.Sprintf("n:%v", n)
	}
	if data, err := bson.Marshal(bson.M{"k": v}); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%T:%v", v, v)
}
