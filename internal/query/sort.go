package query

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// SortField is a single sort key.
type SortField struct {
	Field string
	Desc  bool
}

// Sort is an ordered list of sort keys; earlier keys take precedence.
type Sort []SortField

// Asc returns a single ascending sort key.
func Asc(field string) Sort {
	return Sort{{Field: field}}
}

// Desc returns a single descending sort key.
func Desc(field string) Sort {
	return Sort{{Field: field, Desc: true}}
}

// Then appends a further sort key.
func (s Sort) Then(field string, desc bool) Sort {
	out := make(Sort, len(s), len(s)+1)
	copy(out, s)
	return append(out, SortField{Field: field, Desc: desc})
}

// ParseSort reads a comma separated sort expression. A leading "-" sorts
// descending, a leading "+" or nothing ascending: "-createdAt,title".
func ParseSort(expr string) Sort {
	var out Sort
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := false
		switch part[0] {
		case '-':
			desc = true
			part = part[1:]
		case '+':
			part = part[1:]
		}
		if part == "" {
			continue
		}
		out = append(out, SortField{Field: part, Desc: desc})
	}
	return out
}

// BSON renders the sort as a MongoDB sort document.
func (s Sort) BSON() bson.D {
	d := make(bson.D, 0, len(s))
	for _, f := range s {
		dir := 1
		if f.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: f.Field, Value: dir})
	}
	return d
}

// String returns the expression form accepted by ParseSort.
func (s Sort) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		if f.Desc {
			parts[i] = "-" + f.Field
		} else {
			parts[i] = f.Field
		}
	}
	return strings.Join(parts, ",")
}
