package query

import (
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// DefaultProtectedFields are stripped from every partial update payload.
var DefaultProtectedFields = []string{"_id", "id", "createdAt"}

// Update describes a partial update: fields to set and fields to remove.
type Update struct {
	Set   map[string]interface{}
	Unset []string
}

// NewUpdate returns an empty update.
func NewUpdate() Update {
	return Update{Set: map[string]interface{}{}}
}

// SetField returns a copy of u that also sets field to value.
func (u Update) SetField(field string, value interface{}) Update {
	out := u.clone()
	out.Set[field] = value
	return out
}

// SetMany returns a copy of u that also sets every entry of fields.
func (u Update) SetMany(fields map[string]interface{}) Update {
	out := u.clone()
	for k, v := range fields {
		out.Set[k] = v
	}
	return out
}

// UnsetField returns a copy of u that also removes field.
func (u Update) UnsetField(field string) Update {
	out := u.clone()
	out.Unset = append(out.Unset, field)
	return out
}

func (u Update) clone() Update {
	out := Update{Set: make(map[string]interface{}, len(u.Set)+1)}
	for k, v := range u.Set {
		out.Set[k] = v
	}
	out.Unset = append([]string(nil), u.Unset...)
	return out
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return len(u.Set) == 0 && len(u.Unset) == 0
}

// Normalize converts string values set on identifier fields to native
// identifiers, failing with objectid.ErrInvalid on malformed input.
func (u Update) Normalize(idFields ...string) (Update, error) {
	out := u.clone()
	for field, v := range out.Set {
		if !contains(idFields, field) {
			continue
		}
		nv, err := normalizeID(field, v)
		if err != nil {
			return Update{}, err
		}
		out.Set[field] = nv
	}
	return out, nil
}

// BSON renders the update as a MongoDB update document.
func (u Update) BSON() bson.D {
	d := bson.D{}
	if len(u.Set) > 0 {
		set := bson.D{}
		for _, k := range sortedKeys(u.Set) {
			set = append(set, bson.E{Key: k, Value: u.Set[k]})
		}
		d = append(d, bson.E{Key: "$set", Value: set})
	}
	if len(u.Unset) > 0 {
		unset := bson.D{}
		for _, k := range u.Unset {
			unset = append(unset, bson.E{Key: k, Value: ""})
		}
		d = append(d, bson.E{Key: "$unset", Value: unset})
	}
	return d
}

// String returns a string representation of the update
func (u Update) String() string {
	return fmt.Sprintf("Update{set=%s, unset=%s}",
		strings.Join(sortedKeys(u.Set), ","), strings.Join(u.Unset, ","))
}

// SanitizeUpdate turns a decoded partial update payload into an Update.
// Protected fields (DefaultProtectedFields when none are given) are
// dropped, operator keys are dropped, and explicit nulls become unsets.
func SanitizeUpdate(payload map[string]interface{}, protected ...string) Update {
	if len(protected) == 0 {
		protected = DefaultProtectedFields
	}

	u := NewUpdate()
	for _, k := range sortedKeys(payload) {
		if k == "" || strings.HasPrefix(k, "$") || contains(protected, k) {
			continue
		}
		v := payload[k]
		if v == nil {
			u.Unset = append(u.Unset, k)
			continue
		}
		u.Set[k] = v
	}
	return u
}

// RequireFields returns the names of fields that are absent, null or an
// empty string in doc, in the order they were requested.
func RequireFields(doc map[string]interface{}, fields ...string) []string {
	var missing []string
	for _, f := range fields {
		v, ok := doc[f]
		if !ok || v == nil {
			missing = append(missing, f)
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
