// Package objectid converts between the opaque identifiers clients send and
// the document store's native 12-byte object identifier.
package objectid

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalid is returned when a string is not a 24-character hex identifier.
var ErrInvalid = errors.New("invalid identifier")

// HexLength is the length of an identifier in its wire form.
const HexLength = 24

// ID is the store's native identifier.
type ID = primitive.ObjectID

// Nil is the zero identifier. It is never assigned to a stored document.
var Nil = primitive.NilObjectID

// IsValid reports whether s is exactly 24 hex characters.
func IsValid(s string) bool {
	if len(s) != HexLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// Parse converts s to a native identifier. The boolean is false for any
// input that IsValid rejects.
func Parse(s string) (ID, bool) {
	if !IsValid(s) {
		return Nil, false
	}
	id, err := primitive.ObjectIDFromHex(strings.ToLower(s))
	if err != nil {
		return Nil, false
	}
	return id, true
}

// MustParse is Parse for literals in tests and fixtures.
func MustParse(s string) ID {
	id, ok := Parse(s)
	if !ok {
		panic("objectid: invalid identifier " + s)
	}
	return id
}

// New returns a freshly generated identifier.
func New() ID {
	return primitive.NewObjectID()
}

// String returns the wire form of id.
func String(id ID) string {
	return id.Hex()
}

// FromValue extracts an identifier from a decoded document value, accepting
// either the native type or its hex string.
func FromValue(v interface{}) (ID, bool) {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t, !t.IsZero()
	case string:
		return Parse(t)
	default:
		return Nil, false
	}
}
