package store

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skshohagmiah/folio/internal/objectid"
)

// encode converts a typed value into a driver document.
func encode(v interface{}) (Document, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var doc Document
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return doc, nil
}

// decode converts a driver document into out.
func decode(doc Document, out interface{}) error {
	data, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := bson.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

func decodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := decode(doc, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// hasID reports whether doc carries a usable identifier.
func hasID(doc Document) bool {
	v, ok := doc["_id"]
	if !ok || v == nil {
		return false
	}
	if id, isID := v.(primitive.ObjectID); isID {
		return !id.IsZero()
	}
	return true
}

func isZeroTime(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case primitive.DateTime:
		return t.Time().IsZero()
	case time.Time:
		return t.IsZero()
	}
	return false
}

// normalizeDocument converts string values of identifier fields to native
// identifiers in place.
func normalizeDocument(doc Document, idFields []string) error {
	for _, field := range idFields {
		v, ok := doc[field]
		if !ok {
			continue
		}
		s, isStr := v.(string)
		if !isStr {
			continue
		}
		id, valid := objectid.Parse(s)
		if !valid {
			return fmt.Errorf("%w: %s=%q", ErrInvalidID, field, s)
		}
		doc[field] = id
	}
	return nil
}
