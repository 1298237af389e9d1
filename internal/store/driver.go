// Package store is the generic, typed data-access layer over a schemaless
// document store. Route handlers touch persistence only through Collection.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/skshohagmiah/folio/internal/objectid"
	"github.com/skshohagmiah/folio/internal/query"
)

// Common errors
var (
	// ErrInvalidID is returned when an identifier fails normalization.
	ErrInvalidID = objectid.ErrInvalid
	// ErrDuplicateKey is returned when a write violates a unique index.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrEmptyUpdate is returned when an update would change nothing.
	ErrEmptyUpdate = errors.New("empty update")
	// ErrUnsupportedStage is returned by drivers that cannot run a pipeline stage.
	ErrUnsupportedStage = errors.New("unsupported pipeline stage")
	// ErrInvalidCollection is returned for empty or malformed collection names.
	ErrInvalidCollection = errors.New("invalid collection")
	// ErrClosed is returned when operating on a closed driver.
	ErrClosed = errors.New("store closed")
)

// Document is the driver-level representation of a stored document.
type Document = bson.M

// Pipeline is an aggregation pipeline, one document per stage.
type Pipeline []bson.D

// UpdateResult reports the outcome of an update.
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// DeleteResult reports the outcome of a delete.
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// InsertResult carries the inserted document including its identifier.
type InsertResult[T any] struct {
	Document T
}

// Driver is the collaborator a Collection delegates to. Implementations
// must be safe for concurrent use; filters reach them already normalized.
type Driver interface {
	Find(ctx context.Context, collection string, filter query.Filter, opts query.FindOptions) ([]Document, error)
	Insert(ctx context.Context, collection string, docs []Document) error
	Update(ctx context.Context, collection string, filter query.Filter, update query.Update, multi bool) (UpdateResult, error)
	Delete(ctx context.Context, collection string, filter query.Filter, multi bool) (DeleteResult, error)
	Count(ctx context.Context, collection string, filter query.Filter) (int64, error)
	Aggregate(ctx context.Context, collection string, pipeline Pipeline) ([]Document, error)
	EnsureUniqueIndex(ctx context.Context, collection, field string) error
	Close(ctx context.Context) error
}
