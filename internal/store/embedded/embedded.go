// Package embedded implements store.Driver on top of BadgerDB. Documents are
// stored BSON-encoded, one key per document, and queried by full scan.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skshohagmiah/folio/internal/query"
	"github.com/skshohagmiah/folio/internal/storage"
	"github.com/skshohagmiah/folio/internal/store"
)

const indexMetadataKey = "db:indexes_metadata"

// Store provides document database operations over a storage.DB.
type Store struct {
	db     *storage.DB
	ownsDB bool

	// writeMu serializes read-modify-write operations so each Driver call
	// applies atomically relative to other writers.
	writeMu sync.Mutex

	mu     sync.RWMutex
	unique map[string][]string // collection -> unique fields
	closed bool
}

var _ store.Driver = (*Store)(nil)

// New creates a document store on an already open database. The caller
// keeps ownership of db.
func New(db *storage.DB) (*Store, error) {
	s := &Store{db: db, unique: make(map[string][]string)}
	if err := s.loadIndexMetadata(); err != nil {
		return nil, fmt.Errorf("failed to load indexes: %w", err)
	}
	return s, nil
}

// Open opens a database and a document store that owns it.
func Open(opts storage.Options) (*Store, error) {
	db, err := storage.Open(opts)
	if err != nil {
		return nil, err
	}
	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// Close releases the database when the store owns it.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func (s *Store) check(ctx context.Context, collection string) error {
	if collection == "" || strings.ContainsAny(collection, ":\x00") {
		return fmt.Errorf("%w: %q", store.ErrInvalidCollection, collection)
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return store.ErrClosed
	}
	return ctx.Err()
}

func makeKey(collection string, id primitive.ObjectID) []byte {
	return []byte("doc:" + collection + ":" + id.Hex())
}

func makeCollectionPrefix(collection string) []byte {
	return []byte("doc:" + collection + ":")
}

func docID(doc bson.M) (primitive.ObjectID, error) {
	id, ok := doc["_id"].(primitive.ObjectID)
	if !ok || id.IsZero() {
		return primitive.NilObjectID, fmt.Errorf("%w: document _id must be an object id", store.ErrInvalidID)
	}
	return id, nil
}

func decodeDoc(data []byte) (bson.M, error) {
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("corrupt document: %w", err)
	}
	return doc, nil
}

// scan returns every document of collection matching filter, in key order.
func (s *Store) scan(txn *badger.Txn, collection string, filter query.Filter) ([]bson.M, error) {
	var results []bson.M
	err := storage.ScanPrefix(txn, makeCollectionPrefix(collection), func(_, value []byte) error {
		doc, err := decodeDoc(value)
		if err != nil {
			return err
		}
		if matchesFilters(doc, filter) {
			results = append(results, doc)
		}
		return nil
	})
	return results, err
}

// Find searches for documents matching the query criteria
func (s *Store) Find(ctx context.Context, collection string, filter query.Filter, opts query.FindOptions) ([]store.Document, error) {
	if err := s.check(ctx, collection); err != nil {
		return nil, err
	}

	var results []bson.M
	err := s.db.ReadTxn(func(txn *badger.Txn) error {
		var err error
		results, err = s.scan(txn, collection, filter)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(opts.Sort) > 0 {
		sortResults(results, opts.Sort)
	}
	return window(results, opts.Skip, opts.Limit), nil
}

func window(results []bson.M, skip, limit int64) []store.Document {
	if skip > 0 {
		if skip >= int64(len(results)) {
			results = nil
		} else {
			results = results[skip:]
		}
	}
	if limit > 0 && int64(len(results)) > limit {
		results = results[:limit]
	}
	out := make([]store.Document, len(results))
	for i, d := range results {
		out[i] = d
	}
	return out
}

// sortResults orders documents by the sort keys; ties keep scan order.
func sortResults(results []bson.M, keys query.Sort) {
	sort.SliceStable(results, func(i, j int) bool {
		for _, k := range keys {
			a, _ := lookup(results[i], k.Field)
			b, _ := lookup(results[j], k.Field)
			c, _ := compareValues(a, b)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// Count returns the number of matching documents.
func (s *Store) Count(ctx context.Context, collection string, filter query.Filter) (int64, error) {
	if err := s.check(ctx, collection); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.ReadTxn(func(txn *badger.Txn) error {
		if filter.IsEmpty() {
			n = storage.CountPrefix(txn, makeCollectionPrefix(collection))
			return nil
		}
		docs, err := s.scan(txn, collection, filter)
		n = int64(len(docs))
		return err
	})
	return n, err
}

// Insert adds documents to a collection. The batch is applied atomically:
// a duplicate anywhere in it stores nothing.
func (s *Store) Insert(ctx context.Context, collection string, docs []store.Document) error {
	if err := s.check(ctx, collection); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	uniques := s.uniqueFields(collection)
	return s.db.WriteTxn(func(txn *badger.Txn) error {
		for _, doc := range docs {
			id, err := docID(doc)
			if err != nil {
				return err
			}
			key := makeKey(collection, id)
			exists, err := storage.ExistsKey(txn, key)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: %s _id %s", store.ErrDuplicateKey, collection, id.Hex())
			}
			if err := s.checkUnique(txn, collection, uniques, doc, id); err != nil {
				return err
			}
			data, err := bson.Marshal(doc)
			if err != nil {
				return fmt.Errorf("failed to marshal document: %w", err)
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update modifies the first (or every, when multi) matching document.
func (s *Store) Update(ctx context.Context, collection string, filter query.Filter, update query.Update, multi bool) (store.UpdateResult, error) {
	if err := s.check(ctx, collection); err != nil {
		return store.UpdateResult{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var res store.UpdateResult
	uniques := s.uniqueFields(collection)
	err := s.db.WriteTxn(func(txn *badger.Txn) error {
		res = store.UpdateResult{}
		matched, err := s.scan(txn, collection, filter)
		if err != nil {
			return err
		}
		if !multi && len(matched) > 1 {
			matched = matched[:1]
		}

		for _, doc := range matched {
			res.MatchedCount++
			id, err := docID(doc)
			if err != nil {
				return err
			}

			next, err := applyUpdate(doc, update)
			if err != nil {
				return err
			}
			if reflect.DeepEqual(doc, next) {
				continue
			}
			if err := s.checkUnique(txn, collection, uniques, next, id); err != nil {
				return err
			}
			data, err := bson.Marshal(next)
			if err != nil {
				return fmt.Errorf("failed to marshal document: %w", err)
			}
			if err := txn.Set(makeKey(collection, id), data); err != nil {
				return err
			}
			res.ModifiedCount++
		}
		return nil
	})
	if err != nil {
		return store.UpdateResult{}, err
	}
	return res, nil
}

// applyUpdate returns a re-decoded copy of doc with update applied, so the
// result compares equal to doc when nothing changed.
func applyUpdate(doc bson.M, update query.Update) (bson.M, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	next, err := decodeDoc(data)
	if err != nil {
		return nil, err
	}

	for field, v := range update.Set {
		setPath(next, field, v)
	}
	for _, field := range update.Unset {
		unsetPath(next, field)
	}

	data, err = bson.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return decodeDoc(data)
}

func setPath(doc bson.M, path string, v interface{}) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(bson.M)
		if !ok {
			next = bson.M{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func unsetPath(doc bson.M, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(bson.M)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

// Delete removes the first (or every, when multi) matching document.
func (s *Store) Delete(ctx context.Context, collection string, filter query.Filter, multi bool) (store.DeleteResult, error) {
	if err := s.check(ctx, collection); err != nil {
		return store.DeleteResult{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var res store.DeleteResult
	err := s.db.WriteTxn(func(txn *badger.Txn) error {
		res = store.DeleteResult{}
		matched, err := s.scan(txn, collection, filter)
		if err != nil {
			return err
		}
		if !multi && len(matched) > 1 {
			matched = matched[:1]
		}
		for _, doc := range matched {
			id, err := docID(doc)
			if err != nil {
				return err
			}
			if err := txn.Delete(makeKey(collection, id)); err != nil {
				return err
			}
			res.DeletedCount++
		}
		return nil
	})
	if err != nil {
		return store.DeleteResult{}, err
	}
	return res, nil
}

// Aggregate runs the supported subset of pipeline stages in memory.
func (s *Store) Aggregate(ctx context.Context, collection string, pipeline store.Pipeline) ([]store.Document, error) {
	if err := s.check(ctx, collection); err != nil {
		return nil, err
	}

	var docs []bson.M
	err := s.db.ReadTxn(func(txn *badger.Txn) error {
		var err error
		docs, err = s.scan(txn, collection, query.New())
		return err
	})
	if err != nil {
		return nil, err
	}

	for i, stage := range pipeline {
		docs, err = runStage(docs, stage)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
	}
	return window(docs, 0, 0), nil
}

// EnsureUniqueIndex declares field unique within collection. Existing
// duplicates fail the call.
func (s *Store) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	if err := s.check(ctx, collection); err != nil {
		return err
	}
	if field == "" {
		return fmt.Errorf("%w: empty index field", query.ErrInvalidField)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	for _, f := range s.unique[collection] {
		if f == field {
			s.mu.Unlock()
			return nil
		}
	}
	s.mu.Unlock()

	err := s.db.ReadTxn(func(txn *badger.Txn) error {
		docs, err := s.scan(txn, collection, query.New())
		if err != nil {
			return err
		}
		for i := range docs {
			a, ok := lookup(docs[i], field)
			if !ok {
				continue
			}
			for j := i + 1; j < len(docs); j++ {
				if b, ok := lookup(docs[j], field); ok && equal(a, b) {
					return fmt.Errorf("%w: %s.%s has duplicate value %v", store.ErrDuplicateKey, collection, field, a)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.unique[collection] = append(s.unique[collection], field)
	return s.saveIndexMetadata()
}

// ListIndexes returns the unique fields of a collection.
func (s *Store) ListIndexes(collection string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.unique[collection]...)
}

func (s *Store) uniqueFields(collection string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.unique[collection]...)
}

// checkUnique fails when another document already holds doc's value for
// any unique field. Pending writes of txn are visible to the scan.
func (s *Store) checkUnique(txn *badger.Txn, collection string, fields []string, doc bson.M, id primitive.ObjectID) error {
	for _, field := range fields {
		v, ok := lookup(doc, field)
		if !ok || v == nil {
			continue
		}
		clash, err := s.scan(txn, collection, query.New().Eq(field, v).Ne("_id", id))
		if err != nil {
			return err
		}
		if len(clash) > 0 {
			return fmt.Errorf("%w: %s.%s=%v", store.ErrDuplicateKey, collection, field, v)
		}
	}
	return nil
}

func (s *Store) loadIndexMetadata() error {
	var metadata map[string][]string
	err := s.db.GetJSON(indexMetadataKey, &metadata)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil // No metadata yet
	}
	if err != nil {
		return err
	}
	for collection, fields := range metadata {
		s.unique[collection] = fields
	}
	return nil
}

// saveIndexMetadata must be called with s.mu held.
func (s *Store) saveIndexMetadata() error {
	metadata := make(map[string][]string, len(s.unique))
	for collection, fields := range s.unique {
		metadata[collection] = fields
	}
	return s.db.SetJSON(indexMetadataKey, metadata)
}
