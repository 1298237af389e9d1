// Package mongostore implements store.Driver against a MongoDB server.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/skshohagmiah/folio/internal/query"
	"github.com/skshohagmiah/folio/internal/store"
)

// Options configures the connection.
type Options struct {
	URI      string
	Database string
	// Timeout bounds connecting and each operation without its own
	// deadline. Zero means 10s.
	Timeout time.Duration
}

// Store is a store.Driver backed by one MongoDB database.
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

var _ store.Driver = (*Store)(nil)

// Connect dials the server and verifies it with a ping.
func Connect(ctx context.Context, opts Options) (*Store, error) {
	if opts.URI == "" || opts.Database == "" {
		return nil, errors.New("mongostore: uri and database are required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	cctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(opts.URI).SetTimeout(opts.Timeout))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}

	return &Store{client: client, db: client.Database(opts.Database), timeout: opts.Timeout}, nil
}

func (s *Store) coll(name string) (*mongo.Collection, error) {
	if name == "" {
		return nil, store.ErrInvalidCollection
	}
	return s.db.Collection(name), nil
}

// Find implements store.Driver.
func (s *Store) Find(ctx context.Context, collection string, filter query.Filter, opts query.FindOptions) ([]store.Document, error) {
	c, err := s.coll(collection)
	if err != nil {
		return nil, err
	}

	cur, err := c.Find(ctx, filter.BSON(), findOptions(opts))
	if err != nil {
		return nil, mapError(err)
	}
	docs := []store.Document{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapError(err)
	}
	return docs, nil
}

func findOptions(opts query.FindOptions) *options.FindOptions {
	fo := options.Find()
	if len(opts.Sort) > 0 {
		fo.SetSort(opts.Sort.BSON())
	}
	if opts.Skip > 0 {
		fo.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	return fo
}

// Insert implements store.Driver. The batch is ordered: documents before a
// failing one remain stored.
func (s *Store) Insert(ctx context.Context, collection string, docs []store.Document) error {
	c, err := s.coll(collection)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	batch := make([]interface{}, len(docs))
	for i, d := range docs {
		batch[i] = d
	}
	_, err = c.InsertMany(ctx, batch)
	return mapError(err)
}

// Update implements store.Driver.
func (s *Store) Update(ctx context.Context, collection string, filter query.Filter, update query.Update, multi bool) (store.UpdateResult, error) {
	c, err := s.coll(collection)
	if err != nil {
		return store.UpdateResult{}, err
	}

	var res *mongo.UpdateResult
	if multi {
		res, err = c.UpdateMany(ctx, filter.BSON(), update.BSON())
	} else {
		res, err = c.UpdateOne(ctx, filter.BSON(), update.BSON())
	}
	if err != nil {
		return store.UpdateResult{}, mapError(err)
	}
	return store.UpdateResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}, nil
}

// Delete implements store.Driver.
func (s *Store) Delete(ctx context.Context, collection string, filter query.Filter, multi bool) (store.DeleteResult, error) {
	c, err := s.coll(collection)
	if err != nil {
		return store.DeleteResult{}, err
	}

	var res *mongo.DeleteResult
	if multi {
		res, err = c.DeleteMany(ctx, filter.BSON())
	} else {
		res, err = c.DeleteOne(ctx, filter.BSON())
	}
	if err != nil {
		return store.DeleteResult{}, mapError(err)
	}
	return store.DeleteResult{DeletedCount: res.DeletedCount}, nil
}

// Count implements store.Driver.
func (s *Store) Count(ctx context.Context, collection string, filter query.Filter) (int64, error) {
	c, err := s.coll(collection)
	if err != nil {
		return 0, err
	}
	n, err := c.CountDocuments(ctx, filter.BSON())
	return n, mapError(err)
}

// Aggregate implements store.Driver.
func (s *Store) Aggregate(ctx context.Context, collection string, pipeline store.Pipeline) ([]store.Document, error) {
	c, err := s.coll(collection)
	if err != nil {
		return nil, err
	}

	cur, err := c.Aggregate(ctx, toPipeline(pipeline))
	if err != nil {
		return nil, mapError(err)
	}
	docs := []store.Document{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapError(err)
	}
	return docs, nil
}

func toPipeline(p store.Pipeline) mongo.Pipeline {
	out := make(mongo.Pipeline, len(p))
	copy(out, p)
	return out
}

// EnsureUniqueIndex implements store.Driver.
func (s *Store) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	c, err := s.coll(collection)
	if err != nil {
		return err
	}
	_, err = c.Indexes().CreateOne(ctx, uniqueIndex(field))
	return mapError(err)
}

func uniqueIndex(field string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true).SetName(field + "_unique"),
	}
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", store.ErrDuplicateKey, err)
	case errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %v", store.ErrClosed, err)
	}
	return err
}
