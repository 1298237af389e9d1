package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skshohagmiah/folio/internal/objectid"
	"github.com/skshohagmiah/folio/internal/pagination"
	"github.com/skshohagmiah/folio/internal/query"
)

// Observer receives one call per driver operation.
type Observer func(collection, op string, elapsed time.Duration, err error)

// Option configures a Collection.
type Option func(*settings)

type settings struct {
	idFields   []string
	timestamps bool
	clock      func() time.Time
	maxLimit   int
	observer   Observer
}

// WithIDFields declares additional fields holding identifiers. _id is
// always an identifier field.
func WithIDFields(fields ...string) Option {
	return func(s *settings) { s.idFields = append(s.idFields, fields...) }
}

// WithTimestamps maintains createdAt on insert and updatedAt on every write.
func WithTimestamps() Option {
	return func(s *settings) { s.timestamps = true }
}

// WithClock replaces time.Now for timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *settings) { s.clock = clock }
}

// WithMaxLimit caps the page size Paginate will honor.
func WithMaxLimit(n int) Option {
	return func(s *settings) { s.maxLimit = n }
}

// WithObserver registers an operation observer (metrics, tracing).
func WithObserver(o Observer) Option {
	return func(s *settings) { s.observer = o }
}

// Collection is a typed handle on one named collection. Handles are created
// once at startup and are safe for concurrent use; they hold no mutable
// state of their own.
type Collection[T any] struct {
	driver Driver
	name   string
	cfg    settings
}

// NewCollection creates the handle for collection name holding documents of
// shape T. T must map its identifier to the "_id" field.
func NewCollection[T any](driver Driver, name string, opts ...Option) *Collection[T] {
	cfg := settings{
		idFields: []string{"_id"},
		clock:    time.Now,
		maxLimit: pagination.MaxLimit,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Collection[T]{driver: driver, name: name, cfg: cfg}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// IDFields returns the fields normalized as identifiers.
func (c *Collection[T]) IDFields() []string {
	return append([]string(nil), c.cfg.idFields...)
}

func (c *Collection[T]) observe(op string, start time.Time, err error) {
	if c.cfg.observer != nil {
		c.cfg.observer(c.name, op, time.Since(start), err)
	}
}

func (c *Collection[T]) normalize(f query.Filter) (query.Filter, error) {
	nf, err := f.Normalize(c.cfg.idFields...)
	if err != nil {
		return query.Filter{}, err
	}
	if err := nf.Validate(); err != nil {
		return query.Filter{}, err
	}
	return nf, nil
}

// FindOne returns the first matching document, or nil when nothing matches.
func (c *Collection[T]) FindOne(ctx context.Context, filter query.Filter) (*T, error) {
	return c.findOne(ctx, filter, nil)
}

// FindOneSorted is FindOne with an explicit order.
func (c *Collection[T]) FindOneSorted(ctx context.Context, filter query.Filter, sort query.Sort) (*T, error) {
	return c.findOne(ctx, filter, sort)
}

func (c *Collection[T]) findOne(ctx context.Context, filter query.Filter, sort query.Sort) (*T, error) {
	items, err := c.Find(ctx, filter, query.FindOptions{Sort: sort, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// Find returns every matching document. Order is exactly opts.Sort; with no
// sort the order is undefined.
func (c *Collection[T]) Find(ctx context.Context, filter query.Filter, opts query.FindOptions) (items []T, err error) {
	start := time.Now()
	defer func() { c.observe("find", start, err) }()

	nf, err := c.normalize(filter)
	if err != nil {
		return nil, err
	}
	if opts.Skip < 0 || opts.Limit < 0 {
		return nil, fmt.Errorf("%w: negative skip or limit", query.ErrInvalidOperand)
	}
	docs, err := c.driver.Find(ctx, c.name, nf, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](docs)
}

// FindByID returns the document with the given identifier. A malformed
// identifier is reported as absence (nil, nil); callers decide whether
// absence is an error.
func (c *Collection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	oid, ok := objectid.Parse(id)
	if !ok {
		return nil, nil
	}
	return c.FindOne(ctx, query.ByID(oid))
}

// InsertOne stores doc, assigning a new identifier when it has none, and
// returns the stored document.
func (c *Collection[T]) InsertOne(ctx context.Context, doc T) (T, error) {
	res, err := c.InsertMany(ctx, []T{doc})
	if err != nil {
		var zero T
		return zero, err
	}
	return res[0], nil
}

// Insert is InsertOne returning the result value type.
func (c *Collection[T]) Insert(ctx context.Context, doc T) (InsertResult[T], error) {
	out, err := c.InsertOne(ctx, doc)
	return InsertResult[T]{Document: out}, err
}

// InsertMany stores docs and returns them with identifiers assigned.
func (c *Collection[T]) InsertMany(ctx context.Context, docs []T) (out []T, err error) {
	start := time.Now()
	defer func() { c.observe("insert", start, err) }()

	if len(docs) == 0 {
		return []T{}, nil
	}

	now := primitive.NewDateTimeFromTime(c.cfg.clock())
	raw := make([]Document, len(docs))
	for i, d := range docs {
		doc, err := encode(d)
		if err != nil {
			return nil, err
		}
		if err := normalizeDocument(doc, c.cfg.idFields); err != nil {
			return nil, err
		}
		if !hasID(doc) {
			doc["_id"] = objectid.New()
		}
		if c.cfg.timestamps {
			if isZeroTime(doc["createdAt"]) {
				doc["createdAt"] = now
			}
			doc["updatedAt"] = now
		}
		raw[i] = doc
	}

	if err := c.driver.Insert(ctx, c.name, raw); err != nil {
		return nil, err
	}
	return decodeAll[T](raw)
}

func (c *Collection[T]) prepareUpdate(update query.Update) (query.Update, error) {
	if update.IsEmpty() {
		return query.Update{}, ErrEmptyUpdate
	}
	nu, err := update.Normalize(c.cfg.idFields...)
	if err != nil {
		return query.Update{}, err
	}
	if _, touchesID := nu.Set["_id"]; touchesID {
		return query.Update{}, fmt.Errorf("%w: _id is immutable", query.ErrInvalidField)
	}
	if c.cfg.timestamps {
		nu = nu.SetField("updatedAt", primitive.NewDateTimeFromTime(c.cfg.clock()))
	}
	return nu, nil
}

// UpdateOne applies update to the first matching document.
func (c *Collection[T]) UpdateOne(ctx context.Context, filter query.Filter, update query.Update) (UpdateResult, error) {
	return c.update(ctx, filter, update, false)
}

// UpdateMany applies update to every matching document.
func (c *Collection[T]) UpdateMany(ctx context.Context, filter query.Filter, update query.Update) (UpdateResult, error) {
	return c.update(ctx, filter, update, true)
}

func (c *Collection[T]) update(ctx context.Context, filter query.Filter, update query.Update, multi bool) (res UpdateResult, err error) {
	start := time.Now()
	defer func() { c.observe("update", start, err) }()

	nf, err := c.normalize(filter)
	if err != nil {
		return UpdateResult{}, err
	}
	nu, err := c.prepareUpdate(update)
	if err != nil {
		return UpdateResult{}, err
	}
	return c.driver.Update(ctx, c.name, nf, nu, multi)
}

// UpdateByID updates the document with the given identifier. A malformed
// identifier fails with ErrInvalidID before the driver is called.
func (c *Collection[T]) UpdateByID(ctx context.Context, id string, update query.Update) (UpdateResult, error) {
	oid, ok := objectid.Parse(id)
	if !ok {
		return UpdateResult{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return c.UpdateOne(ctx, query.ByID(oid), update)
}

// DeleteOne removes the first matching document.
func (c *Collection[T]) DeleteOne(ctx context.Context, filter query.Filter) (DeleteResult, error) {
	return c.delete(ctx, filter, false)
}

// DeleteMany removes every matching document.
func (c *Collection[T]) DeleteMany(ctx context.Context, filter query.Filter) (DeleteResult, error) {
	return c.delete(ctx, filter, true)
}

func (c *Collection[T]) delete(ctx context.Context, filter query.Filter, multi bool) (res DeleteResult, err error) {
	start := time.Now()
	defer func() { c.observe("delete", start, err) }()

	nf, err := c.normalize(filter)
	if err != nil {
		return DeleteResult{}, err
	}
	return c.driver.Delete(ctx, c.name, nf, multi)
}

// DeleteByID removes the document with the given identifier. A malformed
// identifier fails with ErrInvalidID before the driver is called.
func (c *Collection[T]) DeleteByID(ctx context.Context, id string) (DeleteResult, error) {
	oid, ok := objectid.Parse(id)
	if !ok {
		return DeleteResult{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return c.DeleteOne(ctx, query.ByID(oid))
}

// CountDocuments returns the number of matching documents.
func (c *Collection[T]) CountDocuments(ctx context.Context, filter query.Filter) (n int64, err error) {
	start := time.Now()
	defer func() { c.observe("count", start, err) }()

	nf, err := c.normalize(filter)
	if err != nil {
		return 0, err
	}
	return c.driver.Count(ctx, c.name, nf)
}

// Paginate returns one sorted page of matching documents. The count and the
// windowed find are separate driver calls and are not transactionally
// linked: under concurrent writes Total and Items may briefly disagree.
func (c *Collection[T]) Paginate(ctx context.Context, filter query.Filter, req pagination.Request, sort query.Sort) (pagination.Result[T], error) {
	req = pagination.NewRequest(req.Page, req.Limit, c.cfg.maxLimit)

	total, err := c.CountDocuments(ctx, filter)
	if err != nil {
		return pagination.Result[T]{}, err
	}
	meta := pagination.Compute(req.Page, req.Limit, total)

	if int64(req.Page) > meta.TotalPages || req.Skip() >= total {
		return pagination.NewResult[T](nil, meta), nil
	}

	items, err := c.Find(ctx, filter, query.FindOptions{
		Sort:  sort,
		Skip:  req.Skip(),
		Limit: int64(req.Limit),
	})
	if err != nil {
		return pagination.Result[T]{}, err
	}
	return pagination.NewResult(items, meta), nil
}

// Aggregate runs pipeline against c and decodes each output document into
// R. The pipeline shape is not validated.
func Aggregate[R, T any](ctx context.Context, c *Collection[T], pipeline Pipeline) (out []R, err error) {
	start := time.Now()
	defer func() { c.observe("aggregate", start, err) }()

	docs, err := c.driver.Aggregate(ctx, c.name, pipeline)
	if err != nil {
		return nil, err
	}
	return decodeAll[R](docs)
}

// EnsureUniqueIndex declares field unique within the collection.
func (c *Collection[T]) EnsureUniqueIndex(ctx context.Context, field string) error {
	return c.driver.EnsureUniqueIndex(ctx, c.name, field)
}
