package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skshohagmiah/folio/internal/config"
	"github.com/skshohagmiah/folio/internal/ratelimit"
	"github.com/skshohagmiah/folio/internal/storage"
	"github.com/skshohagmiah/folio/internal/store"
	"github.com/skshohagmiah/folio/internal/store/embedded"
	"github.com/skshohagmiah/folio/internal/store/mongostore"
)

// sweepInterval is how often the in-memory limiter drops expired windows.
const sweepInterval = time.Minute

// Backends are the stateful resources selected by configuration.
type Backends struct {
	Driver  store.Driver
	Limiter *ratelimit.Limiter

	closers []func(context.Context) error
}

// OpenBackends opens the document store and the rate limit counter store
// described by cfg. On error everything already opened is closed.
func OpenBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (b *Backends, err error) {
	b = &Backends{}
	defer func() {
		if err != nil {
			_ = b.Close(context.Background())
			b = nil
		}
	}()

	var db *storage.DB
	switch cfg.Store.Driver {
	case "embedded":
		db, err = storage.Open(storage.Options{Path: cfg.Store.Path, InMemory: cfg.Store.InMemory})
		if err != nil {
			return nil, err
		}
		b.onClose(func(context.Context) error { return db.Close() })
		es, err := embedded.New(db)
		if err != nil {
			return nil, err
		}
		b.Driver = es
		b.onClose(es.Close)
		logger.Info("document store opened", "driver", "embedded", "path", cfg.Store.Path, "in_memory", cfg.Store.InMemory)
	case "mongo":
		ms, err := mongostore.Connect(ctx, mongostore.Options{
			URI:      cfg.Store.MongoURI,
			Database: cfg.Store.Database,
			Timeout:  cfg.Store.Timeout,
		})
		if err != nil {
			return nil, err
		}
		b.Driver = ms
		b.onClose(ms.Close)
		logger.Info("document store opened", "driver", "mongo", "database", cfg.Store.Database)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	var counters ratelimit.CounterStore
	switch cfg.RateLimit.Backend {
	case "memory":
		mem := ratelimit.NewMemoryStore()
		sctx, cancel := context.WithCancel(context.Background())
		go mem.RunSweeper(sctx, sweepInterval)
		b.onClose(func(context.Context) error { cancel(); return nil })
		counters = mem
	case "badger":
		if db == nil {
			return nil, errors.New("the badger rate limit backend needs the embedded store")
		}
		counters = ratelimit.NewBadgerStore(db)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		b.onClose(func(context.Context) error { return client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RateLimit.RedisAddr, err)
		}
		counters = ratelimit.NewRedisStore(client)
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.RateLimit.Backend)
	}
	b.Limiter = ratelimit.New(counters)
	logger.Info("rate limiter ready", "backend", cfg.RateLimit.Backend)
	return b, nil
}

func (b *Backends) onClose(fn func(context.Context) error) {
	b.closers = append(b.closers, fn)
}

// Close releases the backends in reverse order of opening.
func (b *Backends) Close(ctx context.Context) error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
