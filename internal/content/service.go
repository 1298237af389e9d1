package content

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skshohagmiah/folio/internal/auth"
	"github.com/skshohagmiah/folio/internal/handler"
	"github.com/skshohagmiah/folio/internal/query"
	"github.com/skshohagmiah/folio/internal/store"
)

// DefaultSessionTTL is the lifetime of a login session.
const DefaultSessionTTL = 24 * time.Hour

// Config configures a Service.
type Config struct {
	Verifier *auth.Verifier

	// AdminUser and AdminPasswordHash are the single admin account. Login
	// is refused while the hash is empty.
	AdminUser         string
	AdminPasswordHash string
	SessionTTL        time.Duration

	Logger *slog.Logger
	// Clock stamps createdAt and updatedAt. Defaults to time.Now.
	Clock    func() time.Time
	Observer store.Observer
}

// Service owns the content collections and their HTTP handlers.
type Service struct {
	Articles   *store.Collection[Article]
	Categories *store.Collection[Category]
	Bookmarks  *store.Collection[Bookmark]

	cfg       Config
	wr        *handler.Wrapper
	bookmarks *Resource[Bookmark]
}

// NewService creates the collections on driver.
func NewService(driver store.Driver, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	opts := make([]store.Option, 0, 4)
	opts = append(opts, store.WithTimestamps())
	if cfg.Clock != nil {
		opts = append(opts, store.WithClock(cfg.Clock))
	}
	if cfg.Observer != nil {
		opts = append(opts, store.WithObserver(cfg.Observer))
	}

	s := &Service{
		Articles:   store.NewCollection[Article](driver, ArticlesCollection, append(opts, store.WithIDFields("categoryId"))...),
		Categories: store.NewCollection[Category](driver, CategoriesCollection, opts...),
		Bookmarks:  store.NewCollection[Bookmark](driver, BookmarksCollection, opts...),
		cfg:        cfg,
		wr:         handler.NewWrapper(cfg.Logger),
	}
	s.bookmarks = &Resource[Bookmark]{
		Name:     "bookmark",
		Coll:     s.Bookmarks,
		Required: []string{"title", "url"},
		Sort:     query.Desc("createdAt"),
		Sortable: []string{"createdAt", "updatedAt", "title"},
	}
	return s
}

// EnsureIndexes declares the unique indexes the handlers rely on.
func (s *Service) EnsureIndexes(ctx context.Context) error {
	if err := s.Categories.EnsureUniqueIndex(ctx, "name"); err != nil {
		return err
	}
	if err := s.Categories.EnsureUniqueIndex(ctx, "slug"); err != nil {
		return err
	}
	return s.Articles.EnsureUniqueIndex(ctx, "slug")
}

// Routes mounts every content route on r.
func (s *Service) Routes(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", s.wr.Wrap(s.login))
		r.Post("/logout", s.wr.Wrap(s.logout))
		r.Get("/session", s.wr.Wrap(s.session))
	})
	r.Route("/api/articles", func(r chi.Router) {
		r.Get("/", s.wr.Wrap(s.listArticles))
		r.Post("/", s.wr.Wrap(s.createArticle))
		r.Get("/{id}", s.wr.Wrap(s.getArticle))
		r.Put("/{id}", s.wr.Wrap(s.updateArticle))
		r.Delete("/{id}", s.wr.Wrap(s.deleteArticle))
	})
	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", s.wr.Wrap(s.listCategories))
		r.Post("/", s.wr.Wrap(s.createCategory))
		r.Get("/stats", s.wr.Wrap(s.categoryStats))
		r.Get("/{id}", s.wr.Wrap(s.getCategory))
		r.Put("/{id}", s.wr.Wrap(s.updateCategory))
		r.Delete("/{id}", s.wr.Wrap(s.deleteCategory))
	})
	r.Route("/api/bookmarks", func(r chi.Router) {
		s.bookmarks.Mount(r, s.wr)
	})
}

func (s *Service) isAdmin(r *http.Request) bool {
	return s.cfg.Verifier.IsAdmin(r)
}
