// Package server assembles the HTTP service: routing, the gatekeeper,
// request logging and metrics in front of the content handlers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skshohagmiah/folio/internal/auth"
	"github.com/skshohagmiah/folio/internal/config"
	"github.com/skshohagmiah/folio/internal/content"
	"github.com/skshohagmiah/folio/internal/gatekeeper"
	"github.com/skshohagmiah/folio/internal/handler"
	"github.com/skshohagmiah/folio/internal/metrics"
	"github.com/skshohagmiah/folio/internal/ratelimit"
	"github.com/skshohagmiah/folio/internal/store"
)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Driver  store.Driver
	Limiter gatekeeper.RateLimiter
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// Clock replaces time.Now for document timestamps and token expiry.
	Clock func() time.Time
}

// Server is the HTTP front of the service.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	content *content.Service
	gate    *gatekeeper.Gatekeeper
	router  chi.Router
	http    *http.Server
}

// New wires a Server. It does not touch the network.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Driver == nil {
		return nil, errors.New("server: a store driver is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.New(ratelimit.NewMemoryStore())
	}

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:     []byte(cfg.Auth.Secret),
		Issuer:     cfg.Auth.Issuer,
		CookieName: cfg.Auth.Cookie,
		Clock:      deps.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	svc := content.NewService(deps.Driver, content.Config{
		Verifier:          verifier,
		AdminUser:         cfg.Auth.AdminUser,
		AdminPasswordHash: cfg.Auth.AdminPasswordHash,
		SessionTTL:        cfg.Auth.TTL,
		Logger:            deps.Logger,
		Clock:             deps.Clock,
		Observer:          deps.Metrics.StoreObserver(),
	})

	m := deps.Metrics
	gate := gatekeeper.New(gatekeeper.Config{
		Rules:          Rules(cfg),
		Admin:          verifier,
		Limiter:        deps.Limiter,
		DenyUnmatched:  cfg.Gate.DenyUnmatched,
		TrustedProxies: gatekeeper.ParseCIDRs(cfg.Gate.TrustedProxies),
		Logger:         deps.Logger,
		OnDecision:     m.ObserveGate,
		OnLimiterError: func(error) { m.RateLimitErrors.Inc() },
	})

	s := &Server{
		cfg:     cfg,
		logger:  deps.Logger,
		metrics: m,
		content: svc,
		gate:    gate,
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(deps.Logger.Handler(), slog.LevelWarn),
	}
	return s, nil
}

// Rules returns the full gate rule set: content rules followed by the
// operational endpoints and the admin UI.
func Rules(cfg *config.Config) gatekeeper.Rules {
	rules := content.Rules(cfg.RateLimit.Limit, cfg.RateLimit.Window)
	return append(rules,
		gatekeeper.Rule{Pattern: "/healthz", Visibility: gatekeeper.Public},
		gatekeeper.Rule{Pattern: "/metrics", Visibility: gatekeeper.AdminOnly},
		gatekeeper.Rule{Pattern: "/admin/login", Methods: []string{http.MethodGet}, Visibility: gatekeeper.Public},
	)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(s.gate.Middleware)

	wr := handler.NewWrapper(s.logger)
	r.Get("/healthz", wr.Wrap(func(*http.Request) (handler.Reply, error) {
		return handler.OK(map[string]string{"status": "ok"}), nil
	}))
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/admin/login", adminPage("login"))
	r.Get("/admin", adminPage("dashboard"))
	r.Get("/admin/*", adminPage("dashboard"))

	s.content.Routes(r)
	return r
}

// adminPage serves the minimal admin UI shell.
func adminPage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<!doctype html><title>folio admin</title><main data-page=%q></main>\n", name)
	}
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Content returns the content service.
func (s *Server) Content() *content.Service {
	return s.content
}

// Init prepares the store: unique indexes must exist before serving.
func (s *Server) Init(ctx context.Context) error {
	if err := s.content.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}
	return nil
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server listening", "addr", ln.Addr().String())
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.Addr, err)
	}
	return s.Serve(ln)
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.http.Shutdown(ctx)
}
