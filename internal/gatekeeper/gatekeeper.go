// Package gatekeeper decides, before routing, whether a request may reach
// its handler: public routes pass, admin routes need a valid token, rate
// limited routes consult the limiter, and admin areas need a session.
//
// Requests matching no rule are allowed unless DenyUnmatched is set, so a
// new route is open until a rule says otherwise.
package gatekeeper

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/skshohagmiah/folio/internal/apperr"
	"github.com/skshohagmiah/folio/internal/ratelimit"
	"github.com/skshohagmiah/folio/internal/response"
)

// AdminChecker reports whether a request carries a valid admin session.
type AdminChecker interface {
	IsAdmin(r *http.Request) bool
}

// RateLimiter counts hits per key.
type RateLimiter interface {
	CheckAndIncrement(ctx context.Context, key string, limit int64, window time.Duration) (ratelimit.Decision, error)
}

// Outcome is the terminal state of an evaluation.
type Outcome int

const (
	Allow Outcome = iota
	Unauthorized
	TooManyRequests
	Redirect
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Unauthorized:
		return "unauthorized"
	case TooManyRequests:
		return "too_many_requests"
	case Redirect:
		return "redirect"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// Decision is the result of Evaluate.
type Decision struct {
	Outcome Outcome
	Matched bool
	Rule    Rule
	// RetryAfter is set for TooManyRequests.
	RetryAfter time.Duration
	// Location is set for Redirect.
	Location string
}

// Config configures a Gatekeeper.
type Config struct {
	Rules   Rules
	Admin   AdminChecker
	Limiter RateLimiter

	// AdminUIPrefix and AdminAPIPrefix mark the admin areas. Defaults are
	// "/admin" and "/api/admin".
	AdminUIPrefix  string
	AdminAPIPrefix string
	// LoginPath is the redirect target for the admin UI. Default
	// "/admin/login".
	LoginPath string

	DenyUnmatched  bool
	TrustedProxies []*net.IPNet

	Logger *slog.Logger
	// OnDecision, when set, is called with each outcome name.
	OnDecision func(outcome string)
	// OnLimiterError, when set, is called for each limiter failure.
	OnLimiterError func(err error)
}

// Gatekeeper evaluates Config against requests. It holds no per-request
// state and is safe for concurrent use.
type Gatekeeper struct {
	rules          Rules
	admin          AdminChecker
	limiter        RateLimiter
	uiPrefix       string
	apiPrefix      string
	loginPath      string
	denyUnmatched  bool
	trusted        []*net.IPNet
	logger         *slog.Logger
	onDecision     func(string)
	onLimiterError func(error)
}

// New creates a Gatekeeper.
func New(cfg Config) *Gatekeeper {
	g := &Gatekeeper{
		rules:          append(Rules(nil), cfg.Rules...),
		admin:          cfg.Admin,
		limiter:        cfg.Limiter,
		uiPrefix:       cfg.AdminUIPrefix,
		apiPrefix:      cfg.AdminAPIPrefix,
		loginPath:      cfg.LoginPath,
		denyUnmatched:  cfg.DenyUnmatched,
		trusted:        cfg.TrustedProxies,
		logger:         cfg.Logger,
		onDecision:     cfg.OnDecision,
		onLimiterError: cfg.OnLimiterError,
	}
	if g.uiPrefix == "" {
		g.uiPrefix = "/admin"
	}
	if g.apiPrefix == "" {
		g.apiPrefix = "/api/admin"
	}
	if g.loginPath == "" {
		g.loginPath = "/admin/login"
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Evaluate runs the decision sequence for r:
//
//  1. find the first matching rule;
//  2. a public rule allows immediately;
//  3. an admin-only rule without a valid admin token is Unauthorized;
//  4. a rate limited rule over its limit is TooManyRequests;
//  5. an admin area request not matched as public or admin-only needs a
//     session: UI paths redirect to the login page, API paths are
//     Unauthorized;
//  6. anything else is allowed (or Forbidden when unmatched and
//     DenyUnmatched is set).
func (g *Gatekeeper) Evaluate(r *http.Request) Decision {
	rule, matched := g.rules.Match(r.Method, r.URL.Path)
	d := Decision{Matched: matched, Rule: rule}

	if matched && rule.Visibility == Public {
		return d
	}

	if matched && rule.Visibility == AdminOnly && !g.isAdmin(r) {
		d.Outcome = Unauthorized
		return d
	}

	if matched && rule.RateLimited {
		if exceeded, retry := g.checkLimit(r, rule); exceeded {
			d.Outcome = TooManyRequests
			d.RetryAfter = retry
			return d
		}
	}

	if !matched || rule.Visibility == Standard {
		path := r.URL.Path
		switch {
		case HasPathPrefix(path, g.apiPrefix):
			if !g.isAdmin(r) {
				d.Outcome = Unauthorized
				return d
			}
		case HasPathPrefix(path, g.uiPrefix):
			if !g.isAdmin(r) {
				d.Outcome = Redirect
				d.Location = g.loginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
				return d
			}
		}
	}

	if !matched && g.denyUnmatched {
		d.Outcome = Forbidden
	}
	return d
}

func (g *Gatekeeper) isAdmin(r *http.Request) bool {
	return g.admin != nil && g.admin.IsAdmin(r)
}

// checkLimit fails open: a limiter error allows the request.
func (g *Gatekeeper) checkLimit(r *http.Request, rule Rule) (bool, time.Duration) {
	if g.limiter == nil || rule.Limit <= 0 || rule.Window <= 0 {
		return false, 0
	}
	key := rule.bucket() + "|" + g.clientIP(r)
	dec, err := g.limiter.CheckAndIncrement(r.Context(), key, rule.Limit, rule.Window)
	if err != nil {
		g.logger.Warn("rate limiter unavailable, allowing request",
			"key", key,
			"error", err)
		if g.onLimiterError != nil {
			g.onLimiterError(err)
		}
		return false, 0
	}
	return dec.Exceeded, dec.RetryAfter
}

// Middleware enforces Evaluate in front of next.
func (g *Gatekeeper) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Evaluate(r)
		if g.onDecision != nil {
			g.onDecision(d.Outcome.String())
		}

		switch d.Outcome {
		case Allow:
			next.ServeHTTP(w, r)
			return
		case Unauthorized:
			g.write(w, r, apperr.Unauthorized("authentication required"))
		case Forbidden:
			g.write(w, r, apperr.Forbidden("route is not available"))
		case TooManyRequests:
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
			g.write(w, r, apperr.TooManyRequests("too many requests, try again later"))
		case Redirect:
			http.Redirect(w, r, d.Location, http.StatusFound)
		}

		g.logger.Debug("request gated",
			"outcome", d.Outcome.String(),
			"method", r.Method,
			"path", r.URL.Path,
			"rule", d.Rule.Pattern)
	})
}

func (g *Gatekeeper) write(w http.ResponseWriter, r *http.Request, err *apperr.Error) {
	if werr := response.Write(w, err.Status(), response.Failure(err)); werr != nil {
		g.logger.Warn("failed to write response", "path", r.URL.Path, "error", werr)
	}
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
