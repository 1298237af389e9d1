package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skshohagmiah/folio/internal/auth"
	"github.com/skshohagmiah/folio/internal/config"
	"github.com/skshohagmiah/folio/internal/content"
	"github.com/skshohagmiah/folio/internal/metrics"
	"github.com/skshohagmiah/folio/internal/objectid"
	"github.com/skshohagmiah/folio/internal/pagination"
	"github.com/skshohagmiah/folio/internal/query"
	"github.com/skshohagmiah/folio/internal/storage"
	"github.com/skshohagmiah/folio/internal/store"
	"github.com/skshohagmiah/folio/internal/store/embedded"
)

const testSecret = "server-test-secret-0123"

// countingDriver counts the document operations that reach the store.
type countingDriver struct {
	store.Driver
	calls atomic.Int64
}

func (d *countingDriver) Find(ctx context.Context, c string, f query.Filter, o query.FindOptions) ([]store.Document, error) {
	d.calls.Add(1)
	return d.Driver.Find(ctx, c, f, o)
}

func (d *countingDriver) Insert(ctx context.Context, c string, docs []store.Document) error {
	d.calls.Add(1)
	return d.Driver.Insert(ctx, c, docs)
}

func (d *countingDriver) Update(ctx context.Context, c string, f query.Filter, u query.Update, multi bool) (store.UpdateResult, error) {
	d.calls.Add(1)
	return d.Driver.Update(ctx, c, f, u, multi)
}

func (d *countingDriver) Delete(ctx context.Context, c string, f query.Filter, multi bool) (store.DeleteResult, error) {
	d.calls.Add(1)
	return d.Driver.Delete(ctx, c, f, multi)
}

func (d *countingDriver) Count(ctx context.Context, c string, f query.Filter) (int64, error) {
	d.calls.Add(1)
	return d.Driver.Count(ctx, c, f)
}

type testServer struct {
	srv     *Server
	driver  *countingDriver
	metrics *metrics.Metrics
	admin   string
}

func testConfig(t *testing.T, overrides map[string]interface{}) *config.Config {
	t.Helper()
	v := config.New("")
	v.Set("auth.secret", testSecret)
	v.Set("store.in_memory", true)
	for k, val := range overrides {
		v.Set(k, val)
	}
	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func newTestServer(t *testing.T, overrides map[string]interface{}) *testServer {
	t.Helper()
	cfg := testConfig(t, overrides)

	es, err := embedded.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = es.Close(context.Background()) })

	d := &countingDriver{Driver: es}
	m := metrics.New()
	srv, err := New(cfg, Deps{
		Driver:  d,
		Metrics: m,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.NoError(t, srv.Init(context.Background()))

	v, err := auth.NewVerifier(auth.Config{Secret: []byte(testSecret), Issuer: cfg.Auth.Issuer})
	require.NoError(t, err)
	token, err := v.Sign("admin", auth.RoleAdmin, time.Hour)
	require.NoError(t, err)

	return &testServer{srv: srv, driver: d, metrics: m, admin: token}
}

func (ts *testServer) request(method, path string, body interface{}, admin bool) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "203.0.113.7:5555"
	if admin {
		req.Header.Set("Authorization", "Bearer "+ts.admin)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success    bool             `json:"success"`
	Data       json.RawMessage  `json:"data"`
	Pagination *pagination.Meta `json:"pagination"`
	Error      *struct {
		Kind string `json:"kind"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestPaginatedListing(t *testing.T) {
	ts := newTestServer(t, nil)
	docs := make([]content.Bookmark, 25)
	for i := range docs {
		docs[i] = content.Bookmark{Title: fmt.Sprintf("b%02d", i), URL: "https://example.com"}
	}
	_, err := ts.srv.Content().Bookmarks.InsertMany(context.Background(), docs)
	require.NoError(t, err)

	rec := ts.request(http.MethodGet, "/api/bookmarks?page=2&limit=10", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, pagination.Meta{Page: 2, Limit: 10, Total: 25, TotalPages: 3, HasMore: true}, *env.Pagination)

	var items []content.Bookmark
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 10)
}

func TestUpdateMissingDocument(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.request(http.MethodPut, "/api/articles/65a1b2c3d4e5f60718293a4b", map[string]string{"title": "x"}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", decodeEnvelope(t, rec).Error.Kind)
}

func TestAdminRouteRejectedBeforeStore(t *testing.T) {
	ts := newTestServer(t, nil)
	before := ts.driver.calls.Load()

	rec := ts.request(http.MethodPost, "/api/articles", map[string]string{"title": "t", "body": "b"}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "Unauthorized", env.Error.Kind)
	assert.Equal(t, before, ts.driver.calls.Load())

	assert.Equal(t, float64(1), testutil.ToFloat64(ts.metrics.GateDecisions.WithLabelValues("unauthorized")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ts.metrics.RequestsTotal.WithLabelValues("unmatched", http.MethodPost, "401")))
}

func TestLoginRateLimited(t *testing.T) {
	ts := newTestServer(t, map[string]interface{}{"ratelimit.limit": 3})
	creds := map[string]string{"username": "admin", "password": "wrong"}

	for i := 0; i < 3; i++ {
		rec := ts.request(http.MethodPost, "/api/auth/login", creds, false)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code, "attempt %d", i+1)
	}
	rec := ts.request(http.MethodPost, "/api/auth/login", creds, false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "TooManyRequests", decodeEnvelope(t, rec).Error.Kind)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Other routes are not limited.
	rec = ts.request(http.MethodGet, "/api/auth/session", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOperationalRoutes(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.request(http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = ts.request(http.MethodGet, "/metrics", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = ts.request(http.MethodGet, "/metrics", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "folio_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/healthz"`)
}

func TestAdminUIRedirect(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.request(http.MethodGet, "/admin/posts?draft=1", nil, false)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/login?next="+"%2Fadmin%2Fposts%3Fdraft%3D1", rec.Header().Get("Location"))

	rec = ts.request(http.MethodGet, "/admin/login", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))

	rec = ts.request(http.MethodGet, "/admin/posts", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDenyUnmatched(t *testing.T) {
	open := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, open.request(http.MethodGet, "/nowhere", nil, false).Code)

	closed := newTestServer(t, map[string]interface{}{"gate.deny_unmatched": true})
	rec := closed.request(http.MethodGet, "/nowhere", nil, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", decodeEnvelope(t, rec).Error.Kind)
}

func TestNewRequiresSecretAndDriver(t *testing.T) {
	cfg := testConfig(t, nil)
	_, err := New(cfg, Deps{})
	assert.Error(t, err)

	es, err := embedded.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	defer es.Close(context.Background())
	cfg.Auth.Secret = ""
	_, err = New(cfg, Deps{Driver: es})
	assert.ErrorIs(t, err, auth.ErrNoSecret)
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mr := miniredis.RunT(t)

	for _, backend := range []string{"memory", "badger", "redis"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, map[string]interface{}{
				"ratelimit.backend":    backend,
				"ratelimit.redis_addr": mr.Addr(),
			})
			b, err := OpenBackends(ctx, cfg, logger)
			require.NoError(t, err)

			dec, err := b.Limiter.CheckAndIncrement(ctx, "k", 2, time.Minute)
			require.NoError(t, err)
			assert.Equal(t, int64(1), dec.Count)

			require.NoError(t, b.Driver.Insert(ctx, "things", []store.Document{{"_id": objectid.New(), "n": 1}}))
			n, err := b.Driver.Count(ctx, "things", query.New())
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			assert.NoError(t, b.Close(ctx))
		})
	}
}

func TestOpenBackendsClosesOnFailure(t *testing.T) {
	cfg := testConfig(t, map[string]interface{}{
		"ratelimit.backend":    "redis",
		"ratelimit.redis_addr": "127.0.0.1:1",
	})
	b, err := OpenBackends(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
	assert.Nil(t, b)
}
