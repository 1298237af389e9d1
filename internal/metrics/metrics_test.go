package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skshohagmiah/folio/internal/store"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/articles/{id}", http.MethodGet, 200, 10*time.Millisecond)
	m.ObserveRequest("/api/articles/{id}", http.MethodGet, 200, 5*time.Millisecond)
	m.ObserveRequest("", http.MethodGet, 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/articles/{id}", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("unmatched", "GET", "404")))
}

func TestObserveGate(t *testing.T) {
	m := New()
	m.ObserveGate("allow")
	m.ObserveGate("unauthorized")
	m.ObserveGate("allow")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GateDecisions.WithLabelValues("allow")))
}

func TestStoreObserver(t *testing.T) {
	m := New()
	obs := m.StoreObserver()
	obs("articles", "find", time.Millisecond, nil)
	obs("articles", "insert", time.Millisecond, store.ErrDuplicateKey)
	obs("articles", "insert", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 3, testutil.CollectAndCount(m.StoreOperations))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveGate("allow")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `folio_gate_decisions_total{outcome="allow"} 1`)
}
