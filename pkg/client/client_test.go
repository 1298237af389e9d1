package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/skshohagmiah/folio/internal/config"
	"github.com/skshohagmiah/folio/internal/server"
	"github.com/skshohagmiah/folio/internal/storage"
	"github.com/skshohagmiah/folio/internal/store/embedded"
	"github.com/skshohagmiah/folio/pkg/client"
)

type article struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Slug      string   `json:"slug"`
	Body      string   `json:"body"`
	Tags      []string `json:"tags"`
	Published bool     `json:"published"`
}

func startServer(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pa55word"), bcrypt.MinCost)
	require.NoError(t, err)

	v := config.New("")
	v.Set("auth.secret", "client-test-secret-123")
	v.Set("auth.admin_user", "admin")
	v.Set("auth.admin_password_hash", string(hash))
	v.Set("store.in_memory", true)
	cfg, err := config.Load(v)
	require.NoError(t, err)

	es, err := embedded.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = es.Close(context.Background()) })

	srv, err := server.New(cfg, server.Deps{Driver: es, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	require.NoError(t, srv.Init(context.Background()))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := client.New("not a url", nil)
	assert.Error(t, err)
	_, err = client.New("http://localhost:8080/", nil)
	assert.NoError(t, err)
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := client.New(startServer(t), nil)
	require.NoError(t, err)

	_, err = client.Create[article](ctx, c, client.Articles, map[string]interface{}{"title": "x", "body": "y"})
	var ae *client.APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
	assert.Equal(t, "Unauthorized", ae.Kind)

	err = c.Login(ctx, "admin", "nope")
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusUnauthorized, ae.Status)

	require.NoError(t, c.Login(ctx, "admin", "pa55word"))

	created, err := client.Create[article](ctx, c, client.Articles, map[string]interface{}{
		"title":     "Client Post",
		"body":      "hello",
		"tags":      []string{"go"},
		"published": true,
	})
	require.NoError(t, err)
	assert.Equal(t, "client-post", created.Slug)
	require.Len(t, created.ID, 24)

	got, err := client.Get[article](ctx, c, client.Articles, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Body)

	updated, err := client.Update[article](ctx, c, client.Articles, created.ID, map[string]interface{}{"body": "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Body)

	page, err := client.List[article](ctx, c, client.Articles, client.ListOptions{
		Limit: 5,
		Sort:  "title",
		Extra: url.Values{"tag": {"go"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Meta.Total)
	assert.Equal(t, 5, page.Meta.Limit)
	require.Len(t, page.Items, 1)

	require.NoError(t, c.Delete(ctx, client.Articles, created.ID))
	_, err = client.Get[article](ctx, c, client.Articles, created.ID)
	assert.True(t, client.IsNotFound(err))

	err = c.Delete(ctx, client.Articles, created.ID)
	assert.True(t, client.IsNotFound(err))
}
