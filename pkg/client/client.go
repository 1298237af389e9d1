// Package client is a Go client for the folio JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Resource names.
const (
	Articles   = "articles"
	Categories = "categories"
	Bookmarks  = "bookmarks"
)

// APIError is a failure envelope returned by the server.
type APIError struct {
	Status  int
	Kind    string
	Message string
	Details map[string]interface{}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("folio: %d %s: %s", e.Status, e.Kind, e.Message)
}

// IsNotFound reports whether err is a NotFound APIError.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Kind == "NotFound"
}

// Meta is the pagination block of a listing.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items []T
	Meta  Meta
}

// ListOptions are the common listing parameters. Extra holds
// resource-specific filters such as "tag" or "category".
type ListOptions struct {
	Page  int
	Limit int
	Sort  string
	Extra url.Values
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	for k, vals := range o.Extra {
		v[k] = append([]string(nil), vals...)
	}
	if o.Page > 0 {
		v.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Sort != "" {
		v.Set("sort", o.Sort)
	}
	return v
}

// Options configure a Client.
type Options struct {
	HTTPClient *http.Client
	// Token is sent as a bearer token. Login sets it.
	Token   string
	Timeout time.Duration
}

// Client talks to one folio server. It is safe for concurrent use.
type Client struct {
	base string
	http *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts *Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("folio: invalid base URL %q", baseURL)
	}
	if opts == nil {
		opts = &Options{}
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc, token: opts.Token}, nil
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Pagination *Meta           `json:"pagination"`
	Error      *struct {
		Kind    string                 `json:"kind"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) (*envelope, *http.Response, error) {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("folio: failed to marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp, &APIError{Status: resp.StatusCode, Kind: "InvalidResponse", Message: err.Error()}
	}
	if !env.Success {
		ae := &APIError{Status: resp.StatusCode, Kind: "InternalError"}
		if env.Error != nil {
			ae.Kind, ae.Message, ae.Details = env.Error.Kind, env.Error.Message, env.Error.Details
		}
		return nil, resp, ae
	}
	return &env, resp, nil
}

func decodeData[T any](env *envelope) (T, error) {
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("folio: failed to decode data: %w", err)
	}
	return out, nil
}

// Login authenticates as the admin and keeps the session token.
func (c *Client) Login(ctx context.Context, username, password string) error {
	_, resp, err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return err
	}
	for _, ck := range resp.Cookies() {
		if ck.Value != "" {
			c.SetToken(ck.Value)
			return nil
		}
	}
	return errors.New("folio: login response carried no session cookie")
}

// List fetches one page of resource.
func List[T any](ctx context.Context, c *Client, resource string, opts ListOptions) (Page[T], error) {
	env, _, err := c.do(ctx, http.MethodGet, "/api/"+resource, opts.values(), nil)
	if err != nil {
		return Page[T]{}, err
	}
	items, err := decodeData[[]T](env)
	if err != nil {
		return Page[T]{}, err
	}
	p := Page[T]{Items: items}
	if env.Pagination != nil {
		p.Meta = *env.Pagination
	}
	return p, nil
}

// Get fetches one document by identifier.
func Get[T any](ctx context.Context, c *Client, resource, id string) (T, error) {
	env, _, err := c.do(ctx, http.MethodGet, "/api/"+resource+"/"+url.PathEscape(id), nil, nil)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeData[T](env)
}

// Create stores doc and returns the created document.
func Create[T any](ctx context.Context, c *Client, resource string, doc interface{}) (T, error) {
	env, _, err := c.do(ctx, http.MethodPost, "/api/"+resource, nil, doc)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeData[T](env)
}

// Update applies a partial update; nil values clear fields.
func Update[T any](ctx context.Context, c *Client, resource, id string, fields map[string]interface{}) (T, error) {
	env, _, err := c.do(ctx, http.MethodPut, "/api/"+resource+"/"+url.PathEscape(id), nil, fields)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeData[T](env)
}

// Delete removes a document.
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	_, _, err := c.do(ctx, http.MethodDelete, "/api/"+resource+"/"+url.PathEscape(id), nil, nil)
	return err
}
