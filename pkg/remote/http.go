package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tableflip.dev/todosync/pkg/todo"
)

const (
	defaultHTTPTimeout        = 30 * time.Second
	defaultHTTPConnectTimeout = 5 * time.Second
	defaultHTTPTLSTimeout     = 5 * time.Second
)

func defaultHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHTTPConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHTTPTLSTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHTTPTimeout,
	}
}

// HTTP is a Client for a REST store laid out as
//
//	GET    {base}/todos?userId={user}
//	POST   {base}/todos
//	PATCH  {base}/todos/{id}
//	DELETE {base}/todos/{id}
type HTTP struct {
	base   *url.URL
	userID int
	client *http.Client
	logger *slog.Logger
}

// HTTPOption customises an HTTP client.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the default transport.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTP) { h.logger = l }
}

// NewHTTP builds a client for the store at baseURL, scoped to userID.
func NewHTTP(baseURL string, userID int, opts ...HTTPOption) (*HTTP, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("remote: base url %q needs a scheme and host", baseURL)
	}
	h := &HTTP{base: u, userID: userID}
	for _, opt := range opts {
		opt(h)
	}
	if h.client == nil {
		h.client = defaultHTTPClient()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h, nil
}

func (h *HTTP) FetchAll(ctx context.Context) ([]todo.Item, error) {
	u := h.base.JoinPath("todos")
	q := u.Query()
	q.Set("userId", strconv.Itoa(h.userID))
	u.RawQuery = q.Encode()

	var items []todo.Item
	if err := h.do(ctx, http.MethodGet, u, nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []todo.Item{}
	}
	return items, nil
}

func (h *HTTP) Create(ctx context.Context, draft todo.Draft) (todo.Item, error) {
	var it todo.Item
	err := h.do(ctx, http.MethodPost, h.base.JoinPath("todos"), draft, &it)
	return it, err
}

func (h *HTTP) Patch(ctx context.Context, id int, patch todo.Patch) (todo.Item, error) {
	var it todo.Item
	err := h.do(ctx, http.MethodPatch, h.itemURL(id), patch, &it)
	return it, err
}

func (h *HTTP) Remove(ctx context.Context, id int) error {
	return h.do(ctx, http.MethodDelete, h.itemURL(id), nil, nil)
}

func (h *HTTP) itemURL(id int) *url.URL {
	return h.base.JoinPath("todos", strconv.Itoa(id))
}

// do sends args as JSON and decodes the response into result when it is
// non-nil. A non-2xx response body becomes the StatusError message.
func (h *HTTP) do(ctx context.Context, method string, u *url.URL, args any, result any) error {
	var body io.Reader
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("remote: encode %s body: %w", method, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if args != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Debug("remote call failed", "method", method, "url", u.String(), "err", err)
		return fmt.Errorf("remote: %s %s: %w", method, u.String(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	h.logger.Debug("remote call", "method", method, "url", u.String(), "status", resp.StatusCode, "duration", time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, URL: u.String(), Code: resp.StatusCode, Message: string(raw)}
	}
	if err != nil {
		return fmt.Errorf("remote: read %s response: %w", method, err)
	}
	if result == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("remote: decode %s response: %w", method, err)
	}
	return nil
}
