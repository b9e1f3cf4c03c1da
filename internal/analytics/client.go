// analytics — клиент удалённого backend с сигналами.
//
// Все запросы идут через переданный Doer (session.Executor), поэтому
// каждый из них подписан текущим access-токеном. Тела ответов не
// перекладываются: клиент проверяет только, что это JSON, и отдаёт как есть.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxBody = 8 << 20

var (
	// ErrNotFound — backend ответил 404. Транспорт BFF: 404 not_found.
	ErrNotFound = errors.New("analytics: not found")

	// ErrBadRequest — прочие 4xx (кроме 401, который обрабатывает Executor).
	// Транспорт BFF: 400 invalid_argument.
	ErrBadRequest = errors.New("analytics: bad request")

	// ErrUpstream — 5xx или транспортная ошибка. Транспорт BFF: 502 bad_gateway.
	ErrUpstream = errors.New("analytics: upstream failure")

	// ErrMalformed — 2xx, но тело не JSON. Транспорт BFF: 502 bad_gateway.
	ErrMalformed = errors.New("analytics: malformed response")
)

// StatusError — не-2xx ответ backend.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("%s: status %d", e.Op, e.Code) }

func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusNotFound:
		return ErrNotFound
	case e.Code >= http.StatusInternalServerError:
		return ErrUpstream
	default:
		return ErrBadRequest
	}
}

// Doer — исполнитель подписанных запросов.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

type Client struct {
	base *url.URL
	doer Doer
}

func New(baseURL string, doer Doer) (*Client, error) {
	const op = "analytics.New"

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: parse base url: %w", op, err)
	}

	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%s: base url %q must be absolute", op, baseURL)
	}

	if doer == nil {
		return nil, fmt.Errorf("%s: doer is required", op)
	}

	return &Client{base: base, doer: doer}, nil
}

// ListSignals — GET /signals. query пробрасывается как есть (limit, cursor, ticker...).
func (c *Client) ListSignals(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return c.get(ctx, "analytics.ListSignals", query, "signals")
}

// Signal — GET /signals/{id}.
func (c *Client) Signal(ctx context.Context, id string) (json.RawMessage, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("analytics.Signal: %w: empty id", ErrBadRequest)
	}

	return c.get(ctx, "analytics.Signal", nil, "signals", id)
}

// SignalHistory — GET /signals/{id}/history.
func (c *Client) SignalHistory(ctx context.Context, id string, query url.Values) (json.RawMessage, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("analytics.SignalHistory: %w: empty id", ErrBadRequest)
	}

	return c.get(ctx, "analytics.SignalHistory", query, "signals", id, "history")
}

// Graph — GET /graph (узлы и рёбра корреляций).
func (c *Client) Graph(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return c.get(ctx, "analytics.Graph", query, "graph")
}

func (c *Client) get(ctx context.Context, op string, query url.Values, elem ...string) (json.RawMessage, error) {
	u := c.base.JoinPath(elem...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		// ошибки сессии и отмены контекста отдаём как есть
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || !isTransport(err) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return nil, fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Op: op, Code: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w: %w", op, ErrUpstream, err)
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	return json.RawMessage(raw), nil
}

// isTransport отличает сетевые ошибки *http.Client от ошибок сессии.
func isTransport(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue)
}
