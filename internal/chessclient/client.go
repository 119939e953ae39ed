// Package chessclient calls the chess HTTP API.
package chessclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/park285/chessbattle/pkg/chessdto"
	"github.com/valyala/fasthttp"
)

// APIError is a non-2xx reply. Body holds the decoded error when the server
// sent one.
type APIError struct {
	Status int
	Body   chessdto.DomainError
}

func (e *APIError) Error() string {
	if e.Body.Code != "" {
		return fmt.Sprintf("chess api error: status=%d code=%s message=%s", e.Status, e.Body.Code, e.Body.Message)
	}
	return fmt.Sprintf("chess api error: status=%d", e.Status)
}

type Client struct {
	baseURL string
	http    *fasthttp.Client
	room    string
	player  string

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithIdentity(room, player string) Option {
	return func(c *Client) {
		c.room = strings.TrimSpace(room)
		c.player = strings.TrimSpace(player)
	}
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 30 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EventsURL is the websocket address of the event stream.
func (c *Client) EventsURL() string {
	u := c.baseURL + "/api/chess/events"
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// MoveCheck runs the server engine on a position; it is retried on 5xx.
func (c *Client) MoveCheck(ctx context.Context, fen, tier string) (*chessdto.MoveCheckResponse, error) {
	var out chessdto.MoveCheckResponse
	req := chessdto.MoveCheckRequest{FEN: fen, Tier: tier}
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/chess/movecheck", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StartSession(ctx context.Context, tier, fen string) (*chessdto.StartSessionResponse, error) {
	var out chessdto.StartSessionResponse
	req := chessdto.StartSessionRequest{Tier: tier, FEN: fen}
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/chess/session", req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Status(ctx context.Context) (*chessdto.StateResponse, error) {
	var out chessdto.StateResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/chess/session", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Play(ctx context.Context, move string) (*chessdto.PlayResponse, error) {
	var out chessdto.PlayResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/chess/move", chessdto.PlayRequest{Move: move}, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Profile(ctx context.Context) (*chessdto.ProfileResponse, error) {
	var out chessdto.ProfileResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/chess/profile", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) History(ctx context.Context, limit int) (*chessdto.HistoryResponse, error) {
	path := "/api/chess/history"
	if limit > 0 {
		path += "?" + url.Values{"limit": {fmt.Sprint(limit)}}.Encode()
	}
	var out chessdto.HistoryResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if c.room != "" {
		req.Header.Set("X-Chess-Room", c.room)
	}
	if c.player != "" {
		req.Header.Set("X-Chess-Player", c.player)
	}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			apiErr := &APIError{Status: status}
			_ = json.Unmarshal(resp.Body(), &apiErr.Body)
			if !shouldRetryStatus(status) {
				return apiErr
			}
			lastErr = apiErr
		} else {
			if out != nil {
				if err := json.Unmarshal(resp.Body(), out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
			}
			return nil
		}
		if attempt < attempts {
			if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
				return lastErr
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) deadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
