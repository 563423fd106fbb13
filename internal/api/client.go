package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/saravenpi/parley/internal/models"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// envelope is the wrapper every endpoint responds with.
type envelope struct {
	Message string          `json:"message"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the chat backend. A Client built by New is anonymous and
// can only reach the /auth endpoints; WithSession returns one that signs
// requests with the session's bearer token.
type Client struct {
	baseURL string
	timeout time.Duration
	session models.Session
	http    *fasthttp.Client
	log     *zap.Logger
}

func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "parley",
			MaxIdleConnDuration: 30 * time.Second,
		},
		log: logger,
	}
}

// WithSession returns a copy of c that authenticates as s. The underlying
// connection pool is shared.
func (c *Client) WithSession(s models.Session) *Client {
	clone := *c
	clone.session = s
	return &clone
}

func (c *Client) Session() models.Session {
	return c.session
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	auth   bool
}

// do performs r and decodes the envelope's data into out (which may be nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	if r.auth && c.session.Token == "" {
		return ErrUnauthorized
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	uri := c.baseURL + r.path
	if len(r.query) > 0 {
		uri += "?" + r.query.Encode()
	}

	req := &fasthttp.Request{}
	req.SetRequestURI(uri)
	req.Header.SetMethod(r.method)
	req.Header.Set("Accept", "application/json")
	if r.auth {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", r.op, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	start := time.Now()
	status, body, err := c.roundTrip(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("api_request_failed",
			zap.String("op", r.op),
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Error(err),
		)
		return &NetworkError{Op: r.op, Err: err}
	}

	c.log.Debug("api_request",
		zap.String("op", r.op),
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", status),
		zap.Duration("took", time.Since(start)),
	)

	if status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden {
		return ErrUnauthorized
	}

	var env envelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil && status < 400 {
			return fmt.Errorf("%s: failed to decode response: %w", r.op, err)
		}
	}

	if status >= 400 {
		return &Error{Status: status, Message: env.Message}
	}
	// Some endpoints report failures inside a 200 envelope.
	if env.Code >= 400 {
		return &Error{Status: env.Code, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: failed to decode response data: %w", r.op, err)
	}
	return nil
}

// roundTrip runs the request on a separate goroutine so ctx can abandon it.
// An abandoned request finishes in the background and its result is dropped.
func (c *Client) roundTrip(ctx context.Context, req *fasthttp.Request) (int, []byte, error) {
	resp := &fasthttp.Response{}
	done := make(chan error, 1)
	go func() {
		done <- c.http.DoTimeout(req, resp, c.timeout)
	}()

	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case err := <-done:
		if err != nil {
			if errors.Is(err, fasthttp.ErrTimeout) {
				return 0, nil, fmt.Errorf("request timed out after %s", c.timeout)
			}
			return 0, nil, err
		}
		body := append([]byte(nil), resp.Body()...)
		return resp.StatusCode(), body, nil
	}
}

func pathEscape(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return "/" + strings.Join(escaped, "/")
}
