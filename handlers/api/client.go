package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/valyala/fasthttp"

	"leadsdash/metrics"
)

// ErrUnauthorized matches API errors answered with 401
var ErrUnauthorized = errors.New("leads api: unauthorized")

// APIError is a non-2xx answer from the leads API
type APIError struct {
	Op     string
	Status int
	Detail string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 answers
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == fasthttp.StatusUnauthorized
}

// Client talks to the remote leads API
type Client struct {
	baseURL string
	http    *fasthttp.Client
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewClient creates a client for baseURL. timeout bounds calls whose context
// carries no deadline.
func NewClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &fasthttp.Client{
			Name:                "leadsdash",
			MaxIdleConnDuration: time.Minute,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
		},
		timeout: timeout,
		metrics: m,
	}
}

// BaseURL returns the API root the client calls
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends req and checks the status. Cancellation is honoured before the
// call and through the context deadline; fasthttp cannot abort a call in
// flight.
func (c *Client) do(ctx context.Context, op string, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = start.Add(c.timeout)
	}

	err := c.http.DoDeadline(req, resp, deadline)
	if err != nil {
		c.metrics.ObserveUpstream(op, "error", time.Since(start))
		return fmt.Errorf("%s: %w", op, err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		c.metrics.ObserveUpstream(op, fmt.Sprintf("http_%d", status), time.Since(start))
		return &APIError{Op: op, Status: status, Detail: errorDetail(resp.Body())}
	}

	c.metrics.ObserveUpstream(op, "ok", time.Since(start))
	return nil
}

func (c *Client) newRequest(method, path, token string) *fasthttp.Request {
	req := fasthttp.AcquireRequest()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func setJSONBody(req *fasthttp.Request, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	req.Header.SetContentType("application/json")
	req.SetBody(body)
	return nil
}

func decodeJSON(op string, resp *fasthttp.Response, v interface{}) error {
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

// maxDetail bounds how much of a non-JSON error body ends up in an APIError
const maxDetail = 200

var pageText = bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true)

// errorDetail extracts FastAPI style {"detail": ...} messages. Anything else,
// such as the HTML error page of a proxy in front of the API, is reduced to
// its text.
func errorDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return bodyText(body)
	}
	if len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	return string(payload.Detail)
}

func bodyText(body []byte) string {
	text := html.UnescapeString(string(pageText.SanitizeBytes(body)))
	words := []rune(strings.Join(strings.Fields(text), " "))
	if len(words) > maxDetail {
		words = words[:maxDetail]
	}
	return string(words)
}
