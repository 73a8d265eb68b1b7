// Package contentful talks to the Contentful delivery and management APIs.
package contentful

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ridoystarlord/discontented/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	DeliveryURL   = "https://cdn.contentful.com"
	ManagementURL = "https://api.contentful.com"

	rateLimitHeader = "X-Contentful-RateLimit-Second-Remaining"
	versionHeader   = "X-Contentful-Version"
	managementMIME  = "application/vnd.contentful.management.v1+json"

	pageLimit = 1000
)

// StatusError is a non-retryable HTTP failure.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %s", e.Method, e.Path, e.Status)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// RateLimitError is returned once the 429 retry budget is exhausted.
type RateLimitError struct {
	Method  string
	Path    string
	Retries int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s %s: too many retries (%d)", e.Method, e.Path, e.Retries)
}

// Client issues authenticated JSON requests and retries rate limited ones.
type Client struct {
	Name       string
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	MaxRetries int
	// ExtraDelay is added to every rate limit wait.
	ExtraDelay time.Duration
	Logger     *slog.Logger

	jitter   func(time.Duration) time.Duration
	retries  metric.Int64Counter
	requests metric.Int64Counter
}

func newClient(name, baseURL, token string, maxRetries int, extra time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		Name:       name,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		MaxRetries: maxRetries,
		ExtraDelay: extra,
		Logger:     logger.With("api", name),
		jitter: func(d time.Duration) time.Duration {
			return time.Duration(float64(d) * 0.1 * rand.Float64())
		},
		retries:  telemetry.Counter("dcf.contentful.rate_limited", "Requests retried after a 429 response"),
		requests: telemetry.Counter("dcf.contentful.requests", "Requests sent to the CMS"),
	}
}

// request describes one API call.
type request struct {
	method  string
	path    string
	query   url.Values
	headers http.Header
	body    any
}

// rateLimitBackOff waits as long as the last 429 response asked for.
type rateLimitBackOff struct {
	client *Client
	next   time.Duration
	tries  int
}

func (b *rateLimitBackOff) Reset() { b.tries = 0 }

func (b *rateLimitBackOff) NextBackOff() time.Duration {
	if b.tries >= b.client.MaxRetries {
		return backoff.Stop
	}
	b.tries++
	return b.next
}

// do sends r, decoding a successful response into out when out is non-nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	var payload []byte
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = raw
	}

	target := c.BaseURL + "/" + strings.TrimLeft(r.path, "/")
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	bo := &rateLimitBackOff{client: c}
	attempt := 0

	op := func() error {
		attempt++
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, target, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.Token)
		if payload != nil {
			req.Header.Set("Content-Type", managementMIME)
		}
		for k, vs := range r.headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		c.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("api", c.Name)))
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%s %s: %w", r.method, r.path, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			_, _ = io.Copy(io.Discard, resp.Body)
			bo.next = c.rateLimitDelay(resp.Header.Get(rateLimitHeader))
			c.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("api", c.Name)))
			c.Logger.Info("rate limited", "method", r.method, "path", r.path,
				"attempt", attempt, "maxRetries", c.MaxRetries, "wait", bo.next)
			return &RateLimitError{Method: r.method, Path: r.path, Retries: attempt - 1}
		}

		if resp.StatusCode >= 400 {
			text, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			c.Logger.Error("request failed", "method", r.method, "path", r.path,
				"status", resp.StatusCode, "body", string(text))
			return backoff.Permanent(&StatusError{
				Method: r.method,
				Path:   r.path,
				Code:   resp.StatusCode,
				Status: resp.Status,
				Body:   string(text),
			})
		}

		c.Logger.Debug("request ok", "method", r.method, "path", r.path, "status", resp.StatusCode)
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s %s: %w", r.method, r.path, err))
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	var rl *RateLimitError
	if errors.As(err, &rl) {
		rl.Retries = attempt - 1
		c.Logger.Error("giving up after rate limiting", "method", r.method, "path", r.path, "retries", rl.Retries)
	}
	return err
}

// rateLimitDelay converts the remaining-seconds header into a wait with up to
// 10% jitter.
func (c *Client) rateLimitDelay(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 0 {
		seconds = 1
	}
	base := time.Duration(seconds) * time.Second
	return base + c.jitter(base) + c.ExtraDelay
}

// Collection is one page of a collection endpoint.
type Collection[T any] struct {
	Total int `json:"total"`
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
	Items []T `json:"items"`
}

// collect pages through a collection endpoint with limit/skip.
func collect[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var items []T
	skip := 0
	for {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("limit", strconv.Itoa(pageLimit))
		q.Set("skip", strconv.Itoa(skip))

		var page Collection[T]
		if err := c.do(ctx, request{method: http.MethodGet, path: path, query: q}, &page); err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		skip += len(page.Items)

		if len(page.Items) < pageLimit || skip >= page.Total {
			return items, nil
		}
	}
}
