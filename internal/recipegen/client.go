// Package recipegen is the HTTP client of the external recipe generation
// service.
package recipegen

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/barflow/barflow/internal/domain/recipe"
)

var _ recipe.Generator = (*Client)(nil)

// Defaults applied by New.
const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 2

	maxResponseBytes = 1 << 20
)

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each generation call, retries included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithMaxRetries sets how many times a 429 or 503 answer is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryInterval sets the initial backoff between retries.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) { c.retryInterval = d }
}

// WithTransport replaces the base round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.base = rt }
}

// WithTracerProvider sets the tracer provider for outbound spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider for outbound metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) { c.meterProvider = mp }
}

// Client calls POST {baseURL}/v1/generate.
type Client struct {
	endpoint      string
	timeout       time.Duration
	maxRetries    int
	retryInterval time.Duration

	base           http.RoundTripper
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	http           *http.Client
}

// New returns a Client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("recipe service base URL is required")
	}
	c := &Client{
		endpoint:       strings.TrimRight(baseURL, "/") + "/v1/generate",
		timeout:        DefaultTimeout,
		maxRetries:     DefaultMaxRetries,
		retryInterval:  200 * time.Millisecond,
		base:           http.DefaultTransport,
		tracerProvider: nooptrace.NewTracerProvider(),
		meterProvider:  noop.NewMeterProvider(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	c.http = &http.Client{
		Transport: otelhttp.NewTransport(c.base,
			otelhttp.WithTracerProvider(c.tracerProvider),
			otelhttp.WithMeterProvider(c.meterProvider),
		),
	}
	return c, nil
}

// Generate sends req and returns the upstream JSON object unchanged. Only
// 429 and 503 answers are retried; a timeout ends the call immediately.
func (c *Client) Generate(ctx context.Context, req recipe.Request, correlationID string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := encodeRequest(req)
	lg := zctx.From(ctx).With(zap.String("correlation_id", correlationID))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval

	attempt := 0
	doc, err := backoff.Retry(ctx, func() (json.RawMessage, error) {
		attempt++
		doc, err := c.do(ctx, body, correlationID)
		if err == nil {
			return doc, nil
		}
		var upErr *UpstreamError
		if errors.As(err, &upErr) && upErr.Retryable() {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.maxRetries)+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			lg.Warn("Retrying recipe generation",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", next),
				zap.Error(err),
			)
		}),
	)
	var timeoutErr *UpstreamTimeoutError
	if err != nil && isTimeout(err) && !errors.As(err, &timeoutErr) {
		return nil, &UpstreamTimeoutError{Err: err}
	}
	return doc, err
}

func (c *Client) do(ctx context.Context, body []byte, correlationID string) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if correlationID != "" {
		httpReq.Header.Set("X-Request-ID", correlationID)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, &UpstreamTimeoutError{Err: err}
		}
		return nil, &UpstreamError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, &UpstreamTimeoutError{Err: err}
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode}
	}
	if err := checkObject(data); err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func encodeRequest(req recipe.Request) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("ingredients")
	e.ArrStart()
	for _, in := range req.Ingredients {
		e.Str(in)
	}
	e.ArrEnd()
	if len(req.Constraints) > 0 {
		e.FieldStart("constraints")
		e.ArrStart()
		for _, con := range req.Constraints {
			e.Str(con)
		}
		e.ArrEnd()
	}
	if req.Servings > 0 {
		e.FieldStart("servings")
		e.Int(req.Servings)
	}
	e.ObjEnd()
	return e.Bytes()
}

func checkObject(data []byte) error {
	if !jx.Valid(data) {
		return &MalformedResponseError{Reason: "body is not valid JSON"}
	}
	if jx.DecodeBytes(data).Next() != jx.Object {
		return &MalformedResponseError{Reason: "body is not a JSON object"}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
