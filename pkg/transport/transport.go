package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	errs "fxarchive/pkg/errors"
	"fxarchive/pkg/logger"
	"fxarchive/pkg/ratelimit"
	"fxarchive/pkg/retry"
)

// DefaultTimeout bounds a single attempt, including reading the body.
const DefaultTimeout = 30 * time.Second

// maxBodyPreview limits how much of an error body ends up in logs.
const maxBodyPreview = 256

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
}

// Client sends requests under a retry.Policy. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	policy     retry.Policy
	headers    http.Header
	timeout    time.Duration
	limiter    ratelimit.Limiter
	sleep      retry.SleepFunc
	logger     logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHeaders sets headers applied to every request. The bundle is opaque to
// the client: cookies and tokens are passed through untouched.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		for key, values := range h {
			for _, v := range values {
				c.headers.Add(key, v)
			}
		}
	}
}

// WithRateLimit caps outgoing attempts per minute. 0 disables it.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if tb := ratelimit.PerMinute(perMinute); tb != nil {
			c.limiter = tb
		}
	}
}

// WithSleep replaces the wait between attempts.
func WithSleep(fn retry.SleepFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.logger = log
		}
	}
}

// New creates a retrying client. The policy is copied and never modified.
func New(policy retry.Policy, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		policy:     policy,
		headers:    make(http.Header),
		timeout:    DefaultTimeout,
		sleep:      retry.Wait,
		logger:     logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the retry policy used by this client.
func (c *Client) Policy() retry.Policy {
	return c.policy
}

// Get is a shorthand for Send with a GET request.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &errs.TransportError{
			Method: http.MethodGet,
			URL:    url,
			Type:   errs.ErrorTypeUnknown,
			Err:    fmt.Errorf("failed to create request: %w", err),
		}
	}
	return c.Send(ctx, req)
}

// Send issues req, retrying transient failures, and returns the first 2xx
// response. Any other outcome is reported as a single *errors.TransportError.
// The request body, if any, must be replayable through req.GetBody.
func (c *Client) Send(ctx context.Context, req *http.Request) (*Response, error) {
	start := time.Now()
	target := redactURL(req)

	cfg := retry.ConfigFromPolicy(c.policy, c.shouldRetry(ctx), c.logger)
	cfg.Sleep = c.sleep
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		reason := reasonFor(err)
		retriesTotal.WithLabelValues(reason).Inc()
		backoffSeconds.Observe(delay.Seconds())
		logger.LogRetry(c.logger.WithError(err), target, attempt, delay, reason)
	}

	resp, attempts, err := retry.DoWithResult(ctx, func(ctx context.Context, attempt int) (*Response, error) {
		return c.attempt(ctx, req, attempt)
	}, cfg)
	requestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		var last *attemptError
		te := &errs.TransportError{
			Method:   req.Method,
			URL:      target,
			Attempts: attempts,
			Type:     errs.ErrorTypeUnknown,
			Err:      err,
		}
		if errors.As(err, &last) {
			te.StatusCode = last.status
			te.Type = last.kind
		}
		if errors.Is(err, errs.ErrRetryExhausted) {
			exhaustedTotal.Inc()
		}
		c.logger.DebugWithFields("request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      target,
			"attempts": attempts,
			"status":   te.StatusCode,
			"error":    err.Error(),
		})
		return nil, te
	}

	resp.Attempts = attempts
	return resp, nil
}

// attempt performs one try under its own timeout. The body is read before the
// timeout is released so a stalled body counts against this attempt.
func (c *Client) attempt(ctx context.Context, req *http.Request, n int) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &attemptError{kind: errs.ErrorTypeNetwork, err: err}
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	r := req.Clone(attemptCtx)
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, &attemptError{kind: errs.ErrorTypeUnknown, err: err}
		}
		r.Body = body
	}
	for key, values := range c.headers {
		r.Header[key] = append([]string(nil), values...)
	}

	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method":  r.Method,
		"url":     redactURL(r),
		"attempt": n,
	})

	start := time.Now()
	httpResp, err := c.httpClient.Do(r)
	if err != nil {
		ae := classifyNetworkError(err)
		attemptsTotal.WithLabelValues(string(ae.kind)).Inc()
		return nil, ae
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		ae := classifyNetworkError(err)
		ae.status = httpResp.StatusCode
		attemptsTotal.WithLabelValues(string(ae.kind)).Inc()
		return nil, ae
	}

	body, err := decodeBody(httpResp.Header.Get("Content-Encoding"), raw)
	if err != nil {
		attemptsTotal.WithLabelValues(string(errs.ErrorTypeParsing)).Inc()
		return nil, &attemptError{status: httpResp.StatusCode, kind: errs.ErrorTypeParsing, err: err}
	}

	logger.LogRequest(c.logger.WithField("bytes", len(body)), r.Method, redactURL(r), httpResp.StatusCode, time.Since(start))

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		ae := &attemptError{
			status:     httpResp.StatusCode,
			kind:       errs.ClassifyStatus(httpResp.StatusCode),
			retryAfter: parseRetryAfter(httpResp.Header.Get("Retry-After"), time.Now()),
			fromStatus: true,
			err:        fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, preview(body)),
		}
		attemptsTotal.WithLabelValues("status_" + strconv.Itoa(httpResp.StatusCode/100) + "xx").Inc()
		return nil, ae
	}

	attemptsTotal.WithLabelValues("ok").Inc()
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       body,
	}, nil
}

// shouldRetry retries retryable statuses and network failures, including a
// per-attempt timeout, but stops once the caller's context is done.
func (c *Client) shouldRetry(parent context.Context) func(error) bool {
	return func(err error) bool {
		if parent.Err() != nil {
			return false
		}
		var ae *attemptError
		if !errors.As(err, &ae) {
			return false
		}
		if ae.fromStatus {
			return c.policy.Retryable(ae.status)
		}
		return ae.kind == errs.ErrorTypeNetwork || ae.kind == errs.ErrorTypeTimeout
	}
}

// attemptError describes why a single attempt failed.
type attemptError struct {
	status     int
	kind       errs.ErrorType
	retryAfter time.Duration
	err        error
	fromStatus bool
}

func (e *attemptError) Error() string {
	return e.err.Error()
}

func (e *attemptError) Unwrap() error {
	return e.err
}

// RetryDelay exposes Retry-After to the retry loop.
func (e *attemptError) RetryDelay() time.Duration {
	return e.retryAfter
}

func classifyNetworkError(err error) *attemptError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &attemptError{kind: errs.ErrorTypeTimeout, err: err}
	}
	return &attemptError{kind: errs.ErrorTypeNetwork, err: err}
}

func reasonFor(err error) string {
	var ae *attemptError
	if errors.As(err, &ae) {
		if ae.status != 0 {
			return strconv.Itoa(ae.status)
		}
		return string(ae.kind)
	}
	return string(errs.ErrorTypeUnknown)
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

func preview(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) > maxBodyPreview {
		return string(body[:maxBodyPreview]) + "..."
	}
	return string(body)
}

// redactURL drops the query, which may carry large or sensitive tRPC input.
func redactURL(req *http.Request) string {
	if req.URL == nil {
		return ""
	}
	u := *req.URL
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
