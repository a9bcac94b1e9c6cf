package boxhttp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Backoff constants.
const (
	defaultMaxRetries   = 5
	defaultBaseInterval = 1 * time.Second
	maxBackoff          = 60 * time.Second
	backoffFactor       = 2.0
	jitterFraction      = 0.25
	defaultUserAgent    = "box-go/0.1"
)

// RedactedValue replaces credential-bearing header values before a request is
// attached to any response, error, or event.
const RedactedValue = "[REDACTED]"

// credentialHeaders are the headers overwritten with RedactedValue.
// Authorization carries the bearer token; BoxApi carries shared-link
// credentials; As-User scopes the call to another user's identity.
var credentialHeaders = []string{"Authorization", "BoxApi", "As-User"}

// Request describes a single API call. Exactly one of Form, Body, or
// Multipart may be set. Multipart bodies stream from the caller and cannot be
// replayed, so requests carrying one are never retried. NoRetry lets callers
// that run their own retry loop opt out of the executor's.
type Request struct {
	Method    string
	URL       string
	Header    http.Header
	Form      url.Values
	Body      io.ReadSeeker
	Multipart io.Reader
	NoRetry   bool
}

// Retryable reports whether the request may be re-issued after a temporary
// failure.
func (r *Request) Retryable() bool {
	return !r.NoRetry && r.Multipart == nil
}

// redacted returns a copy of the request with credential headers overwritten.
// The copy shares no header storage with the original, so callers can log it
// freely.
func (r *Request) redacted() *Request {
	clone := &Request{
		Method:    r.Method,
		URL:       r.URL,
		Header:    make(http.Header, len(r.Header)),
		Form:      r.Form,
		Body:      r.Body,
		Multipart: r.Multipart,
	}

	for k, vs := range r.Header {
		clone.Header[k] = append([]string(nil), vs...)
	}

	for _, h := range credentialHeaders {
		if clone.Header.Get(h) != "" {
			clone.Header.Set(h, RedactedValue)
		}
	}

	return clone
}

// Response is a fully-read API response. Request is the redacted originating
// request. Body is nil for streaming responses.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Request    *Request
}

// RetryDecision is the result of a RetryStrategy: either a delay before the
// next attempt or an instruction to abort retrying with an error.
type RetryDecision struct {
	delay time.Duration
	abort error
}

// Delay schedules the next attempt after d.
func Delay(d time.Duration) RetryDecision {
	return RetryDecision{delay: d}
}

// Abort stops retrying and surfaces err to the caller.
func Abort(err error) RetryDecision {
	return RetryDecision{abort: err}
}

// Result unpacks the decision: a non-nil error means abort.
func (d RetryDecision) Result() (time.Duration, error) {
	return d.delay, d.abort
}

// RetryStrategy computes the delay before a retry attempt. attempt is
// 1-based, elapsed is the total time since the first attempt started.
type RetryStrategy func(err error, attempt, maxRetries int, baseInterval, elapsed time.Duration) RetryDecision

// Options tunes the executor's retry behavior.
type Options struct {
	MaxRetries   int
	BaseInterval time.Duration
	Strategy     RetryStrategy
	UserAgent    string
}

// Executor issues HTTP calls against the Box API with retry on temporary
// failures, Retry-After handling, and credential redaction. Every completed
// call is published to the notifier (if any) for observability.
type Executor struct {
	httpClient   *http.Client
	maxRetries   int
	baseInterval time.Duration
	strategy     RetryStrategy
	userAgent    string
	notifier     *Notifier
	logger       *slog.Logger

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates a request executor. notifier may be nil.
func NewExecutor(httpClient *http.Client, opts Options, notifier *Notifier, logger *slog.Logger) *Executor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}

	if opts.BaseInterval <= 0 {
		opts.BaseInterval = defaultBaseInterval
	}

	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	return &Executor{
		httpClient:   httpClient,
		maxRetries:   opts.MaxRetries,
		baseInterval: opts.BaseInterval,
		strategy:     opts.Strategy,
		userAgent:    opts.UserAgent,
		notifier:     notifier,
		logger:       logger,
		sleepFunc:    timeSleep,
	}
}

// Do executes the request, retrying temporary failures up to the configured
// maximum. The returned Response has its body fully read and its request
// headers redacted. Errors are always *RequestError (or a context error).
func (e *Executor) Do(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	var attempt int

	for {
		httpResp, err := e.doOnce(ctx, req)
		if err != nil {
			// Context cancellation is not retryable.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("boxhttp: request canceled: %w", ctx.Err())
			}

			transportErr := fmt.Errorf("%w: %v", ErrTransport, err)

			if req.Retryable() && attempt < e.maxRetries {
				delay, delayErr := e.nextDelay(transportErr, nil, attempt, start)
				if delayErr != nil {
					return nil, e.finish(req, nil, 0, delayErr, false)
				}

				e.logger.Warn("retrying after network error",
					slog.String("method", req.Method),
					slog.String("url", req.URL),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", delay),
					slog.String("error", err.Error()),
				)

				if sleepErr := e.sleepFunc(ctx, delay); sleepErr != nil {
					return nil, fmt.Errorf("boxhttp: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			exhausted := req.Retryable() && attempt >= e.maxRetries

			return nil, e.finish(req, nil, 0, transportErr, exhausted)
		}

		body, readErr := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()

		if readErr != nil {
			body = []byte("(failed to read response body)")
		}

		resp := &Response{
			StatusCode: httpResp.StatusCode,
			Header:     httpResp.Header,
			Body:       body,
			Request:    req.redacted(),
		}

		// 2xx — success.
		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			e.logger.Debug("request succeeded",
				slog.String("method", req.Method),
				slog.String("url", req.URL),
				slog.Int("status", resp.StatusCode),
			)
			e.notifier.Publish(Event{Kind: EventResponse, Response: resp})

			return resp, nil
		}

		if IsTemporary(resp.StatusCode) && req.Retryable() && attempt < e.maxRetries {
			tempErr := &RequestError{
				StatusCode: resp.StatusCode,
				Request:    resp.Request,
				Response:   resp,
				Err:        classifyStatus(resp.StatusCode),
			}

			delay, delayErr := e.nextDelay(tempErr, httpResp, attempt, start)
			if delayErr != nil {
				return nil, e.finish(req, resp, resp.StatusCode, delayErr, false)
			}

			e.logger.Warn("retrying after HTTP error",
				slog.String("method", req.Method),
				slog.String("url", req.URL),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", delay),
			)

			if sleepErr := e.sleepFunc(ctx, delay); sleepErr != nil {
				return nil, fmt.Errorf("boxhttp: request canceled: %w", sleepErr)
			}

			attempt++

			continue
		}

		exhausted := IsTemporary(resp.StatusCode) && req.Retryable() && attempt >= e.maxRetries
		if exhausted {
			e.logger.Error("request failed after retries",
				slog.String("method", req.Method),
				slog.String("url", req.URL),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempts", attempt+1),
			)
		}

		return nil, e.finish(req, resp, resp.StatusCode, classifyStatus(resp.StatusCode), exhausted)
	}
}

// DoStream executes the request once, without retries or body buffering, and
// returns the raw response. The caller owns the body. Credential headers on
// the response's embedded request are redacted before return.
func (e *Executor) DoStream(ctx context.Context, req *Request) (*http.Response, error) {
	httpResp, err := e.doOnce(ctx, req)
	if err != nil {
		transportErr := fmt.Errorf("%w: %v", ErrTransport, err)

		return nil, e.finish(req, nil, 0, transportErr, false)
	}

	// Redact the sent request the transport attached to the response.
	if httpResp.Request != nil {
		for _, h := range credentialHeaders {
			if httpResp.Request.Header.Get(h) != "" {
				httpResp.Request.Header.Set(h, RedactedValue)
			}
		}
	}

	snapshot := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Request:    req.redacted(),
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		reqErr := &RequestError{
			StatusCode: httpResp.StatusCode,
			Request:    snapshot.Request,
			Response:   snapshot,
			Err:        classifyStatus(httpResp.StatusCode),
		}
		e.notifier.Publish(Event{Kind: EventError, Response: snapshot, Err: reqErr})
		httpResp.Body.Close()

		return nil, reqErr
	}

	e.notifier.Publish(Event{Kind: EventResponse, Response: snapshot})

	return httpResp, nil
}

// finish builds the terminal RequestError, publishes the error event, and
// returns the error.
func (e *Executor) finish(req *Request, resp *Response, status int, cause error, exhausted bool) error {
	if exhausted {
		cause = fmt.Errorf("%w: %w", ErrMaxRetries, cause)
	}

	reqErr := &RequestError{
		StatusCode:         status,
		Request:            req.redacted(),
		Response:           resp,
		MaxRetriesExceeded: exhausted,
		Err:                cause,
	}

	e.notifier.Publish(Event{Kind: EventError, Response: resp, Err: reqErr})

	return reqErr
}

// doOnce executes a single HTTP request (no retry). Replayable bodies are
// rewound before each attempt.
func (e *Executor) doOnce(ctx context.Context, req *Request) (*http.Response, error) {
	var body io.Reader

	switch {
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
	case req.Body != nil:
		if _, err := req.Body.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}

		body = req.Body
	case req.Multipart != nil:
		body = req.Multipart
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, vs := range req.Header {
		httpReq.Header[k] = vs
	}

	httpReq.Header.Set("User-Agent", e.userAgent)

	if req.Form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	return e.httpClient.Do(httpReq)
}

// nextDelay picks the wait before the next attempt. Precedence: the injected
// retry strategy, then the response's Retry-After header, then exponential
// backoff. A strategy abort is returned as an error.
func (e *Executor) nextDelay(cause error, resp *http.Response, attempt int, start time.Time) (time.Duration, error) {
	if e.strategy != nil {
		decision := e.strategy(cause, attempt+1, e.maxRetries, e.baseInterval, time.Since(start))
		if decision.abort != nil {
			return 0, fmt.Errorf("%w: %w", ErrRetriesAborted, decision.abort)
		}

		return decision.delay, nil
	}

	if resp != nil {
		if d, ok := RetryAfter(resp.Header.Get("Retry-After")); ok {
			return d, nil
		}
	}

	return BackoffDelay(attempt, e.baseInterval), nil
}

// RetryAfter parses a Retry-After header value as delay-seconds or an HTTP
// date. Exported because the token manager's JWT retry loop applies the same
// delay precedence as the executor.
func RetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second, true
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}

	return 0, false
}

// BackoffDelay computes exponential backoff with ±25% jitter for the given
// 0-based attempt, capped at maxBackoff.
func BackoffDelay(attempt int, baseInterval time.Duration) time.Duration {
	backoff := float64(baseInterval) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	// Apply ±25% jitter.
	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Executor.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
