package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/gitbit/gitbit/internal/rate"
)

const (
	// DefaultMaxAttempts bounds the re-authentication retries of one logical call.
	DefaultMaxAttempts = 5

	// RateLimitResetHeader carries the seconds until the upstream quota resets.
	RateLimitResetHeader = "Fitbit-Rate-Limit-Reset"

	defaultRateLimitWait = 60 * time.Second
)

// ErrInvalidJSON is recorded when a 2xx response body is not valid JSON.
var ErrInvalidJSON = errors.New("response body is not valid JSON")

// TokenSource supplies bearer tokens and can be asked to re-authenticate.
type TokenSource interface {
	AccessToken() string
	Reauthenticate(ctx context.Context) error
}

// Hooks are optional observation callbacks. Any of them may be nil.
type Hooks struct {
	// OnAttempt is called after every HTTP attempt. status is 0 on transport errors.
	OnAttempt func(status int, elapsed time.Duration)
	// OnReauth is called after every re-authentication with its result.
	OnReauth func(err error)
	// OnRateLimitWait is called once per second of a rate-limit wait with the time left.
	OnRateLimitWait func(remaining time.Duration)
}

// TerminalError is returned when a logical call exhausts its retry budget.
// It carries the last response for diagnostics.
type TerminalError struct {
	URL        string
	StatusCode int
	Body       []byte
	Header     http.Header
	Attempts   int
	Err        error
}

func (e *TerminalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request to %s failed after %d attempts: status %d: %v", e.URL, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("request to %s failed after %d attempts: status %d: %s", e.URL, e.Attempts, e.StatusCode, e.Body)
}

func (e *TerminalError) Unwrap() error { return e.Err }

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRateLimited
	outcomeFailure
)

// outcome is the classified result of a single HTTP attempt.
type outcome struct {
	kind    outcomeKind
	payload json.RawMessage
	reset   time.Duration
	status  int
	body    []byte
	header  http.Header
	err     error
}

// retryState is created per logical call.
type retryState struct {
	attempts    int
	maxAttempts int
}

func (r *retryState) exhausted() bool { return r.attempts >= r.maxAttempts }

// Option configures an Engine.
type Option func(*Engine)

// WithMaxAttempts sets the retry budget. Values < 1 keep the default.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithLimiter paces every outbound request through lim.
func WithLimiter(lim *rate.Limiter) Option {
	return func(e *Engine) { e.limiter = lim }
}

// WithHooks installs observation callbacks.
func WithHooks(h Hooks) Option {
	return func(e *Engine) { e.hooks = h }
}

// WithVenueTag sets the prefix of log events, e.g. "fitbit".
func WithVenueTag(tag string) Option {
	return func(e *Engine) { e.venueTag = tag }
}

// Engine performs bearer-authenticated GETs with bounded re-authentication
// retries and rate-limit waits. It is not safe for concurrent logical calls
// sharing one retry budget, but holds no per-call state between calls.
type Engine struct {
	logger      *zap.Logger
	tokens      TokenSource
	http        *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	venueTag    string
	hooks       Hooks
	sleep       func(ctx context.Context, d time.Duration) error
}

// New creates an Engine.
func New(logger *zap.Logger, tokens TokenSource, httpClient *http.Client, opts ...Option) *Engine {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	e := &Engine{
		logger:      logger,
		tokens:      tokens,
		http:        httpClient,
		maxAttempts: DefaultMaxAttempts,
		venueTag:    "http",
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxAttempts returns the fixed retry budget.
func (e *Engine) MaxAttempts() int { return e.maxAttempts }

// GetJSON fetches url and returns the raw JSON body of the first 2xx response.
// A 429 waits for the advertised reset and restores the full retry budget.
// Every other failure re-authenticates and consumes one attempt; when the
// budget runs out a *TerminalError is returned.
func (e *Engine) GetJSON(ctx context.Context, url string) (json.RawMessage, error) {
	defer e.http.CloseIdleConnections()

	retry := retryState{maxAttempts: e.maxAttempts}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out := e.attempt(ctx, url)
		switch out.kind {
		case outcomeSuccess:
			return out.payload, nil

		case outcomeRateLimited:
			e.logger.Warn(e.venueTag+".rate_limited",
				zap.String("url", url),
				zap.Duration("wait", out.reset))
			if err := e.waitReset(ctx, out.reset); err != nil {
				return nil, err
			}
			retry.attempts = 0
			e.logger.Info(e.venueTag+".rate_limit_reset", zap.String("url", url))

		case outcomeFailure:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			err := e.tokens.Reauthenticate(ctx)
			if e.hooks.OnReauth != nil {
				e.hooks.OnReauth(err)
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				e.logger.Warn(e.venueTag+".reauth_failed", zap.Error(err))
			}
			retry.attempts++
			e.logger.Warn(e.venueTag+".retrying",
				zap.String("url", url),
				zap.Int("status", out.status),
				zap.Int("attempt", retry.attempts),
				zap.Int("max_attempts", retry.maxAttempts),
				zap.Error(out.err))

			if retry.exhausted() {
				e.logger.Error(e.venueTag+".request_failed",
					zap.String("url", url),
					zap.Int("status", out.status),
					zap.ByteString("body", out.body),
					zap.Any("headers", out.header))
				return nil, &TerminalError{
					URL:        url,
					StatusCode: out.status,
					Body:       out.body,
					Header:     out.header,
					Attempts:   retry.attempts,
					Err:        out.err,
				}
			}
		}
	}
}

// attempt issues one GET and classifies the response. The body is always
// drained and closed before returning.
func (e *Engine) attempt(ctx context.Context, url string) outcome {
	if err := e.limiter.Wait(ctx); err != nil {
		return outcome{kind: outcomeFailure, err: fmt.Errorf("rate limit wait: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return outcome{kind: outcomeFailure, err: err}
	}
	req.Header.Set("Authorization", "Bearer "+e.tokens.AccessToken())
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := e.http.Do(req)
	if err != nil {
		if e.hooks.OnAttempt != nil {
			e.hooks.OnAttempt(0, time.Since(start))
		}
		e.logger.Warn(e.venueTag+".http_failed",
			zap.String("url", url),
			zap.Error(err))
		return outcome{kind: outcomeFailure, err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if e.hooks.OnAttempt != nil {
		e.hooks.OnAttempt(resp.StatusCode, elapsed)
	}
	e.logger.Debug(e.venueTag+".http_response",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))

	failed := outcome{kind: outcomeFailure, status: resp.StatusCode, body: body, header: resp.Header}
	if err != nil {
		failed.err = fmt.Errorf("read body: %w", err)
		return failed
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if !json.Valid(body) {
			failed.err = ErrInvalidJSON
			return failed
		}
		return outcome{kind: outcomeSuccess, payload: json.RawMessage(body), status: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return outcome{kind: outcomeRateLimited, reset: resetDelay(resp.Header), status: resp.StatusCode}
	default:
		return failed
	}
}

// waitReset blocks for d in one-second steps, reporting progress.
func (e *Engine) waitReset(ctx context.Context, d time.Duration) error {
	for remaining := d; remaining > 0; {
		if e.hooks.OnRateLimitWait != nil {
			e.hooks.OnRateLimitWait(remaining)
		}
		step := min(time.Second, remaining)
		if err := e.sleep(ctx, step); err != nil {
			return err
		}
		remaining -= step
	}
	return nil
}

// resetDelay reads the rate-limit reset from the response headers, falling
// back to Retry-After and finally to a fixed default.
func resetDelay(h http.Header) time.Duration {
	if v := h.Get(RateLimitResetHeader); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(v); err == nil {
			if d := time.Until(at); d > 0 {
				return d.Round(time.Second)
			}
			return 0
		}
	}
	return defaultRateLimitWait
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
