// Package robusthttp builds HTTP clients with retries for calls to
// scoring oracles and media origins.
package robusthttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// LeveledSlog adapts slog to retryablehttp's leveled logger.
type LeveledSlog struct {
	inner *slog.Logger
}

// Error is logged at WARN since the request is usually retried.
func (l LeveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

func (l LeveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

// Option customizes the underlying retryable client.
type Option func(*retryablehttp.Client)

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) Option {
	return func(c *retryablehttp.Client) {
		c.RetryMax = n
	}
}

// WithRetryWait sets the backoff bounds between retries.
func WithRetryWait(waitMin, waitMax time.Duration) Option {
	return func(c *retryablehttp.Client) {
		c.RetryWaitMin = waitMin
		c.RetryWaitMax = waitMax
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *retryablehttp.Client) {
		c.Logger = retryablehttp.LeveledLogger(LeveledSlog{inner: logger})
	}
}

// NewClient returns a stdlib *http.Client that retries connection errors
// and 5xx responses (except 501). 429 is not retried.
func NewClient(timeout time.Duration, options ...Option) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = cleanhttp.DefaultPooledTransport()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(LeveledSlog{inner: slog.Default().With("subsystem", "robusthttp")})
	retryClient.CheckRetry = DefaultRetryPolicy

	for _, option := range options {
		option(retryClient)
	}

	client := retryClient.StandardClient()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.Timeout = timeout
	return client
}

// DefaultRetryPolicy wraps retryablehttp.DefaultRetryPolicy and leaves
// 429 Too Many Requests to the caller.
func DefaultRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
