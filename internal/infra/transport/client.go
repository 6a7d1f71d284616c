// Package transport performs authenticated GET requests against the notes
// service with bounded retries and exponential backoff.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/matryer/try"
)

var (
	// ErrUnauthorized means the service rejected the credential. It is fatal
	// for the whole run.
	ErrUnauthorized = errors.New("credential rejected by server")
	// ErrExhausted means every attempt failed with a retryable outcome.
	ErrExhausted = errors.New("retries exhausted")
	// ErrCancelled means the run was cancelled before a response was obtained.
	ErrCancelled = errors.New("cancelled")
)

const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"
	DefaultReferer        = "https://i.mi.com/note/h5"
	DefaultOrigin         = "https://i.mi.com"
	DefaultMaxAttempts    = 3
	DefaultBackoffBase    = time.Second
	DefaultJitter         = time.Second
	DefaultRequestTimeout = 30 * time.Second
)

type Config struct {
	Cookie         string
	UserAgent      string
	Referer        string
	Origin         string
	MaxAttempts    int
	BackoffBase    time.Duration
	Jitter         time.Duration
	RequestTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		UserAgent:      DefaultUserAgent,
		Referer:        DefaultReferer,
		Origin:         DefaultOrigin,
		MaxAttempts:    DefaultMaxAttempts,
		BackoffBase:    DefaultBackoffBase,
		Jitter:         DefaultJitter,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// Options tune a single Get call.
type Options struct {
	// Stream leaves the response body open for the caller to read and close.
	Stream bool
	// MaxAttempts overrides the client default when positive.
	MaxAttempts int
}

type Client struct {
	http   *http.Client
	cfg    Config
	logger *slog.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	cfg.Cookie = SanitizeCredential(cfg.Cookie)

	c := &Client{
		http:   &http.Client{},
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
	}
	c.jitter = func() time.Duration {
		if c.cfg.Jitter <= 0 {
			return 0
		}
		return rand.N(c.cfg.Jitter)
	}
	return c
}

// Get issues a GET for rawURL. Responses with status 401 yield
// ErrUnauthorized; 403, 429, 500, 502, 503 and transport failures are retried
// with backoff; every other response is returned for the caller to inspect.
// In-flight requests are not interrupted by ctx; cancellation is observed
// before each attempt and while waiting between attempts.
func (c *Client) Get(ctx context.Context, rawURL string, opts Options) (*http.Response, error) {
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = c.cfg.MaxAttempts
	}
	if attempts > try.MaxRetries {
		attempts = try.MaxRetries
	}

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	var (
		resp    *http.Response
		lastErr error
	)
	err = try.Do(func(attempt int) (bool, error) {
		if ctx.Err() != nil {
			return false, ErrCancelled
		}
		r, err := c.do(ctx, req, opts.Stream)
		if err == nil {
			switch {
			case r.StatusCode == http.StatusUnauthorized:
				discard(r)
				return false, ErrUnauthorized
			case IsRetryableStatus(r.StatusCode):
				discard(r)
				err = fmt.Errorf("server responded %s", r.Status)
			default:
				resp = r
				return false, nil
			}
		}
		lastErr = err
		if attempt >= attempts {
			return false, err
		}
		wait := Backoff(c.cfg.BackoffBase, attempt-1, c.jitter())
		c.logger.Debug("request failed, retrying", "url", req.URL.Path, "attempt", attempt, "wait", wait, "error", err)
		if err := c.sleep(ctx, wait); err != nil {
			return false, ErrCancelled
		}
		return true, err
	})

	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrCancelled):
		return nil, err
	default:
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, attempts, lastErr)
	}
}

func (c *Client) do(ctx context.Context, base *http.Request, stream bool) (*http.Response, error) {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RequestTimeout)
	resp, err := c.http.Do(base.Clone(reqCtx))
	if err != nil {
		cancel()
		return nil, err
	}
	if stream {
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	defer cancel()
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Cookie", c.cfg.Cookie)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.Referer != "" {
		req.Header.Set("Referer", c.cfg.Referer)
	}
	if c.cfg.Origin != "" {
		req.Header.Set("Origin", c.cfg.Origin)
	}
}

// Backoff returns the wait after the zero-based attempt: base*2^attempt plus jitter.
func Backoff(base time.Duration, attempt int, jitter time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	return base*time.Duration(1<<uint(attempt)) + jitter
}

func IsRetryableStatus(code int) bool {
	switch code {
	case http.StatusForbidden, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	default:
		return false
	}
}

// SanitizeCredential trims the pasted cookie and removes line breaks, which
// would otherwise make the header invalid.
func SanitizeCredential(cookie string) string {
	cookie = strings.NewReplacer("\r", "", "\n", "").Replace(cookie)
	return strings.TrimSpace(cookie)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
