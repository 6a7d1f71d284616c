package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, attempts int) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Cookie = "serviceToken=abc\r\n"
	cfg.MaxAttempts = attempts
	cfg.BackoffBase = time.Millisecond
	cfg.Jitter = 0
	return New(cfg, nil)
}

func statusSequence(t *testing.T, hits *atomic.Int32, codes ...int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1)) - 1
		code := codes[len(codes)-1]
		if n < len(codes) {
			code = codes[n]
		}
		w.WriteHeader(code)
		_, _ = io.WriteString(w, "body")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBackoffBounds(t *testing.T) {
	for attempt := 0; attempt < 5; attempt++ {
		low := time.Second * time.Duration(1<<attempt)
		got := Backoff(time.Second, attempt, 999*time.Millisecond)
		require.GreaterOrEqual(t, got, low)
		require.Less(t, got, low+time.Second)
		require.Equal(t, low, Backoff(time.Second, attempt, 0))
	}
}

func TestGetRetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := statusSequence(t, &hits, http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusOK)

	resp, err := newTestClient(t, 3).Get(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int32(3), hits.Load())
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "body", string(body))
}

func TestGetUnauthorizedIsFatal(t *testing.T) {
	var hits atomic.Int32
	srv := statusSequence(t, &hits, http.StatusUnauthorized)

	_, err := newTestClient(t, 5).Get(context.Background(), srv.URL, Options{})
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, int32(1), hits.Load())
}

func TestGetReturnsNotFoundWithoutRetry(t *testing.T) {
	var hits atomic.Int32
	srv := statusSequence(t, &hits, http.StatusNotFound)

	resp, err := newTestClient(t, 5).Get(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, int32(1), hits.Load())
}

func TestGetExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := statusSequence(t, &hits, http.StatusInternalServerError)

	_, err := newTestClient(t, 3).Get(context.Background(), srv.URL, Options{})
	require.ErrorIs(t, err, ErrExhausted)
	require.Equal(t, int32(3), hits.Load())
}

func TestGetPerCallAttemptsOverride(t *testing.T) {
	var hits atomic.Int32
	srv := statusSequence(t, &hits, http.StatusBadGateway)

	_, err := newTestClient(t, 5).Get(context.Background(), srv.URL, Options{MaxAttempts: 1})
	require.ErrorIs(t, err, ErrExhausted)
	require.Equal(t, int32(1), hits.Load())
}

func TestGetCancelledDuringBackoff(t *testing.T) {
	var hits atomic.Int32
	srv := statusSequence(t, &hits, http.StatusServiceUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := newTestClient(t, 5)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, time.Hour)
	}

	_, err := c.Get(ctx, srv.URL, Options{})
	require.ErrorIs(t, err, ErrCancelled)
	require.Equal(t, int32(1), hits.Load())
}

func TestGetCancelledBeforeFirstAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := statusSequence(t, &hits, http.StatusOK)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, 3).Get(ctx, srv.URL, Options{})
	require.True(t, errors.Is(err, ErrCancelled))
	require.Zero(t, hits.Load())
}

func TestGetSendsBrowserHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
	}))
	defer srv.Close()

	resp, err := newTestClient(t, 1).Get(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	resp.Body.Close()

	got := <-headers
	require.Equal(t, "serviceToken=abc", got.Get("Cookie"))
	require.Equal(t, DefaultReferer, got.Get("Referer"))
	require.Equal(t, DefaultOrigin, got.Get("Origin"))
	require.Equal(t, DefaultUserAgent, got.Get("User-Agent"))
}

func TestGetStreamLeavesBodyOpen(t *testing.T) {
	var hits atomic.Int32
	srv := statusSequence(t, &hits, http.StatusOK)

	resp, err := newTestClient(t, 1).Get(context.Background(), srv.URL, Options{Stream: true})
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, "body", string(body))
}

func TestSanitizeCredential(t *testing.T) {
	require.Equal(t, "a=1; b=2", SanitizeCredential(" a=1;\r\n b=2\n"))
}
