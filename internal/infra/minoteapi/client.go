// Package minoteapi reads notes, folders and attachments from the Xiaomi
// Cloud notes web API.
package minoteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sleroq/minote-sync/internal/infra/transport"
)

const (
	DefaultBaseURL   = "https://i.mi.com"
	DefaultPageLimit = 200
	DefaultMaxPages  = 500
	DefaultPageDelay = 500 * time.Millisecond
)

// Getter is the transport used by Client.
type Getter interface {
	Get(ctx context.Context, rawURL string, opts transport.Options) (*http.Response, error)
}

type Options struct {
	BaseURL   string
	PageLimit int
	MaxPages  int
	PageDelay time.Duration
}

type Client struct {
	getter  Getter
	baseURL string
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

func New(getter Getter, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = DefaultPageLimit
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	limit := rate.Inf
	if opts.PageDelay > 0 {
		limit = rate.Every(opts.PageDelay)
	}
	return &Client{
		getter:  getter,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		now:     time.Now,
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	return c.baseURL + path + "?" + query.Encode()
}

func (c *Client) timestamp() string {
	return strconv.FormatInt(c.now().UnixMilli(), 10)
}

// getJSON performs a buffered GET and decodes a JSON body into out. Numbers
// are kept as json.Number so 64-bit ids survive.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := c.getter.Get(ctx, rawURL, transport.Options{})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// rawBlob returns the textual form of a field that the service ships either
// as a JSON string or as an embedded object.
func rawBlob(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return ""
	}
}
