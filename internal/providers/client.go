package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultUserAgent    = "macrocollector/0.1"
	defaultMaxBodyBytes = 32 << 20
	maxErrorBodySnippet = 512
)

type ClientConfig struct {
	Timeout         time.Duration
	UserAgent       string
	RateLimitPerSec float64
	RateLimitBurst  int
	MaxBodyBytes    int64
}

// Client performs the single GET each adapter issues per indicator.
// Failures come back as *FetchError without an indicator; adapters fill it in
// through Wrap.
type Client struct {
	provider string
	config   ClientConfig
	http     *http.Client
	limiter  *rate.Limiter
}

func NewClient(provider string, cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 1
	}

	limit := rate.Inf
	if cfg.RateLimitPerSec > 0 {
		limit = rate.Limit(cfg.RateLimitPerSec)
	}

	return &Client{
		provider: provider,
		config:   cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(limit, cfg.RateLimitBurst),
	}
}

func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, accept string) ([]byte, error) {
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.fail(ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, c.fail(ErrTransport, err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes+1))
	if err != nil {
		return nil, c.fail(ErrTransport, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, c.fail(ErrStatus, fmt.Errorf("%s: %s", resp.Status, snippet(body)))
	}
	if int64(len(body)) > c.config.MaxBodyBytes {
		return nil, c.fail(ErrPayload, fmt.Errorf("response exceeds %d bytes", c.config.MaxBodyBytes))
	}
	return body, nil
}

// GetJSON decodes the response into dest, keeping numbers as json.Number.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, dest any) error {
	body, err := c.Get(ctx, endpoint, params, "application/json")
	if err != nil {
		return err
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(dest); err != nil {
		return c.fail(ErrPayload, fmt.Errorf("decode json: %w", err))
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return c.fail(ErrPayload, errors.New("trailing data after json document"))
	}
	return nil
}

func (c *Client) fail(kind, err error) *FetchError {
	return NewFetchError(c.provider, "", kind, err)
}

// Wrap attaches the indicator to a fetch failure. Errors that are not a
// FetchError yet are classified as kind.
func Wrap(provider, indicator string, kind, err error) error {
	if err == nil {
		return nil
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		annotated := *fetchErr
		annotated.Indicator = indicator
		return &annotated
	}
	return NewFetchError(provider, indicator, kind, err)
}

// JoinURL appends path to base with exactly one slash between them.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBodySnippet {
		text = text[:maxErrorBodySnippet] + "..."
	}
	return text
}

// String renders a decoded JSON scalar as text. Null and unsupported types
// yield "".
func String(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case bool:
		if typed {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
