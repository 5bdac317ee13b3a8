// Package authority provides the HTTP client modules use to ask the billing
// service whether a user may use them.
package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	jotel "github.com/jegasuite/jega/internal/adapter/otel"
	"github.com/jegasuite/jega/internal/port/authority"
	"github.com/jegasuite/jega/internal/port/cache"
	"github.com/jegasuite/jega/internal/resilience"
)

const maxBodyBytes = 64 << 10

// Latency outcomes.
const (
	outcomeOK          = "ok"
	outcomeCached      = "cached"
	outcomeRejected    = "rejected"
	outcomeUnavailable = "unavailable"
	outcomeCancelled   = "cancelled"
)

// Options configures a Client.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
	Breaker  *resilience.Breaker
	Cache    cache.Cache
	Metrics  *jotel.Metrics
	// Transport overrides the base round tripper. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Client calls GET {base}/check-access. Identical in-flight checks share one
// request and positive decisions are cached for CacheTTL.
type Client struct {
	baseURL    string
	timeout    time.Duration
	cacheTTL   time.Duration
	httpClient *http.Client
	breaker    *resilience.Breaker
	cache      cache.Cache
	metrics    *jotel.Metrics
	group      singleflight.Group
}

var _ authority.Checker = (*Client)(nil)

// NewClient creates an authority client.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("authority: base url is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("authority: base url: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		timeout:    opts.Timeout,
		cacheTTL:   opts.CacheTTL,
		httpClient: &http.Client{Transport: jotel.HTTPTransport(opts.Transport)},
		breaker:    opts.Breaker,
		cache:      opts.Cache,
		metrics:    opts.Metrics,
	}
	if c.breaker != nil {
		c.breaker.OnStateChange(func(from, to resilience.State) {
			slog.Warn("authority circuit breaker transition", "from", from, "to", to)
			c.metrics.RecordBreakerTransition(context.Background(), string(from), string(to))
		})
	}
	return c, nil
}

// CheckAccess asks the authority whether userID may use moduleName.
func (c *Client) CheckAccess(ctx context.Context, userID, moduleName string) (*authority.Decision, error) {
	ctx, span := jotel.StartAuthorityCheckSpan(ctx, userID, moduleName)
	defer span.End()
	start := time.Now()

	key := cacheKey(userID, moduleName)
	if d, ok := c.cached(ctx, key); ok {
		c.metrics.RecordAuthorityLatency(ctx, time.Since(start), outcomeCached)
		return d, nil
	}

	// The bearer is part of the flight key so callers never share a response
	// obtained with someone else's credentials.
	// The flight is detached so one caller's abort does not fail the others
	// sharing it; each caller still returns as soon as its own request ends.
	bearer := authority.BearerFromContext(ctx)
	ch := c.group.DoChan(key+"|"+bearer, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), userID, moduleName, bearer)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		c.metrics.RecordAuthorityLatency(ctx, time.Since(start), outcomeCancelled)
		span.SetStatus(codes.Error, "caller cancelled")
		return nil, ctx.Err()
	}
	v, err := res.Val, res.Err
	if err != nil {
		var se *authority.StatusError
		outcome := outcomeUnavailable
		if errors.As(err, &se) {
			outcome = outcomeRejected
		}
		c.metrics.RecordAuthorityLatency(ctx, time.Since(start), outcome)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	d := v.(*authority.Decision)
	c.metrics.RecordAuthorityLatency(ctx, time.Since(start), outcomeOK)

	if d.HasAccess {
		c.store(ctx, key, d)
	}
	out := *d
	return &out, nil
}

// InvalidateAll drops every cached decision. Called when grants change.
func (c *Client) InvalidateAll(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Clear(ctx)
}

func (c *Client) fetch(ctx context.Context, userID, moduleName, bearer string) (*authority.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d authority.Decision
	call := func() error {
		q := url.Values{"userId": {userID}, "moduleName": {moduleName}}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/check-access?"+q.Encode(), http.NoBody)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &authority.StatusError{StatusCode: resp.StatusCode, Body: string(data)}
		}
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("decode decision: %w", err)
		}
		return nil
	}

	if c.breaker == nil {
		if err := call(); err != nil {
			return nil, fmt.Errorf("authority check-access: %w", err)
		}
		return &d, nil
	}

	// A 4xx is a definite answer from a healthy authority and must not
	// count toward opening the breaker.
	var answered error
	err := c.breaker.Execute(func() error {
		err := call()
		var se *authority.StatusError
		if errors.As(err, &se) && se.StatusCode < 500 {
			answered = err
			return nil
		}
		return err
	})
	if err == nil {
		err = answered
	}
	if err != nil {
		return nil, fmt.Errorf("authority check-access: %w", err)
	}
	return &d, nil
}

func (c *Client) cached(ctx context.Context, key string) (*authority.Decision, bool) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return nil, false
	}
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var d authority.Decision
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, false
	}
	return &d, true
}

func (c *Client) store(ctx context.Context, key string, d *authority.Decision) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
		slog.WarnContext(ctx, "authority decision cache write failed", "error", err)
	}
}

func cacheKey(userID, moduleName string) string {
	return "authz:" + moduleName + ":" + userID
}
