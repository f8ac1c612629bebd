package riot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/match-crawler/internal/metrics"
)

const maxBodyBytes = 16 << 20

// Limiter is the rate limiter contract the gateway depends on.
type Limiter interface {
	Acquire(ctx context.Context) (time.Time, error)
	OnBackoff(seconds int)
}

// HTTPDoer issues HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// GatewayConfig controls gateway behavior.
type GatewayConfig struct {
	APIKey            string
	MaxConcurrent     int
	DefaultRetryAfter int
}

// RequestStats is a snapshot of gateway counters.
type RequestStats struct {
	Requests    int64 `json:"requests"`
	Errors      int64 `json:"errors"`
	RateLimited int64 `json:"rate_limited"`
}

// Gateway issues rate-limited, concurrency-bounded API calls and classifies the responses.
type Gateway struct {
	client     HTTPDoer
	limiter    Limiter
	sem        *semaphore.Weighted
	apiKey     string
	retryAfter int
	logger     *zap.Logger

	requests    atomic.Int64
	errors      atomic.Int64
	rateLimited atomic.Int64
}

// NewGateway constructs a Gateway.
func NewGateway(client HTTPDoer, limiter Limiter, cfg GatewayConfig, logger *zap.Logger) *Gateway {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.DefaultRetryAfter <= 0 {
		cfg.DefaultRetryAfter = 60
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		client:     client,
		limiter:    limiter,
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		apiKey:     cfg.APIKey,
		retryAfter: cfg.DefaultRetryAfter,
		logger:     logger,
	}
}

// Fetch performs one GET against rawURL with params and classifies the response.
func (g *Gateway) Fetch(ctx context.Context, rawURL string, params url.Values) Outcome {
	g.requests.Add(1)
	start := time.Now()
	out := g.fetch(ctx, rawURL, params)
	metrics.ObserveRiotRequest(out.Label(), time.Since(start))
	return out
}

func (g *Gateway) fetch(ctx context.Context, rawURL string, params url.Values) Outcome {
	if _, err := g.limiter.Acquire(ctx); err != nil {
		return g.fail(0, err)
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return g.fail(0, fmt.Errorf("acquire request slot: %w", err))
	}
	defer g.sem.Release(1)

	target := rawURL
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return g.fail(0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("X-Riot-Token", g.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return g.fail(0, fmt.Errorf("do request: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return g.fail(resp.StatusCode, fmt.Errorf("read body: %w", err))
		}
		return Ok(body)
	case http.StatusNotFound:
		return NotFound()
	case http.StatusTooManyRequests:
		g.rateLimited.Add(1)
		metrics.ObserveRateLimitHit()
		seconds := parseRetryAfter(resp.Header.Get("Retry-After"), g.retryAfter, time.Now())
		g.limiter.OnBackoff(seconds)
		g.logger.Warn("rate limited by remote API",
			zap.String("url", rawURL),
			zap.Int("retry_after_seconds", seconds),
		)
		return Failed(FailureRateLimited, resp.StatusCode, errors.New("rate limited"))
	default:
		return g.fail(resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

func (g *Gateway) fail(status int, err error) Outcome {
	g.errors.Add(1)
	g.logger.Debug("request failed", zap.Int("status", status), zap.Error(err))
	return Failed(FailureOther, status, err)
}

// Stats returns a snapshot of the request counters.
func (g *Gateway) Stats() RequestStats {
	return RequestStats{
		Requests:    g.requests.Load(),
		Errors:      g.errors.Load(),
		RateLimited: g.rateLimited.Load(),
	}
}

// ResetStats zeroes the request counters.
func (g *Gateway) ResetStats() {
	g.requests.Store(0)
	g.errors.Store(0)
	g.rateLimited.Store(0)
}

// parseRetryAfter reads a delay-seconds or HTTP-date Retry-After value.
func parseRetryAfter(value string, fallback int, now time.Time) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return fallback
		}
		return seconds
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d <= 0 {
			return 0
		}
		return int(d.Round(time.Second) / time.Second)
	}
	return fallback
}
