// Package ghgate implements the concrete remote client the scheduler's
// gh:pr gate dispatches to: a pooled HTTP client against the GitHub REST
// API, guarded by a retry/circuit-breaker/rate-limiter stack so a flaky
// or rate-limited GitHub never stalls the scheduler beyond its own
// configured budget.
package ghgate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/swarmguard/taskgraph/internal/resilience"
)

// headerCarrier adapts http.Header for OpenTelemetry trace propagation.
type headerCarrier struct{ header http.Header }

func (hc *headerCarrier) Get(key string) string { return hc.header.Get(key) }
func (hc *headerCarrier) Set(key, value string) { hc.header.Set(key, value) }
func (hc *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(hc.header))
	for k := range hc.header {
		keys = append(keys, k)
	}
	return keys
}

// Client implements scheduler.PRClient against api.github.com.
type Client struct {
	http    *http.Client
	token   string
	baseURL string
	tracer  trace.Tracer

	retryAttempts int
	retryDelay    time.Duration
	breaker       *resilience.CircuitBreaker
	limiter       *resilience.RateLimiter
}

// Option configures a Client.
type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New builds a gh:pr remote client with a pooled transport and a
// conservative retry/circuit-breaker/rate-limiter profile: GitHub's REST
// API allows roughly 5000 req/hour authenticated, so the limiter is tuned
// well under that per-process.
func New(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:       "https://api.github.com",
		tracer:        otel.Tracer("taskgraph-ghgate"),
		retryAttempts: 3,
		retryDelay:    200 * time.Millisecond,
		breaker:       resilience.NewCircuitBreaker(30*time.Second, 6, 5, 0.5, 15*time.Second, 2),
		limiter:       resilience.NewRateLimiter(20, 1.0, time.Minute, 60),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pullResponse struct {
	Merged bool   `json:"merged"`
	State  string `json:"state"`
}

// IsPRMerged reports whether owner/repo#number has been merged.
func (c *Client) IsPRMerged(ctx context.Context, owner, repo string, number int) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "ghgate.is_pr_merged", trace.WithAttributes(
		attribute.String("github.owner", owner),
		attribute.String("github.repo", repo),
		attribute.Int("github.pr_number", number),
	))
	defer span.End()

	if !c.limiter.Allow() {
		return false, fmt.Errorf("ghgate: rate limit exceeded for %s/%s#%d", owner, repo, number)
	}
	if !c.breaker.Allow() {
		return false, fmt.Errorf("ghgate: circuit open, refusing call for %s/%s#%d", owner, repo, number)
	}

	merged, err := resilience.Retry(ctx, c.retryAttempts, c.retryDelay, func() (bool, error) {
		return c.fetchMerged(ctx, owner, repo, number)
	})
	c.breaker.RecordResult(err == nil)
	return merged, err
}

func (c *Client) fetchMerged(ctx context.Context, owner, repo string, number int) (bool, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("ghgate: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, &headerCarrier{req.Header})

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("ghgate: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("ghgate: github returned %d for %s", resp.StatusCode, url)
	}

	var pr pullResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return false, fmt.Errorf("ghgate: decode response: %w", err)
	}
	return pr.Merged, nil
}
