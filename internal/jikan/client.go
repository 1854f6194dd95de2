// Package jikan is a small client for the Jikan v4 API (a public
// MyAnimeList mirror). Calls go through a token-bucket limiter, a circuit
// breaker and a short-lived response cache.
package jikan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"animeranker/internal/metrics"
	"animeranker/pkg/logging"
	"animeranker/pkg/models"
)

const (
	DefaultBaseURL = "https://api.jikan.moe/v4"
	PageSize       = 24

	maxBodyBytes = 4 << 20
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("jikan unavailable")

// StatusError reports a non-200 upstream response.
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jikan %s: status %d", e.Path, e.Code)
}

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Rate     float64 // requests per second
	Burst    int
	CacheTTL time.Duration // 0 disables caching
}

type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	cache   *ristretto.Cache[string, []byte]
	ttl     time.Duration
	metrics *metrics.Metrics
}

func New(cfg Config, m *metrics.Metrics) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 3
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	c := &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		ttl:     cfg.CacheTTL,
		metrics: m,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "jikan",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			// client-side mistakes say nothing about upstream health
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < 500 && se.Code != http.StatusTooManyRequests
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("[jikan] circuit breaker state change")
		},
	})

	if cfg.CacheTTL > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
			NumCounters: 10_000,
			MaxCost:     32 << 20,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("create jikan cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// Close releases the response cache.
func (c *Client) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

// TopAnime returns the top-ranked TV series.
func (c *Client) TopAnime(ctx context.Context, page, limit int) (Page, error) {
	q := url.Values{}
	q.Set("type", "tv")
	q.Set("page", strconv.Itoa(normPage(page)))
	q.Set("limit", strconv.Itoa(normLimit(limit)))
	return c.list(ctx, "top", "/top/anime", q)
}

func (c *Client) Search(ctx context.Context, term string, page int) (Page, error) {
	q := url.Values{}
	q.Set("q", term)
	q.Set("page", strconv.Itoa(normPage(page)))
	q.Set("limit", strconv.Itoa(PageSize))
	return c.list(ctx, "search", "/anime", q)
}

func (c *Client) ByGenre(ctx context.Context, genreID, page int) (Page, error) {
	q := url.Values{}
	q.Set("genres", strconv.Itoa(genreID))
	q.Set("page", strconv.Itoa(normPage(page)))
	q.Set("limit", strconv.Itoa(PageSize))
	return c.list(ctx, "genre", "/anime", q)
}

func (c *Client) Genres(ctx context.Context) ([]Genre, error) {
	body, err := c.get(ctx, "genres", "/genres/anime", nil)
	if err != nil {
		return nil, err
	}
	var resp genresResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode genres: %w", err)
	}
	if resp.Data == nil {
		resp.Data = []Genre{}
	}
	return resp.Data, nil
}

func (c *Client) list(ctx context.Context, endpoint, path string, q url.Values) (Page, error) {
	body, err := c.get(ctx, endpoint, path, q)
	if err != nil {
		return Page{}, err
	}
	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Page{}, fmt.Errorf("decode %s: %w", endpoint, err)
	}

	items := make([]models.Anime, 0, len(resp.Data))
	for _, p := range resp.Data {
		if p.MalID <= 0 {
			continue
		}
		items = append(items, toAnime(p))
	}
	return Page{Items: items, Pagination: resp.Pagination}, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values) ([]byte, error) {
	key := path
	if len(q) > 0 {
		key += "?" + q.Encode()
	}

	if c.cache != nil {
		if body, ok := c.cache.Get(key); ok {
			c.metrics.ObserveJikan(endpoint, metrics.OutcomeCacheHit)
			return body, nil
		}
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.fetch(ctx, key)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.ObserveJikan(endpoint, metrics.OutcomeBreakerOpen)
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		c.metrics.ObserveJikan(endpoint, metrics.OutcomeError)
		logging.Warn().Err(err).Str("endpoint", endpoint).Msg("[jikan] request failed")
		return nil, err
	}
	c.metrics.ObserveJikan(endpoint, metrics.OutcomeOK)

	if c.cache != nil {
		c.cache.SetWithTTL(key, body, int64(len(body)), c.ttl)
		c.cache.Wait()
	}
	return body, nil
}

func (c *Client) fetch(ctx context.Context, pathAndQuery string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.ObserveJikanLatency(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("jikan request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		path, _, _ := strings.Cut(pathAndQuery, "?")
		return nil, &StatusError{Code: resp.StatusCode, Path: path}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read jikan body: %w", err)
	}
	return body, nil
}

func normPage(p int) int {
	if p < 1 {
		return 1
	}
	return p
}

// Jikan caps limit at 25.
func normLimit(l int) int {
	if l <= 0 || l > 25 {
		return PageSize
	}
	return l
}
