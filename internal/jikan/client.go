package jikan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.jikan.moe/v4"

// Error taxonomy surfaced to callers. Transient upstream trouble is retried
// internally; ErrUnavailable means the retry budget ran out.
var (
	ErrNotFound    = errors.New("jikan: not found")
	ErrRejected    = errors.New("jikan: request rejected")
	ErrUnavailable = errors.New("jikan: upstream unavailable")
)

// Client calls the Jikan API behind a shared token-bucket rate gate and a
// bounded exponential retry. One Client instance is shared by every caller in
// the process so the gate covers all upstream traffic.
type Client struct {
	baseURL     string
	http        *http.Client
	limiter     *rate.Limiter
	maxAttempts uint
	minWait     time.Duration
	maxWait     time.Duration
}

type Option func(*Client)

// WithBaseURL points the client at a different API root (tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRateLimit admits at most rps requests per second with the given burst.
// Calls over budget block until a slot frees; they are never dropped.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithRetry bounds the attempt count and the backoff floor/ceiling.
func WithRetry(attempts int, minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = uint(attempts)
		}
		c.minWait = minWait
		c.maxWait = maxWait
	}
}

// WithTimeout sets the per-request timeout. A timed-out attempt counts as a
// transient failure.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		http:        &http.Client{Timeout: 10 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(3), 3),
		maxAttempts: 5,
		minWait:     2 * time.Second,
		maxWait:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAnimeByID fetches the full detail payload for one MAL id.
func (c *Client) GetAnimeByID(ctx context.Context, malID int64) (*Anime, error) {
	var env envelope[Anime]
	path := fmt.Sprintf("anime/%d/full", malID)
	if err := c.getJSON(ctx, path, nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// GetTopAnime fetches the upstream "top" ranking, limited to limit entries.
func (c *Client) GetTopAnime(ctx context.Context, limit int) ([]Anime, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var env envelope[[]Anime]
	if err := c.getJSON(ctx, "top/anime", q, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// SearchAnime runs a free-text search against the upstream catalog.
func (c *Client) SearchAnime(ctx context.Context, sq SearchQuery) ([]Anime, error) {
	q := url.Values{}
	q.Set("q", sq.Q)
	if sq.Page > 0 {
		q.Set("page", strconv.Itoa(sq.Page))
	}
	if sq.Limit > 0 {
		q.Set("limit", strconv.Itoa(sq.Limit))
	}
	if sq.Type != "" {
		q.Set("type", sq.Type)
	}
	if sq.Status != "" {
		q.Set("status", sq.Status)
	}
	if sq.Season != "" {
		q.Set("season", sq.Season)
	}
	orderBy := sq.OrderBy
	if orderBy == "" {
		orderBy = "scored_by"
	}
	q.Set("order_by", orderBy)

	var env envelope[[]Anime]
	if err := c.getJSON(ctx, "anime", q, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// getJSON performs one logical GET: rate gate, then up to maxAttempts HTTP
// attempts with exponential backoff between them. Only timeouts, transport
// errors, 429 and 5xx responses are retried; 404 and other 4xx fail at once.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	op := func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		return c.attempt(ctx, u)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.minWait
	bo.MaxInterval = c.maxWait

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.maxAttempts),
	)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrRejected), errors.Is(err, ErrUnavailable):
			return err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			// transport failure exhausted the retry budget
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrRejected, path, err)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: build request: %v", ErrRejected, err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// the caller gave up, not the upstream
			return nil, backoff.Permanent(ctx.Err())
		}
		// timeouts and connection errors are transient upstream trouble;
		// the client timeout also surfaces as context.DeadlineExceeded, so
		// classify here rather than by error identity
		return nil, fmt.Errorf("%w: request %s: %v", ErrUnavailable, u, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if readErr != nil {
			return nil, fmt.Errorf("read body: %w", readErr)
		}
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, ErrUnavailable)
	default:
		return nil, backoff.Permanent(fmt.Errorf("status %d: %w", resp.StatusCode, ErrRejected))
	}
}
