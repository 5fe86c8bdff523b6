package streets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Jntvanlanschot/Vastgoedanalyse/config"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/geometry"
)

var (
	// ErrBadQuery is returned when Overpass rejects the query with HTTP 400.
	ErrBadQuery = errors.New("overpass rejected the query")
	// ErrRateLimited marks an HTTP 429 answer.
	ErrRateLimited = errors.New("overpass rate limit reached")
	// ErrUnavailable is returned once every attempt failed.
	ErrUnavailable = errors.New("overpass unavailable")
)

const userAgent = "Vastgoedanalyse-StreetSimilarity/1.0"

// Element is one Overpass element from an `out geom` answer.
type Element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Tags     map[string]string `json:"tags,omitempty"`
	Geometry []geometry.Node   `json:"geometry,omitempty"`
}

func (e Element) IsWaterway() bool {
	_, ok := e.Tags["waterway"]
	return ok
}

type Response struct {
	Elements []Element `json:"elements"`
}

// Querier runs an Overpass QL query.
type Querier interface {
	Query(ctx context.Context, query string) (*Response, error)
}

type ClientOptions struct {
	Endpoint          string
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerSecond float64
}

func ClientOptionsFromConfig(cfg *config.Config) ClientOptions {
	return ClientOptions{
		Endpoint:          cfg.Overpass.Endpoint,
		Timeout:           cfg.Overpass.Timeout,
		MaxRetries:        cfg.Overpass.MaxRetries,
		RetryDelay:        cfg.Overpass.RetryDelay,
		RequestsPerSecond: cfg.Overpass.RequestsPerSecond,
	}
}

type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	opts    ClientOptions
	logger  *logrus.Logger
}

func NewClient(opts ClientOptions, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		logger:  logger,
	}
}

// Query posts the query and decodes the answer. Timeouts, 429 and 5xx
// answers are retried with exponential backoff.
func (c *Client) Query(ctx context.Context, query string) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
		}

		resp, err := c.do(ctx, query)
		if err == nil {
			return resp, nil
		}
		if !retryable(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		c.logger.WithError(err).WithFields(logrus.Fields{
			"attempt":     attempt + 1,
			"max_retries": c.opts.MaxRetries,
		}).Warn("Overpass request failed")

		if attempt < c.opts.MaxRetries-1 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}

	c.logger.WithError(lastErr).Error("All Overpass attempts failed")
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, c.opts.MaxRetries, lastErr)
}

func (c *Client) do(ctx context.Context, query string) (*Response, error) {
	form := url.Values{"data": []string{query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &transientError{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s", ErrBadQuery, strings.TrimSpace(string(body)))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &transientError{err: ErrRateLimited}
	case resp.StatusCode >= 500:
		return nil, &transientError{err: fmt.Errorf("server error: status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}

func (c *Client) backoff(ctx context.Context, attempt int) error {
	d := time.Duration(float64(c.opts.RetryDelay) * math.Pow(2, float64(attempt)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// transientError marks failures worth another attempt.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}
