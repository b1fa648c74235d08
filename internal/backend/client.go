// Package backend implements the HTTP client for the records backend's
// expired-record endpoints.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/hr-backoffice/nfd-autoupdater/internal/config"
	"github.com/hr-backoffice/nfd-autoupdater/internal/nfdstatus"
)

const (
	endpointUpdateExpired = "update-expired"
	endpointCheckExpired  = "check-expired"

	// maxErrorBody caps how much of a failed response is kept for the error message.
	maxErrorBody = 4 << 10
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nfd_backend_requests_total",
		Help: "Total backend API requests made.",
	}, []string{"method", "endpoint", "status_code"})
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nfd_backend_request_duration_seconds",
		Help:    "Duration of backend API requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})
)

// Metrics returns the request metrics so the server can register them on
// its own registry.
func Metrics() []prometheus.Collector {
	return []prometheus.Collector{requestsTotal, requestDuration}
}

// Client talks to the records backend. It satisfies nfdstatus.RemoteClient.
type Client struct {
	http          *http.Client
	rateLimiter   *RateLimiter
	logger        *logrus.Entry
	baseURL       *url.URL
	token         string
	updateExpired string
	checkExpired  string
}

// compile-time check
var _ nfdstatus.RemoteClient = (*Client)(nil)

// New creates a Client for the backend described by cfg.
func New(cfg config.BackendConfig, logger *logrus.Entry) (*Client, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing backend URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend URL %q must be absolute", cfg.URL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	log := logger.WithField("component", "backend")

	return &Client{
		http:          &http.Client{Timeout: timeout},
		rateLimiter:   NewRateLimiter(cfg.MaxRequestsPerSecond, cfg.BurstRequestsPerSecond, log.WithField("component", "rate_limiter")),
		logger:        log,
		baseURL:       base,
		token:         cfg.Token,
		updateExpired: cfg.UpdateExpiredPath,
		checkExpired:  cfg.CheckExpiredPath,
	}, nil
}

// RateLimiter returns the rate limiter associated with this client.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// BaseURL returns the base URL of the backend.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type updateExpiredResponse struct {
	Success      bool   `json:"success"`
	UpdatedCount int    `json:"updated_count"`
	Message      string `json:"message"`
}

type checkExpiredResponse struct {
	Success      bool   `json:"success"`
	TotalExpired int    `json:"total_expired"`
	Message      string `json:"message"`
}

// UpdateExpired asks the backend to mark every expired record and returns how
// many were changed.
func (c *Client) UpdateExpired(ctx context.Context) (int, error) {
	var resp updateExpiredResponse
	if err := c.do(ctx, http.MethodPost, endpointUpdateExpired, c.updateExpired, &resp); err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, &UnsuccessfulError{Endpoint: endpointUpdateExpired, Message: resp.Message}
	}
	if resp.UpdatedCount < 0 {
		return 0, fmt.Errorf("%s returned negative updated_count %d", endpointUpdateExpired, resp.UpdatedCount)
	}
	return resp.UpdatedCount, nil
}

// CheckExpired fetches a read-only count of records that are past expiry.
func (c *Client) CheckExpired(ctx context.Context) (nfdstatus.Preview, error) {
	var resp checkExpiredResponse
	if err := c.do(ctx, http.MethodGet, endpointCheckExpired, c.checkExpired, &resp); err != nil {
		return nfdstatus.Preview{}, err
	}
	if !resp.Success {
		return nfdstatus.Preview{}, &UnsuccessfulError{Endpoint: endpointCheckExpired, Message: resp.Message}
	}
	return nfdstatus.Preview{TotalExpired: resp.TotalExpired, Message: resp.Message}, nil
}

// do performs a rate-limited JSON call. path is relative to the base URL.
// result is JSON-unmarshalled from a 2xx response body.
func (c *Client) do(ctx context.Context, method, endpoint, path string, result interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	target := c.baseURL.ResolveReference(&url.URL{Path: path})

	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader([]byte("{}"))
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	requestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(method, endpoint, "error").Inc()
		return fmt.Errorf("executing %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	c.rateLimiter.UpdateFromHeaders(resp.Header)

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("backend request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{
			StatusCode: resp.StatusCode,
			URL:        target.String(),
			Message:    errorMessage(raw, resp.Status),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}

// errorMessage pulls a human-readable reason out of an error body, falling
// back to the raw text and then to the status line.
func errorMessage(raw []byte, status string) string {
	var envelope struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil {
		for _, s := range []string{envelope.Detail, envelope.Message, envelope.Error} {
			if s != "" {
				return s
			}
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return status
}
