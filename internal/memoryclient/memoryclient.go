// Package memoryclient implements the memory service's consumed contract
// over HTTP: GET /state, GET /telemetry, POST /search, all best-effort
// with exponential-backoff retries and a per-instance circuit breaker.
// The breaker is the same internal/capability.CircuitBreaker the registry
// uses to gate shadow-run execution; this client is just another caller of
// that pattern, not a second implementation of it.
package memoryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/noeticlabs/wayfinder/internal/capability"
)

// MaxAttempts and backoff bounds for the retry policy: exponential
// backoff, three attempts.
const (
	MaxAttempts  = 3
	baseBackoff  = 100 * time.Millisecond
	breakerTrips = 3
	breakerCool  = 30 * time.Second
)

// StateResponse is the GET /state shape.
type StateResponse struct {
	Provenance struct {
		RecentActions []string `json:"recentActions"`
	} `json:"provenance"`
	Episodic struct {
		RecentMemories []string `json:"recentMemories"`
	} `json:"episodic"`
	Semantic struct {
		TotalEntities      int `json:"totalEntities"`
		TotalRelationships int `json:"totalRelationships"`
	} `json:"semantic"`
}

// TelemetryEvent is one entry from GET /telemetry.
type TelemetryEvent struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// SearchRequest is the POST /search body.
type SearchRequest struct {
	Query   string   `json:"query"`
	Limit   int      `json:"limit"`
	Types   []string `json:"types,omitempty"`
	Entities []string `json:"entities,omitempty"`
	MaxAge  string   `json:"maxAge,omitempty"`
}

// Memory is one ranked POST /search result.
type Memory struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// ErrCircuitOpen is returned instead of attempting a call while the
// breaker is tripped.
var ErrCircuitOpen = fmt.Errorf("memoryclient: circuit open")

// Client is the memory service HTTP client.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *capability.CircuitBreaker
	nowFn   func() time.Time
}

// New builds a Client against baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: capability.NewCircuitBreaker(breakerTrips, breakerCool),
		nowFn:   time.Now,
	}
}

func (c *Client) now() time.Time {
	if c.nowFn != nil {
		return c.nowFn()
	}
	return time.Now()
}

// State fetches GET /state.
func (c *Client) State(ctx context.Context) (StateResponse, error) {
	var out StateResponse
	err := c.call(ctx, http.MethodGet, "/state", nil, &out)
	return out, err
}

// Telemetry fetches GET /telemetry.
func (c *Client) Telemetry(ctx context.Context) ([]TelemetryEvent, error) {
	var out []TelemetryEvent
	err := c.call(ctx, http.MethodGet, "/telemetry", nil, &out)
	return out, err
}

// Search issues POST /search.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]Memory, error) {
	var out []Memory
	err := c.call(ctx, http.MethodPost, "/search", req, &out)
	return out, err
}

// call applies the circuit breaker gate, then retries up to MaxAttempts
// times with exponential backoff, recording the final outcome.
func (c *Client) call(ctx context.Context, method, path string, body any, out any) error {
	if c.breaker.State(c.now()) == capability.CircuitOpen {
		return ErrCircuitOpen
	}

	var lastErr error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(baseBackoff << uint(attempt-1)):
			}
		}
		lastErr = c.doOnce(ctx, method, path, body, out)
		if lastErr == nil {
			c.breaker.Record(true, c.now())
			return nil
		}
	}
	c.breaker.Record(false, c.now())
	return fmt.Errorf("memoryclient: %s %s: %w", method, path, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
