// Package accel is the client for the out-of-process accelerated matcher.
//
// The service implements the same matching contract as the in-process path
// but is treated as unreliable: connection refusal, timeouts, and non-2xx
// responses are all normalized to ErrUnavailable so the orchestrator falls
// through to the next tier without distinguishing failure modes. One attempt
// per request, no retries.
package accel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hupe1980/ordsim/fingerprint"
	"github.com/hupe1980/ordsim/match"
)

// ErrUnavailable is returned for every accelerated-tier failure. This is an
// expected operational condition, not an error worth alerting on.
var ErrUnavailable = errors.New("accelerated matcher unavailable")

// Options configures the Client.
type Options struct {
	// Timeout bounds each request so a stalled service degrades to the
	// fallback tier instead of hanging the caller.
	Timeout time.Duration
}

// DefaultOptions are the default Client options.
var DefaultOptions = Options{
	Timeout: 2 * time.Second,
}

// Client talks to the accelerated matcher service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the given base URL.
func New(baseURL string, optFns ...func(*Options)) *Client {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

type wireMatch struct {
	ID    uint64 `json:"id"`
	Score int    `json:"score"`
}

// MatchesByID requests the top-N neighbors of a known subject ID.
func (c *Client) MatchesByID(ctx context.Context, id uint64, topN int) (match.List, error) {
	return c.get(ctx, fmt.Sprintf("%s/ord_id/%d?top_n=%d", c.baseURL, id, topN))
}

// MatchesByFingerprint requests the top-N neighbors of a raw fingerprint.
func (c *Client) MatchesByFingerprint(ctx context.Context, fp fingerprint.Fingerprint, topN int) (match.List, error) {
	return c.get(ctx, fmt.Sprintf("%s/file_hash/%s?top_n=%d", c.baseURL, fp.String(), topN))
}

func (c *Client) get(ctx context.Context, rawURL string) (match.List, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var wire []wireMatch
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	list := make(match.List, len(wire))
	for i, m := range wire {
		list[i] = match.Match{ID: m.ID, Score: m.Score}
	}
	return list, nil
}
