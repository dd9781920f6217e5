// Package upstream is the client for the paginated inscription source
// (a Hiro-style ordinals API): a listing endpoint plus a per-ID content
// endpoint.
package upstream

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
)

// ErrNotFound is returned when the content for an ID does not exist upstream.
var ErrNotFound = errors.New("upstream content not found")

// TransientError wraps failures worth retrying: network errors, rate
// limiting, and server-side errors.
type TransientError struct {
	StatusCode int // 0 for transport-level failures
	cause      error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient upstream failure: status %d", e.StatusCode)
	}
	return fmt.Sprintf("transient upstream failure: %v", e.cause)
}

func (e *TransientError) Unwrap() error { return e.cause }

// IsTransient reports whether err is a retryable upstream failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Entry is one listing result.
type Entry struct {
	Number        uint64      `json:"number"`
	TxID          string      `json:"tx_id"`
	Address       string      `json:"address"`
	ContentType   string      `json:"content_type"`
	ContentLength int64       `json:"content_length"`
	GenesisFee    json.Number `json:"genesis_fee"`
	GenesisHeight int64       `json:"genesis_block_height"`
	Value         json.Number `json:"value"`
	Timestamp     int64       `json:"timestamp"` // milliseconds
}

// Page is one listing response.
type Page struct {
	Total   int     `json:"total"`
	Results []Entry `json:"results"`
}

// Options configures the Client.
type Options struct {
	// HTTPClient is the client used for all requests.
	HTTPClient *http.Client
}

// Client talks to the upstream inscription source.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the given base URL
// (e.g. "https://api.hiro.so/ordinals/v1/inscriptions").
func New(baseURL string, optFns ...func(*Options)) *Client {
	opts := Options{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{baseURL: baseURL, httpClient: opts.HTTPClient}
}

// List fetches one listing window.
func (c *Client) List(ctx context.Context, limit int, from, to uint64) (*Page, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("from_number", strconv.FormatUint(from, 10))
	if to > 0 {
		q.Set("to_number", strconv.FormatUint(to, 10))
	}

	body, err := c.get(ctx, c.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode listing page: %w", err)
	}
	return &page, nil
}

// Remaining probes how many items exist with numbers greater than after.
func (c *Client) Remaining(ctx context.Context, after uint64) (int, error) {
	page, err := c.List(ctx, 1, after+1, 0)
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}

// Content fetches the raw content bytes for one inscription ID.
func (c *Client) Content(ctx context.Context, id uint64) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf("%s/%d/content", c.baseURL, id))
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &TransientError{StatusCode: resp.StatusCode}
	default:
		return nil, fmt.Errorf("upstream returned status %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{cause: err}
	}
	return body, nil
}
