// Package client consumes the insight stream and talks to the profile API
// of a careerpulse server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raphaelgruber/careerpulse/internal/metrics"
	"github.com/raphaelgruber/careerpulse/internal/models"
	"github.com/raphaelgruber/careerpulse/internal/sse"
)

// ErrPersistence wraps a rejected commit. The run result stays valid and the
// commit may be retried.
var ErrPersistence = errors.New("persistence failure")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status    int
	Kind      string
	Message   string
	Retryable bool
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("server error: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

// Client is an HTTP client for the careerpulse server.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// stream requests are bounded by their context only
	streamClient *http.Client
}

// New creates a client for baseURL. timeout bounds non-streaming requests.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8585"
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
	}
}

// StreamInsights opens one push channel for topic and consumes it until a
// terminal frame. onUpdate, if set, is called with a snapshot after every
// frame. The channel is never reopened; a transport failure fails the run.
func (c *Client) StreamInsights(ctx context.Context, topic string, onUpdate func(Progress)) (*Result, error) {
	acc := NewAccumulator()
	notify := func() {
		if onUpdate != nil {
			onUpdate(acc.Progress())
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/insights/stream/"+url.PathEscape(topic), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		acc.Fail(fmt.Errorf("%w: %w", ErrStreamInterrupted, err))
		notify()
		return nil, acc.Err()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		acc.Fail(decodeAPIError(resp))
		notify()
		return nil, acc.Err()
	}

	reader := sse.NewReader(resp.Body)
	for !acc.State().Terminal() {
		frame, err := reader.Next()
		if err != nil {
			acc.Fail(fmt.Errorf("%w: %w", ErrStreamInterrupted, err))
			notify()
			break
		}
		acc.Apply(frame)
		notify()
	}

	if result, ok := acc.Result(); ok {
		return result, nil
	}
	return nil, acc.Err()
}

// CommitSelection replaces the profile's persisted insights with the
// selected records. Failures wrap ErrPersistence.
func (c *Client) CommitSelection(ctx context.Context, profileID string, sel *Selection) (*models.ProfileView, error) {
	if sel == nil || !sel.CanCommit() {
		return nil, ErrEmptySelection
	}

	var out models.ProfileView
	body := map[string]any{"insights": sel.Insights()}
	if err := c.do(ctx, http.MethodPut, "/profiles/"+url.PathEscape(profileID)+"/insights", body, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return &out, nil
}

// CreateProfile creates a profile.
func (c *Client) CreateProfile(ctx context.Context, name string, description *string) (*models.ProfileView, error) {
	var out models.ProfileView
	input := models.ProfileInput{Name: name, Description: description}
	if err := c.do(ctx, http.MethodPost, "/profiles", input, &out); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return &out, nil
}

// GetProfile fetches a profile by ID.
func (c *Client) GetProfile(ctx context.Context, id string) (*models.ProfileView, error) {
	var out models.ProfileView
	if err := c.do(ctx, http.MethodGet, "/profiles/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &out, nil
}

// ServerStats fetches the server's runtime statistics.
func (c *Client) ServerStats(ctx context.Context) (*metrics.Snapshot, error) {
	var out metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &out); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body struct {
		Error struct {
			Kind      string `json:"kind"`
			Message   string `json:"message"`
			Retryable bool   `json:"retryable"`
		} `json:"error"`
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Kind != "" {
		apiErr.Kind = body.Error.Kind
		apiErr.Message = body.Error.Message
		apiErr.Retryable = body.Error.Retryable
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
