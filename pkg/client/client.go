// Package client is the reviewer side of the queue: a typed HTTP
// client, a bounded poller for analysis tasks, and the view model that
// drives a review session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reviewq/internal/api"
	"reviewq/pkg/analysis"
	"reviewq/pkg/queue"
)

// Client talks to the reviewq API server. Business outcomes come back
// as the queue package's sentinel errors, so callers branch with
// errors.Is exactly as they would against the store.
type Client struct {
	baseURL  string
	reviewer string
	http     *http.Client
}

// New creates a Client for the given server, acting as reviewer.
func New(baseURL, reviewer string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		reviewer: reviewer,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Reviewer returns the identity this client acts as.
func (c *Client) Reviewer() string { return c.reviewer }

// ClaimNext claims the oldest pending item. Returns queue.ErrEmptyQueue
// when there is nothing to claim.
func (c *Client) ClaimNext(ctx context.Context) (*queue.Item, error) {
	var it queue.Item
	status, err := c.do(ctx, http.MethodPost, "/api/queue/claim", nil, &it, false)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, queue.ErrEmptyQueue
	}
	return &it, nil
}

// Claim claims a specific item.
func (c *Client) Claim(ctx context.Context, id string) (*queue.Item, error) {
	var it queue.Item
	if _, err := c.do(ctx, http.MethodPost, "/api/queue/"+id+"/claim", nil, &it, false); err != nil {
		return nil, err
	}
	return &it, nil
}

// Release returns a claimed item to pending.
func (c *Client) Release(ctx context.Context, id string) (*queue.Item, error) {
	var it queue.Item
	if _, err := c.do(ctx, http.MethodPost, "/api/queue/"+id+"/release", nil, &it, false); err != nil {
		return nil, err
	}
	return &it, nil
}

// Submit completes a claimed item. Never retried: a duplicate decision
// is worse than a reported transport error.
func (c *Client) Submit(ctx context.Context, id string, decision queue.Decision, feedback string, timeSpent int) (*queue.Item, error) {
	body := map[string]any{
		"decision":           decision,
		"feedback":           feedback,
		"time_spent_seconds": timeSpent,
	}
	var it queue.Item
	if _, err := c.do(ctx, http.MethodPost, "/api/queue/"+id+"/submit", body, &it, false); err != nil {
		return nil, err
	}
	return &it, nil
}

// Get retrieves a single item.
func (c *Client) Get(ctx context.Context, id string) (*queue.Item, error) {
	var it queue.Item
	if _, err := c.do(ctx, http.MethodGet, "/api/queue/"+id, nil, &it, true); err != nil {
		return nil, err
	}
	return &it, nil
}

// List returns one page of the queue plus aggregate stats.
func (c *Client) List(ctx context.Context, f queue.Filter) (*api.QueueSnapshot, error) {
	path := fmt.Sprintf("/api/queue?status=%s&page=%d&page_size=%d", f.Status, f.Page, f.PageSize)
	var snap api.QueueSnapshot
	if _, err := c.do(ctx, http.MethodGet, path, nil, &snap, true); err != nil {
		return nil, err
	}
	return &snap, nil
}

// CreateItem seeds a new pending item (evaluation pipeline use).
func (c *Client) CreateItem(ctx context.Context, it *queue.Item) (*queue.Item, error) {
	var created queue.Item
	if _, err := c.do(ctx, http.MethodPost, "/api/queue", it, &created, false); err != nil {
		return nil, err
	}
	return &created, nil
}

// TriggerAnalysis starts a pattern-analysis task and returns its id.
func (c *Client) TriggerAnalysis(ctx context.Context, p analysis.Params) (string, error) {
	var resp struct {
		TaskID string `json:"task_id"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/api/analysis/trigger", p, &resp, false); err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

// AnalysisStatus reads a task's status. Idempotent and side-effect
// free, so it is retried once on transport failure.
func (c *Client) AnalysisStatus(ctx context.Context, taskID string) (*analysis.Task, error) {
	var t analysis.Task
	if _, err := c.do(ctx, http.MethodGet, "/api/analysis/status/"+taskID, nil, &t, true); err != nil {
		return nil, err
	}
	return &t, nil
}

// Patterns lists stored failure patterns.
func (c *Client) Patterns(ctx context.Context, limit int) ([]analysis.Pattern, error) {
	var out []analysis.Pattern
	path := fmt.Sprintf("/api/patterns?limit=%d", limit)
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns the queue counts.
func (c *Client) Stats(ctx context.Context) (queue.Stats, error) {
	snap, err := c.List(ctx, queue.Filter{Page: 1, PageSize: 1})
	if err != nil {
		return queue.Stats{}, err
	}
	return snap.Stats, nil
}

// do performs one request. Idempotent reads are retried once on
// transport error; writes never are.
func (c *Client) do(ctx context.Context, method, path string, body, out any, idempotent bool) (int, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
	}

	resp, err := c.send(ctx, method, path, payload)
	if err != nil && idempotent {
		resp, err = c.send(ctx, method, path, payload)
	}
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, decodeError(data, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Reviewer", c.reviewer)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

// decodeError maps a server error body back to the matching sentinel.
func decodeError(data []byte, status int) error {
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("server returned %d: %s", status, strings.TrimSpace(string(data)))
	}

	var sentinel error
	switch body.Code {
	case "not_found":
		sentinel = queue.ErrNotFound
	case "already_claimed":
		sentinel = queue.ErrAlreadyClaimed
	case "not_owner":
		sentinel = queue.ErrNotOwner
	case "not_claimed":
		sentinel = queue.ErrNotClaimed
	case "invalid_decision":
		sentinel = queue.ErrInvalidDecision
	case "task_not_found":
		sentinel = analysis.ErrTaskNotFound
	default:
		return errors.New(body.Error)
	}
	return fmt.Errorf("%s: %w", body.Error, sentinel)
}
