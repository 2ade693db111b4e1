package marathon

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Ping hits the liveness endpoint and returns the HTTP status code.
// Callers typically wrap this in a verification against 200 to wait for a
// service endpoint to come up after a leader change or master restart.
func (c *Client) Ping(ctx context.Context) (int, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/ping"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", u.String(), err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// Metrics fetches the instrumentation endpoint as raw JSON.
func (c *Client) Metrics(ctx context.Context) (map[string]any, error) {
	var metrics map[string]any
	if err := c.get(ctx, "/metrics", &metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}

// Leader returns the host:port of the current leader.
func (c *Client) Leader(ctx context.Context) (string, error) {
	var wrapper struct {
		Leader string `json:"leader"`
	}
	if err := c.get(ctx, "/v2/leader", &wrapper); err != nil {
		return "", err
	}
	return wrapper.Leader, nil
}

// DeleteLeader makes the current leader abdicate, forcing re-election.
func (c *Client) DeleteLeader(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v2/leader", nil, nil, nil)
}

// Queue lists apps the scheduler still owes instances, with their backoff
// delays.
func (c *Client) Queue(ctx context.Context) ([]QueueItem, error) {
	var wrapper struct {
		Queue []QueueItem `json:"queue"`
	}
	if err := c.get(ctx, "/v2/queue", &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Queue, nil
}
