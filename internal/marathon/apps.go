package marathon

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// CreateApp submits a new application definition. The returned App carries
// the deployment reference the orchestrator opened for the initial launch.
func (c *Client) CreateApp(ctx context.Context, def AppDefinition) (*App, error) {
	var app App
	if err := c.do(ctx, http.MethodPost, "/v2/apps", nil, def, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// UpdateApp replaces an existing app definition and kicks off a deployment.
func (c *Client) UpdateApp(ctx context.Context, def AppDefinition, force bool) (*DeploymentResponse, error) {
	var resp DeploymentResponse
	query := forceQuery(force)
	if err := c.do(ctx, http.MethodPut, "/v2/apps"+canonicalID(def.ID), query, def, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetApp fetches the current observed state of an app.
func (c *Client) GetApp(ctx context.Context, id string) (*App, error) {
	// The endpoint wraps the payload: {"app": {...}}.
	var wrapper struct {
		App App `json:"app"`
	}
	if err := c.get(ctx, "/v2/apps"+canonicalID(id), &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.App, nil
}

// ScaleApp sets the instance count of an app.
func (c *Client) ScaleApp(ctx context.Context, id string, instances int, force bool) (*DeploymentResponse, error) {
	var resp DeploymentResponse
	body := map[string]int{"instances": instances}
	if err := c.do(ctx, http.MethodPut, "/v2/apps"+canonicalID(id), forceQuery(force), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RestartApp rolls all tasks of an app.
func (c *Client) RestartApp(ctx context.Context, id string, force bool) (*DeploymentResponse, error) {
	var resp DeploymentResponse
	if err := c.do(ctx, http.MethodPost, "/v2/apps"+canonicalID(id)+"/restart", forceQuery(force), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteApp destroys an app and all its tasks.
func (c *Client) DeleteApp(ctx context.Context, id string, force bool) (*DeploymentResponse, error) {
	var resp DeploymentResponse
	if err := c.do(ctx, http.MethodDelete, "/v2/apps"+canonicalID(id), forceQuery(force), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Tasks lists the task instances of an app.
func (c *Client) Tasks(ctx context.Context, id string) ([]Task, error) {
	var wrapper struct {
		Tasks []Task `json:"tasks"`
	}
	if err := c.get(ctx, "/v2/apps"+canonicalID(id)+"/tasks", &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Tasks, nil
}

// KillTasks kills the given task instances. With scale set, the app's
// instance count is reduced instead of the tasks being restarted.
func (c *Client) KillTasks(ctx context.Context, id string, taskIDs []string, scale bool) error {
	if len(taskIDs) == 0 {
		return fmt.Errorf("kill tasks for %s: no task ids given", id)
	}
	query := url.Values{}
	if scale {
		query.Set("scale", "true")
	}
	body := map[string][]string{"ids": taskIDs}
	return c.do(ctx, http.MethodPost, "/v2/apps"+canonicalID(id)+"/tasks/delete", query, body, nil)
}

// canonicalID ensures an app/group id path segment has a leading slash.
func canonicalID(id string) string {
	if len(id) == 0 || id[0] != '/' {
		return "/" + id
	}
	return id
}

func forceQuery(force bool) url.Values {
	if !force {
		return nil
	}
	return url.Values{"force": []string{strconv.FormatBool(force)}}
}
