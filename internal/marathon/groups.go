package marathon

import (
	"context"
	"net/http"
)

// CreateGroup submits a multi-app group definition.
func (c *Client) CreateGroup(ctx context.Context, group Group) (*DeploymentResponse, error) {
	var resp DeploymentResponse
	if err := c.do(ctx, http.MethodPost, "/v2/groups", nil, group, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetGroup fetches a group definition tree.
func (c *Client) GetGroup(ctx context.Context, id string) (*Group, error) {
	var group Group
	if err := c.get(ctx, "/v2/groups"+canonicalID(id), &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// DeleteGroup destroys a group and everything beneath it. Cleanup call
// sites pass force to override any deployment already in flight.
func (c *Client) DeleteGroup(ctx context.Context, id string, force bool) (*DeploymentResponse, error) {
	var resp DeploymentResponse
	if err := c.do(ctx, http.MethodDelete, "/v2/groups"+canonicalID(id), forceQuery(force), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
