package marathon

import (
	"context"
	"fmt"
	"slices"

	"github.com/mesokit/converge/internal/eventually"
)

// DeploymentScope narrows which in-flight deployments a wait applies to.
// At most one of AppID and DeploymentID may be set; the zero value means
// all current deployments.
type DeploymentScope struct {
	AppID        string
	DeploymentID string
}

func (s DeploymentScope) validate() error {
	if s.AppID != "" && s.DeploymentID != "" {
		return fmt.Errorf("deployment scope: use either app id or deployment id, not both")
	}
	return nil
}

// Deployments lists all in-flight deployments.
func (c *Client) Deployments(ctx context.Context) ([]Deployment, error) {
	var deployments []Deployment
	if err := c.get(ctx, "/v2/deployments", &deployments); err != nil {
		return nil, err
	}
	return deployments, nil
}

// DeploymentsFor lists in-flight deployments matching the scope.
func (c *Client) DeploymentsFor(ctx context.Context, scope DeploymentScope) ([]Deployment, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}

	deployments, err := c.Deployments(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case scope.DeploymentID != "":
		filtered := deployments[:0:0]
		for _, d := range deployments {
			if d.ID == scope.DeploymentID {
				filtered = append(filtered, d)
			}
		}
		return filtered, nil
	case scope.AppID != "":
		id := canonicalID(scope.AppID)
		filtered := deployments[:0:0]
		for _, d := range deployments {
			if slices.Contains(d.AffectedApps, id) || slices.Contains(d.AffectedPods, id) {
				filtered = append(filtered, d)
			}
		}
		return filtered, nil
	default:
		return deployments, nil
	}
}

// WaitForDeployments polls the deployment list until no deployment in
// scope remains in flight. This is the standard "operation converged"
// signal: a scale, update, or restart is done when its deployment has
// disappeared.
//
// The wait is a specialization of eventually.Verify with a
// length-zero matcher. A nil policy classifier defaults to Retryable, so a
// flapping endpoint during leader re-election is retried while a malformed
// request still fails fast.
func (c *Client) WaitForDeployments(ctx context.Context, scope DeploymentScope, policy eventually.Policy) (*eventually.Outcome, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}
	if policy.Retryable == nil {
		policy.Retryable = Retryable
	}

	probe := func() (any, error) {
		return c.DeploymentsFor(ctx, scope)
	}

	outcome, err := eventually.Verify(probe, eventually.HasLen(0), policy)
	if err != nil {
		switch {
		case scope.DeploymentID != "":
			return nil, fmt.Errorf("deployment %s did not finish: %w", scope.DeploymentID, err)
		case scope.AppID != "":
			return nil, fmt.Errorf("deployments for %s did not finish: %w", scope.AppID, err)
		default:
			return nil, fmt.Errorf("deployments did not finish: %w", err)
		}
	}
	return outcome, nil
}
