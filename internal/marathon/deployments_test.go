package marathon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesokit/converge/internal/eventually"
	"github.com/mesokit/converge/internal/testutil"
)

// deploymentServer serves a shrinking deployment list: each poll drops the
// first remaining deployment, modeling gradual convergence.
func deploymentServer(t *testing.T, initial []Deployment) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/deployments", r.URL.Path)
		n := int(polls.Add(1)) - 1
		remaining := initial
		if n >= len(initial) {
			remaining = []Deployment{}
		} else {
			remaining = initial[n:]
		}
		require.NoError(t, json.NewEncoder(w).Encode(remaining))
	}))
	t.Cleanup(srv.Close)
	return srv, &polls
}

func TestDeploymentsFor_FiltersByAppID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deployments := []Deployment{
			{ID: "dep-1", AffectedApps: []string{"/sleep"}},
			{ID: "dep-2", AffectedApps: []string{"/other"}},
			{ID: "dep-3", AffectedPods: []string{"/sleep"}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(deployments))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	got, err := client.DeploymentsFor(context.Background(), DeploymentScope{AppID: "sleep"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "dep-1", got[0].ID)
	assert.Equal(t, "dep-3", got[1].ID)
}

func TestDeploymentsFor_FiltersByDeploymentID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deployments := []Deployment{
			{ID: "dep-1", AffectedApps: []string{"/sleep"}},
			{ID: "dep-2", AffectedApps: []string{"/other"}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(deployments))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	got, err := client.DeploymentsFor(context.Background(), DeploymentScope{DeploymentID: "dep-2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "dep-2", got[0].ID)
}

func TestDeploymentScope_RejectsBoth(t *testing.T) {
	client, err := NewClient("http://localhost:1")
	require.NoError(t, err)

	_, err = client.DeploymentsFor(context.Background(), DeploymentScope{AppID: "/a", DeploymentID: "dep-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}

func TestWaitForDeployments_Converges(t *testing.T) {
	srv, polls := deploymentServer(t, []Deployment{
		{ID: "dep-1", AffectedApps: []string{"/sleep"}},
		{ID: "dep-2", AffectedApps: []string{"/sleep"}},
	})

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	sleeper := &testutil.SleepRecorder{}
	outcome, err := client.WaitForDeployments(context.Background(), DeploymentScope{AppID: "/sleep"}, eventually.Policy{
		WaitInterval: time.Second,
		MaxAttempts:  10,
		Sleep:        sleeper.Sleep,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, int32(3), polls.Load())
	assert.Equal(t, 2, sleeper.Count())
}

func TestWaitForDeployments_Exhausts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode([]Deployment{{ID: "dep-stuck", AffectedApps: []string{"/stuck"}}}))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = client.WaitForDeployments(context.Background(), DeploymentScope{AppID: "/stuck"}, eventually.Policy{
		MaxAttempts: 3,
		Sleep:       func(time.Duration) {},
	})

	require.Error(t, err)
	var verr *eventually.VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 3, verr.Attempts)
	assert.Contains(t, err.Error(), "/stuck")
	assert.Contains(t, verr.Expected, "length 0")
}

func TestWaitForDeployments_DefaultClassifierFailsFastOn4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = client.WaitForDeployments(context.Background(), DeploymentScope{}, eventually.Policy{
		MaxAttempts: 30,
		Sleep:       func(time.Duration) {},
	})

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
