package marathon_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesokit/converge/internal/fixture"
	"github.com/mesokit/converge/internal/marathon"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *marathon.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := marathon.NewClient(srv.URL)
	require.NoError(t, err)
	return client
}

func TestCreateGroup_SendsDefinition(t *testing.T) {
	var received marathon.Group
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/groups", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"deploymentId": "dep-g", "version": "v"}`)
	})

	group := fixture.Group("/shop",
		fixture.SleepApp("/shop/backend"),
		fixture.HTTPApp("/shop/web"),
	)
	resp, err := client.CreateGroup(context.Background(), group)
	require.NoError(t, err)
	assert.Equal(t, "dep-g", resp.DeploymentID)

	assert.Equal(t, "/shop", received.ID)
	require.Len(t, received.Apps, 2)
	assert.Equal(t, "/shop/backend", received.Apps[0].ID)
	require.Len(t, received.Apps[1].HealthChecks, 1)
	assert.Equal(t, "/", received.Apps[1].HealthChecks[0].Path)
}

func TestGetGroup(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/groups/shop", r.URL.Path)
		fmt.Fprint(w, `{"id": "/shop", "apps": [{"id": "/shop/web", "instances": 2}]}`)
	})

	group, err := client.GetGroup(context.Background(), "shop")
	require.NoError(t, err)
	assert.Equal(t, "/shop", group.ID)
	require.Len(t, group.Apps, 1)
	assert.Equal(t, 2, group.Apps[0].Instances)
}

func TestDeleteGroup_Force(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v2/groups/shop", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("force"))
		fmt.Fprint(w, `{"deploymentId": "dep-del", "version": "v"}`)
	})

	resp, err := client.DeleteGroup(context.Background(), "/shop", true)
	require.NoError(t, err)
	assert.Equal(t, "dep-del", resp.DeploymentID)
}

func TestUpdateApp_PutsDefinition(t *testing.T) {
	id := fixture.MakeID("web")

	var received marathon.AppDefinition
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v2/apps"+id, r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("force"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		fmt.Fprint(w, `{"deploymentId": "dep-up", "version": "v"}`)
	})

	def := fixture.HTTPApp(id)
	resp, err := client.UpdateApp(context.Background(), def, true)
	require.NoError(t, err)
	assert.Equal(t, "dep-up", resp.DeploymentID)
	assert.Equal(t, id, received.ID)
	assert.Equal(t, "python3 -m http.server $PORT0", received.Cmd)
}

func TestRestartApp(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/apps/web/restart", r.URL.Path)
		fmt.Fprint(w, `{"deploymentId": "dep-re", "version": "v"}`)
	})

	resp, err := client.RestartApp(context.Background(), "/web", false)
	require.NoError(t, err)
	assert.Equal(t, "dep-re", resp.DeploymentID)
}

func TestMetrics(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metrics", r.URL.Path)
		fmt.Fprint(w, `{"counters": {"deployments": 4}, "version": "4.0.0"}`)
	})

	metrics, err := client.Metrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4.0.0", metrics["version"])
	assert.Contains(t, metrics, "counters")
}

func TestDeleteLeader(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v2/leader", r.URL.Path)
		fmt.Fprint(w, `{"message": "Leadership abdicated"}`)
	})

	err := client.DeleteLeader(context.Background())
	assert.NoError(t, err)
}
