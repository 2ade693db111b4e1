package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesokit/converge/internal/marathon"
	"github.com/mesokit/converge/internal/testutil"
)

// fakeCluster is an in-memory stand-in for the orchestrator API. Apps
// report all tasks healthy from the healthyAfter-th status poll onward,
// and the deployment list drains after the first poll, so convergence
// takes a predictable number of attempts.
type fakeCluster struct {
	mu           sync.Mutex
	apps         map[string]marathon.AppDefinition
	groups       map[string]marathon.Group
	statusPolls  map[string]int
	deployPolls  int
	healthyAfter int
}

func newFakeCluster(healthyAfter int) *fakeCluster {
	return &fakeCluster{
		apps:         make(map[string]marathon.AppDefinition),
		groups:       make(map[string]marathon.Group),
		statusPolls:  make(map[string]int),
		healthyAfter: healthyAfter,
	}
}

func (f *fakeCluster) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v2/apps", func(w http.ResponseWriter, r *http.Request) {
		var def marathon.AppDefinition
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &def))

		f.mu.Lock()
		f.apps[def.ID] = def
		f.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		require.NoError(t, json.NewEncoder(w).Encode(def))
	})

	mux.HandleFunc("GET /v2/apps/{id...}", func(w http.ResponseWriter, r *http.Request) {
		id := "/" + r.PathValue("id")

		if strings.HasSuffix(id, "/tasks") {
			appID := strings.TrimSuffix(id, "/tasks")
			f.mu.Lock()
			def, ok := f.apps[appID]
			f.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			tasks := make([]marathon.Task, def.Instances)
			for i := range tasks {
				tasks[i] = marathon.Task{
					ID:    fmt.Sprintf("%s.instance-%d", strings.TrimPrefix(appID, "/"), i),
					AppID: appID,
					Host:  "10.0.1.2",
					State: "TASK_RUNNING",
				}
			}
			require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"tasks": tasks}))
			return
		}

		f.mu.Lock()
		def, ok := f.apps[id]
		if !ok {
			f.mu.Unlock()
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.statusPolls[id]++
		polls := f.statusPolls[id]
		f.mu.Unlock()

		app := marathon.App{AppDefinition: def, TasksRunning: def.Instances}
		if polls >= f.healthyAfter {
			app.TasksHealthy = def.Instances
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"app": app}))
	})

	mux.HandleFunc("PUT /v2/apps/{id...}", func(w http.ResponseWriter, r *http.Request) {
		id := "/" + r.PathValue("id")
		var body marathon.AppDefinition
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		f.mu.Lock()
		if body.ID == "" {
			// Scale request: only the instance count changes.
			def := f.apps[id]
			def.Instances = body.Instances
			f.apps[id] = def
		} else {
			f.apps[id] = body
		}
		f.mu.Unlock()

		require.NoError(t, json.NewEncoder(w).Encode(marathon.DeploymentResponse{DeploymentID: "dep-update"}))
	})

	mux.HandleFunc("POST /v2/apps/{id...}", func(w http.ResponseWriter, r *http.Request) {
		id := "/" + r.PathValue("id")
		switch {
		case strings.HasSuffix(id, "/restart"):
			appID := strings.TrimSuffix(id, "/restart")
			f.mu.Lock()
			_, ok := f.apps[appID]
			f.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			require.NoError(t, json.NewEncoder(w).Encode(marathon.DeploymentResponse{DeploymentID: "dep-restart"}))

		case strings.HasSuffix(id, "/tasks/delete"):
			appID := strings.TrimSuffix(id, "/tasks/delete")
			var body struct {
				IDs []string `json:"ids"`
			}
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, &body))

			f.mu.Lock()
			if r.URL.Query().Get("scale") == "true" {
				def := f.apps[appID]
				def.Instances -= len(body.IDs)
				f.apps[appID] = def
			}
			f.mu.Unlock()
			fmt.Fprint(w, `{}`)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	mux.HandleFunc("DELETE /v2/apps/{id...}", func(w http.ResponseWriter, r *http.Request) {
		id := "/" + r.PathValue("id")
		f.mu.Lock()
		delete(f.apps, id)
		f.mu.Unlock()
		require.NoError(t, json.NewEncoder(w).Encode(marathon.DeploymentResponse{DeploymentID: "dep-delete"}))
	})

	mux.HandleFunc("GET /v2/deployments", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deployPolls++
		polls := f.deployPolls
		ids := make([]string, 0, len(f.apps))
		for id := range f.apps {
			ids = append(ids, id)
		}
		f.mu.Unlock()

		deployments := []marathon.Deployment{}
		if polls == 1 {
			deployments = append(deployments, marathon.Deployment{ID: "dep-1", AffectedApps: ids})
		}
		require.NoError(t, json.NewEncoder(w).Encode(deployments))
	})

	mux.HandleFunc("POST /v2/groups", func(w http.ResponseWriter, r *http.Request) {
		var group marathon.Group
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &group))

		f.mu.Lock()
		f.groups[group.ID] = group
		for _, app := range group.Apps {
			f.apps[app.ID] = app
		}
		f.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		require.NoError(t, json.NewEncoder(w).Encode(marathon.DeploymentResponse{DeploymentID: "dep-group"}))
	})

	mux.HandleFunc("DELETE /v2/groups/{id...}", func(w http.ResponseWriter, r *http.Request) {
		id := "/" + r.PathValue("id")
		f.mu.Lock()
		group, ok := f.groups[id]
		if ok {
			for _, app := range group.Apps {
				delete(f.apps, app.ID)
			}
			delete(f.groups, id)
		}
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(marathon.DeploymentResponse{DeploymentID: "dep-group-del"}))
	})

	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "pong")
	})

	return mux
}

func newTestRunner(t *testing.T, handler http.Handler) (*Runner, *testutil.SleepRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := marathon.NewClient(srv.URL)
	require.NoError(t, err)

	sleeper := &testutil.SleepRecorder{}
	runner := NewRunner(client,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSleep(sleeper.Sleep),
	)
	return runner, sleeper
}

func TestRunner_FullScenarioConverges(t *testing.T) {
	cluster := newFakeCluster(2)
	runner, sleeper := newTestRunner(t, cluster.handler(t))

	sc, err := Parse([]byte(validScenario))
	require.NoError(t, err)

	result := runner.Run(context.Background(), sc)

	require.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 4)

	assert.Equal(t, "ok", result.Trace[0].Outcome)
	assert.Equal(t, "created /sleep", result.Trace[0].Detail)

	// Deployment list drains on the second poll.
	assert.Equal(t, 2, result.Trace[1].Attempts)

	// App reports healthy on the second status poll.
	assert.Equal(t, "assert_app", result.Trace[2].Action)
	assert.Equal(t, 2, result.Trace[2].Attempts)

	// Two polling steps, one retry each.
	assert.Equal(t, 2, sleeper.Count())
}

func TestRunner_ScaleAndCountTasks(t *testing.T) {
	cluster := newFakeCluster(1)
	runner, _ := newTestRunner(t, cluster.handler(t))

	sc, err := Parse([]byte(`
name: scale-up
description: Scales an app and counts its tasks.
steps:
  - action: create_app
    app:
      id: /web
      cmd: sleep 1000
      instances: 1
  - action: scale_app
    app_id: /web
    instances: 3
  - action: assert_tasks
    app_id: /web
    count: 3
    max_attempts: 5
`))
	require.NoError(t, err)

	result := runner.Run(context.Background(), sc)

	require.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 1, result.Trace[2].Attempts)
	assert.Contains(t, result.Trace[1].Detail, "scaled to 3")
}

func TestRunner_FailingAssertionStopsScenario(t *testing.T) {
	cluster := newFakeCluster(1000) // never healthy
	runner, _ := newTestRunner(t, cluster.handler(t))

	sc, err := Parse([]byte(`
name: never-healthy
description: Asserts on a state the cluster never reaches.
steps:
  - action: create_app
    app:
      id: /doomed
      cmd: sleep 1000
      instances: 1
  - action: assert_app
    app_id: /doomed
    expect:
      tasksHealthy: 1
    max_attempts: 3
  - action: delete_app
    app_id: /doomed
`))
	require.NoError(t, err)

	result := runner.Run(context.Background(), sc)

	assert.False(t, result.Pass)
	// The delete step never runs.
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "failed", result.Trace[1].Outcome)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 1 (assert_app)")
	assert.Contains(t, result.Errors[0], `field "tasksHealthy"`)
}

func TestRunner_DefinitiveRejectionFailsFast(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/apps/{id...}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "App '/ghost' does not exist"}`)
	})
	runner, sleeper := newTestRunner(t, mux)

	sc, err := Parse([]byte(`
name: ghost
description: Asserts on an app that does not exist.
steps:
  - action: assert_app
    app_id: /ghost
    expect:
      tasksRunning: 1
    max_attempts: 30
`))
	require.NoError(t, err)

	result := runner.Run(context.Background(), sc)

	assert.False(t, result.Pass)
	// 404 is a definitive rejection: one attempt, no sleeping.
	assert.Equal(t, 0, sleeper.Count())
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "404")
}

func TestRunner_Ping(t *testing.T) {
	cluster := newFakeCluster(1)
	runner, _ := newTestRunner(t, cluster.handler(t))

	sc, err := Parse([]byte(`
name: ping
description: Waits for the endpoint to come up.
steps:
  - action: ping
    max_attempts: 5
`))
	require.NoError(t, err)

	result := runner.Run(context.Background(), sc)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 1, result.Trace[0].Attempts)
}

func TestRunner_UniqueSuffixRewritesIDs(t *testing.T) {
	cluster := newFakeCluster(1)
	runner, _ := newTestRunner(t, cluster.handler(t))

	sc, err := Parse([]byte(`
name: unique-ids
description: Creates an app under a collision-free id.
steps:
  - action: create_app
    unique_suffix: true
    app:
      id: /sleep
      cmd: sleep 1000
      instances: 1
  - action: assert_app
    app_id: /sleep
    expect:
      tasksRunning: 1
    max_attempts: 3
  - action: delete_app
    app_id: /sleep
`))
	require.NoError(t, err)

	result := runner.Run(context.Background(), sc)

	require.True(t, result.Pass, "errors: %v", result.Errors)
	created := result.Trace[0].Target
	assert.Regexp(t, `^/sleep-[0-9a-f]{16}$`, created)

	// Later steps naming the original id resolve to the created one.
	assert.Equal(t, created, result.Trace[1].Target)
	assert.Equal(t, created, result.Trace[2].Target)

	cluster.mu.Lock()
	defer cluster.mu.Unlock()
	assert.NotContains(t, cluster.apps, "/sleep")
	assert.Empty(t, cluster.apps, "delete must remove the uniquified app")
}

func TestRunner_GroupLifecycle(t *testing.T) {
	cluster := newFakeCluster(1)
	runner, _ := newTestRunner(t, cluster.handler(t))

	sc, err := Parse([]byte(`
name: group-lifecycle
description: Deploys a group and tears it down.
steps:
  - action: create_group
    group:
      id: /shop
      apps:
        - id: /shop/web
          cmd: sleep 1000
          instances: 2
  - action: wait_deployments
  - action: assert_tasks
    app_id: /shop/web
    count: 2
  - action: delete_group
    group_id: /shop
`))
	require.NoError(t, err)

	result := runner.Run(context.Background(), sc)

	require.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 4)
	assert.Equal(t, "deployment dep-group", result.Trace[0].Detail)
	assert.Equal(t, "/shop", result.Trace[3].Target)

	cluster.mu.Lock()
	defer cluster.mu.Unlock()
	assert.Empty(t, cluster.groups)
	assert.Empty(t, cluster.apps, "group delete must remove its apps")
}

func TestRunner_UpdateRestartKill(t *testing.T) {
	cluster := newFakeCluster(1)
	runner, _ := newTestRunner(t, cluster.handler(t))

	sc, err := Parse([]byte(`
name: rolling-update
description: Updates an app, restarts it, then shrinks it by killing a task.
steps:
  - action: create_app
    app:
      id: /web
      cmd: sleep 1000
      instances: 1
  - action: update_app
    app:
      id: /web
      cmd: sleep 2000
      instances: 2
  - action: restart_app
    app_id: /web
  - action: kill_tasks
    app_id: /web
    task_ids: [web.instance-0]
    scale: true
  - action: assert_tasks
    app_id: /web
    count: 1
    max_attempts: 3
`))
	require.NoError(t, err)

	result := runner.Run(context.Background(), sc)

	require.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 5)
	assert.Equal(t, "deployment dep-update", result.Trace[1].Detail)
	assert.Equal(t, "deployment dep-restart", result.Trace[2].Detail)
	assert.Equal(t, "killed 1 task(s)", result.Trace[3].Detail)

	cluster.mu.Lock()
	defer cluster.mu.Unlock()
	assert.Equal(t, "sleep 2000", cluster.apps["/web"].Cmd)
	assert.Equal(t, 1, cluster.apps["/web"].Instances)
}

func TestRunner_DefinitionWithoutIDFailsStep(t *testing.T) {
	cluster := newFakeCluster(1)
	runner, _ := newTestRunner(t, cluster.handler(t))

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "app without id",
			yaml: `
name: bad-app
description: App definition lacks an id.
steps:
  - action: create_app
    app:
      cmd: sleep 1000
`,
			wantErr: "app definition needs an id",
		},
		{
			name: "group without id",
			yaml: `
name: bad-group
description: Group definition lacks an id.
steps:
  - action: create_group
    group:
      apps: []
`,
			wantErr: "group definition needs an id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)

			result := runner.Run(context.Background(), sc)
			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.wantErr)
		})
	}
}

func TestRunner_ElapsedRecorded(t *testing.T) {
	cluster := newFakeCluster(1)
	runner, _ := newTestRunner(t, cluster.handler(t))

	sc, err := Parse([]byte(`
name: quick
description: One ping.
steps:
  - action: ping
`))
	require.NoError(t, err)

	result := runner.Run(context.Background(), sc)
	assert.Greater(t, result.Elapsed, time.Duration(0))
}
