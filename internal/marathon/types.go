package marathon

// Wire types for the orchestrator's /v2 API. Field names follow the JSON
// the service actually emits; status counters (tasksRunning and friends)
// are what convergence checks poll on.

// AppDefinition is the writable part of an application: what a caller
// submits to POST /v2/apps or PUT /v2/apps/{id}.
type AppDefinition struct {
	ID                    string            `json:"id"`
	Cmd                   string            `json:"cmd,omitempty"`
	CPUs                  float64           `json:"cpus,omitempty"`
	Mem                   float64           `json:"mem,omitempty"`
	Disk                  float64           `json:"disk,omitempty"`
	Instances             int               `json:"instances"`
	Container             *Container        `json:"container,omitempty"`
	HealthChecks          []HealthCheck     `json:"healthChecks,omitempty"`
	Constraints           [][]string        `json:"constraints,omitempty"`
	AcceptedResourceRoles []string          `json:"acceptedResourceRoles,omitempty"`
	RequirePorts          bool              `json:"requirePorts,omitempty"`
	BackoffSeconds        int               `json:"backoffSeconds,omitempty"`
	Env                   map[string]string `json:"env,omitempty"`
	Labels                map[string]string `json:"labels,omitempty"`
}

// Container describes how an app's tasks are containerized.
type Container struct {
	Type   string  `json:"type"`
	Docker *Docker `json:"docker,omitempty"`
}

// Docker is the docker-specific part of a container spec.
type Docker struct {
	Image   string `json:"image"`
	Network string `json:"network,omitempty"`
}

// HealthCheck is an app-level health check definition.
type HealthCheck struct {
	Protocol               string   `json:"protocol"`
	Path                   string   `json:"path,omitempty"`
	PortIndex              int      `json:"portIndex,omitempty"`
	GracePeriodSeconds     int      `json:"gracePeriodSeconds,omitempty"`
	IntervalSeconds        int      `json:"intervalSeconds,omitempty"`
	TimeoutSeconds         int      `json:"timeoutSeconds,omitempty"`
	MaxConsecutiveFailures int      `json:"maxConsecutiveFailures"`
	Command                *Command `json:"command,omitempty"`
}

// Command holds the shell command of a COMMAND health check.
type Command struct {
	Value string `json:"value"`
}

// App is the observed state of an application as returned by
// GET /v2/apps/{id}: the definition plus live task counters.
type App struct {
	AppDefinition
	TasksRunning    int             `json:"tasksRunning"`
	TasksStaged     int             `json:"tasksStaged"`
	TasksHealthy    int             `json:"tasksHealthy"`
	TasksUnhealthy  int             `json:"tasksUnhealthy"`
	Deployments     []DeploymentRef `json:"deployments,omitempty"`
	LastTaskFailure *TaskFailure    `json:"lastTaskFailure,omitempty"`
	Version         string          `json:"version,omitempty"`
}

// TaskFailure carries the orchestrator's record of the most recent task
// failure for an app.
type TaskFailure struct {
	AppID     string `json:"appId"`
	TaskID    string `json:"taskId"`
	State     string `json:"state"`
	Message   string `json:"message"`
	Host      string `json:"host"`
	Timestamp string `json:"timestamp"`
}

// Task is a running (or staging) instance of an app.
type Task struct {
	ID        string `json:"id"`
	AppID     string `json:"appId"`
	Host      string `json:"host"`
	Ports     []int  `json:"ports,omitempty"`
	State     string `json:"state,omitempty"`
	StagedAt  string `json:"stagedAt,omitempty"`
	StartedAt string `json:"startedAt,omitempty"`
	Version   string `json:"version,omitempty"`
}

// Deployment is an in-flight unit of convergence (scale, update, restart).
// Its absence from GET /v2/deployments is the standard "operation
// converged" signal.
type Deployment struct {
	ID           string   `json:"id"`
	AffectedApps []string `json:"affectedApps,omitempty"`
	AffectedPods []string `json:"affectedPods,omitempty"`
	CurrentStep  int      `json:"currentStep,omitempty"`
	TotalSteps   int      `json:"totalSteps,omitempty"`
	Version      string   `json:"version,omitempty"`
}

// DeploymentRef is the deployment id embedded in app state.
type DeploymentRef struct {
	ID string `json:"id"`
}

// DeploymentResponse is returned by mutating calls that kick off a
// deployment.
type DeploymentResponse struct {
	DeploymentID string `json:"deploymentId"`
	Version      string `json:"version,omitempty"`
}

// Group is a multi-app definition tree.
type Group struct {
	ID     string          `json:"id"`
	Apps   []AppDefinition `json:"apps,omitempty"`
	Groups []Group         `json:"groups,omitempty"`
}

// QueueItem is one entry of the launch queue: an app the scheduler still
// owes instances, with its current backoff delay.
type QueueItem struct {
	App   AppDefinition `json:"app"`
	Count int           `json:"count"`
	Delay QueueDelay    `json:"delay"`
}

// QueueDelay is the backoff state of a queued app.
type QueueDelay struct {
	TimeLeftSeconds int  `json:"timeLeftSeconds"`
	Overdue         bool `json:"overdue"`
}
