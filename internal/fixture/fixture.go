// Package fixture builds app and group definitions for verification
// scenarios. IDs are uuid-suffixed so concurrent runs against the same
// cluster never collide.
package fixture

import (
	"encoding/hex"
	"path"

	"github.com/google/uuid"

	"github.com/mesokit/converge/internal/marathon"
)

// MakeID returns a unique app id under the root group, e.g.
// "/sleep-9f86d081884c7d65".
func MakeID(prefix string) string {
	return MakeIDIn("/", prefix)
}

// MakeIDIn returns a unique app id under the given parent group.
func MakeIDIn(parentGroup, prefix string) string {
	id := uuid.New()
	suffix := hex.EncodeToString(id[:8])
	if prefix != "" {
		suffix = prefix + "-" + suffix
	}
	return path.Join("/", parentGroup, suffix)
}

// SleepApp is the minimal long-running app: a single instance that sleeps
// forever. Used wherever a check only needs a task to exist.
func SleepApp(id string) marathon.AppDefinition {
	return marathon.AppDefinition{
		ID:        id,
		Cmd:       "sleep 1000",
		CPUs:      0.1,
		Mem:       32,
		Instances: 1,
	}
}

// HTTPApp serves HTTP on its first allocated port and carries an HTTP
// health check against "/", so tasksHealthy converges once the server is
// answering.
func HTTPApp(id string) marathon.AppDefinition {
	return marathon.AppDefinition{
		ID:           id,
		Cmd:          "python3 -m http.server $PORT0",
		CPUs:         0.1,
		Mem:          32,
		Instances:    1,
		HealthChecks: []marathon.HealthCheck{HealthCheck("/")},
	}
}

// UnhealthyApp is an HTTPApp whose health check targets a path the server
// never answers, so tasksUnhealthy converges to the instance count.
func UnhealthyApp(id string) marathon.AppDefinition {
	app := HTTPApp(id)
	app.HealthChecks = []marathon.HealthCheck{HealthCheck("/missing")}
	return app
}

// HealthCheck is an HTTP health check against the given path with tight
// timings: one failure marks the task unhealthy, so convergence tests see
// state flips quickly.
func HealthCheck(checkPath string) marathon.HealthCheck {
	return marathon.HealthCheck{
		Protocol:               "HTTP",
		Path:                   checkPath,
		PortIndex:              0,
		IntervalSeconds:        1,
		TimeoutSeconds:         2,
		MaxConsecutiveFailures: 1,
	}
}

// CommandHealthCheck runs a shell command inside the task's environment.
func CommandHealthCheck(cmd string) marathon.HealthCheck {
	return marathon.HealthCheck{
		Protocol:               "COMMAND",
		Command:                &marathon.Command{Value: cmd},
		IntervalSeconds:        2,
		TimeoutSeconds:         2,
		MaxConsecutiveFailures: 1,
	}
}

// Constraint builds a placement constraint triple. value is omitted for
// operators that take none (UNIQUE).
func Constraint(field, operator string, value ...string) []string {
	c := []string{field, operator}
	return append(c, value...)
}

// UniqueHostConstraint spreads instances one per agent.
func UniqueHostConstraint() []string {
	return Constraint("hostname", "UNIQUE")
}

// PinToHost constrains all of an app's tasks to a single agent.
func PinToHost(app *marathon.AppDefinition, host string) {
	app.Constraints = [][]string{Constraint("hostname", "LIKE", host)}
}

// AddRoleConstraint restricts which resource roles an app's offers may
// come from.
func AddRoleConstraint(app *marathon.AppDefinition, roles ...string) {
	if len(roles) == 0 {
		roles = []string{"*"}
	}
	app.AcceptedResourceRoles = roles
}

// Group nests the given apps under one group id.
func Group(id string, apps ...marathon.AppDefinition) marathon.Group {
	return marathon.Group{ID: id, Apps: apps}
}
