package fixture

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeID_UniqueAndRooted(t *testing.T) {
	a := MakeID("sleep")
	b := MakeID("sleep")

	assert.True(t, strings.HasPrefix(a, "/sleep-"))
	assert.NotEqual(t, a, b)
}

func TestMakeIDIn(t *testing.T) {
	id := MakeIDIn("/test-group", "web")
	assert.True(t, strings.HasPrefix(id, "/test-group/web-"))

	// Parent group without a leading slash is still rooted.
	id = MakeIDIn("nested", "web")
	assert.True(t, strings.HasPrefix(id, "/nested/web-"))
}

func TestSleepApp(t *testing.T) {
	app := SleepApp("/sleep")

	assert.Equal(t, "/sleep", app.ID)
	assert.Equal(t, "sleep 1000", app.Cmd)
	assert.Equal(t, 1, app.Instances)
	assert.Empty(t, app.HealthChecks)
}

func TestHTTPApp_HasHealthCheck(t *testing.T) {
	app := HTTPApp("/web")

	require.Len(t, app.HealthChecks, 1)
	hc := app.HealthChecks[0]
	assert.Equal(t, "HTTP", hc.Protocol)
	assert.Equal(t, "/", hc.Path)
	assert.Equal(t, 1, hc.MaxConsecutiveFailures)
}

func TestUnhealthyApp(t *testing.T) {
	app := UnhealthyApp("/doomed")
	require.Len(t, app.HealthChecks, 1)
	assert.Equal(t, "/missing", app.HealthChecks[0].Path)
}

func TestCommandHealthCheck(t *testing.T) {
	hc := CommandHealthCheck("true")
	assert.Equal(t, "COMMAND", hc.Protocol)
	require.NotNil(t, hc.Command)
	assert.Equal(t, "true", hc.Command.Value)
}

func TestConstraints(t *testing.T) {
	assert.Equal(t, []string{"hostname", "UNIQUE"}, UniqueHostConstraint())
	assert.Equal(t, []string{"hostname", "LIKE", "10.0.1.2"}, Constraint("hostname", "LIKE", "10.0.1.2"))

	app := SleepApp("/pinned")
	PinToHost(&app, "10.0.1.2")
	require.Len(t, app.Constraints, 1)
	assert.Equal(t, []string{"hostname", "LIKE", "10.0.1.2"}, app.Constraints[0])
}

func TestAddRoleConstraint(t *testing.T) {
	app := SleepApp("/role")
	AddRoleConstraint(&app)
	assert.Equal(t, []string{"*"}, app.AcceptedResourceRoles)

	AddRoleConstraint(&app, "*", "slave_public")
	assert.Equal(t, []string{"*", "slave_public"}, app.AcceptedResourceRoles)
}

func TestGroup(t *testing.T) {
	g := Group("/test-group", SleepApp("/test-group/a"), SleepApp("/test-group/b"))
	assert.Equal(t, "/test-group", g.ID)
	assert.Len(t, g.Apps, 2)
}
