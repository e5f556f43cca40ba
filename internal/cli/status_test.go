package cli

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remap/internal/engine"
	"github.com/roach88/remap/internal/ir"
)

func projectRecord(id string, name string, state, status int) *ir.Record {
	rec := ir.NewRecord("new_project", uuid.MustParse(id))
	rec.Set("name", ir.String(name))
	rec.Set("statecode", ir.Option{Code: state})
	rec.Set("statuscode", ir.Option{Code: status})
	return rec
}

func TestSetStatus(t *testing.T) {
	env := seedTarget(t, "",
		projectRecord("5a000000-0000-0000-0000-000000000061", "Active", 0, 1),
		projectRecord("5a000000-0000-0000-0000-000000000062", "Inactive", 1, 2),
	)

	out, err := execute(t, "set-status", "new_project", "--target", env, "--disable", "--format", "json")
	require.NoError(t, err, out)

	var res engine.StatusResult
	decode(t, out, &res)
	assert.Equal(t, engine.StatusResult{Changed: 1, Unchanged: 1}, res)

	// Restricting to one id only touches that record
	out, err = execute(t, "set-status", "new_project", "5a000000-0000-0000-0000-000000000062", "--target", env, "--enable")
	require.NoError(t, err, out)
	assert.Contains(t, out, "new_project: 1 changed, 0 unchanged, 0 failed")
}

func TestSetStatus_FlagErrors(t *testing.T) {
	env := seedTarget(t, "")

	_, err := execute(t, "set-status", "new_project", "--target", env)
	require.Error(t, err, "one of --enable or --disable is required")

	_, err = execute(t, "set-status", "new_project", "--target", env, "--enable", "--disable")
	require.Error(t, err)

	_, err = execute(t, "set-status", "new_project", "not-a-uuid", "--target", env, "--enable")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "set-status", "new_project", "--enable")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestAutoNumber(t *testing.T) {
	env := seedTarget(t, "")

	out, err := execute(t, "autonumber", "new_project", "new_number", "1000", "--target", env, "--format", "json")
	require.NoError(t, err, out)
	var res AutoNumberResult
	decode(t, out, &res)
	assert.Equal(t, AutoNumberResult{Type: "new_project", Attribute: "new_number", Value: 1000, Set: true}, res)
}

func TestAutoNumber_TargetHasRecords(t *testing.T) {
	env := seedTarget(t, "", projectRecord("5a000000-0000-0000-0000-000000000061", "Active", 0, 1))

	out, err := execute(t, "autonumber", "new_project", "new_number", "1000", "--target", env)
	require.NoError(t, err)
	assert.Contains(t, out, "not seeded")

	out, err = execute(t, "autonumber", "new_project", "new_number", "1000", "--target", env, "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ new_project.new_number seeded at 1000")
}

func TestAutoNumber_InvalidSeed(t *testing.T) {
	_, err := execute(t, "autonumber", "new_project", "new_number", "ten", "--target", "dsn=x.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
