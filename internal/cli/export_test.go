package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport_ThenVerify(t *testing.T) {
	env := seedTarget(t, accountsDir("target"))
	snap := filepath.Join(t.TempDir(), "snapshot")

	out, err := execute(t, "export",
		"--source", env,
		"--snapshot", snap,
		"--types", "account",
		"--format", "json")
	require.NoError(t, err, out)

	var result ExportResult
	resp := decode(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, snap, result.Snapshot)
	assert.Equal(t, []ExportedType{{Type: "account", Records: 2}}, result.Counts)

	_, err = os.Stat(filepath.Join(snap, "001_account.json"))
	require.NoError(t, err)

	// The environment matches its own snapshot
	out, err = execute(t, "verify", "--target", env, "--snapshot", snap, "--operator", operator)
	require.NoError(t, err, out)
	assert.Contains(t, out, "no differences")
}

func TestExport_RequiresTypes(t *testing.T) {
	env := seedTarget(t, "")

	_, err := execute(t, "export", "--source", env, "--snapshot", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "types are required")
}

func TestExport_UnknownType(t *testing.T) {
	env := seedTarget(t, "")

	_, err := execute(t, "export", "--source", env, "--snapshot", t.TempDir(), "--types", "nosuchtype")
	require.Error(t, err)
}
