package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/snapshot"
	"github.com/roach88/remap/internal/store"
)

const (
	harnessData = "../harness/testdata"
	operator    = `FABRIKAM\deployer`
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seedTarget creates a SQLite target from the harness metadata and a target
// snapshot directory, then returns its connection string.
func seedTarget(t *testing.T, targetDir string, extra ...*ir.Record) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "target.db")

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	data, err := os.ReadFile(filepath.Join(harnessData, "common", "metadata.json"))
	require.NoError(t, err)
	var descs []ir.Descriptor
	require.NoError(t, json.Unmarshal(data, &descs))
	require.NoError(t, st.PutMetadata(ctx, descs...))

	if targetDir != "" {
		batches, err := snapshot.Read(targetDir)
		require.NoError(t, err)
		for _, b := range batches {
			require.NoError(t, st.Load(ctx, b.Records...))
		}
	}
	require.NoError(t, st.Load(ctx, extra...))

	return "dsn=" + path
}

// decode parses a JSON response, returning its status and raw data.
func decode(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if data != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return CLIResponse{Status: resp.Status, Error: resp.Error}
}
