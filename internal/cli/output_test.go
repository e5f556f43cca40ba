package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeConfig, "failed to load run file", "target is required")
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_CONFIG", resp.Error.Code)
	assert.Equal(t, "failed to load run file", resp.Error.Message)
	assert.Equal(t, "target is required", resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeConnect, "failed to open target", "no such host")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E_CONNECT]: failed to open target")
	assert.NotContains(t, buf.String(), "Details:")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error(ErrCodeConnect, "failed to open target", "no such host")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Details: no such host")
}

func TestOutputFormatter_Result(t *testing.T) {
	render := func(w io.Writer) { fmt.Fprintln(w, "account: 3 records") }

	t.Run("json_ok", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, f.Result(map[string]int{"records": 3}, nil, render))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Nil(t, resp.Error)
		assert.NotContains(t, buf.String(), "account: 3 records")
	})

	t.Run("json_failure_keeps_data", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		failure := &CLIError{Code: ErrCodeFailed, Message: "1 record(s) failed"}
		require.NoError(t, f.Result(map[string]int{"failed": 1}, failure, render))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "E_FAILED", resp.Error.Code)
		assert.NotNil(t, resp.Data)
	})

	t.Run("text_failure", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf}
		failure := &CLIError{Code: ErrCodeVerify, Message: "verification found differences"}
		require.NoError(t, f.Result(nil, failure, render))
		assert.Equal(t, "account: 3 records\nError [E_VERIFY]: verification found differences\n", buf.String())
	})
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Validating %s", "rules.yaml")

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "Validating rules.yaml")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flags")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "inner", errors.New("cause")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.EqualError(t, wrapped, "outer: inner: cause")
}

func TestOutputFormatter_JSONEnvelopesShareEncoding(t *testing.T) {
	var success, failure bytes.Buffer
	require.NoError(t, (&OutputFormatter{Format: "json", Writer: &success}).Success("done"))
	require.NoError(t, (&OutputFormatter{Format: "json", Writer: &failure}).Error(ErrCodeImport, "import stopped", nil))

	assert.Equal(t, "{\n  \"status\": \"ok\",\n  \"data\": \"done\"\n}\n", success.String())
	assert.Equal(t, "{\n  \"status\": \"error\",\n  \"error\": {\n    \"code\": \"E_IMPORT\",\n    \"message\": \"import stopped\"\n  }\n}\n", failure.String())
}
