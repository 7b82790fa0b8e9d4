package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/multiview/internal/engine"
)

func TestExitError(t *testing.T) {
	err := NewExitError(ExitFailure, "scenarios failed")
	assert.Equal(t, "scenarios failed", err.Error())
	assert.Nil(t, err.Unwrap())

	cause := errors.New("disk full")
	wrapped := WrapExitError(ExitCommandError, "failed to save", cause)
	assert.Equal(t, "failed to save: disk full", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "x")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitFailure, "x"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestOutputFormatter_Success(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}
	require.NoError(t, f.Success("hello"))
	assert.Equal(t, "hello\n", buf.String())

	buf.Reset()
	f.Format = "json"
	require.NoError(t, f.Success(map[string]int{"n": 1}))
	assert.JSONEq(t, `{"status":"ok","data":{"n":1}}`, buf.String())
}

func TestOutputFormatter_Error(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}
	require.NoError(t, f.Error("EMPTY", "view is empty", "hidden unless verbose"))
	assert.Equal(t, "Error [EMPTY]: view is empty\n", buf.String())

	buf.Reset()
	f.Verbose = true
	require.NoError(t, f.Error("EMPTY", "view is empty", "shown"))
	assert.Contains(t, buf.String(), "Details: shown")

	buf.Reset()
	f.Format = "json"
	require.NoError(t, f.Error("EMPTY", "view is empty", nil))
	assert.JSONEq(t, `{"status":"error","error":{"code":"EMPTY","message":"view is empty"}}`, buf.String())
}

func TestOutputFormatter_Fail(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	err := f.Fail(&engine.Error{Code: engine.ErrCodeEmpty, Message: "no live entry", View: "normal"}, nil)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [EMPTY]")

	buf.Reset()
	err = f.Fail(errors.New("database is locked"), nil)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [ERROR]: database is locked")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	var out, errOut bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errOut}

	f.VerboseLog("quiet %d", 1)
	assert.Empty(t, errOut.String())

	f.Verbose = true
	f.VerboseLog("loud %d", 2)
	assert.Equal(t, "loud 2\n", errOut.String())
	assert.Empty(t, out.String(), "diagnostics never corrupt JSON output")

	f.ErrWriter = nil
	assert.Equal(t, &out, f.GetErrWriter())
}

func TestCLIResponse_OmitsEmpty(t *testing.T) {
	data, err := json.Marshal(CLIResponse{Status: "ok"})
	require.NoError(t, err)
	assert.Equal(t, `{"status":"ok"}`, string(data))
}
