package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rowkit/internal/record"
	"github.com/roach88/rowkit/internal/schema"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Result(DeleteResult{Model: "User", Deleted: 2}, func(w io.Writer) {
		t.Fatal("text renderer called in json mode")
	})
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"model": "User", "deleted": float64(2)}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeNotFound, "User 9 not found", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "User 9 not found", resp.Error.Message)
}

func TestOutputFormatter_Document(t *testing.T) {
	doc := []byte(`{"name":"ada","id":1}`)

	t.Run("json keeps key order", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, formatter.Document(doc))
		assert.Equal(t, `{"status":"ok","data":{"name":"ada","id":1}}`+"\n", buf.String())
	})

	t.Run("text prints the document", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, formatter.Document(doc))
		assert.Equal(t, string(doc)+"\n", buf.String())
	})
}

func TestOutputFormatter_TextResult(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Result(DeleteResult{Model: "User", Deleted: 2}, func(w io.Writer) {
		fmt.Fprintln(w, "deleted 2 User record(s)")
	})
	require.NoError(t, err)
	assert.Equal(t, "deleted 2 User record(s)\n", buf.String())
}

func TestOutputFormatter_RecordErrorLocation(t *testing.T) {
	cause := fmt.Errorf("create: %w", &record.Error{
		Code:    record.ErrCodeAttributeNotFound,
		Model:   "User",
		Field:   "nickname",
		Message: "unknown attribute",
	})

	t.Run("json carries model and field", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, formatter.Error(ErrCodeAttribute, "show failed", cause))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "User", resp.Error.Model)
		assert.Equal(t, "nickname", resp.Error.Field)
		assert.Empty(t, resp.Error.File)
	})

	t.Run("text shows them only when verbose", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, formatter.Error(ErrCodeAttribute, "show failed", cause))
		assert.Equal(t, "Error [E308]: show failed\n", buf.String())

		buf.Reset()
		formatter.Verbose = true
		require.NoError(t, formatter.Error(ErrCodeAttribute, "show failed", cause))
		assert.Contains(t, buf.String(), "model=User field=nickname")
	})

	t.Run("plain errors add nothing", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, formatter.Error(ErrCodePersistence, "save failed", errors.New("disk full")))
		assert.NotContains(t, buf.String(), "model")
	})
}

func TestOutputFormatter_LoadErrorLocation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(`
package models

model: A: types: x: "decimal"
`), 0644))
	_, errs := schema.LoadDir(dir, schema.LoadModeFailFast)
	require.NotEmpty(t, errs)
	var loadErr *schema.LoadError
	require.ErrorAs(t, errs[0], &loadErr)

	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}
	require.NoError(t, formatter.Error(loadErr.Code, loadErr.Error(), loadErr))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E201", resp.Error.Code)
	assert.Equal(t, "bad.cue", filepath.Base(resp.Error.File))
	assert.Equal(t, 4, resp.Error.Line)
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
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Importing %d record(s)", 3)

			assert.Empty(t, out.String(), "diagnostics never reach stdout")
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "Importing 3 record(s)")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestExitError(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapExitError(ExitFailure, "import failed", cause)

	assert.Equal(t, "import failed: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
