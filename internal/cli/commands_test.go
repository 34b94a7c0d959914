package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rowkit/internal/store"
)

const testModels = `
package models

model: User: {
	table: "users"
	relations: posts: {has_many: "Post", foreign_key: "user_id", order: ["id"]}
	together: ["posts"]
}

model: Post: {
	table: "posts"
	relations: author: {belongs_to: "User", foreign_key: "user_id"}
}
`

var testDDL = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT
	)`,
	`CREATE TABLE posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		title TEXT NOT NULL
	)`,
}

// testEnv is a config file, a models directory and an SQLite database
// with the tables the models map onto.
type testEnv struct {
	dir    string
	config string
	dsn    string
}

func createTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:    dir,
		config: filepath.Join(dir, "rowkit.yaml"),
		dsn:    filepath.Join(dir, "app.db"),
	}

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "models"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models", "blog.cue"), []byte(testModels), 0644))
	config := "database:\n  driver: sqlite3\n  dsn: " + env.dsn + "\nmodels: models\n"
	require.NoError(t, os.WriteFile(env.config, []byte(config), 0644))

	st, err := store.Open("sqlite3", env.dsn)
	require.NoError(t, err)
	defer st.Close()
	for _, ddl := range testDDL {
		require.NoError(t, st.Exec(context.Background(), ddl))
	}
	return env
}

// run executes the root command with the env's config.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *testEnv) count(t *testing.T, table string) int {
	t.Helper()
	st, err := store.Open("sqlite3", e.dsn)
	require.NoError(t, err)
	defer st.Close()
	var n int
	require.NoError(t, st.DB().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestRecordCommands(t *testing.T) {
	env := createTestEnv(t)

	out, err := env.run(t, "create", "User", "{name: ada, posts: [{title: engines}]}", "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, float64(1), resp.Data["id"])
	assert.Equal(t, "ada", resp.Data["name"])
	assert.Equal(t, 1, env.count(t, "posts"))

	out, err = env.run(t, "show", "User", "1", "--hidden", "email", "--append", "posts.title")
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"name":"ada","posts":[{"title":"engines"}]}`+"\n", out)

	_, err = env.run(t, "update", "User", "1", `{"email": "ada@example.com"}`)
	require.NoError(t, err)

	out, err = env.run(t, "show", "User", "1", "--field", "email")
	require.NoError(t, err)
	assert.Equal(t, `"ada@example.com"`+"\n", out)

	out, err = env.run(t, "show", "Post", "1", "--field", "author")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"ada","email":"ada@example.com"}`, out)

	out, err = env.run(t, "models", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "Post\ttable=posts\tpk=id\trelations=author")
	assert.Contains(t, out, "User\ttable=users\tpk=id\trelations=posts")

	out, err = env.run(t, "delete", "User", "1")
	require.NoError(t, err)
	assert.Equal(t, "deleted 1 User record(s)\n", out)
	assert.Equal(t, 0, env.count(t, "users"))
	assert.Equal(t, 0, env.count(t, "posts"), "cascaded posts deleted with the user")
}

func TestImportCommand(t *testing.T) {
	env := createTestEnv(t)
	file := filepath.Join(env.dir, "users.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
- name: bob
- name: cy
  posts:
    - title: hello
    - title: again
`), 0644))

	out, err := env.run(t, "import", "User", file)
	require.NoError(t, err)
	var saved []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	require.Len(t, saved, 2)
	assert.Equal(t, "bob", saved[0]["name"])
	assert.Equal(t, 2, env.count(t, "users"))
	assert.Equal(t, 2, env.count(t, "posts"))

	t.Run("a failing item rolls back the file", func(t *testing.T) {
		bad := filepath.Join(env.dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("- name: dee\n- email: nameless@example.com\n"), 0644))

		out, err := env.run(t, "import", "User", bad)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "Error [E307]")
		assert.Equal(t, 2, env.count(t, "users"))
	})

	t.Run("replace updates items carrying their key", func(t *testing.T) {
		upd := filepath.Join(env.dir, "upd.yaml")
		require.NoError(t, os.WriteFile(upd, []byte("- id: 1\n  email: bob@example.com\n"), 0644))

		_, err := env.run(t, "import", "User", upd, "--replace")
		require.NoError(t, err)
		assert.Equal(t, 2, env.count(t, "users"))

		out, err := env.run(t, "show", "User", "1", "--field", "email")
		require.NoError(t, err)
		assert.Equal(t, `"bob@example.com"`+"\n", out)
	})
}

func TestCommandErrors(t *testing.T) {
	env := createTestEnv(t)

	tests := []struct {
		name string
		args []string
		exit int
		code string
	}{
		{"unknown model", []string{"show", "Comment", "1"}, ExitCommandError, ErrCodeUnknownModel},
		{"missing record", []string{"show", "User", "42"}, ExitFailure, ErrCodeNotFound},
		{"update missing record", []string{"update", "User", "42", "{name: x}"}, ExitFailure, ErrCodeNotFound},
		{"bad data", []string{"create", "User", "[1, 2]"}, ExitCommandError, ErrCodeBadInput},
		{"store fault", []string{"create", "User", "{email: x@example.com}"}, ExitFailure, ErrCodePersistence},
		{"unknown field", []string{"show", "User", "1", "--field", "nope"}, ExitCommandError, ErrCodeAttribute},
		{"missing import file", []string{"import", "User", "nope.yaml"}, ExitCommandError, ErrCodeBadInput},
	}

	_, err := env.run(t, "create", "User", "{name: ada}")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := env.run(t, append(tt.args, "--format", "json")...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "rowkit.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("database:\n  driver: oracle\n"), 0644))

	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", bad, "models"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out.String(), "Error [E301]")
}

func TestValidateCommand(t *testing.T) {
	env := createTestEnv(t)

	out, err := env.run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 2 model(s) valid")

	bad := filepath.Join(env.dir, "bad")
	require.NoError(t, os.MkdirAll(bad, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(bad, "bad.cue"), []byte(`
package models

model: A: types: x: "decimal"
model: B: relations: r: {has_many: "Nope", foreign_key: "b_id"}
`), 0644))

	out, err = env.run(t, "validate", bad, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1, "relation targets are checked once every model compiles")
	assert.Equal(t, "E201", resp.Data.Errors[0].Code)
	assert.Equal(t, 4, resp.Data.Errors[0].Line)

	_, err = env.run(t, "validate", filepath.Join(env.dir, "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
