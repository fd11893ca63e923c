package main

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/poiesic/scriptorium/config"
	"github.com/poiesic/scriptorium/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

type testEnv struct {
	dir    string
	config string
	db     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:    dir,
		config: filepath.Join(dir, "scriptorium.yaml"),
		db:     filepath.Join(dir, "db"),
	}
	require.NoError(t, config.Save(env.config, config.Default()))
	return env
}

// run executes the app with the env's config and database and returns stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := append([]string{"scriptorium", "--log-level", "error", "--config", e.config, "--db", e.db}, args...)
	err := app.Run(full)
	return out.String(), err
}

func (e *testEnv) writePNG(t *testing.T, name string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 3))))
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func findFlag(t *testing.T, cmd *cli.Command, name string) cli.Flag {
	t.Helper()
	for _, flag := range cmd.Flags {
		for _, n := range flag.Names() {
			if n == name {
				return flag
			}
		}
	}
	t.Fatalf("flag %q not found on %s", name, cmd.Name)
	return nil
}

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	cmd := app.Command(name)
	require.NotNil(t, cmd, "command %s", name)
	return cmd
}

func TestAppCommands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"upload", "process", "resume", "status", "list", "retry", "delete", "query", "reembed", "config"} {
		findCommand(t, app, name)
	}

	t.Run("query top-k defaults to 5", func(t *testing.T) {
		flag := findFlag(t, findCommand(t, app, "query"), "top-k").(*cli.IntFlag)
		assert.Equal(t, 5, flag.Value)
	})

	t.Run("reembed overrides have no defaults", func(t *testing.T) {
		flag := findFlag(t, findCommand(t, app, "reembed"), "batch-size").(*cli.IntFlag)
		assert.Zero(t, flag.Value)
		assert.Empty(t, flag.EnvVars)
	})

	t.Run("config init writes to the working directory by default", func(t *testing.T) {
		initCmd := findCommand(t, app, "config").Subcommands[0]
		flag := findFlag(t, initCmd, "path").(*cli.StringFlag)
		assert.Equal(t, config.FileName, flag.Value)
	})
}

func TestSetupLogger(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "--log-level", "loud", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestConfigInit(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "fresh.yaml")

	out, err := env.run(t, "config", "init", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Pipeline.ChunkSize)

	_, err = env.run(t, "config", "init", "--path", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = env.run(t, "config", "init", "--path", path, "--force")
	assert.NoError(t, err)
}

func TestUploadListStatusDelete(t *testing.T) {
	env := newTestEnv(t)
	file := env.writePNG(t, "plate-iv.png")

	out, err := env.run(t, "upload", "--title", "Plate IV", file)
	require.NoError(t, err)
	m := regexp.MustCompile(`^(\d+)\tplate-iv\.png\t1 pages\tUPLOADED`).FindStringSubmatch(out)
	require.Len(t, m, 2, "unexpected upload output %q", out)
	id := m[1]

	out, err = env.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Plate IV")

	out, err = env.run(t, "list", "--status", "ready,failed")
	require.NoError(t, err)
	assert.NotContains(t, out, id)

	out, err = env.run(t, "status", "--pages", id)
	require.NoError(t, err)
	assert.Contains(t, out, "UPLOADED")
	assert.Contains(t, out, "Artifact:")
	assert.Contains(t, out, "pending")

	out, err = env.run(t, "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+id)

	_, err = env.run(t, "status", id)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRetryRequiresFailedDocument(t *testing.T) {
	env := newTestEnv(t)
	file := env.writePNG(t, "scan.png")

	out, err := env.run(t, "upload", file)
	require.NoError(t, err)
	id := regexp.MustCompile(`^\d+`).FindString(out)
	require.NotEmpty(t, id)

	_, err = env.run(t, "retry", id)
	assert.Error(t, err)
}

func TestArgumentErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"upload without files", []string{"upload"}, "at least one file"},
		{"title with many files", []string{"upload", "--title", "x", "a.pdf", "b.pdf"}, "single file"},
		{"process without ids", []string{"process"}, "at least one document id"},
		{"status without id", []string{"status"}, "exactly one document id"},
		{"status with bad id", []string{"status", "abc"}, "not a document id"},
		{"list with bad status", []string{"list", "--status", "sleeping"}, "sleeping"},
		{"query without question", []string{"query"}, "question is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
