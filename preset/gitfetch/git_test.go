package gitfetch

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/chatbridge/preset"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func run(t *testing.T, dir string, cmds ...string) {
	t.Helper()
	for _, c := range cmds {
		cmd := exec.Command("sh", "-c", c) // #nosec G204 -- test helper: c is from a fixed list
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test", "GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "run %q: %s", c, out)
	}
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
	}
}

// initRepo creates a git repo on branch main with one commit holding files.
func initRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, files)
	run(t, dir, "git init -q", "git branch -M main", "git add .", "git commit -q -m init")
	return dir
}

const greeter = "id: greeter\nsystem: Be kind.\n"

func TestFetch(t *testing.T) {
	t.Parallel()
	dir := initRepo(t, map[string]string{"greeter.yaml": greeter})
	g, err := New("file://" + dir)
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	data, err := g.Fetch(context.Background(), "greeter")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Be kind.")

	_, err = g.Fetch(context.Background(), "missing")
	require.ErrorIs(t, err, preset.ErrNotFound)
	_, err = g.Fetch(context.Background(), "../etc")
	require.ErrorIs(t, err, preset.ErrInvalidID)
}

func TestFetch_WithDirAndBranch(t *testing.T) {
	t.Parallel()
	dir := initRepo(t, map[string]string{"README.md": "root"})
	writeFiles(t, dir, map[string]string{"presets/greeter.yml": greeter})
	run(t, dir, "git checkout -q -b staging", "git add .", "git commit -q -m presets")

	g, err := New("file://"+dir, WithBranch("staging"), WithDir("presets"), WithDepth(0))
	require.NoError(t, err)
	defer func() { _ = g.Close() }()
	data, err := g.Fetch(context.Background(), "greeter")
	require.NoError(t, err)
	assert.Contains(t, string(data), "greeter")
}

func TestFetch_UnknownBranch(t *testing.T) {
	t.Parallel()
	dir := initRepo(t, map[string]string{"greeter.yaml": greeter})
	g, err := New("file://"+dir, WithBranch("nope"))
	require.NoError(t, err)
	defer func() { _ = g.Close() }()
	_, err = g.Fetch(context.Background(), "greeter")
	require.ErrorIs(t, err, preset.ErrFetchFailed)
}

func TestListIDs(t *testing.T) {
	t.Parallel()
	dir := initRepo(t, map[string]string{
		"greeter.yaml": greeter,
		"weather.yml":  "id: weather\n",
		"notes.txt":    "x",
	})
	g, err := New("file://" + dir)
	require.NoError(t, err)
	defer func() { _ = g.Close() }()
	ids, err := g.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"greeter", "weather"}, ids)
}

func TestRegistryIntegration(t *testing.T) {
	t.Parallel()
	dir := initRepo(t, map[string]string{"greeter.yaml": greeter})
	g, err := New("file://" + dir)
	require.NoError(t, err)
	reg := preset.New(g)
	defer func() { _ = reg.Close() }()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := reg.Get(context.Background(), "greeter")
			assert.NoError(t, err)
			assert.Equal(t, "Be kind.", p.System)
		}()
	}
	wg.Wait()
}

func TestClose(t *testing.T) {
	t.Parallel()
	dir := initRepo(t, map[string]string{"greeter.yaml": greeter})
	g, err := New("file://" + dir)
	require.NoError(t, err)
	_, err = g.Fetch(context.Background(), "greeter")
	require.NoError(t, err)
	clone := g.localDir
	require.DirExists(t, clone)

	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
	assert.NoDirExists(t, clone)

	_, err = g.Fetch(context.Background(), "greeter")
	require.NoError(t, err, "fetch after Close clones again")
	require.NoError(t, g.Close())
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	_, err := New("  ")
	require.Error(t, err)
	_, err = New("file:///tmp/x", WithBranch(""))
	require.Error(t, err)
}
