package publish

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher(t *testing.T) {
	m, err := NewMatcher([]string{".git", "*.pyc", "node_modules", "docs/*.tmp"})
	require.NoError(t, err)

	tests := map[string]bool{
		".git":                    true,
		"pkg/.git":                true,
		"app.pyc":                 true,
		"src/deep/app.pyc":        true,
		"web/node_modules":        true,
		"docs/draft.tmp":          true,
		"docs/sub/draft.tmp":      false,
		"main.go":                 false,
		"gitignore":               false,
		"node_modules_backup.txt": false,
	}
	for rel, want := range tests {
		assert.Equal(t, want, m.Match(rel), rel)
	}

	var none *Matcher
	assert.False(t, none.Match("anything"))
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "main.go", "package main\n")
	writeFile(t, src, "pkg/lib/lib.go", "package lib\n")
	writeFile(t, src, "pkg/lib/cache.pyc", "junk")
	writeFile(t, src, "node_modules/dep/index.js", "module.exports = 1\n")
	writeFile(t, src, ".git/HEAD", "ref: refs/heads/main\n")
	require.NoError(t, os.Symlink("main.go", filepath.Join(src, "link.go")))

	m, err := NewMatcher(defaultIgnore)
	require.NoError(t, err)

	files, size, err := Measure(src, m)
	require.NoError(t, err)
	assert.Equal(t, 2, files)
	assert.EqualValues(t, len("package main\n")+len("package lib\n"), size)

	dst := filepath.Join(t.TempDir(), "work")
	var progress bytes.Buffer
	stats, err := CopyTree(src, dst, m, &progress)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 2, stats.Dirs, "pkg and pkg/lib")
	assert.Equal(t, size, stats.Bytes)
	assert.Zero(t, stats.Skipped)

	got, err := os.ReadFile(filepath.Join(dst, "pkg", "lib", "lib.go"))
	require.NoError(t, err)
	assert.Equal(t, "package lib\n", string(got))

	target, err := os.Readlink(filepath.Join(dst, "link.go"))
	require.NoError(t, err)
	assert.Equal(t, "main.go", target)

	assert.NoFileExists(t, filepath.Join(dst, "pkg", "lib", "cache.pyc"))
	assert.NoDirExists(t, filepath.Join(dst, "node_modules"))
	assert.NoDirExists(t, filepath.Join(dst, ".git"))

	srcInfo, _ := os.Stat(filepath.Join(src, "main.go"))
	dstInfo, _ := os.Stat(filepath.Join(dst, "main.go"))
	assert.True(t, srcInfo.ModTime().Equal(dstInfo.ModTime()))
}

func TestFreeSpace(t *testing.T) {
	free, err := FreeSpace(filepath.Join(t.TempDir(), "not", "yet", "created"))
	require.NoError(t, err)
	assert.Positive(t, free)
}

func TestWriteScaffold(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "# mine\n")

	written, err := writeScaffold(dir, readmeData{Name: "demo", Owner: "octo"})
	require.NoError(t, err)
	assert.Equal(t, []string{".gitignore"}, written)

	readme, _ := os.ReadFile(filepath.Join(dir, "README.md"))
	assert.Equal(t, "# mine\n", string(readme), "existing files are kept")

	dir = t.TempDir()
	written, err = writeScaffold(dir, readmeData{
		Name:     "demo",
		Owner:    "octo",
		CloneURL: "https://github.com/octo/demo.git",
		Stats:    Stats{Files: 1200, Dirs: 3, Bytes: 2048},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"README.md", ".gitignore"}, written)

	readme, _ = os.ReadFile(filepath.Join(dir, "README.md"))
	assert.Contains(t, string(readme), "# demo")
	assert.Contains(t, string(readme), "| 1,200 | 3 | 2.0 KiB |")
	assert.Contains(t, string(readme), "git clone https://github.com/octo/demo.git")
}

func TestForceRemove(t *testing.T) {
	var out bytes.Buffer
	r := NewRemover(nil, NewConsole(&out), 0)

	dir := filepath.Join(t.TempDir(), "work")
	writeFile(t, dir, "a/b/c.txt", "x")
	require.NoError(t, os.Chmod(filepath.Join(dir, "a", "b", "c.txt"), 0o400))

	require.NoError(t, r.ForceRemove(context.Background(), dir))
	assert.NoDirExists(t, dir)
	assert.Contains(t, out.String(), "Directory cleaned with method 1")

	assert.NoError(t, r.ForceRemove(context.Background(), dir), "missing path is already clean")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	writeFile(t, dir, "x", "y")
	assert.ErrorIs(t, r.ForceRemove(ctx, dir), context.Canceled)
}

func TestRemovalStrategies(t *testing.T) {
	for name, fn := range map[string]func(context.Context, string) error{
		"writable": removeWritable,
		"move":     moveAway,
	} {
		t.Run(name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "work")
			writeFile(t, dir, "sub/file.txt", "x")
			require.NoError(t, os.Chmod(filepath.Join(dir, "sub"), 0o500))
			t.Cleanup(func() { _ = os.Chmod(filepath.Join(dir, "sub"), 0o700) })

			require.NoError(t, fn(context.Background(), dir))
			assert.False(t, exists(dir))
		})
	}
}

func TestStopGitProcessesOutsideScope(t *testing.T) {
	n, err := StopGitProcesses(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, n, "nothing runs inside a fresh directory")

	n, err = StopGitProcesses(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, n)
}
