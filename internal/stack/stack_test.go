package stack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, Detect(dir))

	touch(t, dir, "go.mod", "module example.com/alpha\n\ngo 1.26\n")
	touch(t, dir, "package.json", "{}")
	touch(t, dir, "pyproject.toml", "")
	touch(t, dir, "requirements.txt", "")
	touch(t, dir, "Dockerfile", "FROM scratch\n")

	assert.Equal(t, []string{"Go 1.26", "Node.js", "Python", "Docker"}, Detect(dir))
}

func TestDetect_GoWithoutDirective(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "go.mod", "module example.com/alpha\n")
	assert.Equal(t, []string{"Go"}, Detect(dir))
}

func TestGoVersion(t *testing.T) {
	dir := t.TempDir()
	_, err := GoVersion(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open go.mod")

	touch(t, dir, "go.mod", "module example.com/alpha\n\ngo 1.22.3\n")
	v, err := GoVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, "1.22.3", v)
}
