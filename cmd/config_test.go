package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/projectops/internal/output"
)

// testEnv sets up an isolated config dir, viper, store and output for testing.
// Command output is captured in the returned buffer via ui.Out.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	viper.Reset()
	setDefaults(dir)

	ui = output.New()
	ui.Out = &bytes.Buffer{}
	ui.ErrOut = &bytes.Buffer{}

	dryRun = false
	dataStore = nil
	t.Cleanup(func() {
		if dataStore != nil {
			_ = dataStore.Close()
			dataStore = nil
		}
	})

	return dir
}

// outString returns everything written to ui.Out so far.
func outString(t *testing.T) string {
	t.Helper()
	buf, ok := ui.Out.(*bytes.Buffer)
	require.True(t, ok)
	return buf.String()
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := testEnv(t)

	require.NoError(t, configInitRun())

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "projectops configuration")
	assert.Contains(t, string(data), `root_folder: "Project-Ops Backups"`)
	assert.Contains(t, string(data), "session_ttl: 168h0m0s")
	assert.Contains(t, string(data), "timeout: 30s")
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir := testEnv(t)

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0o644))

	configForce = false
	err := configInitRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir := testEnv(t)

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0o644))

	configForce = true
	t.Cleanup(func() { configForce = false })
	require.NoError(t, configInitRun())

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "projectops configuration")
}

func TestConfigInit_DryRun(t *testing.T) {
	dir := testEnv(t)
	dryRun = true
	ui.DryRun = true
	t.Cleanup(func() { dryRun = false })

	require.NoError(t, configInitRun())

	_, err := os.Stat(filepath.Join(dir, "config.yaml"))
	assert.True(t, os.IsNotExist(err), "config file should not exist in dry-run mode")
}

func TestConfigInit_ParsesBack(t *testing.T) {
	dir := testEnv(t)
	require.NoError(t, configInitRun())

	viper.Reset()
	viper.SetConfigFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, viper.ReadInConfig())
	assert.Equal(t, 8080, viper.GetInt("port"))
	assert.Equal(t, "Project-Ops Backups", viper.GetString("archive.root_folder"))
	assert.Equal(t, "168h0m0s", viper.GetString("auth.session_ttl"))
}

func TestConfigShow_NoFile(t *testing.T) {
	testEnv(t)

	require.NoError(t, configShowRun())
	out := outString(t)
	assert.Contains(t, out, "archive.root_folder")
	assert.Contains(t, out, "(default)")
}

func TestConfigShow_MasksSecrets(t *testing.T) {
	testEnv(t)
	viper.Set("auth.password", "hunter2")

	require.NoError(t, configShowRun())
	out := outString(t)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "********")
	assert.Contains(t, out, "(unset)")
}

func TestConfigShow_WithFile(t *testing.T) {
	testEnv(t)
	require.NoError(t, configInitRun())

	require.NoError(t, configShowRun())
	assert.Contains(t, outString(t), "(file)")
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "")

	err := configEditRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "echo")

	err := configEditRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDetectSource(t *testing.T) {
	fileValues := map[string]bool{"archive.root_folder": true}
	t.Setenv("PROJECTOPS_PORT", "9090")

	assert.Contains(t, detectSource("port", "PROJECTOPS_PORT", fileValues), "env")
	assert.Contains(t, detectSource("archive.root_folder", "PROJECTOPS_ARCHIVE_ROOT_FOLDER_UNSET", fileValues), "file")
	assert.Contains(t, detectSource("db_path", "PROJECTOPS_DB_PATH_UNSET", fileValues), "default")
}

func TestConfigKeys_EnvNames(t *testing.T) {
	for _, k := range configKeys {
		want := "PROJECTOPS_" + strings.ToUpper(strings.ReplaceAll(k.Key, ".", "_"))
		assert.Equal(t, want, k.EnvVar, k.Key)
	}
}

func TestFlattenKeys(t *testing.T) {
	input := map[string]any{
		"port": 8080,
		"archive": map[string]any{
			"root_folder": "x",
			"timeout":     "10s",
		},
	}

	result := make(map[string]bool)
	flattenKeys("", input, result)

	assert.True(t, result["port"])
	assert.True(t, result["archive.root_folder"])
	assert.True(t, result["archive.timeout"])
	assert.False(t, result["archive"])
}
