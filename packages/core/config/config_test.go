package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.True(t, c.IsDefault())
	assert.False(t, c.GetParallel())
	assert.Equal(t, 5*time.Minute, c.TimeoutDuration())
	assert.Equal(t, time.Second, c.RetryDelayDuration())
	assert.Equal(t, []string{"console"}, c.Reporters)
	assert.NoError(t, Validate(map[string]any{}))
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "collectspec.yaml", `
runnerCommand: dotnet "artifacts/vstest.console.dll"
testAssetsPath: assets
timeout: 60000
retries: 2
runners: [netcoreapp2.0]
parallel: true
env:
  VSTEST_HOST_DEBUG: "0"
`)

	c, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, c.TimeoutDuration())
	assert.Equal(t, 2, c.Retries)
	assert.True(t, c.GetParallel())
	assert.False(t, c.GetBail(), "unset booleans keep defaults")
	assert.Equal(t, []string{"netcoreapp2.0"}, c.Runners)
	assert.Equal(t, "Debug", c.BuildConfiguration, "unset fields keep defaults")
	assert.Equal(t, filepath.Join(dir, "assets"), c.Resolve(c.TestAssetsPath))

	cmd, err := c.Command()
	require.NoError(t, err)
	assert.Equal(t, []string{"dotnet", "artifacts/vstest.console.dll"}, cmd)
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "collectspec.json", `{"bail": true, "reporters": ["json", "tap"], "rate": 0.5}`)

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, c.GetBail())
	assert.Equal(t, []string{"json", "tap"}, c.Reporters)
	assert.Equal(t, 0.5, c.Rate)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unknown field", "a.yaml", "colour: red\n", "colour"},
		{"wrong type", "b.yaml", "timeout: soon\n", "timeout"},
		{"bad reporter", "c.json", `{"reporters": ["html"]}`, "reporters"},
		{"negative retries", "d.json", `{"retries": -1}`, "retries"},
		{"malformed", "e.json", `{"retries":`, "e.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)
			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Error(t, ValidateFile(path))
		})
	}
}

func TestFindAndLoadConfig(t *testing.T) {
	dir := t.TempDir()

	c, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.True(t, c.IsDefault())
	assert.Empty(t, c.Path())

	writeFile(t, dir, ".collectspec.json", `{"retries": 1}`)
	writeFile(t, dir, "collectspec.yaml", "retries: 3\n")

	c, err = FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Retries, "collectspec.yaml is searched first")
	assert.Equal(t, filepath.Join(dir, "collectspec.yaml"), c.Path())
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Env = map[string]string{"A": "1", "B": "1"}

	merged := base.Merge(&Config{
		Retries: 2,
		Bail:    BoolPtr(true),
		Env:     map[string]string{"B": "2"},
		Targets: []string{"net451"},
	})

	assert.Equal(t, 2, merged.Retries)
	assert.True(t, merged.GetBail())
	assert.False(t, merged.GetParallel())
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, merged.Env)
	assert.Equal(t, []string{"net451"}, merged.Targets)
	assert.Equal(t, "1", base.Env["B"], "base is not modified")
	assert.Same(t, base, base.Merge(nil))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := DefaultConfig()
	c.Scenarios = []string{"ExecuteTestsWithDataCollection"}

	for _, name := range []string{"out.yaml", "out.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, c.SaveConfig(path))
		require.NoError(t, ValidateFile(path))

		loaded, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, c.Scenarios, loaded.Scenarios)
		assert.Equal(t, c.Timeout, loaded.Timeout)
	}
}

func TestCommand_Empty(t *testing.T) {
	c := &Config{RunnerCommand: "  "}
	_, err := c.Command()
	assert.ErrorContains(t, err, "runner command is not configured")
}

func TestRunnerConfig(t *testing.T) {
	t.Setenv("COLLECTSPEC_CONFIG_TEST", "from-os")
	dir := t.TempDir()
	writeFile(t, dir, "ci.env", "FROM_FILE=file\nSHARED=file\n")
	path := writeFile(t, dir, "collectspec.yaml", `
runnerCommand: vstest.console --parallel
envFile: ci.env
env:
  SHARED: config
  DERIVED: ${COLLECTSPEC_CONFIG_TEST}-$FROM_FILE
tempDir: tmp
targets: [net451]
keepResults: true
retryDelay: 250
before: [./setup.sh]
`)

	c, err := LoadConfig(path)
	require.NoError(t, err)

	rc, err := c.RunnerConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"vstest.console", "--parallel"}, rc.Command)
	assert.Equal(t, []string{"DERIVED=from-os-file", "FROM_FILE=file", "SHARED=config"}, rc.Env)
	assert.Equal(t, filepath.Join(dir, "tmp"), rc.TempDir)
	assert.Equal(t, filepath.Join(dir, "TestAssets"), rc.Environment.TestAssetsPath)
	assert.Equal(t, []string{"net451"}, rc.TargetFilter)
	assert.True(t, rc.KeepResults)
	assert.Equal(t, 250*time.Millisecond, rc.RetryDelay)
	assert.Equal(t, []string{"./setup.sh"}, rc.Before)
	assert.Equal(t, dir, rc.HookDir)
}

func TestRunnerConfig_MissingEnvFile(t *testing.T) {
	c := DefaultConfig()
	c.EnvFile = filepath.Join(t.TempDir(), "missing.env")
	_, err := c.RunnerConfig(nil)
	assert.ErrorContains(t, err, "cannot open env file")
}

func TestHistoryPath(t *testing.T) {
	c := &Config{path: "/proj/collectspec.yaml"}

	tests := []struct {
		history  string
		expected string
	}{
		{"runs.db", "/proj/runs.db"},
		{"sqlite://runs.db", "/proj/runs.db"},
		{"sqlite:data/runs.db", "/proj/data/runs.db"},
		{"sqlite:///var/h.db", "/var/h.db"},
		{"/var/h.db", "/var/h.db"},
		{"file:runs.db?mode=memory", "file:runs.db?mode=memory"},
	}
	for _, tt := range tests {
		t.Run(tt.history, func(t *testing.T) {
			c.History = tt.history
			got, err := c.HistoryPath()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	c.History = "postgres://db/runs"
	_, err := c.HistoryPath()
	assert.ErrorContains(t, err, "unsupported database scheme")
}
