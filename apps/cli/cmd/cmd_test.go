package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/collectspec/internal/fakerunner"
	"github.com/abdul-hamid-achik/collectspec/packages/core/arguments"
	"github.com/abdul-hamid-achik/collectspec/packages/core/config"
	"github.com/abdul-hamid-achik/collectspec/packages/core/env"
	"github.com/abdul-hamid-achik/collectspec/packages/runsettings"
)

func TestMain(m *testing.M) {
	if fakerunner.Enabled() {
		os.Exit(fakerunner.Main(os.Args[1:], os.Stdout, os.Stderr))
	}
	os.Exit(m.Run())
}

// resetFlags restores every flag to its default so commands can be executed
// more than once in a process.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	code := execute(rootCmd, args)
	return code, stdout.String(), stderr.String()
}

// writeFakeConfig writes a config that launches this test binary as the runner
func writeFakeConfig(t *testing.T, mode string, extra map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	vars := map[string]string{fakerunner.EnvVar: "1"}
	if mode != "" {
		vars[fakerunner.ModeEnvVar] = mode
	}

	cfg := config.DefaultConfig()
	cfg.RunnerCommand = arguments.CommandLine(fakerunner.Command()).String()
	cfg.TestAssetsPath = filepath.Join(dir, "assets")
	cfg.TempDir = filepath.Join(dir, "tmp")
	cfg.RetryDelay = 1
	cfg.Env = env.MergeVariables(vars, extra)
	require.NoError(t, os.MkdirAll(cfg.TempDir, 0755))

	path := filepath.Join(dir, "collectspec.yaml")
	require.NoError(t, cfg.SaveConfig(path))
	return path
}

func TestVersion(t *testing.T) {
	code, out, _ := run(t, "version")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "collectspec version dev")
}

func TestUnknownCommand(t *testing.T) {
	code, _, errOut := run(t, "frobnicate")
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, errOut, "unknown command")
}

func TestList(t *testing.T) {
	code, out, _ := run(t, "list")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "ExecuteTestsWithDataCollection:")
	assert.Contains(t, out, "expects: 1 passed, 1 failed, 1 skipped")
	assert.Contains(t, out, "  - Runner=net451,Target=net451,InIsolation")

	code, out, _ = run(t, "list", "--cases")
	require.Equal(t, ExitSuccess, code)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 12)
}

func TestRunSettings(t *testing.T) {
	code, out, _ := run(t, "runsettings")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, `friendlyName="SampleDataCollector"`)

	path := filepath.Join(t.TempDir(), "custom.runsettings")
	code, _, _ = run(t, "runsettings", "--attr", "friendlyName=Other", "--attr", "assemblyQualifiedName=Other.Collector", path)
	require.Equal(t, ExitSuccess, code)

	doc, err := runsettings.ParseFile(path)
	require.NoError(t, err)
	c, ok := doc.CollectorByName("Other")
	require.True(t, ok)
	assert.Equal(t, "my://sample/datacollector", c.URI())
	v, _ := c.Attributes().Get("assemblyQualifiedName")
	assert.Equal(t, "Other.Collector", v)

	code, _, errOut := run(t, "runsettings", "--attr", "novalue")
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, errOut, "expected name=value")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeFakeConfig(t, "", nil)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"retries": "many"}`), 0644))

	settings := filepath.Join(dir, "ok.runsettings")
	require.NoError(t, runsettings.New(runsettings.SampleDataCollector()).WriteFile(settings))

	empty := filepath.Join(dir, "empty.runsettings")
	require.NoError(t, os.WriteFile(empty, []byte("<RunSettings></RunSettings>"), 0644))

	code, out, _ := run(t, "validate", good, settings)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Valid: "+good)
	assert.Contains(t, out, "Valid: "+settings)

	code, _, errOut := run(t, "validate", bad, empty)
	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, errOut, "Error in "+bad)
	assert.Contains(t, errOut, "no DataCollector elements")
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	code, out, _ := run(t, "init")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "collectspec initialized!")

	cfg, err := config.LoadConfig(filepath.Join(dir, "collectspec.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "dotnet vstest.console.dll", cfg.RunnerCommand)
	assert.NoError(t, validateRunSettings(filepath.Join(dir, "sample.runsettings")))

	code, _, errOut := run(t, "init")
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, errOut, "already exists")

	code, _, _ = run(t, "init", "--force")
	assert.Equal(t, ExitSuccess, code)
}

func TestRun_JSON(t *testing.T) {
	path := writeFakeConfig(t, "", nil)

	code, out, _ := run(t, "run", "-c", path, "-o", "json", "--runner", "netcoreapp2.0")
	require.Equal(t, ExitSuccess, code, out)

	assert.Equal(t, int64(6), gjson.Get(out, "summary.passed").Int())
	assert.Equal(t, int64(6), gjson.Get(out, "summary.skipped").Int())
	assert.Equal(t, int64(12), gjson.Get(out, "cases.#").Int())
}

func TestRun_ScenarioArgs(t *testing.T) {
	path := writeFakeConfig(t, "", nil)

	code, out, _ := run(t, "run", "-c", path, "-o", "json", "executetestswithdatacollection")
	require.Equal(t, ExitSuccess, code, out)
	assert.Equal(t, int64(4), gjson.Get(out, "cases.#").Int())
	assert.Equal(t, "ExecuteTestsWithDataCollection", gjson.Get(out, "cases.0.scenario").String())

	code, _, errOut := run(t, "run", "-c", path, "NoSuchScenario")
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, errOut, `unknown scenario "NoSuchScenario"`)
}

func TestRun_Failures(t *testing.T) {
	path := writeFakeConfig(t, fakerunner.ModeNoAttachments, nil)

	code, out, _ := run(t, "run", "-c", path, "-o", "tap", "--name", "ExecuteTestsWithDataCollection")
	assert.Equal(t, ExitTestFailure, code)
	assert.Contains(t, out, "not ok 1 - ")
	assert.Contains(t, out, "# SKIP filtered out")
}

func TestRun_RunnerMissing(t *testing.T) {
	path := writeFakeConfig(t, "", nil)

	code, _, _ := run(t, "run", "-c", path, "-o", "json", "--runner-command", filepath.Join(t.TempDir(), "missing-runner"))
	assert.Equal(t, ExitRunnerError, code)
}

func TestRun_ConfigError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collectspec.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"unknown": true}`), 0644))

	code, _, errOut := run(t, "run", "-c", path)
	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, errOut, "invalid config")
}

func TestRun_DryRun(t *testing.T) {
	path := writeFakeConfig(t, "", nil)

	code, out, _ := run(t, "run", "-c", path, "--dry-run", "--target", "net451")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Would run: ExecuteTestsWithDataCollection(Runner=net451,Target=net451,InIsolation)")
	assert.Contains(t, out, "/Settings:")
	assert.Contains(t, out, "6 cases")
}

func TestRun_History(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	path := writeFakeConfig(t, "", nil)

	code, _, _ := run(t, "run", "-c", path, "-o", "json", "--history", db, "--label", "ci", "--target", "netcoreapp2.0")
	require.Equal(t, ExitSuccess, code)

	code, out, _ := run(t, "history", "--db", db)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "ci")

	code, out, _ = run(t, "history", "--db", db, "1")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "DataCollectorAssemblyLoadingShouldNotThrowErrorForNetCore")

	code, _, errOut := run(t, "history", "--db", db, "99")
	assert.NotEqual(t, ExitSuccess, code)
	assert.Contains(t, errOut, "run 99 not found")
}

func TestIsWatchedFile(t *testing.T) {
	assert.True(t, isWatchedFile("/x/SimpleTestProject2.dll"))
	assert.True(t, isWatchedFile("/x/collectspec.yaml"))
	assert.True(t, isWatchedFile("/x/.env.local"))
	assert.True(t, isWatchedFile("/x/a.RunSettings"))
	assert.False(t, isWatchedFile("/x/notes.md"))
}

func TestCompletion(t *testing.T) {
	code, out, _ := run(t, "completion", "bash")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "collectspec")

	code, _, _ = run(t, "completion", "tcsh")
	assert.Equal(t, ExitUsageError, code)

	names, directive := completeScenarioNames(runCmd, []string{"DataCollectorAssemblyLoadingShouldNotThrowErrorForNetCore"}, "datacollector")
	assert.Equal(t, []string{"DataCollectorAssemblyLoadingShouldNotThrowErrorForFullFramework"}, names)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("COLLECTSPEC_TEST_BOOL", "yes")
	t.Setenv("COLLECTSPEC_TEST_INT", "seven")
	t.Setenv("COLLECTSPEC_TEST_STR", "value")

	assert.True(t, getEnvBool("COLLECTSPEC_TEST_BOOL", false))
	assert.False(t, getEnvBool("COLLECTSPEC_TEST_UNSET", false))
	assert.Equal(t, 3, getEnvInt("COLLECTSPEC_TEST_INT", 3), "unparsable values fall back")
	assert.Equal(t, "value", getEnvString("COLLECTSPEC_TEST_STR", "x"))
	assert.Equal(t, "x", getEnvString("COLLECTSPEC_TEST_UNSET", "x"))
}

// editConfig loads the config at path, applies edit and writes it back
func editConfig(t *testing.T, path string, edit func(*config.Config)) {
	t.Helper()
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	edit(cfg)
	require.NoError(t, cfg.SaveConfig(path))
}

func TestRun_BeforeHookFailure(t *testing.T) {
	path := writeFakeConfig(t, "", nil)
	editConfig(t, path, func(c *config.Config) {
		c.Before = []string{"echo HOOKBROKE >&2; exit 7"}
	})

	code, out, errOut := run(t, "run", "-c", path, "-o", "json")
	assert.Equal(t, ExitHookError, code)
	assert.Contains(t, errOut, "HOOKBROKE")
	assert.Contains(t, gjson.Get(out, "error").String(), "before hook failed")
	assert.Contains(t, gjson.Get(out, "error").String(), "HOOKBROKE")

	code, out, _ = run(t, "run", "-c", path, "-o", "tap")
	assert.Equal(t, ExitHookError, code)
	assert.Contains(t, out, "Bail out! before hook failed")
}

func TestRun_AfterHookFailure(t *testing.T) {
	path := writeFakeConfig(t, "", nil)
	editConfig(t, path, func(c *config.Config) {
		c.After = []string{"echo CLEANUPBROKE >&2; exit 1"}
	})

	code, out, errOut := run(t, "run", "-c", path, "-o", "json", "--name", "nothing")
	assert.Equal(t, ExitHookError, code)
	assert.Contains(t, errOut, "CLEANUPBROKE")
	assert.Equal(t, int64(12), gjson.Get(out, "summary.skipped").Int())
	assert.Contains(t, gjson.Get(out, "error").String(), "after hook failed")
}

func TestLoadRunConfig_ExplicitZeroOverrides(t *testing.T) {
	path := writeFakeConfig(t, "", nil)
	editConfig(t, path, func(c *config.Config) {
		c.Retries = 2
		c.Timeout = 60000
		c.Rate = 5
	})

	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })
	require.NoError(t, rootCmd.PersistentFlags().Set("config", path))

	cfg, err := loadRunConfig(runCmd, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, 60000, cfg.Timeout)
	assert.Equal(t, 5.0, cfg.Rate)

	require.NoError(t, runCmd.Flags().Set("retries", "0"))
	require.NoError(t, runCmd.Flags().Set("timeout", "0s"))
	require.NoError(t, runCmd.Flags().Set("rate", "0"))

	cfg, err = loadRunConfig(runCmd, nil)
	require.NoError(t, err)
	assert.Zero(t, cfg.Retries)
	assert.Zero(t, cfg.Timeout)
	assert.Zero(t, cfg.Rate)
}

func TestRerun_ReloadsConfig(t *testing.T) {
	path := writeFakeConfig(t, "", nil)

	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })
	require.NoError(t, rootCmd.PersistentFlags().Set("config", path))
	require.NoError(t, runCmd.Flags().Set("output", "json"))
	require.NoError(t, runCmd.Flags().Set("name", "DataCollectorAssemblyLoadingShouldNotThrowErrorForNetCore"))

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	rerun := rerunFunc(context.Background(), runCmd, nil)

	rerun()
	assert.Equal(t, int64(2), gjson.Get(stdout.String(), "summary.passed").Int())

	editConfig(t, path, func(c *config.Config) { c.Runners = []string{"net451"} })
	stdout.Reset()
	rerun()
	assert.Equal(t, int64(1), gjson.Get(stdout.String(), "summary.passed").Int(), "edited config is picked up")

	require.NoError(t, os.WriteFile(path, []byte("unknown: true\n"), 0644))
	stdout.Reset()
	rerun()
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "invalid config")
}
