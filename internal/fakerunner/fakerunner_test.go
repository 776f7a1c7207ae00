package fakerunner

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/collectspec/packages/assertions"
	"github.com/abdul-hamid-achik/collectspec/packages/core/arguments"
	"github.com/abdul-hamid-achik/collectspec/packages/runsettings"
)

func countFiles(t *testing.T, dir, substr string) int {
	t.Helper()
	n := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.Contains(path, substr) {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestMain_CollectArgument(t *testing.T) {
	dir := t.TempDir()
	args := arguments.Prepare([]string{"/assets/SimpleTestProject2.dll"}, "", "", "", "").With(
		arguments.ResultsDirectory(dir),
		arguments.Diag(filepath.Join(dir, "diaglog.txt")),
		arguments.Collect(SampleCollector),
		arguments.TestAdapterPath("/ext"),
	)

	var stdout, stderr bytes.Buffer
	code := Main(args.Args(), &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "Total tests: 3. Passed: 1. Failed: 1. Skipped: 1.")
	assert.Contains(t, stdout.String(), "Data collector 'SampleDataCollector' message: SessionStarted")
	assert.Contains(t, stdout.String(), "TestCaseStarted")
	assert.Contains(t, stderr.String(), "'my exception'")

	assert.Equal(t, 1, countFiles(t, dir, "filename.txt"))
	assert.Equal(t, 3, countFiles(t, dir, "testcasefilename"))
	assert.Equal(t, 3, countFiles(t, dir, "diaglog"))
}

func TestMain_RunSettings(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "test.runsettings")
	require.NoError(t, runsettings.New(runsettings.SampleDataCollector()).WriteFile(settings))

	results := filepath.Join(dir, "results")
	args := arguments.Prepare([]string{"/assets/SimpleTestProject2.dll"}, "", settings, "", "/InIsolation").With(
		arguments.ResultsDirectory(results),
		arguments.TestAdapterPath("/ext"),
	)

	var stdout, stderr bytes.Buffer
	Main(args.Args(), &stdout, &stderr)

	assert.Contains(t, stdout.String(), "Dispose called.")
	assert.Equal(t, 3, countFiles(t, results, "testcasefilename"))
}

func TestMain_NoCollector(t *testing.T) {
	dir := t.TempDir()
	args := arguments.Prepare([]string{"/assets/AppDomainGetAssembliesTestProject.dll"}, "", "", "", "").With(
		arguments.ResultsDirectory(dir),
	)

	var stdout, stderr bytes.Buffer
	code := Main(args.Args(), &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "Total tests: 1. Passed: 1.\r\n")
	assert.NotContains(t, stdout.String(), "Failed: 0.")
	assert.NotContains(t, stdout.String(), "Data collector")
	assert.Empty(t, stderr.String())
}

func TestMain_CollectorWithoutAdapterPath(t *testing.T) {
	args := arguments.Prepare([]string{"/assets/SimpleTestProject2.dll"}, "", "", "", "").With(
		arguments.ResultsDirectory(t.TempDir()),
		arguments.Collect(SampleCollector),
	)

	var stdout, stderr bytes.Buffer
	code := Main(args.Args(), &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Could not find data collector")
}

func TestMain_UnknownAssembly(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Main([]string{"/assets/Nothing.dll", arguments.ResultsDirectory(t.TempDir())}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "No test is available")
	assert.NotContains(t, stdout.String(), "Total tests:")
}

func TestEnv(t *testing.T) {
	assert.Equal(t, []string{EnvVar + "=1"}, Env(ModeNormal))
	assert.Equal(t, []string{EnvVar + "=1", ModeEnvVar + "=crash"}, Env(ModeCrash))
}

func TestSummary_OmitsZeroCounts(t *testing.T) {
	tests := []struct {
		passed, failed, skipped int
		expected                string
	}{
		{1, 1, 1, "Total tests: 3. Passed: 1. Failed: 1. Skipped: 1."},
		{1, 0, 0, "Total tests: 1. Passed: 1."},
		{0, 2, 0, "Total tests: 2. Failed: 2."},
		{0, 0, 4, "Total tests: 4. Skipped: 4."},
	}
	for _, tt := range tests {
		got := summary(tt.passed, tt.failed, tt.skipped)
		assert.Equal(t, tt.expected, got)
		assert.Equal(t, assertions.SummaryLine(tt.passed, tt.failed, tt.skipped), got)
	}
}
