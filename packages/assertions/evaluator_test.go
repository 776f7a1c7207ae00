package assertions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/collectspec/packages/capture"
)

func createOutput(stdout, stderr string, exitCode int) *capture.Output {
	return &capture.Output{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}
}

func TestEvaluator_StdoutContains(t *testing.T) {
	e := NewEvaluator(createOutput("TestCaseStarted : a\nTestCaseEnded : a\n", "", 0))

	r := e.StdoutContains("TestCaseStarted")
	assert.True(t, r.Passed)
	assert.Equal(t, SubjectStdout, r.Subject)
	assert.Equal(t, OpContains, r.Operator)
	assert.Empty(t, r.Message)

	r = e.StdoutContains("SessionEnded")
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "SessionEnded")
}

func TestEvaluator_StderrContains(t *testing.T) {
	e := NewEvaluator(createOutput("my exception", "boom: 'my exception'", 0))

	assert.True(t, e.StderrContains("'my exception'").Passed)
	assert.False(t, e.StderrContains("other").Passed)
	assert.Equal(t, SubjectStderr, e.StderrContains("x").Subject)
}

func TestEvaluator_StdoutNotContains(t *testing.T) {
	e := NewEvaluator(createOutput("hello", "", 0))

	assert.True(t, e.StdoutNotContains("bye").Passed)
	r := e.StdoutNotContains("hell")
	assert.False(t, r.Passed)
	assert.Equal(t, OpNotContains, r.Operator)
	assert.NotEmpty(t, r.Message)
}

func TestSummaryLine(t *testing.T) {
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
		assert.Equal(t, tt.expected, SummaryLine(tt.passed, tt.failed, tt.skipped))
	}
}

func TestEvaluator_SummaryStatus(t *testing.T) {
	t.Run("matching counts", func(t *testing.T) {
		e := NewEvaluator(createOutput("Total tests: 3. Passed: 1. Failed: 1. Skipped: 1.\nTest Run Failed.", "", 1))
		results := e.SummaryStatus(1, 1, 1)
		require.Len(t, results, 1)
		assert.True(t, results[0].Passed)
	})

	t.Run("zero counts omitted from expectation", func(t *testing.T) {
		e := NewEvaluator(createOutput("Total tests: 1. Passed: 1.\r\nTest Run Successful.", "", 0))
		assert.Zero(t, CountFailed(e.SummaryStatus(1, 0, 0)))
	})

	t.Run("mismatch", func(t *testing.T) {
		e := NewEvaluator(createOutput("Total tests: 3. Passed: 2. Failed: 1.", "", 1))
		assert.Equal(t, 1, CountFailed(e.SummaryStatus(1, 1, 1)))
	})

	t.Run("no tests", func(t *testing.T) {
		e := NewEvaluator(createOutput("No test is available in a.dll.", "", 0))
		results := e.SummaryStatus(0, 0, 0)
		require.Len(t, results, 2)
		assert.Zero(t, CountFailed(results))
	})

	t.Run("no tests expected but summary printed", func(t *testing.T) {
		e := NewEvaluator(createOutput("Total tests: 1. Passed: 1.", "", 0))
		results := e.SummaryStatus(0, 0, 0)
		assert.Equal(t, 2, CountFailed(results))
		assert.Contains(t, results[0].Message, "Total tests: 1")
	})
}

func TestEvaluator_ExitCode(t *testing.T) {
	e := NewEvaluator(createOutput("", "", 1))
	assert.True(t, e.ExitCode(1).Passed)
	assert.False(t, e.ExitCode(0).Passed)

	assert.False(t, NewEvaluator(nil).ExitCode(0).Passed)
}

func TestEqualsAndTrue(t *testing.T) {
	assert.True(t, Equals("count", 3, 3).Passed)
	r := Equals("count", 3, 2)
	assert.False(t, r.Passed)
	assert.Equal(t, "expected 3, got 2", r.Message)

	assert.True(t, True("found", true, "missing").Passed)
	r = True("found", false, "missing")
	assert.False(t, r.Passed)
	assert.Equal(t, "missing", r.Message)
}

func TestFailed(t *testing.T) {
	assert.NoError(t, Failed(nil))
	assert.NoError(t, Failed([]*Result{{Passed: true}}))

	err := Failed([]*Result{
		{Passed: true},
		{Passed: false, Message: "first"},
		{Passed: false, Subject: "stdout", Operator: OpContains, Expected: "x"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFailed))
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "stdout contains x")
}
