package assertions

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/collectspec/packages/capture"
)

// ErrFailed is wrapped by the error returned from Failed
var ErrFailed = errors.New("assertion failed")

type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Subject  string
	Operator string
}

// Subjects
const (
	SubjectStdout   = "stdout"
	SubjectStderr   = "stderr"
	SubjectExitCode = "exit code"
)

// Operators
const (
	OpContains    = "contains"
	OpNotContains = "not contains"
	OpNotMatches  = "not matches"
	OpEquals      = "equals"
	OpIsTrue      = "is true"
)

// Runner summary fragments. A summary line looks like
// "Total tests: 3. Passed: 1. Failed: 1. Skipped: 1."
const (
	TotalTestsMessage   = "Total tests: %d."
	PassedTestsMessage  = " Passed: %d."
	FailedTestsMessage  = " Failed: %d."
	SkippedTestsMessage = " Skipped: %d."
	NoTestsMessage      = "No test is available"
)

var anySummaryPattern = regexp.MustCompile(`Total tests: \d+`)

// Evaluator checks the captured output of one runner invocation
type Evaluator struct {
	stdout   string
	stderr   string
	exitCode int
}

func NewEvaluator(out *capture.Output) *Evaluator {
	if out == nil {
		return &Evaluator{exitCode: -1}
	}
	return &Evaluator{
		stdout:   out.Stdout,
		stderr:   out.Stderr,
		exitCode: out.ExitCode,
	}
}

// StdoutContains checks that substr appears in standard output
func (e *Evaluator) StdoutContains(substr string) *Result {
	return contains(SubjectStdout, e.stdout, substr)
}

// StderrContains checks that substr appears in standard error
func (e *Evaluator) StderrContains(substr string) *Result {
	return contains(SubjectStderr, e.stderr, substr)
}

// StdoutNotContains checks that substr is absent from standard output
func (e *Evaluator) StdoutNotContains(substr string) *Result {
	r := contains(SubjectStdout, e.stdout, substr)
	r.Operator = OpNotContains
	r.Passed = !r.Passed
	if r.Passed {
		r.Message = ""
	} else {
		r.Message = fmt.Sprintf("expected not to contain %q", substr)
	}
	return r
}

// ExitCode checks the runner exit code
func (e *Evaluator) ExitCode(expected int) *Result {
	return Equals(SubjectExitCode, expected, e.exitCode)
}

// SummaryStatus checks the runner's summary line for the expected counts.
// Zero counts are left out of the expected line, and a run with no tests at
// all must report that no test is available instead of printing a summary.
func (e *Evaluator) SummaryStatus(passed, failed, skipped int) []*Result {
	total := passed + failed + skipped
	if total == 0 {
		r := &Result{
			Subject:  SubjectStdout,
			Operator: OpNotMatches,
			Expected: anySummaryPattern.String(),
			Actual:   e.stdout,
			Passed:   !anySummaryPattern.MatchString(e.stdout),
		}
		if !r.Passed {
			r.Message = "expected no summary line: " + anySummaryPattern.FindString(e.stdout)
		}
		return []*Result{r, e.StdoutContains(NoTestsMessage)}
	}

	return []*Result{e.StdoutContains(SummaryLine(passed, failed, skipped))}
}

// SummaryLine formats the summary text expected for the given counts
func SummaryLine(passed, failed, skipped int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, TotalTestsMessage, passed+failed+skipped)
	if passed != 0 {
		fmt.Fprintf(&sb, PassedTestsMessage, passed)
	}
	if failed != 0 {
		fmt.Fprintf(&sb, FailedTestsMessage, failed)
	}
	if skipped != 0 {
		fmt.Fprintf(&sb, SkippedTestsMessage, skipped)
	}
	return sb.String()
}

func contains(subject, text, substr string) *Result {
	r := &Result{
		Subject:  subject,
		Operator: OpContains,
		Expected: substr,
		Actual:   text,
		Passed:   strings.Contains(text, substr),
	}
	if !r.Passed {
		r.Message = fmt.Sprintf("%s does not contain %q", subject, substr)
	}
	return r
}

// Equals compares two values with reflect.DeepEqual
func Equals(subject string, expected, actual any) *Result {
	r := &Result{
		Subject:  subject,
		Operator: OpEquals,
		Expected: expected,
		Actual:   actual,
		Passed:   reflect.DeepEqual(expected, actual),
	}
	if !r.Passed {
		r.Message = fmt.Sprintf("expected %v, got %v", expected, actual)
	}
	return r
}

// True records a boolean condition
func True(subject string, actual bool, message string) *Result {
	r := &Result{
		Subject:  subject,
		Operator: OpIsTrue,
		Expected: true,
		Actual:   actual,
		Passed:   actual,
	}
	if !actual {
		r.Message = message
	}
	return r
}

// CountFailed returns the number of failed results
func CountFailed(results []*Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}

// Failed returns nil when every result passed, otherwise an error wrapping
// ErrFailed that lists the failures.
func Failed(results []*Result) error {
	var msgs []string
	for _, r := range results {
		if r.Passed {
			continue
		}
		msg := r.Message
		if msg == "" {
			msg = fmt.Sprintf("%s %s %v", r.Subject, r.Operator, r.Expected)
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrFailed, strings.Join(msgs, "; "))
}
