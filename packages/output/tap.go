package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/collectspec/packages/core/runner"
)

// TAPFormatter writes TAP version 13. The plan line needs the case count,
// so test points are held until Flush.
type TAPFormatter struct {
	writer io.Writer
	points []tapPoint
	runErr []error
}

type tapPoint struct {
	ok        bool
	desc      string
	directive string
	diag      *tapDiagnostic
}

// tapDiagnostic is the YAML block under a "not ok" line
type tapDiagnostic struct {
	Message  string   `yaml:"message,omitempty"`
	Severity string   `yaml:"severity,omitempty"`
	ExitCode *int     `yaml:"exitCode,omitempty"`
	Failures []string `yaml:"failures,omitempty"`
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	for _, cr := range result.Results {
		f.points = append(f.points, tapPointFor(cr))
	}
}

func tapPointFor(cr *runner.CaseResult) tapPoint {
	p := tapPoint{desc: cr.Name()}
	switch {
	case cr.Skipped:
		// skipped points count as ok in TAP
		p.ok = true
		p.directive = "SKIP " + cr.SkipReason
		return p
	case cr.Passed():
		p.ok = true
		return p
	}

	d := &tapDiagnostic{Severity: "fail"}
	if err := caseError(cr); err != nil {
		d.Severity = "error"
		d.Message = err.Error()
	}
	if cr.Output != nil {
		d.ExitCode = &cr.Output.ExitCode
	}
	for _, a := range failedChecks(cr) {
		d.Failures = append(d.Failures, fmt.Sprintf("%s %s: expected %v", a.Subject, a.Operator, a.Expected))
	}
	p.diag = d
	return p
}

// FormatError records a run-level failure, written as "Bail out!" on Flush
func (f *TAPFormatter) FormatError(err error) {
	f.runErr = append(f.runErr, err)
}

func (f *TAPFormatter) FormatHeader(version string) {}

func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	w := bufio.NewWriter(f.writer)
	fmt.Fprintln(w, "TAP version 13")
	fmt.Fprintf(w, "1..%d\n", len(f.points))

	for i, p := range f.points {
		status := "ok"
		if !p.ok {
			status = "not ok"
		}
		line := fmt.Sprintf("%s %d - %s", status, i+1, p.desc)
		if p.directive != "" {
			line += " # " + p.directive
		}
		fmt.Fprintln(w, line)

		if p.diag != nil {
			if err := writeYAMLBlock(w, p.diag); err != nil {
				return err
			}
		}
	}

	for _, err := range f.runErr {
		// the reason must fit on the Bail out! line
		fmt.Fprintln(w, "Bail out! "+strings.Join(strings.Fields(err.Error()), " "))
	}

	fmt.Fprintf(w, "# duration %dms\n", totalDuration.Milliseconds())
	return w.Flush()
}

// writeYAMLBlock writes v as an indented "---"/"..." diagnostic block
func writeYAMLBlock(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding TAP diagnostic: %w", err)
	}
	fmt.Fprintln(w, "  ---")
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		fmt.Fprintln(w, "  "+line)
	}
	fmt.Fprintln(w, "  ...")
	return nil
}
