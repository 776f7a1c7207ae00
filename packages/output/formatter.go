package output

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/collectspec/packages/assertions"
	"github.com/abdul-hamid-achik/collectspec/packages/core/runner"
)

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
	FormatJUnit   = "junit"
	FormatTAP     = "tap"
)

// Formats lists the supported format names
var Formats = []string{FormatConsole, FormatJSON, FormatJUnit, FormatTAP}

// New returns the formatter for format writing to w
func New(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch format {
	case "", FormatConsole:
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case FormatJSON:
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case FormatJUnit:
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case FormatTAP:
		return NewTAPFormatter(TAPWithWriter(w)), nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// caseError returns the error that kept a case from running, or nil when
// the case ran and only its checks failed.
func caseError(cr *runner.CaseResult) error {
	if cr.Err == nil || errors.Is(cr.Err, assertions.ErrFailed) {
		return nil
	}
	return cr.Err
}

func failedChecks(cr *runner.CaseResult) []*assertions.Result {
	var out []*assertions.Result
	for _, r := range cr.Results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// formatValue shortens long captured output for display
func formatValue(v any, maxLen int) string {
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
