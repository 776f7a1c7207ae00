package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/collectspec/packages/assertions"
	"github.com/abdul-hamid-achik/collectspec/packages/core/runner"
)

// JSONOutput is the document written by the json reporter
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Timings  JSONTimings `json:"timings"`
	Cases    []JSONCase  `json:"cases"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
	// Error holds run-level failures such as hooks; case errors stay on
	// their cases.
	Error string `json:"error,omitempty"`
}

type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

func (s *JSONSummary) count(c JSONCase) {
	s.Total++
	switch {
	case c.Skipped:
		s.Skipped++
	case c.Passed:
		s.Passed++
	default:
		s.Failed++
	}
}

// JSONTimings holds case duration percentiles in milliseconds
type JSONTimings struct {
	Count int64   `json:"count"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	Max   float64 `json:"max"`
}

// JSONCase is one scenario under one runner combination. ExitCode is absent
// when the runner never produced one (not started, timed out, skipped).
type JSONCase struct {
	Name        string          `json:"name"`
	Scenario    string          `json:"scenario"`
	Runner      string          `json:"runner"`
	Target      string          `json:"target"`
	InIsolation bool            `json:"inIsolation"`
	Passed      bool            `json:"passed"`
	Skipped     bool            `json:"skipped,omitempty"`
	SkipReason  string          `json:"skipReason,omitempty"`
	Duration    float64         `json:"duration"`
	Attempts    int             `json:"attempts,omitempty"`
	Command     string          `json:"command,omitempty"`
	ExitCode    *int            `json:"exitCode,omitempty"`
	ResultsDir  string          `json:"resultsDir,omitempty"`
	Error       string          `json:"error,omitempty"`
	Assertions  []JSONAssertion `json:"assertions,omitempty"`
}

type JSONAssertion struct {
	Subject  string `json:"subject"`
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual,omitempty"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// JSONFormatter buffers cases and encodes a single document on Flush
type JSONFormatter struct {
	writer io.Writer
	doc    JSONOutput
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		doc:    JSONOutput{Cases: []JSONCase{}},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Milliseconds())
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	f.doc.Timings = JSONTimings{
		Count: result.Timings.Count,
		P50:   millis(result.Timings.P50),
		P95:   millis(result.Timings.P95),
		Max:   millis(result.Timings.Max),
	}
	for _, cr := range result.Results {
		c := jsonCase(cr)
		f.doc.Summary.count(c)
		f.doc.Cases = append(f.doc.Cases, c)
	}
}

func jsonCase(cr *runner.CaseResult) JSONCase {
	c := JSONCase{
		Name:        cr.Name(),
		Scenario:    cr.Scenario,
		Runner:      cr.Runner.RunnerFramework,
		Target:      cr.Runner.TargetFramework,
		InIsolation: cr.Runner.InIsolation,
		Passed:      !cr.Skipped && cr.Passed(),
		Skipped:     cr.Skipped,
		SkipReason:  cr.SkipReason,
		Duration:    millis(cr.Duration),
		Attempts:    cr.Attempts,
		Command:     cr.Command,
		ResultsDir:  cr.ResultsDir,
	}
	if cr.Output != nil {
		c.ExitCode = &cr.Output.ExitCode
	}
	if err := caseError(cr); err != nil {
		c.Error = err.Error()
	}
	for _, a := range cr.Results {
		c.Assertions = append(c.Assertions, jsonAssertion(a))
	}
	return c
}

// jsonAssertion drops the captured value of passing checks; it is usually
// the whole runner stdout.
func jsonAssertion(a *assertions.Result) JSONAssertion {
	ja := JSONAssertion{
		Subject:  a.Subject,
		Operator: a.Operator,
		Expected: a.Expected,
		Passed:   a.Passed,
		Message:  a.Message,
	}
	if !a.Passed {
		ja.Actual = a.Actual
	}
	return ja
}

func (f *JSONFormatter) FormatError(err error) {
	if f.doc.Error != "" {
		f.doc.Error += "; "
	}
	f.doc.Error += err.Error()
}

func (f *JSONFormatter) FormatHeader(version string) {}

func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	f.doc.Duration = millis(totalDuration)
	f.doc.Time = time.Now().Format(time.RFC3339)

	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(f.doc)
}
