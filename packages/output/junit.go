package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/collectspec/packages/core/runner"
)

// junitTally is shared by the root element and every suite
type junitTally struct {
	Tests    int     `xml:"tests,attr"`
	Failures int     `xml:"failures,attr"`
	Errors   int     `xml:"errors,attr"`
	Skipped  int     `xml:"skipped,attr"`
	Time     float64 `xml:"time,attr"`
}

func (t *junitTally) add(o junitTally) {
	t.Tests += o.Tests
	t.Failures += o.Failures
	t.Errors += o.Errors
	t.Skipped += o.Skipped
}

// JUnitTestSuites is the document root
type JUnitTestSuites struct {
	XMLName xml.Name `xml:"testsuites"`
	Name    string   `xml:"name,attr,omitempty"`
	junitTally
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite holds the cases of one scenario
type JUnitTestSuite struct {
	Name string `xml:"name,attr"`
	junitTally
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase is one scenario under one runner combination. The runner
// and target frameworks are repeated as properties so CI tools can group
// on them.
type JUnitTestCase struct {
	Name       string          `xml:"name,attr"`
	ClassName  string          `xml:"classname,attr"`
	Time       float64         `xml:"time,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	Failure    *JUnitProblem   `xml:"failure,omitempty"`
	Error      *JUnitProblem   `xml:"error,omitempty"`
	Skipped    *JUnitSkipped   `xml:"skipped,omitempty"`
	SystemOut  string          `xml:"system-out,omitempty"`
	SystemErr  string          `xml:"system-err,omitempty"`
}

type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// JUnitProblem is the body of a <failure> or <error> element
type JUnitProblem struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter collects results and writes one XML document on Flush
type JUnitFormatter struct {
	writer io.Writer
	suites []JUnitTestSuite
	bySpec map[string]int
	runErr []error
	now    func() time.Time
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer: os.Stdout,
		bySpec: make(map[string]int),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

// suite returns the suite for scenario, creating it on first sight so
// suites appear in the order their first case ran.
func (f *JUnitFormatter) suite(scenario string) *JUnitTestSuite {
	i, ok := f.bySpec[scenario]
	if !ok {
		i = len(f.suites)
		f.bySpec[scenario] = i
		f.suites = append(f.suites, JUnitTestSuite{
			Name:      scenario,
			Timestamp: f.now().Format(time.RFC3339),
		})
	}
	return &f.suites[i]
}

func (f *JUnitFormatter) FormatResult(result *runner.RunResult) {
	for _, cr := range result.Results {
		s := f.suite(cr.Scenario)
		tc, tally := junitCase(cr)
		s.TestCases = append(s.TestCases, tc)
		s.add(tally)
		s.Time += tally.Time
	}
}

// junitCase converts one case result and reports which counter it bumps
func junitCase(cr *runner.CaseResult) (JUnitTestCase, junitTally) {
	tally := junitTally{Tests: 1, Time: cr.Duration.Seconds()}
	tc := JUnitTestCase{
		Name:      cr.Runner.String(),
		ClassName: cr.Scenario,
		Time:      tally.Time,
		Properties: []JUnitProperty{
			{Name: "runnerFramework", Value: cr.Runner.RunnerFramework},
			{Name: "targetFramework", Value: cr.Runner.TargetFramework},
			{Name: "inIsolation", Value: strconv.FormatBool(cr.Runner.InIsolation)},
		},
	}
	if cr.Attempts > 1 {
		tc.Properties = append(tc.Properties, JUnitProperty{Name: "attempts", Value: strconv.Itoa(cr.Attempts)})
	}

	switch {
	case cr.Skipped:
		tally.Skipped = 1
		tc.Skipped = &JUnitSkipped{Message: cr.SkipReason}
		return tc, tally
	case caseError(cr) != nil:
		tally.Errors = 1
		tc.Error = &JUnitProblem{Message: caseError(cr).Error(), Type: "RunnerError"}
	case !cr.Passed():
		tally.Failures = 1
		var body strings.Builder
		for _, a := range failedChecks(cr) {
			fmt.Fprintf(&body, "%s %s %v: %s\n", a.Subject, a.Operator, a.Expected, a.Message)
		}
		tc.Failure = &JUnitProblem{
			Message: fmt.Sprintf("%d check(s) failed", len(failedChecks(cr))),
			Type:    "CheckFailed",
			Content: body.String(),
		}
	default:
		return tc, tally
	}

	// runner output only matters for cases that went wrong
	if cr.Output != nil {
		tc.SystemOut = cr.Output.Stdout
		tc.SystemErr = cr.Output.Stderr
	}
	return tc, tally
}

// FormatError records a run-level failure. Case errors are already on
// their test cases; these are written as an extra errored suite on Flush.
func (f *JUnitFormatter) FormatError(err error) {
	f.runErr = append(f.runErr, err)
}

// runSuite reports run-level errors, one test case each
func (f *JUnitFormatter) runSuite() JUnitTestSuite {
	s := JUnitTestSuite{Name: "collectspec", Timestamp: f.now().Format(time.RFC3339)}
	for _, err := range f.runErr {
		msg, _, _ := strings.Cut(err.Error(), "\n")
		s.TestCases = append(s.TestCases, JUnitTestCase{
			Name:      "run",
			ClassName: "collectspec",
			Error:     &JUnitProblem{Message: msg, Type: "RunError", Content: err.Error()},
			SystemErr: err.Error(),
		})
		s.add(junitTally{Tests: 1, Errors: 1})
	}
	return s
}

func (f *JUnitFormatter) FormatHeader(version string) {}

// Flush writes the accumulated document
func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	suites := f.suites
	if len(f.runErr) > 0 {
		suites = append(suites, f.runSuite())
	}
	doc := JUnitTestSuites{
		Name:       "collectspec",
		Timestamp:  f.now().Format(time.RFC3339),
		TestSuites: suites,
	}
	for _, s := range suites {
		doc.add(s.junitTally)
	}
	doc.Time = totalDuration.Seconds()

	if _, err := io.WriteString(f.writer, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f.writer)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(f.writer, "\n")
	return err
}
