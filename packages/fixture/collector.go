package fixture

import (
	"fmt"

	"github.com/abdul-hamid-achik/collectspec/packages/artifacts"
	"github.com/abdul-hamid-achik/collectspec/packages/assertions"
)

// CollectorExpectation is what a data collector must print and write during
// a run of a given test asset.
type CollectorExpectation struct {
	Name      string
	TestNames []string
	Stdout    []string // collector messages expected on stdout
	Stderr    []string // collector messages expected on stderr
	Files     artifacts.Expectation
}

// CollectorMessage formats a message as the runner relays it
func CollectorMessage(collector, msg string) string {
	return fmt.Sprintf("Data collector '%s' message: %s", collector, msg)
}

// SampleCollector is the expectation for the sample out-of-proc collector
// running over SimpleTestProject2.
func SampleCollector() CollectorExpectation {
	const name = "SampleDataCollector"
	return CollectorExpectation{
		Name: name,
		TestNames: []string{
			"SampleUnitTestProject2.UnitTest1.PassingTest2",
			"SampleUnitTestProject2.UnitTest1.FailingTest2",
		},
		Stdout: []string{
			CollectorMessage(name, "SessionStarted"),
			CollectorMessage(name, "TestHostLaunched"),
			CollectorMessage(name, "SessionEnded"),
			CollectorMessage(name, "my warning"),
			CollectorMessage(name, "Dispose called."),
		},
		Stderr: []string{
			CollectorMessage(name, "Data collector caught an exception of type 'System.Exception': 'my exception'. More details:"),
		},
		Files: artifacts.SampleDataCollector,
	}
}

// ValidateDataCollectorOutput checks output and result files against the
// sample collector expectation.
func (f *Fixture) ValidateDataCollectorOutput() ([]*assertions.Result, error) {
	return f.ValidateCollectorOutput(SampleCollector())
}

// ValidateCollectorOutput checks lifecycle messages on stdout and stderr,
// then the attachments and diagnostic logs in the results directory.
func (f *Fixture) ValidateCollectorOutput(exp CollectorExpectation) ([]*assertions.Result, error) {
	ev := f.evaluator()

	results := []*assertions.Result{
		ev.StdoutContains(artifacts.RunAttachmentMarker),
		ev.StdoutContains("TestCaseStarted"),
		ev.StdoutContains("TestCaseEnded"),
	}
	for _, name := range exp.TestNames {
		results = append(results, ev.StdoutContains(name))
	}
	for _, msg := range exp.Stdout {
		results = append(results, ev.StdoutContains(msg))
	}
	for _, msg := range exp.Stderr {
		results = append(results, ev.StderrContains(msg))
	}

	inv, err := artifacts.Scan(f.resultsDir)
	if err != nil {
		return results, err
	}
	results = append(results, artifacts.Check(inv, ev, exp.Files)...)

	return results, assertions.Failed(results)
}
