package scenarios

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/collectspec/packages/assertions"
	"github.com/abdul-hamid-achik/collectspec/packages/capture"
	"github.com/abdul-hamid-achik/collectspec/packages/fixture"
	"github.com/abdul-hamid-achik/collectspec/packages/runsettings"
	"github.com/abdul-hamid-achik/collectspec/packages/testenv"
)

// Test assets and extensions the scenarios run against
const (
	SimpleTestProject             = "SimpleTestProject2.dll"
	AssemblyLoadingTestProject    = "AppDomainGetAssembliesTestProject.dll"
	OutOfProcDataCollectorProject = "OutOfProcDataCollector"
	SampleDataCollector           = "SampleDataCollector"
)

// Summary is the expected (passed, failed, skipped) count
type Summary struct {
	Passed  int
	Failed  int
	Skipped int
}

func (s Summary) Total() int {
	return s.Passed + s.Failed + s.Skipped
}

// Scenario is one acceptance case, run once per entry in Targets.
type Scenario struct {
	Name        string
	Description string

	// Targets returns the runner combinations the scenario applies to
	Targets func() []testenv.RunnerInfo

	// Prepare writes any configuration the case needs and returns the
	// request to build the command line from.
	Prepare func(env testenv.Environment, f *fixture.Fixture) (fixture.Request, error)

	Summary Summary

	// Collector enables the data collector output checks
	Collector bool
}

// Outcome is the result of running a scenario under one runner combination
type Outcome struct {
	Scenario string
	Runner   testenv.RunnerInfo
	Command  string
	Output   *capture.Output
	Results  []*assertions.Result
	Err      error
	Duration time.Duration
}

// Passed reports whether the case ran and every check held
func (o *Outcome) Passed() bool {
	return o.Err == nil && assertions.CountFailed(o.Results) == 0
}

// Name identifies the case, e.g. "ExecuteTestsWithDataCollection(Runner=net451,Target=net451,InIsolation)"
func (o *Outcome) Name() string {
	return fmt.Sprintf("%s(%s)", o.Scenario, o.Runner)
}

// Run prepares configuration, builds the command line, invokes the runner
// and checks its output. Every check lands in Results; Err is set when the
// case could not run or any check failed.
func (s Scenario) Run(ctx context.Context, env testenv.Environment, f *fixture.Fixture) *Outcome {
	start := time.Now()
	o := &Outcome{
		Scenario: s.Name,
		Runner:   env.RunnerInfo(),
	}
	defer func() { o.Duration = time.Since(start) }()

	req, err := s.Prepare(env, f)
	if err != nil {
		o.Err = fmt.Errorf("preparing %s: %w", s.Name, err)
		return o
	}

	cl := f.Arguments(req)
	o.Command = cl.String()

	o.Output, err = f.Invoke(ctx, cl)
	if err != nil {
		o.Err = err
		return o
	}

	results, summaryErr := f.ValidateSummaryStatus(s.Summary.Passed, s.Summary.Failed, s.Summary.Skipped)
	o.Results = append(o.Results, results...)

	var collectorErr error
	if s.Collector {
		results, collectorErr = f.ValidateDataCollectorOutput()
		o.Results = append(o.Results, results...)
	}

	o.Err = errors.Join(summaryErr, collectorErr)
	return o
}

// AppliesTo reports whether ri is one of the scenario's targets
func (s Scenario) AppliesTo(ri testenv.RunnerInfo) bool {
	for _, t := range s.Targets() {
		if t == ri {
			return true
		}
	}
	return false
}

func netFullAndCore() []testenv.RunnerInfo {
	return append(testenv.NetFullTargets(), testenv.NetCoreTargets()...)
}

// ExecuteTestsWithDataCollection enables the sample collector through a
// run-settings file.
var ExecuteTestsWithDataCollection = Scenario{
	Name:        "ExecuteTestsWithDataCollection",
	Description: "run-settings file enables the sample data collector",
	Targets:     netFullAndCore,
	Prepare: func(env testenv.Environment, f *fixture.Fixture) (fixture.Request, error) {
		settings, err := f.WriteRunSettings(runsettings.SampleDataCollector())
		if err != nil {
			return fixture.Request{}, err
		}
		return fixture.Request{
			Assemblies:      env.AssetPaths(SimpleTestProject),
			RunSettings:     settings,
			Framework:       env.FrameworkArgValue(),
			InIsolation:     env.RunnerInfo().InIsolationValue(),
			TestAdapterPath: env.ExtensionsPath(OutOfProcDataCollectorProject),
		}, nil
	},
	Summary:   Summary{Passed: 1, Failed: 1, Skipped: 1},
	Collector: true,
}

// ExecuteTestsWithDataCollectionUsingCollectArgument enables the sample
// collector with /Collect and no run-settings file.
var ExecuteTestsWithDataCollectionUsingCollectArgument = Scenario{
	Name:        "ExecuteTestsWithDataCollectionUsingCollectArgument",
	Description: "/Collect switch enables the sample data collector",
	Targets:     netFullAndCore,
	Prepare: func(env testenv.Environment, f *fixture.Fixture) (fixture.Request, error) {
		return fixture.Request{
			Assemblies:      env.AssetPaths(SimpleTestProject),
			Framework:       env.FrameworkArgValue(),
			InIsolation:     env.RunnerInfo().InIsolationValue(),
			Collect:         SampleDataCollector,
			TestAdapterPath: env.ExtensionsPath(OutOfProcDataCollectorProject),
		}, nil
	},
	Summary:   Summary{Passed: 1, Failed: 1, Skipped: 1},
	Collector: true,
}

// DataCollectorAssemblyLoadingShouldNotThrowErrorForNetCore runs an asset
// that enumerates loaded assemblies on .NET Core.
var DataCollectorAssemblyLoadingShouldNotThrowErrorForNetCore = Scenario{
	Name:        "DataCollectorAssemblyLoadingShouldNotThrowErrorForNetCore",
	Description: "assembly enumeration in the test host does not fail on .NET Core",
	Targets:     testenv.NetCoreTargets,
	Prepare: func(env testenv.Environment, f *fixture.Fixture) (fixture.Request, error) {
		return fixture.Request{
			Assemblies: []string{env.AssetPathFor(AssemblyLoadingTestProject, testenv.CoreTargetFramework)},
			Framework:  env.FrameworkArgValue(),
		}, nil
	},
	Summary: Summary{Passed: 1},
}

// DataCollectorAssemblyLoadingShouldNotThrowErrorForFullFramework runs the
// same asset on the desktop framework.
var DataCollectorAssemblyLoadingShouldNotThrowErrorForFullFramework = Scenario{
	Name:        "DataCollectorAssemblyLoadingShouldNotThrowErrorForFullFramework",
	Description: "assembly enumeration in the test host does not fail on the desktop framework",
	Targets:     testenv.NetFullTargets,
	Prepare: func(env testenv.Environment, f *fixture.Fixture) (fixture.Request, error) {
		return fixture.Request{
			Assemblies: env.AssetPaths(AssemblyLoadingTestProject),
			Framework:  env.FrameworkArgValue(),
		}, nil
	},
	Summary: Summary{Passed: 1},
}

// All returns every scenario in declaration order
func All() []Scenario {
	return []Scenario{
		ExecuteTestsWithDataCollection,
		ExecuteTestsWithDataCollectionUsingCollectArgument,
		DataCollectorAssemblyLoadingShouldNotThrowErrorForNetCore,
		DataCollectorAssemblyLoadingShouldNotThrowErrorForFullFramework,
	}
}

// ByName finds a scenario by case-insensitive name
func ByName(name string) (Scenario, bool) {
	for _, s := range All() {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Scenario{}, false
}
