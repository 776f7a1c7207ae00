// Package fakerunner imitates the runner console closely enough for the
// harness to be tested without the real runner installed.
//
// Test binaries re-exec themselves as the runner: TestMain checks Enabled and
// calls Main instead of running tests. The fake understands the switches the
// harness emits and reproduces the sample data collector's console messages
// and result files.
package fakerunner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/collectspec/packages/core/arguments"
	"github.com/abdul-hamid-achik/collectspec/packages/runsettings"
)

const (
	// EnvVar switches a test binary into fake runner mode
	EnvVar = "COLLECTSPEC_FAKE_RUNNER"
	// ModeEnvVar selects a misbehaviour, see the Mode constants
	ModeEnvVar = "COLLECTSPEC_FAKE_RUNNER_MODE"

	SampleCollector = "SampleDataCollector"
)

// Modes
const (
	ModeNormal        = ""
	ModeNoAttachments = "no-attachments" // collector loads but writes nothing
	ModeHang          = "hang"           // never exits on its own
	ModeCrash         = "crash"          // exits 3 before running anything
)

// Enabled reports whether the current process should act as the fake runner
func Enabled() bool {
	return os.Getenv(EnvVar) == "1"
}

// Command returns the command that launches the current binary as the runner
func Command() []string {
	return []string{os.Args[0]}
}

// Env returns the environment entries that select fake runner mode
func Env(mode string) []string {
	env := []string{EnvVar + "=1"}
	if mode != "" {
		env = append(env, ModeEnvVar+"="+mode)
	}
	return env
}

type testCase struct {
	name    string
	outcome string
}

const (
	outcomePassed  = "Passed"
	outcomeFailed  = "Failed"
	outcomeSkipped = "Skipped"
)

// assets maps assembly file names to the tests they contain
var assets = map[string][]testCase{
	"SimpleTestProject2.dll": {
		{name: "SampleUnitTestProject2.UnitTest1.PassingTest2", outcome: outcomePassed},
		{name: "SampleUnitTestProject2.UnitTest1.FailingTest2", outcome: outcomeFailed},
		{name: "SampleUnitTestProject2.UnitTest1.SkippingTest2", outcome: outcomeSkipped},
	},
	"AppDomainGetAssembliesTestProject.dll": {
		{name: "AppDomainGetAssembliesTestProject.UnitTest1.TestMethod1", outcome: outcomePassed},
	},
}

type run struct {
	args       arguments.CommandLine
	stdout     io.Writer
	stderr     io.Writer
	resultsDir string
	collector  bool
	mode       string
}

// Main runs the fake runner and returns its exit code
func Main(args []string, stdout, stderr io.Writer) int {
	r := &run{
		args:   arguments.CommandLine(args),
		stdout: stdout,
		stderr: stderr,
		mode:   os.Getenv(ModeEnvVar),
	}
	return r.main()
}

func (r *run) main() int {
	fmt.Fprintln(r.stdout, "Microsoft (R) Test Execution Command Line Tool Version 15.7.0")
	fmt.Fprintln(r.stdout, "Copyright (c) Microsoft Corporation.  All rights reserved.")
	fmt.Fprintln(r.stdout)

	switch r.mode {
	case ModeCrash:
		fmt.Fprintln(r.stderr, "Unhandled Exception: System.InvalidOperationException: fake crash")
		return 3
	case ModeHang:
		time.Sleep(time.Hour)
		return 0
	}

	r.resultsDir, _ = r.args.Value(arguments.ResultsDirectoryFlag)
	if r.resultsDir == "" {
		wd, _ := os.Getwd()
		r.resultsDir = filepath.Join(wd, "TestResults")
	}

	var err error
	r.collector, err = r.collectorRequested()
	if err != nil {
		fmt.Fprintf(r.stderr, "Settings file provided does not conform to required format. %v\r\n", err)
		return 1
	}
	if r.collector && !r.args.Has(arguments.TestAdapterPathFlag) {
		fmt.Fprintf(r.stderr, "Could not find data collector '%s'\r\n", SampleCollector)
		return 1
	}

	if err := r.writeDiagLogs(); err != nil {
		fmt.Fprintf(r.stderr, "Failed to write diagnostic logs: %v\r\n", err)
		return 1
	}

	fmt.Fprintln(r.stdout, "Starting test execution, please wait...")

	if r.collector {
		r.collectorMessage("SessionStarted")
		r.collectorMessage("TestHostLaunched")
	}

	var cases []testCase
	for _, a := range r.assemblies() {
		cases = append(cases, assets[filepath.Base(a)]...)
	}

	attachmentDir := filepath.Join(r.resultsDir, uuid.NewString())
	var passed, failed, skipped int
	for i, tc := range cases {
		if r.collector {
			fmt.Fprintf(r.stdout, "TestCaseStarted : %s\r\n", tc.name)
		}

		switch tc.outcome {
		case outcomePassed:
			passed++
			fmt.Fprintf(r.stdout, "\x1b[32mPassed\x1b[0m   %s\r\n", tc.name)
		case outcomeFailed:
			failed++
			fmt.Fprintf(r.stdout, "\x1b[31mFailed\x1b[0m   %s\r\n", tc.name)
			fmt.Fprintln(r.stdout, "Error Message:\n   Assert.Fail failed.")
		case outcomeSkipped:
			skipped++
			fmt.Fprintf(r.stdout, "\x1b[33mSkipped\x1b[0m  %s\r\n", tc.name)
		}

		if r.collector {
			fmt.Fprintf(r.stdout, "TestCaseEnded : %s\r\n", tc.name)
			if r.mode != ModeNoAttachments {
				name := fmt.Sprintf("testcasefilename%d.txt", i)
				if err := writeFile(filepath.Join(attachmentDir, name), tc.name); err != nil {
					fmt.Fprintf(r.stderr, "Failed to write attachment: %v\r\n", err)
					return 1
				}
			}
		}
	}

	if r.collector {
		r.collectorMessage("my warning")
		fmt.Fprintf(r.stderr, "Data collector '%s' message: Data collector caught an exception of type 'System.Exception': 'my exception'. More details: at SampleDataCollector.SessionEnded().\r\n", SampleCollector)
		r.collectorMessage("SessionEnded")

		if r.mode != ModeNoAttachments {
			runAttachment := filepath.Join(attachmentDir, "filename.txt")
			if err := writeFile(runAttachment, "session"); err != nil {
				fmt.Fprintf(r.stderr, "Failed to write attachment: %v\r\n", err)
				return 1
			}
			fmt.Fprintln(r.stdout)
			fmt.Fprintln(r.stdout, "Attachments:")
			fmt.Fprintf(r.stdout, "  %s\r\n", runAttachment)
		}
		r.collectorMessage("Dispose called.")
	}

	total := passed + failed + skipped
	fmt.Fprintln(r.stdout)
	if total == 0 {
		fmt.Fprintf(r.stdout, "No test is available in %s. Make sure that test discoverer & executors are registered and platform & framework version settings are appropriate and try again.\r\n",
			strings.Join(r.assemblies(), " "))
		return 0
	}

	fmt.Fprintf(r.stdout, "%s\r\n", summary(passed, failed, skipped))
	if failed > 0 {
		fmt.Fprintln(r.stdout, "Test Run Failed.")
		return 1
	}
	fmt.Fprintln(r.stdout, "Test Run Successful.")
	return 0
}

// summary formats the totals line; zero counts are left out, as the real
// runner does.
func summary(passed, failed, skipped int) string {
	line := fmt.Sprintf("Total tests: %d.", passed+failed+skipped)
	for _, c := range []struct {
		label string
		n     int
	}{{"Passed", passed}, {"Failed", failed}, {"Skipped", skipped}} {
		if c.n != 0 {
			line += fmt.Sprintf(" %s: %d.", c.label, c.n)
		}
	}
	return line
}

var switches = []string{
	arguments.ResultsDirectoryFlag,
	arguments.DiagFlag,
	arguments.CollectFlag,
	arguments.TestAdapterPathFlag,
	arguments.SettingsFlag,
	arguments.FrameworkFlag,
	arguments.LoggerFlag,
	arguments.InIsolationFlag,
}

// assemblies returns every argument that is not a known switch. Absolute
// paths start with "/" too, so prefixes are matched against the switch list.
func (r *run) assemblies() []string {
	var out []string
	for _, a := range r.args {
		if !isSwitch(a) {
			out = append(out, a)
		}
	}
	return out
}

func isSwitch(arg string) bool {
	lower := strings.ToLower(arg)
	for _, s := range switches {
		if strings.HasPrefix(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func (r *run) collectorRequested() (bool, error) {
	for _, name := range r.args.Values(arguments.CollectFlag) {
		if name == SampleCollector {
			return true, nil
		}
	}

	settings, ok := r.args.Value(arguments.SettingsFlag)
	if !ok {
		return false, nil
	}
	doc, err := runsettings.ParseFile(settings)
	if err != nil {
		return false, err
	}
	_, found := doc.CollectorByName(SampleCollector)
	return found, nil
}

// writeDiagLogs writes the console log at the /Diag path plus one log per
// child process, named after it the way the runner does.
func (r *run) writeDiagLogs() error {
	diag, ok := r.args.Value(arguments.DiagFlag)
	if !ok {
		return nil
	}

	ext := filepath.Ext(diag)
	base := strings.TrimSuffix(diag, ext)
	stamp := time.Now().Format("06-01-02_15-04-05_00000")

	logs := []string{diag, fmt.Sprintf("%s.host.%s%s", base, stamp, ext)}
	if r.collector {
		logs = append(logs, fmt.Sprintf("%s.datacollector.%s%s", base, stamp, ext))
	}
	for _, l := range logs {
		if err := writeFile(l, "diagnostics"); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) collectorMessage(msg string) {
	fmt.Fprintf(r.stdout, "Data collector '%s' message: %s\r\n", SampleCollector, msg)
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}
