// Package scenarios holds the data collection acceptance cases.
//
// Each Scenario is data: the runner combinations it applies to, how to
// prepare the command line, and the summary it must produce. Run drives a
// fixture through prepare, build, invoke and assert.
package scenarios
