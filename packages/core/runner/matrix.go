package runner

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/collectspec/packages/core/arguments"
	"github.com/abdul-hamid-achik/collectspec/packages/fixture"
	"github.com/abdul-hamid-achik/collectspec/packages/scenarios"
	"github.com/abdul-hamid-achik/collectspec/packages/testenv"
)

// Case is one scenario paired with one runner combination
type Case struct {
	Scenario scenarios.Scenario
	Runner   testenv.RunnerInfo
}

func (c Case) Name() string {
	return c.Scenario.Name + "(" + c.Runner.String() + ")"
}

// Expand pairs every scenario with each of its targets, keeping scenario
// order and then target order.
func Expand(list []scenarios.Scenario) []Case {
	var cases []Case
	for _, s := range list {
		for _, ri := range s.Targets() {
			cases = append(cases, Case{Scenario: s, Runner: ri})
		}
	}
	return cases
}

// Cases returns the cases this runner would run, after filtering
func (r *Runner) Cases(list []scenarios.Scenario) []Case {
	var out []Case
	for _, c := range Expand(list) {
		if r.shouldRun(c) {
			out = append(out, c)
		}
	}
	return out
}

func (r *Runner) shouldRun(c Case) bool {
	if r.config.NameFilter != "" {
		if !matchesPattern(c.Scenario.Name, r.config.NameFilter) {
			return false
		}
	}

	if len(r.config.RunnerFilter) > 0 && !hasAny(c.Runner.RunnerFramework, r.config.RunnerFilter) {
		return false
	}

	if len(r.config.TargetFilter) > 0 && !hasAny(c.Runner.TargetFramework, r.config.TargetFilter) {
		return false
	}

	return true
}

// matchesPattern supports a leading and/or trailing '*' wildcard
func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	if pattern[0] == '*' && pattern[len(pattern)-1] == '*' && len(pattern) > 1 {
		return strings.Contains(name, pattern[1:len(pattern)-1])
	}

	if pattern[0] == '*' {
		return strings.HasSuffix(name, pattern[1:])
	}

	if pattern[len(pattern)-1] == '*' {
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}

	return name == pattern
}

func hasAny(value string, filters []string) bool {
	for _, f := range filters {
		if strings.EqualFold(value, f) {
			return true
		}
	}
	return false
}

// PlannedCase is a case together with the command line it would run
type PlannedCase struct {
	Case
	Command arguments.CommandLine
}

// Plan prepares every case that passes the filters without invoking the
// runner. Files written while preparing are removed before returning.
func (r *Runner) Plan(list []scenarios.Scenario) ([]PlannedCase, error) {
	var planned []PlannedCase
	for _, c := range r.Cases(list) {
		f := fixture.New(fixture.WithPathProvider(r.paths), fixture.WithLogger(r.logger))
		req, err := c.Scenario.Prepare(r.config.Environment.For(c.Runner), f)
		if err != nil {
			_ = f.Cleanup()
			return nil, fmt.Errorf("preparing %s: %w", c.Name(), err)
		}
		cl := f.Arguments(req)
		if err := f.Cleanup(); err != nil {
			return nil, err
		}
		command := append(arguments.CommandLine(nil), r.config.Command...)
		planned = append(planned, PlannedCase{Case: c, Command: append(command, cl...)})
	}
	return planned, nil
}
