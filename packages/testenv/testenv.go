// Package testenv describes where test assets live and which runner/target
// framework combination a case runs under.
package testenv

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/collectspec/packages/core/arguments"
)

// Framework monikers used by the scenario data sources
const (
	DesktopRunnerFramework = "net451"
	CoreRunnerFramework    = "netcoreapp2.0"
	DesktopTargetFramework = "net451"
	CoreTargetFramework    = "netcoreapp2.0"

	DefaultBuildConfiguration = "Debug"
)

// RunnerInfo is one runner/target combination a scenario is run under
type RunnerInfo struct {
	RunnerFramework string
	TargetFramework string
	InIsolation     bool
}

// InIsolationValue returns the isolation switch for the command line
func (ri RunnerInfo) InIsolationValue() string {
	return arguments.InIsolation(ri.InIsolation)
}

// IsCoreRunner reports whether the runner itself runs on .NET Core
func (ri RunnerInfo) IsCoreRunner() bool {
	return strings.HasPrefix(ri.RunnerFramework, "netcoreapp")
}

func (ri RunnerInfo) String() string {
	s := fmt.Sprintf("Runner=%s,Target=%s", ri.RunnerFramework, ri.TargetFramework)
	if ri.InIsolation {
		s += ",InIsolation"
	}
	return s
}

// NetFullTargets lists the combinations that target the desktop framework
func NetFullTargets() []RunnerInfo {
	return []RunnerInfo{
		{RunnerFramework: DesktopRunnerFramework, TargetFramework: DesktopTargetFramework, InIsolation: true},
		{RunnerFramework: CoreRunnerFramework, TargetFramework: DesktopTargetFramework},
	}
}

// NetCoreTargets lists the combinations that target .NET Core
func NetCoreTargets() []RunnerInfo {
	return []RunnerInfo{
		{RunnerFramework: DesktopRunnerFramework, TargetFramework: CoreTargetFramework, InIsolation: true},
		{RunnerFramework: CoreRunnerFramework, TargetFramework: CoreTargetFramework},
	}
}

// Environment locates test assets for a single case
type Environment struct {
	TestAssetsPath     string
	BuildConfiguration string
	RunnerFramework    string
	TargetFramework    string
	InIsolation        bool
}

// For returns a copy of e set up for the given runner combination
func (e Environment) For(ri RunnerInfo) Environment {
	e.RunnerFramework = ri.RunnerFramework
	e.TargetFramework = ri.TargetFramework
	e.InIsolation = ri.InIsolation
	return e
}

// RunnerInfo returns the runner combination e is set up for
func (e Environment) RunnerInfo() RunnerInfo {
	return RunnerInfo{
		RunnerFramework: e.RunnerFramework,
		TargetFramework: e.TargetFramework,
		InIsolation:     e.InIsolation,
	}
}

func (e Environment) buildConfiguration() string {
	if e.BuildConfiguration == "" {
		return DefaultBuildConfiguration
	}
	return e.BuildConfiguration
}

// AssetPath returns the path of a built test asset for the target framework
func (e Environment) AssetPath(name string) string {
	return e.AssetPathFor(name, e.TargetFramework)
}

// AssetPathFor returns <assets>/<project>/bin/<config>/<framework>/<name>
func (e Environment) AssetPathFor(name, framework string) string {
	project := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(e.TestAssetsPath, project, "bin", e.buildConfiguration(), framework, name)
}

// AssetPaths resolves several assets for the target framework
func (e Environment) AssetPaths(names ...string) []string {
	paths := make([]string, 0, len(names))
	for _, n := range names {
		paths = append(paths, e.AssetPath(n))
	}
	return paths
}

// ExtensionsPath returns the build output of an extension project for the
// runner framework, suitable for /TestAdapterPath.
func (e Environment) ExtensionsPath(project string) string {
	project = strings.TrimSuffix(project, filepath.Ext(project))
	return filepath.Join(e.TestAssetsPath, project, "bin", e.buildConfiguration(), e.RunnerFramework)
}

// FrameworkArgValue returns the /Framework value for the target framework
func (e Environment) FrameworkArgValue() string {
	return FrameworkArgValue(e.TargetFramework)
}

// FrameworkArgValue converts a target framework moniker into the
// framework name the runner expects:
//
//	net451        -> .NETFramework,Version=v4.5.1
//	netcoreapp2.0 -> .NETCoreApp,Version=v2.0
//
// Unknown monikers are returned unchanged.
func FrameworkArgValue(tfm string) string {
	switch {
	case strings.HasPrefix(tfm, "netcoreapp"):
		return ".NETCoreApp,Version=v" + strings.TrimPrefix(tfm, "netcoreapp")
	case strings.HasPrefix(tfm, "netstandard"):
		return ".NETStandard,Version=v" + strings.TrimPrefix(tfm, "netstandard")
	case strings.HasPrefix(tfm, "net") && isDigits(tfm[3:]):
		digits := tfm[3:]
		return ".NETFramework,Version=v" + strings.Join(strings.Split(digits, ""), ".")
	}
	return tfm
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
