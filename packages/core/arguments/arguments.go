// Package arguments builds runner command lines.
//
// Arguments are kept as separate argv elements so paths with spaces need no
// quoting when handed to os/exec. String renders a shell-quoted form for logs
// and dry runs.
package arguments

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

// Runner switches
const (
	ResultsDirectoryFlag = "/ResultsDirectory:"
	DiagFlag             = "/Diag:"
	CollectFlag          = "/Collect:"
	TestAdapterPathFlag  = "/TestAdapterPath:"
	SettingsFlag         = "/Settings:"
	FrameworkFlag        = "/Framework:"
	LoggerFlag           = "/logger:"
	InIsolationFlag      = "/InIsolation"

	// DefaultLogger makes the runner print per-test lines that the
	// output assertions look for.
	DefaultLogger = "console;verbosity=normal"
)

// CommandLine is an ordered list of runner arguments
type CommandLine []string

// Prepare builds the base command line for one or more assemblies. Blank
// optional values are omitted.
func Prepare(assemblies []string, adapterPath, runSettings, framework, inIsolation string) CommandLine {
	cl := make(CommandLine, 0, len(assemblies)+5)
	for _, a := range assemblies {
		if strings.TrimSpace(a) != "" {
			cl = append(cl, a)
		}
	}

	if !isBlank(adapterPath) {
		cl = append(cl, TestAdapterPathFlag+adapterPath)
	}
	if !isBlank(runSettings) {
		cl = append(cl, SettingsFlag+runSettings)
	}
	if !isBlank(framework) {
		cl = append(cl, FrameworkFlag+framework)
	}
	cl = append(cl, LoggerFlag+DefaultLogger)
	if !isBlank(inIsolation) {
		cl = append(cl, inIsolation)
	}
	return cl
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ResultsDirectory returns the /ResultsDirectory switch
func ResultsDirectory(dir string) string {
	return ResultsDirectoryFlag + dir
}

// Diag returns the /Diag switch
func Diag(path string) string {
	return DiagFlag + path
}

// Collect returns the /Collect switch
func Collect(name string) string {
	return CollectFlag + name
}

// TestAdapterPath returns the /TestAdapterPath switch
func TestAdapterPath(dir string) string {
	return TestAdapterPathFlag + dir
}

// InIsolation returns the isolation switch when enabled, "" otherwise
func InIsolation(enabled bool) string {
	if enabled {
		return InIsolationFlag
	}
	return ""
}

// With returns a copy of cl with args appended
func (cl CommandLine) With(args ...string) CommandLine {
	out := make(CommandLine, 0, len(cl)+len(args))
	out = append(out, cl...)
	for _, a := range args {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Args returns the argv elements
func (cl CommandLine) Args() []string {
	return append([]string(nil), cl...)
}

// Has reports whether any argument starts with prefix, case-insensitively
// as the runner treats switches.
func (cl CommandLine) Has(prefix string) bool {
	_, ok := cl.Value(prefix)
	return ok
}

// Value returns what follows prefix in the first matching argument
func (cl CommandLine) Value(prefix string) (string, bool) {
	p := strings.ToLower(prefix)
	for _, a := range cl {
		if strings.HasPrefix(strings.ToLower(a), p) {
			return a[len(prefix):], true
		}
	}
	return "", false
}

// Values returns every value given for prefix, in order
func (cl CommandLine) Values(prefix string) []string {
	p := strings.ToLower(prefix)
	var vals []string
	for _, a := range cl {
		if strings.HasPrefix(strings.ToLower(a), p) {
			vals = append(vals, a[len(prefix):])
		}
	}
	return vals
}

// String renders the command line quoted for a POSIX shell
func (cl CommandLine) String() string {
	return shellquote.Join(cl...)
}

// Parse splits a shell-quoted command string, as found in config files
func Parse(s string) (CommandLine, error) {
	words, err := shellquote.Split(s)
	if err != nil {
		return nil, err
	}
	return CommandLine(words), nil
}
