package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/abdul-hamid-achik/collectspec/packages/core/runner"
)

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// palette holds the color functions; they honor color.NoColor at call time
type palette struct {
	ok, bad, warn, dim func(a ...any) string
}

func newPalette() palette {
	return palette{
		ok:   color.New(color.FgGreen).SprintFunc(),
		bad:  color.New(color.FgRed).SprintFunc(),
		warn: color.New(color.FgYellow).SprintFunc(),
		dim:  color.New(color.FgCyan).SprintFunc(),
	}
}

// FormatResult prints one line per case that was not filtered out, the
// failed checks beneath it, then the summary table and totals.
func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	p := newPalette()

	fmt.Fprintln(f.writer)
	for _, cr := range result.Results {
		f.caseLine(p, cr)
	}
	fmt.Fprintln(f.writer)

	f.summaryTable(result)
	fmt.Fprintln(f.writer)
	f.totals(p, result)
	fmt.Fprintln(f.writer)
}

func (f *ConsoleFormatter) caseLine(p palette, cr *runner.CaseResult) {
	if cr.Skipped {
		// filtered cases are noise unless asked for
		if f.verbose || cr.SkipReason != runner.SkipFiltered {
			fmt.Fprintf(f.writer, "  %s %s (%s)\n", p.warn("-"), cr.Name(), cr.SkipReason)
		}
		return
	}
	if err := caseError(cr); err != nil {
		fmt.Fprintf(f.writer, "  %s %s %s\n", p.bad("x"), cr.Name(), p.bad("("+err.Error()+")"))
		return
	}

	mark := p.ok("✓")
	if !cr.Passed() {
		mark = p.bad("✗")
	}
	line := fmt.Sprintf("  %s %s %s", mark, cr.Name(), p.dim(fmt.Sprintf("(%dms)", cr.Duration.Milliseconds())))
	if cr.Attempts > 1 {
		line += " " + p.warn(fmt.Sprintf("[%d attempts]", cr.Attempts))
	}
	fmt.Fprintln(f.writer, line)

	if f.verbose {
		fmt.Fprintln(f.writer, "    Command: "+cr.Command)
		if cr.ResultsDir != "" {
			fmt.Fprintln(f.writer, "    Results: "+cr.ResultsDir)
		}
	}

	for _, a := range failedChecks(cr) {
		fmt.Fprintf(f.writer, "    %s %s %s\n", p.bad("→"), a.Subject, a.Operator)
		fmt.Fprintln(f.writer, "      Expected: "+formatValue(a.Expected, 200))
		if f.verbose {
			fmt.Fprintln(f.writer, "      Actual:   "+formatValue(a.Actual, 2000))
		}
		if a.Message != "" {
			fmt.Fprintln(f.writer, "      "+a.Message)
		}
	}
}

func (f *ConsoleFormatter) totals(p palette, result *runner.RunResult) {
	var parts []string
	for _, c := range []struct {
		n     int
		label string
		paint func(a ...any) string
	}{
		{result.Passed, "passed", p.ok},
		{result.Failed, "failed", p.bad},
		{result.Skipped, "skipped", p.warn},
	} {
		if c.n > 0 {
			parts = append(parts, c.paint(fmt.Sprintf("%d %s", c.n, c.label)))
		}
	}
	parts = append(parts, fmt.Sprintf("%d total", result.Passed+result.Failed+result.Skipped))

	fmt.Fprintln(f.writer, "Cases: "+strings.Join(parts, ", "))
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration.Milliseconds())
	if t := result.Timings; t.Count > 0 {
		fmt.Fprintf(f.writer, "Timing: p50 %s, p95 %s, max %s\n", formatDuration(t.P50), formatDuration(t.P95), formatDuration(t.Max))
	}
}

// summaryTable renders one row per executed case
func (f *ConsoleFormatter) summaryTable(result *runner.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(f.writer)
	t.AppendHeader(table.Row{"Scenario", "Runner", "Target", "Isolation", "Duration", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Scenario", AutoMerge: true, WidthMax: 70, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
	})

	for _, cr := range result.Results {
		if cr.Skipped && cr.SkipReason == runner.SkipFiltered {
			continue
		}
		var isolation string
		if cr.Runner.InIsolation {
			isolation = "yes"
		}
		t.AppendRow(table.Row{cr.Scenario, cr.Runner.RunnerFramework, cr.Runner.TargetFramework, isolation, formatDuration(cr.Duration), status(cr)})
	}

	t.AppendFooter(table.Row{"TOTAL", "", "", "", formatDuration(result.Duration), overallStatus(result)})

	style := table.StyleColoredBlackOnGreenWhite
	switch {
	case f.noColor:
		style = table.StyleLight
	case result.Failed > 0:
		style = table.StyleColoredBlackOnRedWhite
	case result.Skipped > 0:
		style = table.StyleColoredBlackOnYellowWhite
	}
	t.SetStyle(style)
	t.Render()
}

func status(r *runner.CaseResult) string {
	switch {
	case r.Skipped:
		return "SKIP"
	case r.Passed():
		return "PASS"
	default:
		return "FAIL"
	}
}

func overallStatus(result *runner.RunResult) string {
	switch {
	case result.Failed > 0:
		return "FAIL"
	case result.Passed == 0:
		return "SKIP"
	default:
		return "PASS"
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}

func (f *ConsoleFormatter) FormatError(err error) {
	fmt.Fprintf(f.writer, "%s %v\n", newPalette().bad("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("collectspec"), version)
}
