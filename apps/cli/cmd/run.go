package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/collectspec/packages/assertions"
	"github.com/abdul-hamid-achik/collectspec/packages/core/config"
	"github.com/abdul-hamid-achik/collectspec/packages/core/runner"
	"github.com/abdul-hamid-achik/collectspec/packages/history"
	"github.com/abdul-hamid-achik/collectspec/packages/output"
	"github.com/abdul-hamid-achik/collectspec/packages/scenarios"
)

var runCmd = &cobra.Command{
	Use:   "run [scenario...]",
	Short: "Run data collection scenarios against the test runner",
	Long: `Run the data collection scenarios under every runner/target combination
they apply to. With no arguments every scenario runs.

Examples:
  collectspec run
  collectspec run ExecuteTestsWithDataCollection
  collectspec run --name "*ForNetCore" --runner netcoreapp2.0
  collectspec run --runner-command "dotnet artifacts/vstest.console.dll" --assets ./TestAssets
  collectspec run -o junit --output-file results.xml
  collectspec run --parallel --concurrency 4 --retries 1
  collectspec run --dry-run
  collectspec run --watch`,
	RunE:              runCommand,
	ValidArgsFunction: completeScenarioNames,
}

// completeScenarioNames offers the scenario names not already on the line
func completeScenarioNames(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	seen := make(map[string]bool, len(args))
	for _, a := range args {
		seen[strings.ToLower(a)] = true
	}
	var names []string
	for _, s := range scenarios.All() {
		if !seen[strings.ToLower(s.Name)] && strings.HasPrefix(strings.ToLower(s.Name), strings.ToLower(toComplete)) {
			names = append(names, s.Name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	nameFlag          string
	runnerFlag        []string
	targetFlag        []string
	verboseFlag       int // 0=off, 1=-v, 2=-vv
	quietFlag         bool
	bailFlag          bool
	timeoutFlag       string
	retriesFlag       int
	noColorFlag       bool
	dryRunFlag        bool
	outputFlag        string
	outputFileFlag    string
	parallelFlag      bool
	concurrencyFlag   int
	rateFlag          float64
	watchFlag         bool
	keepResultsFlag   bool
	tempDirFlag       string
	assetsFlag        string
	buildConfigFlag   string
	runnerCommandFlag string
	envFileFlag       string
	historyFlag       string
	labelFlag         string
)

func init() {
	// Selection flags
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only scenarios matching name pattern (leading/trailing * wildcards)")
	runCmd.Flags().StringSliceVar(&runnerFlag, "runner", nil, "Run only under these runner frameworks, e.g. net451,netcoreapp2.0")
	runCmd.Flags().StringSliceVar(&targetFlag, "target", nil, "Run only for these target frameworks")

	// Runner flags
	runCmd.Flags().StringVar(&runnerCommandFlag, "runner-command", getEnvString("COLLECTSPEC_RUNNER", ""), "Command that launches the runner console (env: COLLECTSPEC_RUNNER)")
	runCmd.Flags().StringVar(&assetsFlag, "assets", getEnvString("COLLECTSPEC_ASSETS", ""), "Root of the built test assets (env: COLLECTSPEC_ASSETS)")
	runCmd.Flags().StringVar(&buildConfigFlag, "configuration", getEnvString("COLLECTSPEC_CONFIGURATION", ""), "Build configuration of the test assets (env: COLLECTSPEC_CONFIGURATION)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("COLLECTSPEC_ENV_FILE", ""), "Path to .env file with runner environment (env: COLLECTSPEC_ENV_FILE)")
	runCmd.Flags().StringVar(&tempDirFlag, "temp-dir", getEnvString("COLLECTSPEC_TEMP_DIR", ""), "Directory for per-case results directories (env: COLLECTSPEC_TEMP_DIR)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv for more detail)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("COLLECTSPEC_QUIET", false), "Suppress colored output and the header (env: COLLECTSPEC_QUIET)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("COLLECTSPEC_NO_COLOR", false), "Disable colored output (env: COLLECTSPEC_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("COLLECTSPEC_OUTPUT", ""), "Output format: console, json, junit, tap (env: COLLECTSPEC_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("COLLECTSPEC_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: COLLECTSPEC_OUTPUT_FILE)")
	runCmd.Flags().StringVar(&historyFlag, "history", getEnvString("COLLECTSPEC_HISTORY", ""), "Record the run in this SQLite database (env: COLLECTSPEC_HISTORY)")
	runCmd.Flags().StringVar(&labelFlag, "label", "", "Label stored with the recorded run")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("COLLECTSPEC_BAIL", false), "Stop on first failure (env: COLLECTSPEC_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("COLLECTSPEC_TIMEOUT", ""), "Per-invocation runner timeout (e.g., 90s, 5m) (env: COLLECTSPEC_TIMEOUT)")
	runCmd.Flags().IntVar(&retriesFlag, "retries", getEnvInt("COLLECTSPEC_RETRIES", 0), "Retry failing cases this many times (env: COLLECTSPEC_RETRIES)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Show the command line of each case without running it")
	runCmd.Flags().BoolVarP(&parallelFlag, "parallel", "p", getEnvBool("COLLECTSPEC_PARALLEL", false), "Run cases in parallel (env: COLLECTSPEC_PARALLEL)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("COLLECTSPEC_CONCURRENCY", runner.DefaultConcurrency), "Number of concurrent cases when running in parallel (env: COLLECTSPEC_CONCURRENCY)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", 0, "Maximum case launches per second in parallel mode")
	runCmd.Flags().BoolVar(&keepResultsFlag, "keep-results", getEnvBool("COLLECTSPEC_KEEP_RESULTS", false), "Keep results directories for inspection (env: COLLECTSPEC_KEEP_RESULTS)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch the test assets and config for changes and re-run")

	_ = runCmd.RegisterFlagCompletionFunc("output", cobra.FixedCompletions(output.Formats, cobra.ShellCompDirectiveNoFileComp))
}

// changed reports whether a flag was given on the command line or through
// its environment variable.
func changed(cmd *cobra.Command, name, envKey string) bool {
	if cmd.Flags().Changed(name) {
		return true
	}
	return envKey != "" && os.Getenv(envKey) != ""
}

// loadRunConfig loads the config file and applies command-line overrides
func loadRunConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}
	if fileConfig.IsDefault() {
		slog.Debug("using default configuration", "file", fileConfig.Path())
	}

	overrides := &config.Config{
		RunnerCommand:      runnerCommandFlag,
		TestAssetsPath:     assetsFlag,
		BuildConfiguration: buildConfigFlag,
		TempDir:            tempDirFlag,
		EnvFile:            envFileFlag,
		Scenarios:          args,
		Runners:            runnerFlag,
		Targets:            targetFlag,
		History:            historyFlag,
	}

	if changed(cmd, "output", "COLLECTSPEC_OUTPUT") {
		overrides.Reporters = []string{strings.ToLower(outputFlag)}
	}

	// Boolean flags - only override if explicitly set
	if changed(cmd, "parallel", "COLLECTSPEC_PARALLEL") {
		overrides.Parallel = config.BoolPtr(parallelFlag)
	}
	if changed(cmd, "bail", "COLLECTSPEC_BAIL") {
		overrides.Bail = config.BoolPtr(bailFlag)
	}
	if changed(cmd, "keep-results", "COLLECTSPEC_KEEP_RESULTS") {
		overrides.KeepResults = config.BoolPtr(keepResultsFlag)
	}
	if verboseFlag > 0 {
		overrides.Verbose = config.BoolPtr(true)
	}
	if noColorFlag || quietFlag {
		overrides.NoColor = config.BoolPtr(true)
	}

	cfg := fileConfig.Merge(overrides)

	// Merge treats zero as unset; numbers given on the command line or in
	// the environment apply even when they are zero.
	if timeoutFlag != "" {
		timeout, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout value %q: %w (use format like 90s, 5m)", timeoutFlag, err)
		}
		cfg.Timeout = int(timeout.Milliseconds())
	}
	if changed(cmd, "retries", "COLLECTSPEC_RETRIES") {
		cfg.Retries = retriesFlag
	}
	if changed(cmd, "concurrency", "COLLECTSPEC_CONCURRENCY") {
		cfg.Concurrency = concurrencyFlag
	}
	if changed(cmd, "rate", "") {
		cfg.Rate = rateFlag
	}
	return cfg, nil
}

// selectScenarios resolves scenario names, all scenarios when none are given
func selectScenarios(names []string) ([]scenarios.Scenario, error) {
	if len(names) == 0 {
		return scenarios.All(), nil
	}

	list := make([]scenarios.Scenario, 0, len(names))
	for _, name := range names {
		s, ok := scenarios.ByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q (see 'collectspec list')", name)
		}
		list = append(list, s)
	}
	return list, nil
}

// prepareRun loads the configuration and builds the runner for it
func prepareRun(cmd *cobra.Command, args []string) (*config.Config, *runner.Runner, []scenarios.Scenario, error) {
	cfg, err := loadRunConfig(cmd, args)
	if err != nil {
		return nil, nil, nil, exitWith(ExitConfigError, err)
	}

	list, err := selectScenarios(cfg.Scenarios)
	if err != nil {
		return nil, nil, nil, exitWith(ExitUsageError, err)
	}

	rc, err := cfg.RunnerConfig(slog.Default())
	if err != nil {
		return nil, nil, nil, exitWith(ExitConfigError, err)
	}
	rc.NameFilter = nameFlag
	return cfg, runner.NewRunner(rc), list, nil
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, r, list, err := prepareRun(cmd, args)
	if err != nil {
		return err
	}

	if dryRunFlag {
		return dryRun(cmd.OutOrStdout(), r, list)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := runOnce(ctx, cmd, cfg, r, list)
	if !watchFlag {
		return runExit(result, err)
	}
	return watch(ctx, cmd, cfg, rerunFunc(ctx, cmd, args))
}

// rerunFunc returns the watch callback. Each call reloads the config and
// env file so edits to them take effect; a broken config is reported and
// the watcher keeps going.
func rerunFunc(ctx context.Context, cmd *cobra.Command, args []string) func() {
	return func() {
		cfg, r, list, err := prepareRun(cmd, args)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return
		}
		if _, err := runOnce(ctx, cmd, cfg, r, list); err != nil {
			slog.Warn("watch run", "error", err)
		}
	}
}

func dryRun(w io.Writer, r *runner.Runner, list []scenarios.Scenario) error {
	planned, err := r.Plan(list)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}
	for _, p := range planned {
		fmt.Fprintf(w, "Would run: %s\n  %s\n", p.Name(), p.Command.String())
	}
	fmt.Fprintf(w, "\n%d cases\n", len(planned))
	return nil
}

// runOnce runs the matrix once, reports it and records it in history
func runOnce(ctx context.Context, cmd *cobra.Command, cfg *config.Config, r *runner.Runner, list []scenarios.Scenario) (*runner.RunResult, error) {
	formatters, closeAll, err := newFormatters(cmd.OutOrStdout(), cfg)
	if err != nil {
		return nil, exitWith(ExitUsageError, err)
	}
	defer closeAll()

	if !quietFlag {
		for _, f := range formatters {
			f.FormatHeader(version)
		}
	}

	startedAt := time.Now()
	result, runErr := r.Run(ctx, list)

	for _, f := range formatters {
		if result != nil {
			f.FormatResult(result)
		}
		if runErr != nil {
			f.FormatError(runErr)
		}
		// Flush output for formatters that accumulate results
		if flushable, ok := f.(output.Flushable); ok {
			if err := flushable.Flush(time.Since(startedAt)); err != nil {
				return result, fmt.Errorf("error writing output: %w", err)
			}
		}
	}

	if result != nil && cfg.History != "" {
		recordHistory(ctx, cfg, result, startedAt)
	}

	return result, runErr
}

// newFormatters builds one formatter per configured reporter. A single
// reporter writes to --output-file or stdout; with several, the console
// reporter keeps stdout and the rest write to files in the output directory.
func newFormatters(stdout io.Writer, cfg *config.Config) ([]output.Formatter, func(), error) {
	reporters := cfg.Reporters
	if len(reporters) == 0 {
		reporters = []string{output.FormatConsole}
	}

	var (
		formatters []output.Formatter
		files      []*os.File
	)
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	for _, name := range reporters {
		w := stdout
		path := ""
		switch {
		case len(reporters) == 1 && outputFileFlag != "":
			path = outputFileFlag
		case name != output.FormatConsole && cfg.OutputDir != "":
			path = filepath.Join(cfg.Resolve(cfg.OutputDir), reportFileName(name))
		}
		if path != "" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				closeAll()
				return nil, nil, err
			}
			f, err := os.Create(path)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("cannot create output file: %w", err)
			}
			files = append(files, f)
			w = f
		}

		formatter, err := output.New(strings.ToLower(name), w, cfg.GetVerbose(), cfg.GetNoColor() || path != "")
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		formatters = append(formatters, formatter)
	}

	return formatters, closeAll, nil
}

func reportFileName(format string) string {
	switch format {
	case output.FormatJUnit:
		return "collectspec.xml"
	case output.FormatTAP:
		return "collectspec.tap"
	case output.FormatJSON:
		return "collectspec.json"
	}
	return "collectspec.txt"
}

func recordHistory(ctx context.Context, cfg *config.Config, result *runner.RunResult, startedAt time.Time) {
	path, err := cfg.HistoryPath()
	if err != nil {
		slog.Warn("history database", "error", err)
		return
	}
	store, err := history.Open(path)
	if err != nil {
		slog.Warn("opening history", "error", err)
		return
	}
	defer store.Close()

	// the run context may already be cancelled; record what finished
	id, err := store.Record(context.WithoutCancel(ctx), result, startedAt, labelFlag)
	if err != nil {
		slog.Warn("recording history", "error", err)
		return
	}
	slog.Info("run recorded", "id", id, "history", cfg.History)
}

// runExit maps the outcome of a run onto the process exit code
func runExit(result *runner.RunResult, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	if result == nil {
		// before hooks failed
		return exitWith(ExitHookError, err)
	}
	// err here is an after hook failure; it is printed whatever the code
	if result.Failed > 0 {
		if runnerUnavailable(result) {
			return exitWith(ExitRunnerError, err)
		}
		return exitWith(ExitTestFailure, err)
	}
	if err != nil {
		return exitWith(ExitHookError, err)
	}
	return nil
}

// runnerUnavailable reports whether no case got as far as checking output,
// which means the runner itself could not be used.
func runnerUnavailable(result *runner.RunResult) bool {
	ran := 0
	for _, cr := range result.Results {
		if cr.Skipped {
			continue
		}
		ran++
		if cr.Err == nil || errors.Is(cr.Err, assertions.ErrFailed) {
			return false
		}
	}
	return ran > 0
}

// watch re-runs on changes to the config, env file or test assets until ctx
// is cancelled.
func watch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range watchDirs(cfg) {
		if err := watcher.Add(dir); err != nil {
			slog.Warn("cannot watch directory", "dir", dir, "error", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	// Debounce timer for rapid file changes
	trigger := make(chan string, 1)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if !isWatchedFile(event.Name) {
				continue
			}

			// Debounce: reset timer on each event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case trigger <- name:
				default:
				}
			})

		case name := <-trigger:
			fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running scenarios...\n\n", name)
			rerun()
			fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

// watchDirs lists the config directory and every directory under the
// test assets.
func watchDirs(cfg *config.Config) []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if dir != "" && !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	add(cfg.Dir())
	if cfg.EnvFile != "" {
		add(filepath.Dir(cfg.Resolve(cfg.EnvFile)))
	}

	assets := cfg.Resolve(cfg.TestAssetsPath)
	_ = filepath.WalkDir(assets, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			add(path)
		}
		return nil
	})
	return dirs
}

func isWatchedFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".env") {
		return true
	}
	for _, name := range config.ConfigFilenames {
		if base == name {
			return true
		}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dll", ".exe", ".runsettings":
		return true
	}
	return false
}
