package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag    string
	logLevelCount int
	logJSONFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "collectspec",
	Short: "Acceptance checks for test runner data collection.",
	Long: `collectspec drives a test runner console through the data collection
scenarios and checks what it prints and what it leaves on disk: the run
summary, collector messages, attachments and diagnostic logs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger(logLevelCount, logJSONFlag))
	},
}

// Execute runs the CLI and exits with the code the command asked for
func Execute(v, bt string) {
	version = v
	buildTime = bt
	os.Exit(execute(rootCmd, os.Args[1:]))
}

func execute(root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", exitErr.Err)
		}
		return exitErr.Code
	}

	fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	return ExitUsageError
}

// newLogger returns the diagnostic logger. Logs go to stderr so that
// machine-readable reports on stdout stay clean.
func newLogger(verbosity int, json bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", getEnvString("COLLECTSPEC_CONFIG", ""), "Path to config file (env: COLLECTSPEC_CONFIG)")
	rootCmd.PersistentFlags().CountVar(&logLevelCount, "log", "Diagnostic logging on stderr (--log for info, --log --log for debug)")
	rootCmd.PersistentFlags().BoolVar(&logJSONFlag, "log-json", getEnvBool("COLLECTSPEC_LOG_JSON", false), "Emit diagnostic logs as JSON (env: COLLECTSPEC_LOG_JSON)")

	rootCmd.AddCommand(runCmd, listCmd, validateCmd, runSettingsCmd, historyCmd, initCmd, versionCmd)
}

// envOr returns the parsed value of the environment variable key, or def
// when it is unset, empty or does not parse.
func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func getEnvString(key, def string) string {
	return envOr(key, def, func(s string) (string, error) { return s, nil })
}

// getEnvBool accepts the strconv.ParseBool spellings plus yes/no
func getEnvBool(key string, def bool) bool {
	return envOr(key, def, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "yes", "y", "on":
			return true, nil
		case "no", "n", "off":
			return false, nil
		}
		return strconv.ParseBool(s)
	})
}

func getEnvInt(key string, def int) int {
	return envOr(key, def, strconv.Atoi)
}
