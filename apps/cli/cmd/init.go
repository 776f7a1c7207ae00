package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/collectspec/packages/core/config"
	"github.com/abdul-hamid-achik/collectspec/packages/runsettings"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a collectspec configuration",
	Long: `Initialize a collectspec configuration in the current directory.

This creates:
  - collectspec.yaml    - Configuration file with the default settings
  - sample.runsettings  - Run settings enabling the sample data collector

Examples:
  collectspec init
  collectspec init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "collectspec.yaml")
	settingsFile := filepath.Join(cwd, "sample.runsettings")

	if !forceInit {
		for _, f := range []string{configFile, settingsFile} {
			if _, err := os.Stat(f); err == nil {
				return exitWith(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.RunnerCommand = "dotnet vstest.console.dll"
	cfg.History = "collectspec.db"
	cfg.Env = map[string]string{
		"DOTNET_CLI_TELEMETRY_OPTOUT": "1",
	}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := runsettings.New(runsettings.SampleDataCollector()).WriteFile(settingsFile); err != nil {
		return fmt.Errorf("failed to create run settings file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", settingsFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\ncollectspec initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Edit runnerCommand and testAssetsPath, then run 'collectspec run'.\n")

	return nil
}
