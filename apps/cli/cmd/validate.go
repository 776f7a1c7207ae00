package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/collectspec/packages/core/config"
	"github.com/abdul-hamid-achik/collectspec/packages/runsettings"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Validate config and run settings files",
	Long: `Validate collectspec config files against the config schema and check
that run settings files declare at least one named data collector.
With no arguments the config file in the current directory is checked.

Examples:
  collectspec validate
  collectspec validate collectspec.yaml
  collectspec validate sample.runsettings`,
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files := args
	if len(files) == 0 {
		if configFlag != "" {
			files = []string{configFlag}
		} else {
			cfg, err := config.FindAndLoadConfig(".")
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return exitWith(ExitConfigError, fmt.Errorf("validation failed"))
			}
			if cfg.Path() == "" {
				return exitWith(ExitUsageError, fmt.Errorf("no config file found"))
			}
			files = []string{cfg.Path()}
		}
	}

	hasErrors := false
	for _, file := range files {
		if err := validateFile(file); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}

	if hasErrors {
		return exitWith(ExitConfigError, fmt.Errorf("validation failed"))
	}

	return nil
}

func validateFile(path string) error {
	if strings.EqualFold(filepath.Ext(path), ".runsettings") {
		return validateRunSettings(path)
	}
	return config.ValidateFile(path)
}

func validateRunSettings(path string) error {
	doc, err := runsettings.ParseFile(path)
	if err != nil {
		return err
	}

	collectors := doc.Collectors()
	if len(collectors) == 0 {
		return fmt.Errorf("no %s elements", runsettings.DataCollectorSettingName)
	}
	for i, c := range collectors {
		if c.FriendlyName() == "" {
			return fmt.Errorf("%s %d has no %s", runsettings.DataCollectorSettingName, i+1, runsettings.AttrFriendlyName)
		}
	}
	return nil
}
