package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/collectspec/packages/runsettings"
)

var collectorAttrFlag []string

var runSettingsCmd = &cobra.Command{
	Use:   "runsettings [file]",
	Short: "Generate a run settings file enabling a data collector",
	Long: `Generate a run settings file with a single DataCollector element.
By default the element enables the sample data collector; --attr replaces
or adds attributes. Without a file the document is written to stdout.

Examples:
  collectspec runsettings
  collectspec runsettings sample.runsettings
  collectspec runsettings --attr friendlyName=MyCollector --attr uri=my://collector`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSettingsCommand,
}

func init() {
	runSettingsCmd.Flags().StringArrayVar(&collectorAttrFlag, "attr", nil, "Collector attribute as name=value (repeatable)")
}

func runSettingsCommand(cmd *cobra.Command, args []string) error {
	attrs, err := collectorAttributes(collectorAttrFlag)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}
	doc := runsettings.New(attrs)

	if len(args) == 0 {
		_, err := doc.WriteTo(cmd.OutOrStdout())
		return err
	}

	if err := doc.WriteFile(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", args[0])
	return nil
}

// collectorAttributes overlays name=value pairs on the sample collector
func collectorAttributes(pairs []string) (runsettings.Attributes, error) {
	attrs := runsettings.SampleDataCollector()
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid attribute %q, expected name=value", pair)
		}

		replaced := false
		for i := range attrs {
			if attrs[i].Name == name {
				attrs[i].Value = value
				replaced = true
			}
		}
		if !replaced {
			attrs = append(attrs, runsettings.Attribute{Name: name, Value: value})
		}
	}
	return attrs, nil
}
