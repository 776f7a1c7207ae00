package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/collectspec/packages/scenarios"
)

var listCasesFlag bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the data collection scenarios",
	Long: `List every scenario with the runner/target combinations it runs under.

Examples:
  collectspec list
  collectspec list --cases`,
	Args: cobra.NoArgs,
	RunE: listCommand,
}

func init() {
	listCmd.Flags().BoolVar(&listCasesFlag, "cases", false, "List one line per case")
}

func listCommand(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	for _, s := range scenarios.All() {
		if listCasesFlag {
			for _, ri := range s.Targets() {
				fmt.Fprintf(w, "%s(%s)\n", s.Name, ri)
			}
			continue
		}

		fmt.Fprintf(w, "\n%s:\n", s.Name)
		if s.Description != "" {
			fmt.Fprintf(w, "  %s\n", s.Description)
		}
		fmt.Fprintf(w, "  expects: %s\n", summaryText(s.Summary))
		for _, ri := range s.Targets() {
			fmt.Fprintf(w, "  - %s\n", ri)
		}
	}

	return nil
}

func summaryText(s scenarios.Summary) string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped", s.Passed, s.Failed, s.Skipped)
}
