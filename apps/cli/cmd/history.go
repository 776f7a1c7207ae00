package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/collectspec/packages/core/config"
	"github.com/abdul-hamid-achik/collectspec/packages/history"
)

var (
	historyDBFlag    string
	historyLimitFlag int
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded runs",
	Long: `Show runs recorded with 'collectspec run --history'. With a run ID the
cases of that run are listed.

Examples:
  collectspec history --db results.db
  collectspec history -n 5
  collectspec history 12`,
	Args: cobra.MaximumNArgs(1),
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().StringVar(&historyDBFlag, "db", getEnvString("COLLECTSPEC_HISTORY", ""), "History database (default: history from config) (env: COLLECTSPEC_HISTORY)")
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Number of runs to show")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	db := historyDBFlag
	if db == "" {
		cfg, err := config.LoadConfig(configFlag)
		if err != nil {
			return exitWith(ExitConfigError, err)
		}
		if cfg.History == "" {
			return exitWith(ExitUsageError, fmt.Errorf("no history database configured (use --db)"))
		}
		if db, err = cfg.HistoryPath(); err != nil {
			return exitWith(ExitConfigError, err)
		}
	}

	store, err := history.Open(db)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}
	defer store.Close()

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)

	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return exitWith(ExitUsageError, fmt.Errorf("invalid run ID %q", args[0]))
		}
		cases, err := store.Cases(cmd.Context(), id)
		if err != nil {
			return err
		}
		if len(cases) == 0 {
			return fmt.Errorf("run %d not found", id)
		}

		t.AppendHeader(table.Row{"Scenario", "Runner", "Target", "Status", "Attempts", "Exit", "Duration", "Error"})
		t.SetColumnConfigs([]table.ColumnConfig{
			{Name: "Scenario", AutoMerge: true},
			{Name: "Duration", Align: text.AlignRight},
			{Name: "Error", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		})
		for _, c := range cases {
			exit := "-"
			if c.ExitCode != nil {
				exit = strconv.Itoa(*c.ExitCode)
			}
			t.AppendRow(table.Row{c.Scenario, c.Runner, c.Target, c.Status, c.Attempts, exit, c.Duration.Round(time.Millisecond), c.Error})
		}
		t.Render()
		return nil
	}

	runs, err := store.Recent(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
		return nil
	}

	t.AppendHeader(table.Row{"ID", "Started", "Passed", "Failed", "Skipped", "Duration", "p50", "p95", "Label"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Duration", Align: text.AlignRight},
		{Name: "p50", Align: text.AlignRight},
		{Name: "p95", Align: text.AlignRight},
	})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Passed,
			r.Failed,
			r.Skipped,
			r.Duration.Round(time.Millisecond),
			r.P50.Round(time.Millisecond),
			r.P95.Round(time.Millisecond),
			r.Label,
		})
	}
	t.Render()
	return nil
}
