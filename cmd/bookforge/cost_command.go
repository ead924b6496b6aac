package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"bookforge/internal/cost"
)

func newCostCommand() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "cost [job-file]",
		Short: "Show cumulative generation cost across runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveOutputDir(args, outputDir)
			if err != nil {
				return err
			}

			store := cost.NewStore(filepath.Join(dir, cost.SummaryFileName))
			summary, err := store.Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if summary.TotalRuns == 0 {
				fmt.Fprintln(out, "No completed runs recorded.")
				return nil
			}

			fmt.Fprintf(out, "Cumulative cost: $%.4f over %d runs\n", summary.CumulativeCostUSD, summary.TotalRuns)
			if summary.LastRun != nil {
				fmt.Fprintf(out, "Last run: %s ($%.4f) at %s\n",
					summary.LastRun.BookID, summary.LastRun.CostUSD,
					summary.LastRun.CompletedAt.Local().Format(time.DateTime))
			}

			rows := make([]table.Row, 0, len(summary.Runs))
			for _, run := range summary.Runs {
				rows = append(rows, table.Row{
					run.BookID,
					fmt.Sprintf("$%.4f", run.CostUSD),
					run.CompletedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(out, renderTable(table.Row{"Book", "Cost", "Completed"}, rows, 2))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "output", "Output root holding the cumulative cost file")
	return cmd
}
