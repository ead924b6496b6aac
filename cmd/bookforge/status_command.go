package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"bookforge/internal/registry"
)

func newStatusCommand() *cobra.Command {
	var outputDir string
	var limit int

	cmd := &cobra.Command{
		Use:   "status [job-file]",
		Short: "Show recorded pipeline runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveOutputDir(args, outputDir)
			if err != nil {
				return err
			}

			reg, err := registry.Open(dir)
			if err != nil {
				return err
			}
			defer reg.Close()

			runs, err := reg.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			rows := make([]table.Row, 0, len(runs))
			for _, run := range runs {
				status := run.Status
				if run.Status == registry.StatusFailed && run.FailedStage != "" {
					status = fmt.Sprintf("%s (%s)", run.Status, run.FailedStage)
				}
				rows = append(rows, table.Row{
					run.BookID,
					run.Title,
					status,
					fmt.Sprintf("$%.4f", run.CostUSD),
					run.StartedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(),
				renderTable(table.Row{"Book", "Title", "Status", "Cost", "Started"}, rows, 4))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "output", "Output root holding the run registry")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	return cmd
}
