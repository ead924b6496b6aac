package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bookforge/internal/config"
	"bookforge/internal/logging"
	"bookforge/internal/pipeline"
	"bookforge/internal/registry"
)

func newRunCommand() *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   "run <job-file>",
		Short: "Execute the publication pipeline for a job file",
		Long: `Run executes the content, cover, and assembly stages for the book
described by the job file, then writes the final manifest.

With --resume, stages whose artifacts already exist are skipped, so an
interrupted run picks up where it stopped. Without --resume, any prior
state for the book identifier is discarded and every stage re-executes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			if err != nil {
				return err
			}

			reg, err := registry.Open(cfg.Output.Dir)
			if err != nil {
				return err
			}
			defer reg.Close()

			orch, err := pipeline.New(cfg, logger, pipeline.WithRegistry(reg))
			if err != nil {
				return err
			}

			manifest, err := orch.Run(cmd.Context(), resume)
			if err != nil {
				var stageErr *pipeline.StageError
				if errors.As(err, &stageErr) {
					fmt.Fprintf(cmd.ErrOrStderr(),
						"Stage %q failed; completed artifacts are preserved.\nResume with: bookforge run --resume %s\n",
						stageErr.Stage, args[0])
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Completed %q by %s\n", manifest.Title, manifest.Author)
			fmt.Fprintf(out, "Manifest: %s\n", pipeline.NewPaths(cfg).Manifest)
			fmt.Fprintf(out, "Run cost: $%.4f\n", manifest.Cost.TotalCostUSD)
			if !manifest.QualityCheck.Passed {
				for _, warning := range manifest.QualityCheck.Warnings {
					fmt.Fprintf(out, "Quality warning: %s\n", warning)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&resume, "resume", false, "Resume a previous run, skipping completed stages")
	return cmd
}
