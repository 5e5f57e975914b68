package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fuels-pipeline/internal/metrics"
	"fuels-pipeline/internal/model"
	"fuels-pipeline/internal/pipeline"
	"fuels-pipeline/internal/store"
	"fuels-pipeline/pkg/utils"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full job chain for one project",
	Long: `Looks up the domain named by --project, then creates, polls and exports every
FastFuels job in order. Artifacts land in <output>/<run id>/. Interrupting the
command cancels the stage in flight and fails the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		stringFlag(cmd, "project", &cfg.ProjectName)
		stringFlag(cmd, "api-key", &cfg.APIKey)
		stringFlag(cmd, "output", &cfg.OutputDir)
		stringFlag(cmd, "db", &cfg.DatabasePath)
		if cmd.Flags().Changed("poll-interval") {
			cfg.Poll.Interval, _ = cmd.Flags().GetDuration("poll-interval")
		}
		if cmd.Flags().Changed("poll-timeout") {
			cfg.Poll.Timeout, _ = cmd.Flags().GetDuration("poll-timeout")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.ValidateCredentials(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runID := uuid.New().String()
		outputDir := utils.NewOutputManager(cfg.OutputDir).RunDir(runID)

		var runStore pipeline.RunStore
		if cfg.DatabasePath != "" {
			db, err := store.Open(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer db.Close()
			if err := db.CreateRun(model.Run{ID: runID, ProjectName: cfg.ProjectName, OutputDir: outputDir}); err != nil {
				return fmt.Errorf("create run: %w", err)
			}
			runStore = db
		}

		m := metrics.New()
		o := pipeline.New(cfg, pipeline.NewClient(cfg, logger), runID, outputDir,
			pipeline.WithTracker(pipeline.NewTracker(runStore, m, logger)),
			pipeline.WithPollObserver(m),
			pipeline.WithLogger(logger),
		)
		err = o.Run(ctx)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "run %s finished in %s\n", runID, o.Session().Elapsed().Round(time.Millisecond))
		if err != nil {
			logger.Error("pipeline failed", zap.Error(err))
			return err
		}
		fmt.Fprintf(out, "artifacts written to %s\n", outputDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("project", "", "Domain name as shown in the FastFuels web app")
	runCmd.Flags().String("api-key", "", "FastFuels API key (or FUELS_API_KEY)")
	runCmd.Flags().String("output", "", "Base directory for run artifacts")
	runCmd.Flags().String("db", "", "Run tracking database path; empty disables tracking")
	runCmd.Flags().Duration("poll-interval", 0, "Fixed delay between job status polls")
	runCmd.Flags().Duration("poll-timeout", 0, "Give up on a job after this long")
}
