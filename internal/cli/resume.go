package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/ralph2/kernel/internal/config"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a specific run by id",
	Long: `Resume a run that is not currently running (paused, stuck, or
previously aborted), continuing SENSE->ORIENT->DECIDE->ACT from its last
persisted iteration.

Example:
  ralph2 resume --run-id 5f3c1e2a-... --max-iterations 10`,
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)

	resumeCmd.Flags().String("run-id", "", "id of the run to resume (required)")
	resumeCmd.Flags().Int("max-iterations", 0, "maximum number of iterations (0 uses config/default)")
	_ = resumeCmd.MarkFlagRequired("run-id")
}

func runResume(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("max-iterations") {
		maxIter, _ := cmd.Flags().GetInt("max-iterations")
		cfg.Run.MaxIterations = maxIter
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	runID, _ := cmd.Flags().GetString("run-id")

	store, _, err := openStoreForStatus(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		os.Exit(1)
	}

	run, err := store.GetRun(ctx, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		os.Exit(1)
	}
	if run == nil {
		fmt.Fprintf(os.Stderr, "run %s not found\n", runID)
		os.Exit(1)
	}

	r, err := buildRunner(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		os.Exit(1)
	}
	r.ResumeRunID = runID

	out, runErr := r.Run(ctx, run.SpecPath, run.SpecContent, cfg.Run.MaxIterations)
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", runErr)
		os.Exit(exitCodeFor(nil, runErr))
	}

	fmt.Printf("run %s finished: status=%s iterations=%d\n", out.Run.ID, out.Run.Status, out.IterationCount)
	os.Exit(exitCodeFor(out, nil))
	return nil
}
