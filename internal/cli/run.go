package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ralph2/kernel/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a new run from a specification",
	Long: `Start a new ralph2 run, or resume one already in progress for this
project, driving SENSE->ORIENT->DECIDE->ACT until the run reaches DONE,
STUCK, is aborted by a human input, or exhausts its iteration budget.

Example:
  ralph2 run --spec spec.md --max-iterations 30`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("spec", "", "path to the specification file driving this run")
	runCmd.Flags().Int("max-iterations", 0, "maximum number of iterations (0 uses config/default)")

	_ = viper.BindPFlag("run.spec_path", runCmd.Flags().Lookup("spec"))
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nreceived interrupt, winding down after the current iteration...")
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if specPath := viper.GetString("run.spec_path"); specPath != "" {
		cfg.Run.SpecPath = specPath
	}
	if cmd.Flags().Changed("max-iterations") {
		maxIter, _ := cmd.Flags().GetInt("max-iterations")
		cfg.Run.MaxIterations = maxIter
	}

	if err := cfg.ValidateForRun(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	specContent, err := os.ReadFile(cfg.Run.SpecPath)
	if err != nil {
		return fmt.Errorf("failed to read spec file %s: %w", cfg.Run.SpecPath, err)
	}

	r, err := buildRunner(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		os.Exit(1)
	}

	out, runErr := r.Run(ctx, cfg.Run.SpecPath, string(specContent), cfg.Run.MaxIterations)
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", runErr)
		os.Exit(exitCodeFor(nil, runErr))
	}

	fmt.Printf("run %s finished: status=%s iterations=%d\n", out.Run.ID, out.Run.Status, out.IterationCount)
	os.Exit(exitCodeFor(out, nil))
	return nil
}
