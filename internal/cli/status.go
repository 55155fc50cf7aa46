package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/ralph2/kernel/internal/config"
	"github.com/ralph2/kernel/internal/kernel"
	"github.com/ralph2/kernel/internal/project"
	"github.com/ralph2/kernel/internal/state"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest run for this project",
	Long: `Show the most recently started run for this project: its status,
iteration count so far, and milestone branch.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, proj, err := openStoreForStatus(cfg)
	if err != nil {
		return err
	}

	run, err := store.LatestRun(ctx)
	if err != nil {
		return fmt.Errorf("failed to load latest run: %w", err)
	}
	if run == nil {
		fmt.Printf("no runs recorded for project %s\n", proj.ID)
		return nil
	}

	iterations, err := store.ListIterations(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("failed to list iterations: %w", err)
	}

	printRun(*run, len(iterations))
	return nil
}

// openStoreForStatus resolves just enough of the project context to open
// the state store read-only, without constructing a full Runner (status
// and history never invoke agents or touch git worktrees).
func openStoreForStatus(cfg *config.Config) (*state.Store, *project.Context, error) {
	repoRoot, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("cli: resolve working directory: %w", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, fmt.Errorf("cli: resolve user home: %w", err)
	}
	proj, err := project.Resolve(repoRoot, cfg.Run.SystemPrefix, home)
	if err != nil {
		return nil, nil, fmt.Errorf("cli: resolve project: %w", err)
	}
	store, err := state.Open(proj.StateDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("cli: open state store: %w", err)
	}
	return store, proj, nil
}

func printRun(run kernel.Run, iterationCount int) {
	fmt.Printf("run:       %s\n", run.ID)
	fmt.Printf("status:    %s\n", run.Status)
	fmt.Printf("spec:      %s\n", run.SpecPath)
	fmt.Printf("started:   %s\n", run.StartedAt.Format("2006-01-02T15:04:05Z07:00"))
	if run.EndedAt != nil {
		fmt.Printf("ended:     %s\n", run.EndedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	if run.MilestoneBranch != nil {
		fmt.Printf("milestone: %s\n", *run.MilestoneBranch)
	}
	if run.RootWorkItemID != nil {
		fmt.Printf("root item: %s\n", *run.RootWorkItemID)
	}
	fmt.Printf("iterations: %d\n", iterationCount)
}
