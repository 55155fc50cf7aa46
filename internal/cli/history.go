package cli

import (
	"context"
	"fmt"

	"github.com/ralph2/kernel/internal/config"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs for this project",
	Long: `List the most recently started runs for this project, most recent
first.

Example:
  ralph2 history --runs 5`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("runs", 10, "maximum number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, proj, err := openStoreForStatus(cfg)
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("runs")
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Printf("no runs recorded for project %s\n", proj.ID)
		return nil
	}

	fmt.Printf("%-38s %-10s %-22s %s\n", "RUN", "STATUS", "STARTED", "SPEC")
	for _, run := range runs {
		fmt.Printf("%-38s %-10s %-22s %s\n",
			run.ID, run.Status, run.StartedAt.Format("2006-01-02T15:04:05Z07:00"), run.SpecPath)
	}

	return nil
}
