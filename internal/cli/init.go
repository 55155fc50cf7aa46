package cli

import (
	"fmt"

	"github.com/ralph2/kernel/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter .ralph2.yaml",
	Long: `Write a starter .ralph2.yaml in the current directory with the
kernel's documented defaults (system prefix, max iterations, tracker
binary). Fails if a config file already exists.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := config.WriteDefault(".ralph2.yaml"); err != nil {
		return err
	}
	fmt.Println("wrote .ralph2.yaml")
	return nil
}
