package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/vsync/internal/output"
)

var reindexCmd = &cobra.Command{
	Use:     "reindex",
	Short:   "Rebuild the task cache from a fresh vault scan",
	Long: `Reindex discards the cache and rebuilds it from the vault. Every
discovered task line must already carry a [vikunja_id:: n] marker; run a
sync first if the vault holds unlinked tasks.`,
	GroupID: "maintenance",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.close()

		if err := a.processor.Reindex(cmd.Context()); err != nil {
			output.Error("reindex failed: %v", err)
			return err
		}
		output.Success("Cache rebuilt, %d tasks tracked", a.cache.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
