package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/vsync/internal/output"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Run one full reconciliation between vault and Vikunja",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.close()

		if _, err := a.processor.Exec(cmd.Context()); err != nil {
			output.Error("sync failed: %v", err)
			return err
		}
		output.Success("Sync finished (%d tasks tracked)", a.cache.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
