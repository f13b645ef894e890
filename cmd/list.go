package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/vsync/internal/output"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List the tasks the sync cache tracks",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.close()

		tasks := a.cache.Tasks()
		if listJSON {
			return output.JSON(tasks)
		}
		if len(tasks) == 0 {
			output.Info("No tracked tasks. Run a sync first.")
			return nil
		}
		for _, vt := range tasks {
			output.Info("%s", output.VaultTaskLine(vt))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(listCmd)
}
