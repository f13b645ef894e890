package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/vsync/internal/output"
)

var pullCmd = &cobra.Command{
	Use:     "pull",
	Short:   "Write Vikunja tasks missing from the vault into the output target",
	Long: `Pull runs the remote-to-vault direction only: tasks on Vikunja that have
no vault line are written into the configured output file or daily note.
Nothing is pushed, deleted or updated on the backend.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.close()

		before := a.cache.Len()
		if _, err := a.processor.Pull(cmd.Context()); err != nil {
			output.Error("pull failed: %v", err)
			return err
		}
		output.Success("Pulled %d new tasks into the vault", a.cache.Len()-before)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pullCmd)
}
