package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/vsync/internal/output"
	"github.com/marcus/vsync/internal/vikunja"
)

var checkCmd = &cobra.Command{
	Use:     "check",
	Short:   "Verify configuration, vault and backend connectivity",
	GroupID: "maintenance",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.close()
		output.Success("Configuration loaded from %s", cfgPath)
		output.Success("Vault found at %s", a.vault.Root())

		ctx := cmd.Context()
		projects, err := a.client.ListProjects(ctx)
		if err != nil {
			if errors.Is(err, vikunja.ErrUnauthorized) {
				output.Error("token rejected by %s", a.cfg.Vikunja.Host)
			} else {
				output.Error("cannot reach %s: %v", a.cfg.Vikunja.Host, err)
			}
			return err
		}
		output.Success("Connected to %s (%d projects visible)", a.cfg.Vikunja.Host, len(projects))

		found := false
		for _, p := range projects {
			if p.ID == a.cfg.Vikunja.ProjectID {
				output.Success("Default project: %q (id %d)", p.Title, p.ID)
				found = true
				break
			}
		}
		if !found {
			err := fmt.Errorf("project %d not visible to this token", a.cfg.Vikunja.ProjectID)
			output.Error("%v", err)
			return err
		}

		views, err := a.client.ListViews(ctx, a.cfg.Vikunja.ProjectID)
		if err != nil {
			output.Warning("cannot list project views: %v", err)
			return nil
		}
		for _, v := range views {
			if v.ViewKind == "kanban" {
				output.Info("Kanban view %q available (id %d)", v.Title, v.ID)
			}
		}

		output.Success("Tracking %d tasks in the cache", a.cache.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
