// Package cmd wires the vsync command line interface.
package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	version string
	cfgPath string
)

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "vsync",
	Short: "Bidirectional task sync between a Markdown vault and Vikunja",
	Long: `vsync - Keeps task lines in a Markdown vault and tasks on a Vikunja
instance converged.

Task lines carry their state inline ("- [ ] Title 📅 2024-06-01 #tag
[vikunja_id:: 42]"); vsync reconciles them against the backend using a
last-write-wins rule and a local cache of the last synced state.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("VSYNC_CONFIG"); p != "" {
		return p
	}
	return "vsync.yaml"
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c",
		defaultConfigPath(), "path to the configuration file")
	// Accept underscored flag spellings too, matching the config keys.
	rootCmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "maintenance", Title: "Maintenance Commands:"},
	)
	rootCmd.SetHelpCommandGroupID("maintenance")
	rootCmd.SetCompletionCommandGroupID("maintenance")
}
