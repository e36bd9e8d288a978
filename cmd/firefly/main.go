package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "firefly",
		Short: "Team task tracker with assignment notifications",
		Long: `Firefly keeps teams, projects and tasks, and notifies workers when tasks
assigned to them are created, updated or completed.

Settings are read from flags, FIREFLY_ environment variables and config.yaml,
in that order of precedence.`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
