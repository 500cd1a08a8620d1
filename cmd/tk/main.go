package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "timekeeper.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tk",
		Short: "Timekeeper: worker hours compliance tracking",
		Long:  "Timekeeper records daily worked hours, times tasks live, and raises alerts for under-logged days.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newWorkerCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newJustifyCmd())
	cmd.AddCommand(newAlertsCmd())
	cmd.AddCommand(newTimerCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tk %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
