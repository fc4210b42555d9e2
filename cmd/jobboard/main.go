package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	noColor  bool
	userFlag string
)

var rootCmd = &cobra.Command{
	Use:           "jobboard",
	Short:         "Job board server and command-line client",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", !colorByDefault(), "disable colored output (default when NO_COLOR is set or stdout is not a terminal)")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "act as this user id (default: auth.user or JOBBOARD_USER)")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(jobsCmd, watchCmd, profileCmd, messagesCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
