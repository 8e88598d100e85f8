package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.design/x/hotkey/mainthread"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "relayout",
	Short:         "Convert text typed in the wrong keyboard layout",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(configCmd)
}

// The global hotkey needs the process main thread on macOS, so the command
// tree runs on a secondary goroutine.
func main() {
	mainthread.Init(func() {
		if err := rootCmd.Execute(); err != nil {
			printError("%v", err)
			os.Exit(1)
		}
	})
}
