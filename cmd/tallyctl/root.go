package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/tally/internal/ctl"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	url     string
	timeout time.Duration
}

var rootCmd = &cobra.Command{
	Use:   "tallyctl",
	Short: "Operate a running tally service",
	Long:  "tallyctl lists ledgers, triggers reloads, runs commands and edits\nthe settings file of a tally service.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.url, "url", "http://localhost:9080", "Base URL of the service")
	f.DurationVar(&rootFlags.timeout, "timeout", 2*time.Minute, "HTTP request timeout")

	rootCmd.AddCommand(ledgersCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(standingsCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.Version = version
}

func client() *ctl.Client {
	return ctl.NewClient(rootFlags.url, rootFlags.timeout)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
