package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hpclab/redshield/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	flagVerbose bool
	flagStores  []string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "redshield",
	Short: "Redshield - checkpoint redundancy tooling",
	Long: `Redshield encodes checkpoint datasets into fault-tolerant form on
node-local storage and rebuilds them after failures.

This tool drives the single-rank paths: rebuilding or removing the
redundancy artifacts of a discovered dataset directory, and validating
redundancy configuration files.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := log.InfoLevel
		if flagVerbose {
			level = log.DebugLevel
		}
		log.Init(log.Config{Level: level})
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Redshield version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringSliceVar(&flagStores, "store", nil, "storage tier path (repeatable)")

	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(unapplyCmd)
	rootCmd.AddCommand(configCmd)
}
