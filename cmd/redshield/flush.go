package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hpclab/redshield/pkg/flush"
)

var flushID int

var flushCmd = &cobra.Command{
	Use:   "flush <dataset-dir> <destination-dir>",
	Short: "Copy an encoded dataset to a slower tier",
	Long: `Flush copies a dataset directory from node-local cache to a slower
tier, typically the parallel file system. The copy runs through the
async flush engine and this command waits for it to finish.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := flush.NewFlusher()
		defer f.Stop()

		if err := f.Start(flushID, args[0], args[1]); err != nil {
			return err
		}
		if err := f.Wait(flushID); err != nil {
			return err
		}
		fmt.Printf("flushed %s to %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	flushCmd.Flags().IntVar(&flushID, "id", 0, "dataset id for the transfer")
	rootCmd.AddCommand(flushCmd)
}
