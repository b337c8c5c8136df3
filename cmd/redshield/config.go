package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hpclab/redshield/pkg/comm"
	"github.com/hpclab/redshield/pkg/erasure"
	"github.com/hpclab/redshield/pkg/job"
	"github.com/hpclab/redshield/pkg/kvtree"
	"github.com/hpclab/redshield/pkg/redundancy"
)

var configFile string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect redundancy configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load a configuration file and report per-descriptor status",
	Long: `Validate loads a YAML redundancy configuration, builds the descriptor
table as a single local rank, and prints each descriptor's resolved
settings. Descriptors referencing a store not given with --store (by
default only the system temporary directory is registered) report as
disabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configFile == "" {
			return fmt.Errorf("a configuration file is required (-f)")
		}

		cfg, err := kvtree.LoadYAML(configFile)
		if err != nil {
			return err
		}

		comms, err := comm.NewWorld(1)
		if err != nil {
			return err
		}
		world := comms[0]

		stores := flagStores
		if len(stores) == 0 {
			stores = []string{os.TempDir()}
		}
		descs := make([]job.StoreDescriptor, len(stores))
		for i, s := range stores {
			descs[i] = job.StoreDescriptor{Name: s, Enabled: true, Comm: world}
		}

		ctx, err := job.New(job.Config{
			World:  world,
			Stores: job.NewStoreSet(descs),
			Groups: job.NewGroupSet([]job.GroupDescriptor{{Name: job.GroupNode, Comm: world}}),
		})
		if err != nil {
			return err
		}

		table, buildErr := redundancy.BuildTable(ctx, erasure.NewLocal(), cfg)
		defer table.Free()

		for i := 0; i < table.Len(); i++ {
			d := table.Get(i)
			status := "enabled"
			if !d.Enabled {
				status = "disabled"
			}
			fmt.Printf("descriptor %d: %s type=%s interval=%d store=%s\n",
				d.Index, status, d.CopyType, d.Interval, d.StoreName)
		}

		if buildErr != nil {
			return buildErr
		}
		return nil
	},
}

func init() {
	configValidateCmd.Flags().StringVarP(&configFile, "file", "f", "", "configuration file to validate")
	configCmd.AddCommand(configValidateCmd)
}
