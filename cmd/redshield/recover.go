package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hpclab/redshield/pkg/comm"
	"github.com/hpclab/redshield/pkg/erasure"
	"github.com/hpclab/redshield/pkg/job"
	"github.com/hpclab/redshield/pkg/redundancy"
)

var recoverCmd = &cobra.Command{
	Use:   "recover <hidden-dataset-dir>",
	Short: "Rebuild a dataset's files from its redundancy artifacts",
	Long: `Recover rebuilds missing or damaged files of one dataset from the
redundancy artifacts in its hidden directory. It runs as a single local
rank, which covers node-local schemes; multi-rank recovery is driven by
the library inside the restarted job.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, pipeline, err := localContext(args[0])
		if err != nil {
			return err
		}
		if err := pipeline.Recover(ctx, filepath.Clean(args[0])); err != nil {
			return err
		}
		fmt.Println("recovered", args[0])
		return nil
	},
}

var unapplyCmd = &cobra.Command{
	Use:   "unapply <hidden-dataset-dir>",
	Short: "Remove a dataset's redundancy artifacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, pipeline, err := localContext(args[0])
		if err != nil {
			return err
		}
		if err := pipeline.Unapply(ctx, filepath.Clean(args[0])); err != nil {
			return err
		}
		fmt.Println("removed artifacts under", args[0])
		return nil
	},
}

// localContext builds a single-rank job context whose store registry
// covers the given directory, honoring any --store flags.
func localContext(dir string) (*job.Context, *redundancy.Pipeline, error) {
	comms, err := comm.NewWorld(1)
	if err != nil {
		return nil, nil, err
	}
	world := comms[0]

	stores := flagStores
	if len(stores) == 0 {
		// with no explicit tier, treat the directory's root as the store
		stores = []string{storeRootFor(dir)}
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
		return nil, nil, err
	}
	return ctx, &redundancy.Pipeline{Engine: erasure.NewLocal()}, nil
}

// storeRootFor walks up from the hidden dataset directory to the tier
// root: <store>/<user>/scr.<jobid>/.scr/scr.dataset.<id> has the store
// four levels up. Falls back to the directory itself.
func storeRootFor(dir string) string {
	dir = filepath.Clean(dir)
	root := dir
	for i := 0; i < 4; i++ {
		parent := filepath.Dir(root)
		if parent == root {
			return dir
		}
		root = parent
	}
	return root
}
