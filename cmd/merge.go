package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-recon/internal/merge"
)

var mergeFromPath string

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge another catalog database into the configured one",
	Long:  "Reads every product and mapping from the source catalog and merges them into the configured destination. Collisions resolve deterministically: newer price wins, destination wins ties and populated attributes.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		src, err := openStoreAt(mergeFromPath)
		if err != nil {
			return eris.Wrap(err, "open source catalog")
		}
		defer src.Close()

		dst, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer dst.Close()

		rep, err := merge.Run(ctx, src, dst)
		if err != nil {
			return eris.Wrap(err, "merge")
		}
		zap.L().Info("merge finished",
			zap.String("from", mergeFromPath),
			zap.Int("products_added", rep.ProductsAdded),
			zap.Int("products_merged", rep.ProductsMerged),
			zap.Int("mappings_added", rep.MappingsAdded),
			zap.Int("mappings_conflicted", rep.MappingsConflicted))
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeFromPath, "from", "", "path to the source sqlite catalog (required)")
	_ = mergeCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(mergeCmd)
}
