package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-recon/internal/compare"
	"github.com/sells-group/invoice-recon/internal/match"
	"github.com/sells-group/invoice-recon/internal/model"
	"github.com/sells-group/invoice-recon/internal/report"
)

var (
	compareItemsPath string
	compareTarget    string
	compareOutPath   string
	compareThreshold int
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare extracted invoice line items against a target supplier",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(compareItemsPath)
		if err != nil {
			return eris.Wrap(err, "read items file")
		}
		var items []model.LineItem
		if err := json.Unmarshal(data, &items); err != nil {
			return eris.Wrap(err, "parse items file")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		threshold := compareThreshold
		if threshold == 0 {
			threshold = cfg.Matching.Threshold
		}
		engine := compare.New(st, match.New(st, threshold), cfg.Compare.MaxConcurrency)
		rep, err := engine.Run(ctx, items, compareTarget)
		if err != nil {
			return eris.Wrap(err, "compare")
		}

		if err := report.WriteComparison(compareOutPath, rep); err != nil {
			return eris.Wrap(err, "write report")
		}
		zap.L().Info("report written",
			zap.String("path", compareOutPath),
			zap.Int("items", rep.Stats.TotalItems),
			zap.Float64("possible_savings", rep.Stats.PossibleSavings))
		return nil
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareItemsPath, "items", "", "path to extracted line items JSON (required)")
	compareCmd.Flags().StringVar(&compareTarget, "target", "", "target supplier id (required)")
	compareCmd.Flags().StringVar(&compareOutPath, "out", "comparison.xlsx", "output report path")
	compareCmd.Flags().IntVar(&compareThreshold, "threshold", 0, "fuzzy match threshold (default from config)")
	_ = compareCmd.MarkFlagRequired("items")
	_ = compareCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(compareCmd)
}
