package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-recon/internal/model"
	"github.com/sells-group/invoice-recon/internal/reconcile"
	"github.com/sells-group/invoice-recon/internal/report"
)

var (
	reconcileFilePath string
	reconcileTarget   string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Apply a corrected comparison report back to the catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		records, err := report.ReadCorrections(reconcileFilePath)
		if err != nil {
			return eris.Wrap(err, "read corrections")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rep, err := reconcile.New(st, reconcile.DefaultConcurrency).Apply(ctx, records, reconcileTarget)
		if err != nil {
			return eris.Wrap(err, "apply corrections")
		}

		for _, out := range rep.Outcomes {
			if out.Status == model.OutcomeRejected {
				fmt.Printf("row %d rejected: %s\n", out.Row, out.Reason)
			}
		}
		zap.L().Info("reconciliation complete",
			zap.String("file", reconcileFilePath),
			zap.Int("accepted", rep.Accepted),
			zap.Int("rejected", rep.Rejected))
		return nil
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileFilePath, "file", "", "path to corrected report XLSX (required)")
	reconcileCmd.Flags().StringVar(&reconcileTarget, "target", "", "target supplier id (required)")
	_ = reconcileCmd.MarkFlagRequired("file")
	_ = reconcileCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(reconcileCmd)
}
