package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-recon/internal/report"
)

var (
	masterImportPath string
	masterExportPath string
)

var masterImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a master catalog XLSX into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := report.ImportMaster(ctx, st, masterImportPath)
		if err != nil {
			return eris.Wrap(err, "import master")
		}
		zap.L().Info("master catalog imported",
			zap.String("path", masterImportPath),
			zap.Int("products", n))
		return nil
	},
}

var masterExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the whole catalog to a master XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := report.ExportMaster(ctx, st, masterExportPath); err != nil {
			return eris.Wrap(err, "export master")
		}
		zap.L().Info("master catalog exported", zap.String("path", masterExportPath))
		return nil
	},
}

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Import and export the master catalog sheet",
}

func init() {
	masterImportCmd.Flags().StringVar(&masterImportPath, "file", "", "path to master catalog XLSX (required)")
	_ = masterImportCmd.MarkFlagRequired("file")
	masterExportCmd.Flags().StringVar(&masterExportPath, "out", "master.xlsx", "output path")
	masterCmd.AddCommand(masterImportCmd)
	masterCmd.AddCommand(masterExportCmd)
	rootCmd.AddCommand(masterCmd)
}
