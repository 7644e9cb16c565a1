package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-recon/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the product catalog",
}

var catalogInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the catalog schema and seed the supplier registry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}
		n, err := catalog.SeedSuppliers(ctx, st, cfg.Suppliers.File)
		if err != nil {
			return eris.Wrap(err, "seed suppliers")
		}
		zap.L().Info("catalog initialized", zap.Int("suppliers", n))
		return nil
	},
}

var catalogStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		products, err := st.ListProducts(ctx)
		if err != nil {
			return eris.Wrap(err, "list products")
		}
		suppliers, err := st.ListSuppliers(ctx)
		if err != nil {
			return eris.Wrap(err, "list suppliers")
		}
		mappings := 0
		withGTIN := 0
		for i := range products {
			if products[i].GTIN != "" {
				withGTIN++
			}
			m, err := st.ListMappings(ctx, products[i].ID)
			if err != nil {
				return eris.Wrap(err, "list mappings")
			}
			mappings += len(m)
		}

		fmt.Printf("Products:  %d (%d with GTIN)\n", len(products), withGTIN)
		fmt.Printf("Mappings:  %d\n", mappings)
		fmt.Printf("Suppliers: %d\n", len(suppliers))
		return nil
	},
}

var supplierCmd = &cobra.Command{
	Use:   "supplier",
	Short: "Manage the supplier registry",
}

var supplierListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered suppliers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		suppliers, err := st.ListSuppliers(ctx)
		if err != nil {
			return eris.Wrap(err, "list suppliers")
		}
		for _, s := range suppliers {
			fmt.Printf("%-16s %s\n", s.ID, s.Name)
		}
		return nil
	},
}

var supplierAddCmd = &cobra.Command{
	Use:   "add <id> <name>",
	Short: "Register a supplier",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		s, err := st.AddSupplier(ctx, args[0], args[1])
		if err != nil {
			return eris.Wrap(err, "add supplier")
		}
		zap.L().Info("supplier registered", zap.String("id", s.ID), zap.String("name", s.Name))
		return nil
	},
}

func init() {
	supplierCmd.AddCommand(supplierListCmd)
	supplierCmd.AddCommand(supplierAddCmd)
	catalogCmd.AddCommand(catalogInitCmd)
	catalogCmd.AddCommand(catalogStatusCmd)
	catalogCmd.AddCommand(supplierCmd)
	rootCmd.AddCommand(catalogCmd)
}
