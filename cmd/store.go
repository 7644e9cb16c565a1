package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-recon/internal/catalog"
)

// openStore opens the configured catalog backend. The caller owns Close.
func openStore(ctx context.Context) (catalog.Store, error) {
	if err := cfg.Validate("cli"); err != nil {
		return nil, err
	}
	switch cfg.Store.Driver {
	case "sqlite":
		return catalog.NewSQLite(cfg.Store.Path)
	case "postgres":
		return catalog.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// openStoreAt opens a sqlite catalog at an explicit path, for commands that
// take a second database (merge).
func openStoreAt(path string) (catalog.Store, error) {
	return catalog.NewSQLite(path)
}
