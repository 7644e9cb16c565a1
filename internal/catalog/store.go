// Package catalog persists canonical products and per-supplier code/price
// mappings. It is the single writable source of truth; everything the matcher,
// comparison engine, importer, and merge tool see goes through the Store
// interface.
package catalog

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-recon/internal/model"
)

var (
	// ErrNotFound is returned by explicit lookups on missing keys. Upserts
	// never return it; they create on absence.
	ErrNotFound = eris.New("catalog: not found")

	// ErrValidation is returned when a write would violate a catalog
	// invariant, such as creating a product with an empty name.
	ErrValidation = eris.New("catalog: validation failed")
)

// Store is the persistence contract shared by the SQLite and Postgres
// backends. All reads reflect committed state; writes inside Transact become
// visible atomically.
type Store interface {
	// Product lookups.
	FindProductByGTIN(ctx context.Context, gtin string) (*model.Product, error)
	FindProductByID(ctx context.Context, id string) (*model.Product, error)

	// Mapping lookups.
	FindMapping(ctx context.Context, supplierID, code string) (*model.SupplierMapping, error)
	MappingForProduct(ctx context.Context, productID, supplierID string) (*model.SupplierMapping, error)

	// ListCandidates returns every (product, mapping) pair for one supplier
	// in catalog insertion order, the scope of a fuzzy search.
	ListCandidates(ctx context.Context, supplierID string) ([]model.Candidate, error)

	// UpsertProduct matches by GTIN when provided and found, otherwise
	// creates. Non-empty incoming fields overwrite; empty fields leave the
	// stored values untouched. Creating requires a non-empty name.
	UpsertProduct(ctx context.Context, attrs model.ProductAttrs) (*model.Product, error)

	// UpsertMapping matches by (supplierID, code), creating and attaching to
	// productID when absent, reattaching when it points elsewhere. A non-nil
	// price that differs from the stored one replaces price and
	// price_updated_at together; a nil price leaves both untouched.
	UpsertMapping(ctx context.Context, productID, supplierID, code string, price *float64) (*model.SupplierMapping, error)

	// SetMappingPrice writes a price with an explicit version timestamp.
	// Merge uses it to carry the winning side's price_updated_at across
	// stores instead of stamping the wall clock.
	SetMappingPrice(ctx context.Context, supplierID, code string, price float64, updatedAt time.Time) error

	// Enumeration, in insertion order. Used by merge and export.
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListMappings(ctx context.Context, productID string) ([]model.SupplierMapping, error)

	// Supplier registry.
	ListSuppliers(ctx context.Context) ([]model.Supplier, error)
	AddSupplier(ctx context.Context, id, name string) (*model.Supplier, error)

	// Transact runs fn against a store view whose writes commit atomically
	// when fn returns nil and roll back entirely when it returns an error.
	Transact(ctx context.Context, fn func(Store) error) error

	Migrate(ctx context.Context) error
	Close() error
}
