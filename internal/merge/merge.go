// Package merge combines one catalog store into another with deterministic
// conflict resolution.
package merge

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-recon/internal/catalog"
	"github.com/sells-group/invoice-recon/internal/model"
)

// Run merges src into dst inside one destination transaction: either the
// whole merge lands or none of it does. The source store is only read.
//
// Products match across stores by GTIN. Matched products keep every
// destination attribute that is already set; source values only fill gaps.
// Mappings match by (supplier, code); on a collision the more recently
// updated price wins, with ties going to the destination.
func Run(ctx context.Context, src, dst catalog.Store) (*model.MergeReport, error) {
	report := &model.MergeReport{}
	err := dst.Transact(ctx, func(tx catalog.Store) error {
		if err := copySuppliers(ctx, src, tx); err != nil {
			return err
		}

		srcProducts, err := src.ListProducts(ctx)
		if err != nil {
			return eris.Wrap(err, "merge: list source products")
		}

		for i := range srcProducts {
			sp := &srcProducts[i]
			dstProduct, err := mergeProduct(ctx, tx, sp, report)
			if err != nil {
				return err
			}
			if err := mergeMappings(ctx, src, tx, sp, dstProduct, report); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "merge")
	}

	zap.L().Info("merge complete",
		zap.Int("products_added", report.ProductsAdded),
		zap.Int("products_merged", report.ProductsMerged),
		zap.Int("mappings_added", report.MappingsAdded),
		zap.Int("mappings_conflicted", report.MappingsConflicted))
	return report, nil
}

func copySuppliers(ctx context.Context, src catalog.Store, tx catalog.Store) error {
	suppliers, err := src.ListSuppliers(ctx)
	if err != nil {
		return eris.Wrap(err, "merge: list source suppliers")
	}
	for _, s := range suppliers {
		if _, err := tx.AddSupplier(ctx, s.ID, s.Name); err != nil {
			return eris.Wrapf(err, "merge: supplier %s", s.ID)
		}
	}
	return nil
}

func mergeProduct(ctx context.Context, tx catalog.Store, sp *model.Product, report *model.MergeReport) (*model.Product, error) {
	if sp.GTIN != "" {
		existing, err := tx.FindProductByGTIN(ctx, sp.GTIN)
		switch {
		case err == nil:
			report.ProductsMerged++
			return fillGaps(ctx, tx, existing, sp)
		case !eris.Is(err, catalog.ErrNotFound):
			return nil, eris.Wrapf(err, "merge: find gtin %s", sp.GTIN)
		}
	}

	created, err := tx.UpsertProduct(ctx, model.ProductAttrs{
		GTIN:      sp.GTIN,
		Name:      sp.Name,
		Brand:     sp.Brand,
		Format:    sp.Format,
		Packaging: sp.Packaging,
		Category:  sp.Category,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "merge: add product %s", sp.Name)
	}
	report.ProductsAdded++
	return created, nil
}

// fillGaps writes source attributes only into destination fields that are
// empty. Populated destination fields stay as they are.
func fillGaps(ctx context.Context, tx catalog.Store, dst, src *model.Product) (*model.Product, error) {
	attrs := model.ProductAttrs{GTIN: dst.GTIN}
	dirty := false
	for _, f := range []struct {
		dst  string
		src  string
		slot *string
	}{
		{dst.Brand, src.Brand, &attrs.Brand},
		{dst.Format, src.Format, &attrs.Format},
		{dst.Packaging, src.Packaging, &attrs.Packaging},
		{dst.Category, src.Category, &attrs.Category},
	} {
		if f.dst == "" && f.src != "" {
			*f.slot = f.src
			dirty = true
		}
	}
	if !dirty {
		return dst, nil
	}
	updated, err := tx.UpsertProduct(ctx, attrs)
	if err != nil {
		return nil, eris.Wrapf(err, "merge: amend product %s", dst.ID)
	}
	return updated, nil
}

func mergeMappings(ctx context.Context, src catalog.Store, tx catalog.Store, sp *model.Product, dstProduct *model.Product, report *model.MergeReport) error {
	mappings, err := src.ListMappings(ctx, sp.ID)
	if err != nil {
		return eris.Wrapf(err, "merge: list mappings for %s", sp.ID)
	}
	for i := range mappings {
		sm := &mappings[i]
		existing, err := tx.FindMapping(ctx, sm.SupplierID, sm.Code)
		switch {
		case eris.Is(err, catalog.ErrNotFound):
			if _, err := tx.UpsertMapping(ctx, dstProduct.ID, sm.SupplierID, sm.Code, nil); err != nil {
				return eris.Wrapf(err, "merge: add mapping %s/%s", sm.SupplierID, sm.Code)
			}
			if err := carryPrice(ctx, tx, sm); err != nil {
				return err
			}
			report.MappingsAdded++
		case err != nil:
			return eris.Wrapf(err, "merge: find mapping %s/%s", sm.SupplierID, sm.Code)
		default:
			report.MappingsConflicted++
			if sourceWins(existing, sm) {
				if err := carryPrice(ctx, tx, sm); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// carryPrice copies the source price with its original timestamp, so a later
// merge in the other direction still sees which write was newest.
func carryPrice(ctx context.Context, tx catalog.Store, sm *model.SupplierMapping) error {
	if sm.Price == nil || sm.PriceUpdatedAt == nil {
		return nil
	}
	if err := tx.SetMappingPrice(ctx, sm.SupplierID, sm.Code, *sm.Price, *sm.PriceUpdatedAt); err != nil {
		return eris.Wrapf(err, "merge: price for %s/%s", sm.SupplierID, sm.Code)
	}
	return nil
}

// sourceWins decides a mapping collision: the newer price_updated_at wins and
// the destination wins ties or when the source has no price history.
func sourceWins(dst, src *model.SupplierMapping) bool {
	if src.PriceUpdatedAt == nil {
		return false
	}
	if dst.PriceUpdatedAt == nil {
		return true
	}
	return src.PriceUpdatedAt.After(*dst.PriceUpdatedAt)
}
