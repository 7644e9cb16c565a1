// Package reconcile applies corrected comparison rows back to the catalog:
// product upserts, mapping upserts, and versioned price updates.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/invoice-recon/internal/catalog"
	"github.com/sells-group/invoice-recon/internal/model"
)

// DefaultConcurrency bounds parallel record validation. Writes are always
// serialized in one transaction.
const DefaultConcurrency = 8

// Importer applies correction batches to one catalog store.
type Importer struct {
	store       catalog.Store
	concurrency int
}

// New returns an Importer. A concurrency below 1 falls back to
// DefaultConcurrency.
func New(store catalog.Store, concurrency int) *Importer {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Importer{store: store, concurrency: concurrency}
}

// verdict is the validation result for one record before any write happens.
type verdict struct {
	reject bool
	reason string
	gtin   string
}

// Apply runs a correction batch against the target supplier. Records are
// validated in parallel, then applied in input order inside one transaction,
// so records naming the same mapping resolve last-one-wins. A rejected record
// never aborts the batch; an infrastructure failure rolls the whole batch
// back.
func (im *Importer) Apply(ctx context.Context, records []model.ComparisonRow, targetSupplierID string) (*model.ImportReport, error) {
	verdicts := make([]verdict, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)
	for i := range records {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			verdicts[i] = validate(records[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "reconcile: validate batch")
	}

	report := &model.ImportReport{Outcomes: make([]model.ImportOutcome, len(records))}
	err := im.store.Transact(ctx, func(tx catalog.Store) error {
		for i, rec := range records {
			out := model.ImportOutcome{
				Row:        i + 1,
				SourceCode: rec.SourceCode,
				TargetCode: rec.TargetCode,
			}
			if verdicts[i].reject {
				out.Status = model.OutcomeRejected
				out.Reason = verdicts[i].reason
				report.Outcomes[i] = out
				continue
			}
			applied, err := im.applyRecord(ctx, tx, rec, verdicts[i].gtin, targetSupplierID)
			if err != nil {
				if !eris.Is(err, catalog.ErrValidation) {
					return err
				}
				out.Status = model.OutcomeRejected
				out.Reason = eris.Cause(err).Error()
				report.Outcomes[i] = out
				continue
			}
			out.Status = model.OutcomeAccepted
			out.ProductCreated = applied.productCreated
			out.PriceUpdated = applied.priceUpdated
			report.Outcomes[i] = out
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: apply batch")
	}

	for _, out := range report.Outcomes {
		if out.Status == model.OutcomeAccepted {
			report.Accepted++
		} else {
			report.Rejected++
		}
	}
	zap.L().Info("reconciliation import complete",
		zap.String("target", targetSupplierID),
		zap.Int("records", len(records)),
		zap.Int("accepted", report.Accepted),
		zap.Int("rejected", report.Rejected))
	return report, nil
}

func validate(rec model.ComparisonRow) verdict {
	gtin, gtinOK := model.NormalizeGTIN(rec.GTIN)
	if !gtinOK {
		return verdict{reject: true, reason: fmt.Sprintf("invalid gtin %q", rec.GTIN)}
	}
	if gtin == "" && strings.TrimSpace(rec.ProductName) == "" {
		return verdict{reject: true, reason: "no product identity: gtin and product name both empty"}
	}
	if rec.NewTargetPrice != nil && *rec.NewTargetPrice < 0 {
		return verdict{reject: true, reason: fmt.Sprintf("negative price %.2f", *rec.NewTargetPrice)}
	}
	if rec.Quantity < 0 {
		return verdict{reject: true, reason: fmt.Sprintf("negative quantity %.2f", rec.Quantity)}
	}
	return verdict{gtin: gtin}
}

type applied struct {
	productCreated bool
	priceUpdated   bool
}

func (im *Importer) applyRecord(ctx context.Context, tx catalog.Store, rec model.ComparisonRow, gtin, supplierID string) (applied, error) {
	var res applied

	product, created, err := im.resolveProduct(ctx, tx, rec, gtin, supplierID)
	if err != nil {
		return res, err
	}
	res.productCreated = created

	code := strings.TrimSpace(rec.TargetCode)
	if code == "" {
		// Attribute-only correction: nothing to map or price.
		return res, nil
	}

	var before *float64
	if existing, err := tx.FindMapping(ctx, supplierID, code); err == nil {
		before = existing.Price
	} else if !eris.Is(err, catalog.ErrNotFound) {
		return res, err
	}

	mapping, err := tx.UpsertMapping(ctx, product.ID, supplierID, code, rec.NewTargetPrice)
	if err != nil {
		return res, err
	}
	res.priceUpdated = rec.NewTargetPrice != nil && (before == nil || *before != *mapping.Price)
	return res, nil
}

// resolveProduct finds the product a record refers to: by GTIN first, then by
// the target mapping the record names, and only then by creating a new
// product. Reusing the mapping's product keeps repeated imports of the same
// GTIN-less record idempotent.
func (im *Importer) resolveProduct(ctx context.Context, tx catalog.Store, rec model.ComparisonRow, gtin, supplierID string) (*model.Product, bool, error) {
	attrs := model.ProductAttrs{
		GTIN:      gtin,
		Name:      strings.TrimSpace(rec.ProductName),
		Brand:     strings.TrimSpace(rec.Brand),
		Format:    strings.TrimSpace(rec.Format),
		Packaging: strings.TrimSpace(rec.Packaging),
		Category:  strings.TrimSpace(rec.Category),
	}

	if gtin != "" {
		_, err := tx.FindProductByGTIN(ctx, gtin)
		existed := err == nil
		if err != nil && !eris.Is(err, catalog.ErrNotFound) {
			return nil, false, err
		}
		p, err := tx.UpsertProduct(ctx, attrs)
		if err != nil {
			return nil, false, err
		}
		return p, !existed, nil
	}

	code := strings.TrimSpace(rec.TargetCode)
	if code != "" {
		mapping, err := tx.FindMapping(ctx, supplierID, code)
		switch {
		case err == nil:
			p, err := tx.FindProductByID(ctx, mapping.ProductID)
			if err != nil {
				return nil, false, err
			}
			return im.amend(ctx, tx, p, attrs)
		case !eris.Is(err, catalog.ErrNotFound):
			return nil, false, err
		}
	}

	// validate guarantees a name for every GTIN-less record, so creation
	// always carries one.
	p, err := tx.UpsertProduct(ctx, attrs)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func (im *Importer) amend(ctx context.Context, tx catalog.Store, p *model.Product, attrs model.ProductAttrs) (*model.Product, bool, error) {
	attrs.GTIN = p.GTIN
	if p.GTIN != "" {
		updated, err := tx.UpsertProduct(ctx, attrs)
		if err != nil {
			return nil, false, err
		}
		return updated, false, nil
	}
	// Amending an existing product needs a GTIN to address it; a GTIN-less
	// product reached through its mapping is reused as is.
	return p, false, nil
}
