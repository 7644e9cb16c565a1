// Package compare runs an extracted invoice against one target supplier's
// catalog and produces the row-per-line comparison report.
package compare

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/invoice-recon/internal/catalog"
	"github.com/sells-group/invoice-recon/internal/match"
	"github.com/sells-group/invoice-recon/internal/model"
)

// DefaultConcurrency bounds the number of line items matched in parallel.
const DefaultConcurrency = 8

// ErrUnknownSupplier is returned when the target supplier is not registered.
var ErrUnknownSupplier = eris.New("compare: unknown target supplier")

// Engine matches invoice lines concurrently and assembles the report in the
// original line order.
type Engine struct {
	store       catalog.Store
	matcher     *match.Matcher
	concurrency int
}

// New returns an Engine using the given matcher. A concurrency below 1 falls
// back to DefaultConcurrency.
func New(store catalog.Store, matcher *match.Matcher, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Engine{store: store, matcher: matcher, concurrency: concurrency}
}

// Run compares every line item against the target supplier. Rows come back in
// input order regardless of which goroutine finished first. One failed lookup
// fails the whole run; partial reports would silently understate totals.
func (e *Engine) Run(ctx context.Context, items []model.LineItem, targetSupplierID string) (*model.ComparisonReport, error) {
	suppliers, err := e.store.ListSuppliers(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "compare: list suppliers")
	}
	known := false
	for _, s := range suppliers {
		if s.ID == targetSupplierID {
			known = true
			break
		}
	}
	if !known {
		return nil, eris.Wrapf(ErrUnknownSupplier, "%q", targetSupplierID)
	}

	start := time.Now()
	rows := make([]model.ComparisonRow, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range items {
		g.Go(func() error {
			res, err := e.matcher.Match(gctx, items[i], targetSupplierID)
			if err != nil {
				return eris.Wrapf(err, "line %d", i+1)
			}
			rows[i] = buildRow(items[i], res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &model.ComparisonReport{
		TargetSupplierID: targetSupplierID,
		Rows:             rows,
		Stats:            computeStats(rows),
		GeneratedAt:      time.Now().UTC(),
	}
	zap.L().Info("comparison complete",
		zap.String("target", targetSupplierID),
		zap.Int("items", report.Stats.TotalItems),
		zap.Int("exact", report.Stats.CountExact),
		zap.Int("fuzzy", report.Stats.CountFuzzy),
		zap.Int("no_match", report.Stats.CountNoMatch),
		zap.Float64("possible_savings", report.Stats.PossibleSavings),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

func buildRow(item model.LineItem, res model.MatchResult) model.ComparisonRow {
	row := model.ComparisonRow{
		GTIN:        item.GTIN,
		SourceCode:  item.SourceCode,
		ProductName: item.Name,
		Brand:       item.Brand,
		Format:      item.Format,
		Packaging:   item.Packaging,
		Category:    item.Category,
		SourcePrice: item.Price,
		Quantity:    item.Quantity,
		LineTotal:   item.LineTotal(),
		MatchType:   res.Type,
		Similarity:  res.Similarity,
	}
	if res.Type == model.MatchNone {
		return row
	}
	row.OldTargetPrice = res.Mapping.Price
	row.TargetCode = res.Mapping.Code
	row.TargetProduct = res.Product.Name
	row.TargetBrand = res.Product.Brand
	row.TargetFormat = res.Product.Format
	return row
}

// computeStats aggregates the rows. Savings only count lines where the target
// is cheaper; paying more elsewhere never offsets a saving.
func computeStats(rows []model.ComparisonRow) model.ComparisonStats {
	var stats model.ComparisonStats
	stats.TotalItems = len(rows)
	for _, row := range rows {
		switch row.MatchType {
		case model.MatchExact:
			stats.CountExact++
		case model.MatchFuzzy:
			stats.CountFuzzy++
		default:
			stats.CountNoMatch++
		}
		stats.SourceTotal += row.LineTotal
		if row.OldTargetPrice == nil {
			continue
		}
		tgt := *row.OldTargetPrice
		stats.TargetTotal += tgt * row.Quantity
		if diff := (row.SourcePrice - tgt) * row.Quantity; diff > 0 {
			stats.PossibleSavings += diff
		}
	}
	return stats
}
