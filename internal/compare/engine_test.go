package compare

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-recon/internal/catalog"
	"github.com/sells-group/invoice-recon/internal/match"
	"github.com/sells-group/invoice-recon/internal/model"
)

func newCompareStore(t *testing.T) catalog.Store {
	t.Helper()
	st, err := catalog.NewSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))
	_, err = st.AddSupplier(ctx, "colabor", "Colabor")
	require.NoError(t, err)
	return st
}

func price(v float64) *float64 { return &v }

func seedProduct(t *testing.T, st catalog.Store, attrs model.ProductAttrs, code string, p float64) {
	t.Helper()
	ctx := context.Background()
	prod, err := st.UpsertProduct(ctx, attrs)
	require.NoError(t, err)
	_, err = st.UpsertMapping(ctx, prod.ID, "colabor", code, price(p))
	require.NoError(t, err)
}

func TestRunOrderedRowsAndStats(t *testing.T) {
	st := newCompareStore(t)
	ctx := context.Background()

	seedProduct(t, st, model.ProductAttrs{GTIN: "00012345678905", Name: "Whole Chicken"}, "COL-1", 11.00)
	seedProduct(t, st, model.ProductAttrs{Name: "Greek Yogourt Vanille 500g", Format: "500g"}, "COL-99", 5.20)

	items := []model.LineItem{
		{SourceCode: "SRC-1", Name: "Whole Chicken", GTIN: "00012345678905", Price: 12.00, Quantity: 2},
		{SourceCode: "SRC-2", Name: "Greek Yogurt Vanilla 500g", Format: "500g", Price: 5.90, Quantity: 10},
		{SourceCode: "SRC-3", Name: "Mystery Widget", Price: 1.00, Quantity: 5},
	}

	eng := New(st, match.New(st, match.DefaultThreshold), 4)
	report, err := eng.Run(ctx, items, "colabor")
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)

	// Rows keep invoice order.
	require.Equal(t, "SRC-1", report.Rows[0].SourceCode)
	require.Equal(t, "SRC-2", report.Rows[1].SourceCode)
	require.Equal(t, "SRC-3", report.Rows[2].SourceCode)

	require.Equal(t, model.MatchExact, report.Rows[0].MatchType)
	require.Equal(t, model.MatchFuzzy, report.Rows[1].MatchType)
	require.Equal(t, model.MatchNone, report.Rows[2].MatchType)
	require.Nil(t, report.Rows[2].OldTargetPrice)
	require.Nil(t, report.Rows[1].NewTargetPrice)

	s := report.Stats
	require.Equal(t, 3, s.TotalItems)
	require.Equal(t, 1, s.CountExact)
	require.Equal(t, 1, s.CountFuzzy)
	require.Equal(t, 1, s.CountNoMatch)
	// 12*2 + 5.90*10 + 1*5
	require.InDelta(t, 88.00, s.SourceTotal, 0.001)
	// 11*2 + 5.20*10
	require.InDelta(t, 74.00, s.TargetTotal, 0.001)
	// (12-11)*2 + (5.90-5.20)*10
	require.InDelta(t, 9.00, s.PossibleSavings, 0.001)
}

func TestRunSavingsNeverNegative(t *testing.T) {
	st := newCompareStore(t)
	ctx := context.Background()

	// Target is more expensive; no savings for this line.
	seedProduct(t, st, model.ProductAttrs{GTIN: "00012345678905", Name: "Whole Chicken"}, "COL-1", 15.00)

	items := []model.LineItem{
		{SourceCode: "SRC-1", Name: "Whole Chicken", GTIN: "00012345678905", Price: 12.00, Quantity: 2},
	}
	eng := New(st, match.New(st, match.DefaultThreshold), 1)
	report, err := eng.Run(ctx, items, "colabor")
	require.NoError(t, err)
	require.Zero(t, report.Stats.PossibleSavings)
	require.InDelta(t, 30.00, report.Stats.TargetTotal, 0.001)
}

func TestRunUnknownSupplier(t *testing.T) {
	st := newCompareStore(t)
	eng := New(st, match.New(st, match.DefaultThreshold), 1)
	_, err := eng.Run(context.Background(), nil, "nope")
	require.Error(t, err)
	require.True(t, eris.Is(err, ErrUnknownSupplier))
}

func TestRunEmptyInvoice(t *testing.T) {
	st := newCompareStore(t)
	eng := New(st, match.New(st, match.DefaultThreshold), 4)
	report, err := eng.Run(context.Background(), nil, "colabor")
	require.NoError(t, err)
	require.Empty(t, report.Rows)
	require.Zero(t, report.Stats.TotalItems)
}
