package match

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-recon/internal/catalog"
	"github.com/sells-group/invoice-recon/internal/model"
)

func newMatchStore(t *testing.T) catalog.Store {
	t.Helper()
	st, err := catalog.NewSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))
	_, err = st.AddSupplier(ctx, "colabor", "Colabor")
	require.NoError(t, err)
	_, err = st.AddSupplier(ctx, "mayrand", "Mayrand")
	require.NoError(t, err)
	return st
}

func price(v float64) *float64 { return &v }

func TestMatchExactByGTIN(t *testing.T) {
	st := newMatchStore(t)
	ctx := context.Background()

	p, err := st.UpsertProduct(ctx, model.ProductAttrs{GTIN: "00012345678905", Name: "Whole Chicken"})
	require.NoError(t, err)
	_, err = st.UpsertMapping(ctx, p.ID, "colabor", "COL-1", price(12.50))
	require.NoError(t, err)

	m := New(st, DefaultThreshold)
	res, err := m.Match(ctx, model.LineItem{GTIN: "00012345678905", Name: "whatever"}, "colabor")
	require.NoError(t, err)
	require.Equal(t, model.MatchExact, res.Type)
	require.Equal(t, 100, res.Similarity)
	require.Equal(t, "COL-1", res.Mapping.Code)
}

func TestMatchGTINKnownButUnmappedSkipsFuzzy(t *testing.T) {
	st := newMatchStore(t)
	ctx := context.Background()

	// The GTIN product is only mapped at mayrand.
	p, err := st.UpsertProduct(ctx, model.ProductAttrs{GTIN: "00012345678905", Name: "Greek Yogurt Vanilla 500g"})
	require.NoError(t, err)
	_, err = st.UpsertMapping(ctx, p.ID, "mayrand", "MAY-1", price(4.10))
	require.NoError(t, err)

	// A textually identical product is mapped at colabor, but the GTIN
	// already told us which product this is.
	other, err := st.UpsertProduct(ctx, model.ProductAttrs{Name: "Greek Yogurt Vanilla 500g"})
	require.NoError(t, err)
	_, err = st.UpsertMapping(ctx, other.ID, "colabor", "COL-7", price(4.25))
	require.NoError(t, err)

	m := New(st, DefaultThreshold)
	res, err := m.Match(ctx, model.LineItem{GTIN: "00012345678905", Name: "Greek Yogurt Vanilla 500g"}, "colabor")
	require.NoError(t, err)
	require.Equal(t, model.MatchNone, res.Type)
	require.Nil(t, res.Product)
}

func TestMatchFuzzyFallback(t *testing.T) {
	st := newMatchStore(t)
	ctx := context.Background()

	p, err := st.UpsertProduct(ctx, model.ProductAttrs{Name: "Greek Yogourt Vanille 500g", Format: "500g"})
	require.NoError(t, err)
	_, err = st.UpsertMapping(ctx, p.ID, "colabor", "COL-99", price(5.20))
	require.NoError(t, err)

	m := New(st, DefaultThreshold)
	item := model.LineItem{Name: "Greek Yogurt Vanilla 500g", Format: "500g", Price: 5.90, Quantity: 10}
	res, err := m.Match(ctx, item, "colabor")
	require.NoError(t, err)
	require.Equal(t, model.MatchFuzzy, res.Type)
	require.GreaterOrEqual(t, res.Similarity, 60)
	require.LessOrEqual(t, res.Similarity, 99)
	require.Equal(t, "COL-99", res.Mapping.Code)
}

func TestMatchBelowThreshold(t *testing.T) {
	st := newMatchStore(t)
	ctx := context.Background()

	p, err := st.UpsertProduct(ctx, model.ProductAttrs{Name: "Greek Yogourt Vanille 500g", Format: "500g"})
	require.NoError(t, err)
	_, err = st.UpsertMapping(ctx, p.ID, "colabor", "COL-99", price(5.20))
	require.NoError(t, err)

	m := New(st, DefaultThreshold)
	item := model.LineItem{Name: "Frozen Beef Patties", Brand: "Cardinal", Format: "4x2 kg", Packaging: "case"}
	res, err := m.Match(ctx, item, "colabor")
	require.NoError(t, err)
	require.Equal(t, model.MatchNone, res.Type)
	require.Equal(t, 0, res.Similarity)
}

func TestMatchUnknownGTINFallsBackToFuzzy(t *testing.T) {
	st := newMatchStore(t)
	ctx := context.Background()

	p, err := st.UpsertProduct(ctx, model.ProductAttrs{Name: "Greek Yogourt Vanille 500g", Format: "500g"})
	require.NoError(t, err)
	_, err = st.UpsertMapping(ctx, p.ID, "colabor", "COL-99", price(5.20))
	require.NoError(t, err)

	m := New(st, DefaultThreshold)
	item := model.LineItem{GTIN: "00099999999990", Name: "Greek Yogurt Vanilla 500g", Format: "500g"}
	res, err := m.Match(ctx, item, "colabor")
	require.NoError(t, err)
	require.Equal(t, model.MatchFuzzy, res.Type)
	require.Equal(t, "COL-99", res.Mapping.Code)
}

func TestMatchTieBreaksOnNewerPrice(t *testing.T) {
	st := newMatchStore(t)
	ctx := context.Background()

	a, err := st.UpsertProduct(ctx, model.ProductAttrs{Name: "Cheddar Cheese Block", Format: "2 kg"})
	require.NoError(t, err)
	_, err = st.UpsertMapping(ctx, a.ID, "colabor", "COL-OLD", price(20))
	require.NoError(t, err)
	b, err := st.UpsertProduct(ctx, model.ProductAttrs{Name: "Cheddar Cheese Block", Format: "2 kg"})
	require.NoError(t, err)
	_, err = st.UpsertMapping(ctx, b.ID, "colabor", "COL-NEW", price(19))
	require.NoError(t, err)

	require.NoError(t, st.SetMappingPrice(ctx, "colabor", "COL-OLD", 20, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, st.SetMappingPrice(ctx, "colabor", "COL-NEW", 19, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))

	m := New(st, DefaultThreshold)
	res, err := m.Match(ctx, model.LineItem{Name: "Cheddar Cheese Block", Format: "2 kg"}, "colabor")
	require.NoError(t, err)
	require.Equal(t, model.MatchFuzzy, res.Type)
	require.Equal(t, "COL-NEW", res.Mapping.Code)
}
