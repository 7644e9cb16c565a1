package merge

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-recon/internal/catalog"
	"github.com/sells-group/invoice-recon/internal/model"
)

func newStore(t *testing.T, name string) catalog.Store {
	t.Helper()
	st, err := catalog.NewSQLite(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func price(v float64) *float64 { return &v }

func seed(t *testing.T, st catalog.Store, attrs model.ProductAttrs, supplierID, code string, p *float64, at time.Time) *model.Product {
	t.Helper()
	ctx := context.Background()
	_, err := st.AddSupplier(ctx, supplierID, supplierID)
	require.NoError(t, err)
	prod, err := st.UpsertProduct(ctx, attrs)
	require.NoError(t, err)
	_, err = st.UpsertMapping(ctx, prod.ID, supplierID, code, nil)
	require.NoError(t, err)
	if p != nil {
		require.NoError(t, st.SetMappingPrice(ctx, supplierID, code, *p, at))
	}
	return prod
}

func TestRunAddsUnknownProductsAndMappings(t *testing.T) {
	src := newStore(t, "src.db")
	dst := newStore(t, "dst.db")
	ctx := context.Background()

	seed(t, src, model.ProductAttrs{GTIN: "00012345678905", Name: "Whole Chicken"},
		"colabor", "COL-1", price(11), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	report, err := Run(ctx, src, dst)
	require.NoError(t, err)
	require.Equal(t, 1, report.ProductsAdded)
	require.Zero(t, report.ProductsMerged)
	require.Equal(t, 1, report.MappingsAdded)
	require.Zero(t, report.MappingsConflicted)

	p, err := dst.FindProductByGTIN(ctx, "00012345678905")
	require.NoError(t, err)
	require.Equal(t, "Whole Chicken", p.Name)
	m, err := dst.FindMapping(ctx, "colabor", "COL-1")
	require.NoError(t, err)
	require.InDelta(t, 11, *m.Price, 0.001)
	// The source timestamp travels with the price.
	require.True(t, m.PriceUpdatedAt.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRunNewerPriceWins(t *testing.T) {
	src := newStore(t, "src.db")
	dst := newStore(t, "dst.db")
	ctx := context.Background()

	seed(t, dst, model.ProductAttrs{GTIN: "00012345678905", Name: "Whole Chicken"},
		"colabor", "COL-1", price(10), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	seed(t, src, model.ProductAttrs{GTIN: "00012345678905", Name: "Whole Chicken"},
		"colabor", "COL-1", price(12), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	report, err := Run(ctx, src, dst)
	require.NoError(t, err)
	require.Equal(t, 1, report.ProductsMerged)
	require.Equal(t, 1, report.MappingsConflicted)
	require.Zero(t, report.MappingsAdded)

	m, err := dst.FindMapping(ctx, "colabor", "COL-1")
	require.NoError(t, err)
	require.InDelta(t, 12, *m.Price, 0.001)
	require.True(t, m.PriceUpdatedAt.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRunDestinationWinsWhenNewerOrEqual(t *testing.T) {
	src := newStore(t, "src.db")
	dst := newStore(t, "dst.db")
	ctx := context.Background()

	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	seed(t, dst, model.ProductAttrs{GTIN: "00012345678905", Name: "Whole Chicken"},
		"colabor", "COL-1", price(10), at)
	seed(t, src, model.ProductAttrs{GTIN: "00012345678905", Name: "Whole Chicken"},
		"colabor", "COL-1", price(12), at)

	_, err := Run(ctx, src, dst)
	require.NoError(t, err)

	m, err := dst.FindMapping(ctx, "colabor", "COL-1")
	require.NoError(t, err)
	require.InDelta(t, 10, *m.Price, 0.001)
}

func TestRunFillsEmptyAttributesOnly(t *testing.T) {
	src := newStore(t, "src.db")
	dst := newStore(t, "dst.db")
	ctx := context.Background()

	seed(t, dst, model.ProductAttrs{GTIN: "00012345678905", Name: "Whole Chicken", Brand: "Olymel"},
		"colabor", "COL-1", nil, time.Time{})
	seed(t, src, model.ProductAttrs{GTIN: "00012345678905", Name: "Whole Chicken", Brand: "Flamingo", Format: "1.5 kg"},
		"mayrand", "MAY-1", nil, time.Time{})

	_, err := Run(ctx, src, dst)
	require.NoError(t, err)

	p, err := dst.FindProductByGTIN(ctx, "00012345678905")
	require.NoError(t, err)
	// Brand was set on both sides; destination keeps its value.
	require.Equal(t, "Olymel", p.Brand)
	// Format was empty in the destination; source fills it.
	require.Equal(t, "1.5 kg", p.Format)
}

func TestRunNoGTINAlwaysInserts(t *testing.T) {
	src := newStore(t, "src.db")
	dst := newStore(t, "dst.db")
	ctx := context.Background()

	seed(t, dst, model.ProductAttrs{Name: "House Blend Coffee"}, "colabor", "COL-5", nil, time.Time{})
	seed(t, src, model.ProductAttrs{Name: "House Blend Coffee"}, "mayrand", "MAY-5", nil, time.Time{})

	report, err := Run(ctx, src, dst)
	require.NoError(t, err)
	require.Equal(t, 1, report.ProductsAdded)

	products, err := dst.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
}

// catalogState flattens a store into comparable maps: products keyed by GTIN,
// mappings keyed by supplier/code with the owning product's GTIN.
func catalogState(t *testing.T, st catalog.Store) (map[string]model.ProductAttrs, map[string]string) {
	t.Helper()
	ctx := context.Background()

	products := map[string]model.ProductAttrs{}
	mappings := map[string]string{}
	list, err := st.ListProducts(ctx)
	require.NoError(t, err)
	for _, p := range list {
		products[p.GTIN] = model.ProductAttrs{
			Name: p.Name, Brand: p.Brand, Format: p.Format,
			Packaging: p.Packaging, Category: p.Category,
		}
		ms, err := st.ListMappings(ctx, p.ID)
		require.NoError(t, err)
		for _, m := range ms {
			key := m.SupplierID + "/" + m.Code
			val := p.GTIN
			if m.Price != nil {
				val += "|" + strconv.FormatFloat(*m.Price, 'f', 2, 64)
				val += "|" + m.PriceUpdatedAt.UTC().Format(time.RFC3339)
			}
			mappings[key] = val
		}
	}
	return products, mappings
}

func TestRunCommutativeWithoutGTINCollisions(t *testing.T) {
	ctx := context.Background()

	mkA := func() catalog.Store {
		a := newStore(t, "a.db")
		seed(t, a, model.ProductAttrs{GTIN: "00012345678905", Name: "Whole Chicken", Brand: "Olymel"},
			"colabor", "COL-1", price(12), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
		seed(t, a, model.ProductAttrs{GTIN: "00055555555558", Name: "Tofu Ferme"},
			"mayrand", "MAY-1", price(4), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
		return a
	}
	mkC := func() catalog.Store {
		c := newStore(t, "c.db")
		seed(t, c, model.ProductAttrs{GTIN: "00077777777770", Name: "House Blend Coffee"},
			"gfs", "GFS-1", price(7), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
		return c
	}
	mkDst := func(name string) catalog.Store {
		d := newStore(t, name)
		seed(t, d, model.ProductAttrs{GTIN: "00012345678905", Name: "Whole Chicken"},
			"colabor", "COL-1", price(10), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		return d
	}

	first := mkDst("b1.db")
	_, err := Run(ctx, mkA(), first)
	require.NoError(t, err)
	_, err = Run(ctx, mkC(), first)
	require.NoError(t, err)

	second := mkDst("b2.db")
	_, err = Run(ctx, mkC(), second)
	require.NoError(t, err)
	_, err = Run(ctx, mkA(), second)
	require.NoError(t, err)

	productsA, mappingsA := catalogState(t, first)
	productsB, mappingsB := catalogState(t, second)
	require.Equal(t, productsA, productsB)
	require.Equal(t, mappingsA, mappingsB)

	// The carried source timestamp resolved the conflict the same way in
	// both orders.
	m, err := second.FindMapping(ctx, "colabor", "COL-1")
	require.NoError(t, err)
	require.InDelta(t, 12, *m.Price, 0.001)
	require.True(t, m.PriceUpdatedAt.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRunCopiesSuppliers(t *testing.T) {
	src := newStore(t, "src.db")
	dst := newStore(t, "dst.db")
	ctx := context.Background()

	_, err := src.AddSupplier(ctx, "gfs", "GFS")
	require.NoError(t, err)

	_, err = Run(ctx, src, dst)
	require.NoError(t, err)

	suppliers, err := dst.ListSuppliers(ctx)
	require.NoError(t, err)
	require.Len(t, suppliers, 1)
	require.Equal(t, "gfs", suppliers[0].ID)
}
