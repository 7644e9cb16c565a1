package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/invoice-recon/internal/catalog"
	"github.com/sells-group/invoice-recon/internal/model"
)

func price(v float64) *float64 { return &v }

func sampleReport() *model.ComparisonReport {
	return &model.ComparisonReport{
		TargetSupplierID: "colabor",
		Rows: []model.ComparisonRow{
			{
				GTIN: "00012345678905", SourceCode: "SRC-1", ProductName: "Whole Chicken",
				SourcePrice: 12, Quantity: 2, LineTotal: 24,
				OldTargetPrice: price(11), MatchType: model.MatchExact, Similarity: 100,
				TargetCode: "COL-1", TargetProduct: "Whole Chicken",
			},
			{
				SourceCode: "SRC-2", ProductName: "Mystery Widget",
				SourcePrice: 1, Quantity: 5, LineTotal: 5,
				MatchType: model.MatchNone,
			},
		},
		Stats:       model.ComparisonStats{TotalItems: 2, CountExact: 1, CountNoMatch: 1, SourceTotal: 29, TargetTotal: 22, PossibleSavings: 2},
		GeneratedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriteComparisonLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteComparison(path, sampleReport()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet := f.Sheets[0]
	require.Len(t, sheet.Rows, 3)

	header := make([]string, len(sheet.Rows[0].Cells))
	for j, c := range sheet.Rows[0].Cells {
		header[j] = c.String()
	}
	require.Equal(t, Headers, header)

	// New Target Price stays blank on export.
	newPriceCol := 11
	require.Empty(t, sheet.Rows[1].Cells[newPriceCol].String())
	require.Equal(t, "Exact Match", sheet.Rows[1].Cells[12].String())

	// Summary sheet carries the stats.
	require.Contains(t, f.Sheet, "Summary")
}

func TestReadCorrectionsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteComparison(path, sampleReport()))

	rows, err := ReadCorrections(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "00012345678905", rows[0].GTIN)
	require.Equal(t, "SRC-1", rows[0].SourceCode)
	require.Equal(t, model.MatchExact, rows[0].MatchType)
	require.NotNil(t, rows[0].OldTargetPrice)
	require.InDelta(t, 11, *rows[0].OldTargetPrice, 0.001)
	// Blank cell stays nil, not zero.
	require.Nil(t, rows[0].NewTargetPrice)
	require.Equal(t, model.MatchNone, rows[1].MatchType)
}

func TestReadCorrectionsHeaderVariants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "variant.xlsx")
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)

	header := sheet.AddRow()
	for _, h := range []string{"UPC", "Description", "Code", "Price"} {
		header.AddCell().SetString(h)
	}
	row := sheet.AddRow()
	row.AddCell().SetString("00012345678905")
	row.AddCell().SetString("Whole Chicken")
	row.AddCell().SetString("COL-1")
	row.AddCell().SetString("11.50")
	require.NoError(t, f.Save(path))

	rows, err := ReadCorrections(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "00012345678905", rows[0].GTIN)
	require.Equal(t, "Whole Chicken", rows[0].ProductName)
	require.Equal(t, "COL-1", rows[0].TargetCode)
	require.NotNil(t, rows[0].NewTargetPrice)
	require.InDelta(t, 11.50, *rows[0].NewTargetPrice, 0.001)
}

func TestReadCorrectionsNoIdentityColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	sheet.AddRow().AddCell().SetString("Whatever")
	require.NoError(t, f.Save(path))

	_, err = ReadCorrections(path)
	require.Error(t, err)
}

func newReportStore(t *testing.T) catalog.Store {
	t.Helper()
	st, err := catalog.NewSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestMasterExportImportRoundTrip(t *testing.T) {
	src := newReportStore(t)
	ctx := context.Background()

	_, err := src.AddSupplier(ctx, "colabor", "Colabor")
	require.NoError(t, err)
	p, err := src.UpsertProduct(ctx, model.ProductAttrs{GTIN: "00012345678905", Name: "Whole Chicken", Brand: "Olymel"})
	require.NoError(t, err)
	_, err = src.UpsertMapping(ctx, p.ID, "colabor", "COL-1", price(11.25))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "master.xlsx")
	require.NoError(t, ExportMaster(ctx, src, path))

	dst := newReportStore(t)
	n, err := ImportMaster(ctx, dst, path)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := dst.FindProductByGTIN(ctx, "00012345678905")
	require.NoError(t, err)
	require.Equal(t, "Whole Chicken", got.Name)
	require.Equal(t, "Olymel", got.Brand)
	m, err := dst.FindMapping(ctx, "colabor", "COL-1")
	require.NoError(t, err)
	require.NotNil(t, m.Price)
	require.InDelta(t, 11.25, *m.Price, 0.001)
}

func TestImportMasterSkipsUnnamedNewGTIN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.xlsx")
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Catalog")
	require.NoError(t, err)

	header := sheet.AddRow()
	for _, h := range []string{"GTIN", "Product Name", "colabor Code", "colabor Price"} {
		header.AddCell().SetString(h)
	}
	// A new GTIN with no name cannot create a product.
	bad := sheet.AddRow()
	bad.AddCell().SetString("00012345678905")
	bad.AddCell().SetString("")
	bad.AddCell().SetString("COL-1")
	bad.AddCell().SetString("11.25")
	good := sheet.AddRow()
	good.AddCell().SetString("00099999999990")
	good.AddCell().SetString("Whole Chicken")
	good.AddCell().SetString("COL-2")
	good.AddCell().SetString("9.75")
	require.NoError(t, f.Save(path))

	st := newReportStore(t)
	ctx := context.Background()
	n, err := ImportMaster(ctx, st, path)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = st.FindProductByGTIN(ctx, "00012345678905")
	require.Error(t, err)
	_, err = st.FindMapping(ctx, "colabor", "COL-2")
	require.NoError(t, err)
}
