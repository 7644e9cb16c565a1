package report

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/invoice-recon/internal/catalog"
	"github.com/sells-group/invoice-recon/internal/model"
)

// masterBaseHeaders are the fixed product columns of a master catalog sheet.
// Each registered supplier adds a "<id> Code" and "<id> Price" column pair
// after them.
var masterBaseHeaders = []string{"GTIN", "Product Name", "Brand", "Format", "Packaging", "Category"}

// ExportMaster writes the whole catalog to one sheet: a row per product with
// the code and last price per supplier.
func ExportMaster(ctx context.Context, st catalog.Store, path string) error {
	suppliers, err := st.ListSuppliers(ctx)
	if err != nil {
		return eris.Wrap(err, "master: list suppliers")
	}
	products, err := st.ListProducts(ctx)
	if err != nil {
		return eris.Wrap(err, "master: list products")
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Catalog")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}
	header := sheet.AddRow()
	for _, h := range masterBaseHeaders {
		header.AddCell().SetString(h)
	}
	for _, s := range suppliers {
		header.AddCell().SetString(s.ID + " Code")
		header.AddCell().SetString(s.ID + " Price")
	}

	for i := range products {
		p := &products[i]
		mappings, err := st.ListMappings(ctx, p.ID)
		if err != nil {
			return eris.Wrapf(err, "master: mappings for %s", p.ID)
		}
		bySupplier := map[string]*model.SupplierMapping{}
		for j := range mappings {
			bySupplier[mappings[j].SupplierID] = &mappings[j]
		}

		row := sheet.AddRow()
		row.AddCell().SetString(p.GTIN)
		row.AddCell().SetString(p.Name)
		row.AddCell().SetString(p.Brand)
		row.AddCell().SetString(p.Format)
		row.AddCell().SetString(p.Packaging)
		row.AddCell().SetString(p.Category)
		for _, s := range suppliers {
			m := bySupplier[s.ID]
			if m == nil {
				row.AddCell()
				row.AddCell()
				continue
			}
			row.AddCell().SetString(m.Code)
			addOptionalFloat(row, m.Price)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "xlsx: save file")
	}
	return nil
}

// ImportMaster loads a master catalog sheet: upserts every product row and
// every supplier code it carries. Unknown supplier columns are registered on
// the fly so a sheet can introduce a supplier. Returns the number of product
// rows imported.
func ImportMaster(ctx context.Context, st catalog.Store, path string) (int, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return 0, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return 0, eris.New("xlsx: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return 0, eris.New("xlsx: sheet has no header row")
	}

	base := map[string]int{}
	type supplierCols struct {
		id    string
		code  int
		price int
	}
	supplierIdx := map[string]*supplierCols{}
	for j, cell := range sheet.Rows[0].Cells {
		h := strings.TrimSpace(cell.String())
		lower := strings.ToLower(h)
		switch lower {
		case "gtin", "product name", "brand", "format", "packaging", "category":
			base[lower] = j
			continue
		}
		switch {
		case strings.HasSuffix(lower, " code"):
			id := strings.TrimSuffix(lower, " code")
			sc := supplierIdx[id]
			if sc == nil {
				sc = &supplierCols{id: id, code: -1, price: -1}
				supplierIdx[id] = sc
			}
			sc.code = j
		case strings.HasSuffix(lower, " price"):
			id := strings.TrimSuffix(lower, " price")
			sc := supplierIdx[id]
			if sc == nil {
				sc = &supplierCols{id: id, code: -1, price: -1}
				supplierIdx[id] = sc
			}
			sc.price = j
		}
	}
	if _, ok := base["product name"]; !ok {
		return 0, eris.New("master: no product name column found")
	}

	count := 0
	err = st.Transact(ctx, func(tx catalog.Store) error {
		for _, sc := range supplierIdx {
			if _, err := tx.AddSupplier(ctx, sc.id, sc.id); err != nil {
				return eris.Wrapf(err, "master: register supplier %s", sc.id)
			}
		}
		for _, row := range sheet.Rows[1:] {
			cells := rowStrings(row)
			if blankRow(cells) {
				continue
			}
			attrs := model.ProductAttrs{
				Name:      cellAt(cells, base, "product name"),
				Brand:     cellAt(cells, base, "brand"),
				Format:    cellAt(cells, base, "format"),
				Packaging: cellAt(cells, base, "packaging"),
				Category:  cellAt(cells, base, "category"),
			}
			if gtin, ok := model.NormalizeGTIN(cellAt(cells, base, "gtin")); ok {
				attrs.GTIN = gtin
			}
			if attrs.Name == "" && attrs.GTIN == "" {
				continue
			}
			product, err := tx.UpsertProduct(ctx, attrs)
			if err != nil {
				// A row the store rejects (a new GTIN with no name to
				// create under) skips, it never sinks the whole import.
				if eris.Is(err, catalog.ErrValidation) {
					continue
				}
				return eris.Wrapf(err, "master: product %q", attrs.Name)
			}
			for _, sc := range supplierIdx {
				if sc.code < 0 || sc.code >= len(cells) {
					continue
				}
				code := strings.TrimSpace(cells[sc.code])
				if code == "" {
					continue
				}
				var price *float64
				if sc.price >= 0 && sc.price < len(cells) {
					price = parseOptionalFloat(strings.TrimSpace(cells[sc.price]))
				}
				if _, err := tx.UpsertMapping(ctx, product.ID, sc.id, code, price); err != nil {
					return eris.Wrapf(err, "master: mapping %s/%s", sc.id, code)
				}
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func cellAt(cells []string, cols map[string]int, key string) string {
	j, ok := cols[key]
	if !ok || j >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[j])
}
