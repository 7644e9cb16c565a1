package report

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/invoice-recon/internal/model"
)

// headerVariants maps the spellings seen in the wild to canonical column
// keys. Matching is case-insensitive on the trimmed header text.
var headerVariants = map[string]string{
	"gtin":             "gtin",
	"upc":              "gtin",
	"source code":      "source_code",
	"product name":     "product_name",
	"name":             "product_name",
	"description":      "product_name",
	"brand":            "brand",
	"format":           "format",
	"packaging":        "packaging",
	"category":         "category",
	"source price":     "source_price",
	"quantity":         "quantity",
	"qty":              "quantity",
	"line total":       "line_total",
	"old target price": "old_target_price",
	"new target price": "new_target_price",
	"target price":     "new_target_price",
	"price":            "new_target_price",
	"match type":       "match_type",
	"similarity %":     "similarity",
	"similarity":       "similarity",
	"target code":      "target_code",
	"code":             "target_code",
	"target product":   "target_product",
	"target brand":     "target_brand",
	"target format":    "target_format",
}

// ReadCorrections parses a corrected comparison workbook back into rows.
// Column order is free; columns are located by header name, accepting the
// price column under any of its known spellings.
func ReadCorrections(path string) ([]model.ComparisonRow, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("xlsx: sheet has no header row")
	}

	cols := map[string]int{}
	for j, cell := range sheet.Rows[0].Cells {
		key := strings.ToLower(strings.TrimSpace(cell.String()))
		if canon, ok := headerVariants[key]; ok {
			if _, taken := cols[canon]; !taken {
				cols[canon] = j
			}
		}
	}
	if _, ok := cols["product_name"]; !ok {
		if _, gok := cols["gtin"]; !gok {
			return nil, eris.New("xlsx: no product name or gtin column found")
		}
	}

	var rows []model.ComparisonRow
	for _, row := range sheet.Rows[1:] {
		cells := rowStrings(row)
		if blankRow(cells) {
			continue
		}
		rec := model.ComparisonRow{
			SourceCode:  pick(cells, cols, "source_code"),
			ProductName: pick(cells, cols, "product_name"),
			Brand:       pick(cells, cols, "brand"),
			Format:      pick(cells, cols, "format"),
			Packaging:   pick(cells, cols, "packaging"),
			Category:    pick(cells, cols, "category"),
			TargetCode:  pick(cells, cols, "target_code"),
			MatchType:   model.MatchTypeFromDisplay(pick(cells, cols, "match_type")),
		}
		if gtin, ok := model.NormalizeGTIN(pick(cells, cols, "gtin")); ok {
			rec.GTIN = gtin
		} else {
			rec.GTIN = strings.TrimSpace(pick(cells, cols, "gtin"))
		}
		rec.SourcePrice = parseFloat(pick(cells, cols, "source_price"))
		rec.Quantity = parseFloat(pick(cells, cols, "quantity"))
		rec.LineTotal = parseFloat(pick(cells, cols, "line_total"))
		rec.OldTargetPrice = parseOptionalFloat(pick(cells, cols, "old_target_price"))
		rec.NewTargetPrice = parseOptionalFloat(pick(cells, cols, "new_target_price"))
		if s := pick(cells, cols, "similarity"); s != "" {
			rec.Similarity = int(parseFloat(s))
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func rowStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func pick(cells []string, cols map[string]int, key string) string {
	j, ok := cols[key]
	if !ok || j >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[j])
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

// parseOptionalFloat keeps the blank-versus-zero distinction: an empty cell
// means "no update", a 0 is a real price.
func parseOptionalFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}
