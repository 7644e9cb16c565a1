// Package report renders comparison reports to XLSX and reads corrected
// reports and master catalog sheets back in.
package report

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/invoice-recon/internal/model"
)

// Headers is the comparison sheet header row, in column order. Readers match
// on these names, so the order and spelling are part of the file contract.
var Headers = []string{
	"GTIN",
	"Source Code",
	"Product Name",
	"Brand",
	"Format",
	"Packaging",
	"Category",
	"Source Price",
	"Quantity",
	"Line Total",
	"Old Target Price",
	"New Target Price",
	"Match Type",
	"Similarity %",
	"Target Code",
	"Target Product",
	"Target Brand",
	"Target Format",
}

// WriteComparison renders a comparison report to path. The New Target Price
// column is always written empty; it is the write-back slot a reviewer fills
// in before reconciliation.
func WriteComparison(path string, rep *model.ComparisonReport) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Comparison")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Headers {
		header.AddCell().SetString(h)
	}

	for i := range rep.Rows {
		writeRow(sheet.AddRow(), &rep.Rows[i])
	}

	if err := addSummary(f, rep); err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "xlsx: save file")
	}
	return nil
}

func writeRow(row *xlsx.Row, r *model.ComparisonRow) {
	row.AddCell().SetString(r.GTIN)
	row.AddCell().SetString(r.SourceCode)
	row.AddCell().SetString(r.ProductName)
	row.AddCell().SetString(r.Brand)
	row.AddCell().SetString(r.Format)
	row.AddCell().SetString(r.Packaging)
	row.AddCell().SetString(r.Category)
	row.AddCell().SetFloat(r.SourcePrice)
	row.AddCell().SetFloat(r.Quantity)
	row.AddCell().SetFloat(r.LineTotal)
	addOptionalFloat(row, r.OldTargetPrice)
	row.AddCell() // New Target Price stays blank on export.
	row.AddCell().SetString(r.MatchType.Display())
	if r.MatchType == model.MatchNone {
		row.AddCell()
	} else {
		row.AddCell().SetInt(r.Similarity)
	}
	row.AddCell().SetString(r.TargetCode)
	row.AddCell().SetString(r.TargetProduct)
	row.AddCell().SetString(r.TargetBrand)
	row.AddCell().SetString(r.TargetFormat)
}

func addOptionalFloat(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v != nil {
		cell.SetFloat(*v)
	}
}

func addSummary(f *xlsx.File, rep *model.ComparisonReport) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}
	add := func(label string, value string) {
		row := sheet.AddRow()
		row.AddCell().SetString(label)
		row.AddCell().SetString(value)
	}
	s := rep.Stats
	add("Target Supplier", rep.TargetSupplierID)
	add("Generated At", rep.GeneratedAt.Format("2006-01-02 15:04:05"))
	add("Total Items", fmt.Sprintf("%d", s.TotalItems))
	add("Exact Matches", fmt.Sprintf("%d", s.CountExact))
	add("Fuzzy Matches", fmt.Sprintf("%d", s.CountFuzzy))
	add("No Matches", fmt.Sprintf("%d", s.CountNoMatch))
	add("Source Total", fmt.Sprintf("%.2f", s.SourceTotal))
	add("Target Total", fmt.Sprintf("%.2f", s.TargetTotal))
	add("Total Possible Savings", fmt.Sprintf("%.2f", s.PossibleSavings))
	return nil
}
