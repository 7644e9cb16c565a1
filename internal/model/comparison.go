package model

import "time"

// MatchType classifies how a line item resolved against the catalog.
type MatchType string

const (
	MatchExact MatchType = "exact"
	MatchFuzzy MatchType = "fuzzy"
	MatchNone  MatchType = "no_match"
)

// Display returns the human-readable form used in report cells.
func (m MatchType) Display() string {
	switch m {
	case MatchExact:
		return "Exact Match"
	case MatchFuzzy:
		return "Fuzzy Match"
	case MatchNone:
		return "No Match"
	default:
		return string(m)
	}
}

// MatchTypeFromDisplay parses a report cell back into a MatchType.
func MatchTypeFromDisplay(s string) MatchType {
	switch s {
	case "Exact Match":
		return MatchExact
	case "Fuzzy Match":
		return MatchFuzzy
	case "No Match", "":
		return MatchNone
	default:
		return MatchType(s)
	}
}

// LineItem is one structured invoice line as produced by the external
// extractor. Consumed read-only; never persisted.
type LineItem struct {
	SourceCode string  `json:"source_code"`
	Name       string  `json:"product_name"`
	Brand      string  `json:"brand,omitempty"`
	Format     string  `json:"format,omitempty"`
	Packaging  string  `json:"packaging,omitempty"`
	Category   string  `json:"category,omitempty"`
	GTIN       string  `json:"gtin,omitempty"`
	Price      float64 `json:"source_price"`
	Quantity   float64 `json:"quantity"`
}

// LineTotal is the invoice-side extended price for the line.
func (i LineItem) LineTotal() float64 {
	return i.Price * i.Quantity
}

// MatchResult is the outcome of resolving one line item against one target
// supplier. Similarity is an integer percentage; 100 if and only if the match
// is exact. Product and Mapping are nil for MatchNone.
type MatchResult struct {
	Type       MatchType        `json:"match_type"`
	Similarity int              `json:"similarity"`
	Product    *Product         `json:"product,omitempty"`
	Mapping    *SupplierMapping `json:"mapping,omitempty"`
}

// ComparisonRow is one report row: the invoice line, its match, and the
// derived price fields. NewTargetPrice is always nil on export; it is the
// write-back slot the next reconciliation cycle fills in.
type ComparisonRow struct {
	GTIN           string    `json:"gtin,omitempty"`
	SourceCode     string    `json:"source_code"`
	ProductName    string    `json:"product_name"`
	Brand          string    `json:"brand,omitempty"`
	Format         string    `json:"format,omitempty"`
	Packaging      string    `json:"packaging,omitempty"`
	Category       string    `json:"category,omitempty"`
	SourcePrice    float64   `json:"source_price"`
	Quantity       float64   `json:"quantity"`
	LineTotal      float64   `json:"line_total"`
	OldTargetPrice *float64  `json:"old_target_price,omitempty"`
	NewTargetPrice *float64  `json:"new_target_price,omitempty"`
	MatchType      MatchType `json:"match_type"`
	Similarity     int       `json:"similarity"`
	TargetCode     string    `json:"target_code,omitempty"`
	TargetProduct  string    `json:"target_product,omitempty"`
	TargetBrand    string    `json:"target_brand,omitempty"`
	TargetFormat   string    `json:"target_format,omitempty"`
}

// ComparisonStats aggregates a full report.
type ComparisonStats struct {
	TotalItems      int     `json:"total_items"`
	CountExact      int     `json:"count_exact"`
	CountFuzzy      int     `json:"count_fuzzy"`
	CountNoMatch    int     `json:"count_no_match"`
	SourceTotal     float64 `json:"source_total"`
	TargetTotal     float64 `json:"target_total"`
	PossibleSavings float64 `json:"possible_savings"`
}

// ComparisonReport is the full comparison of one invoice against one target
// supplier. Rows keep the invoice line order.
type ComparisonReport struct {
	TargetSupplierID string          `json:"target_supplier_id"`
	Rows             []ComparisonRow `json:"rows"`
	Stats            ComparisonStats `json:"stats"`
	GeneratedAt      time.Time       `json:"generated_at"`
}
