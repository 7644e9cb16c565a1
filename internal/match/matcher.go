package match

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-recon/internal/catalog"
	"github.com/sells-group/invoice-recon/internal/model"
)

// DefaultThreshold is the minimum fuzzy similarity accepted as a match.
const DefaultThreshold = 60

// maxFuzzyScore keeps fuzzy results below 100 so a similarity of 100 always
// means a GTIN match.
const maxFuzzyScore = 99

// Matcher resolves line items against one target supplier's catalog. It never
// writes to the store.
type Matcher struct {
	store     catalog.Store
	threshold int
}

// New returns a Matcher. A threshold outside 1..100 falls back to
// DefaultThreshold.
func New(store catalog.Store, threshold int) *Matcher {
	if threshold < 1 || threshold > 100 {
		threshold = DefaultThreshold
	}
	return &Matcher{store: store, threshold: threshold}
}

// Match finds the target supplier's product for one invoice line item.
//
// A valid GTIN is authoritative: when the catalog knows the GTIN the result
// is either an exact match on the target supplier's mapping or no match at
// all. Fuzzy scoring only runs when the GTIN is absent, invalid, or unknown
// to the catalog.
func (m *Matcher) Match(ctx context.Context, item model.LineItem, targetSupplierID string) (model.MatchResult, error) {
	if gtin, ok := model.NormalizeGTIN(item.GTIN); ok && gtin != "" {
		product, err := m.store.FindProductByGTIN(ctx, gtin)
		switch {
		case err == nil:
			return m.exactMatch(ctx, product, targetSupplierID)
		case !eris.Is(err, catalog.ErrNotFound):
			return model.MatchResult{}, eris.Wrap(err, "gtin lookup")
		}
	}
	return m.fuzzyMatch(ctx, item, targetSupplierID)
}

func (m *Matcher) exactMatch(ctx context.Context, product *model.Product, supplierID string) (model.MatchResult, error) {
	mapping, err := m.store.MappingForProduct(ctx, product.ID, supplierID)
	if eris.Is(err, catalog.ErrNotFound) {
		// The GTIN identified a product the target supplier does not
		// carry. Guessing a different product by text here would be
		// worse than reporting no match.
		return model.MatchResult{Type: model.MatchNone}, nil
	}
	if err != nil {
		return model.MatchResult{}, eris.Wrap(err, "mapping lookup")
	}
	return model.MatchResult{
		Type:       model.MatchExact,
		Similarity: 100,
		Product:    product,
		Mapping:    mapping,
	}, nil
}

func (m *Matcher) fuzzyMatch(ctx context.Context, item model.LineItem, supplierID string) (model.MatchResult, error) {
	cands, err := m.store.ListCandidates(ctx, supplierID)
	if err != nil {
		return model.MatchResult{}, eris.Wrap(err, "list candidates")
	}

	itemAttrs := Attributes{
		Name:      item.Name,
		Brand:     item.Brand,
		Format:    item.Format,
		Packaging: item.Packaging,
	}
	itemBrand := Normalize(item.Brand)
	itemFormat := Normalize(item.Format)

	var best *scored
	for i := range cands {
		c := &cands[i]
		bd := Score(itemAttrs, Attributes{
			Name:      c.Product.Name,
			Brand:     c.Product.Brand,
			Format:    c.Product.Format,
			Packaging: c.Product.Packaging,
		})
		s := &scored{
			candidate: c,
			total:     bd.Total,
			brandHit:  itemBrand != "" && itemBrand == Normalize(c.Product.Brand),
			formatHit: itemFormat != "" && itemFormat == Normalize(c.Product.Format),
		}
		if s.total > maxFuzzyScore {
			s.total = maxFuzzyScore
		}
		if best == nil || s.beats(best) {
			best = s
		}
	}

	if best == nil || best.total < m.threshold {
		return model.MatchResult{Type: model.MatchNone}, nil
	}
	return model.MatchResult{
		Type:       model.MatchFuzzy,
		Similarity: best.total,
		Product:    &best.candidate.Product,
		Mapping:    &best.candidate.Mapping,
	}, nil
}

type scored struct {
	candidate *model.Candidate
	total     int
	brandHit  bool
	formatHit bool
}

// beats reports whether s should replace cur as the best candidate. Ties on
// score go to exact brand or format text, then to the most recently priced
// mapping. Candidates arrive in insertion order, so keeping cur on a full tie
// leaves the earliest inserted product as the winner.
func (s *scored) beats(cur *scored) bool {
	if s.total != cur.total {
		return s.total > cur.total
	}
	sHits := boolCount(s.brandHit) + boolCount(s.formatHit)
	curHits := boolCount(cur.brandHit) + boolCount(cur.formatHit)
	if sHits != curHits {
		return sHits > curHits
	}
	st := s.candidate.Mapping.PriceUpdatedAt
	ct := cur.candidate.Mapping.PriceUpdatedAt
	if st != nil && (ct == nil || st.After(*ct)) {
		return true
	}
	return false
}

func boolCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
