package match

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Component weights for the attribute scorer. Product type dominates because
// supplier catalogs disagree most on brand spelling and format notation.
const (
	weightBrand       = 0.25
	weightProductType = 0.40
	weightFormat      = 0.25
	weightPackaging   = 0.10
)

// neutralScore is used when neither side carries a value for a component, so
// missing data neither helps nor hurts the total.
const neutralScore = 50

// brandSynonyms maps a normalized brand to the alternate spellings suppliers
// use for the same label.
var brandSynonyms = map[string][]string{
	"olimel":     {"olymel"},
	"olymel":     {"olimel"},
	"coca cola":  {"coke", "coca"},
	"coke":       {"coca cola", "coca"},
	"pepsi cola": {"pepsi"},
	"pepsi":      {"pepsi cola"},
	"kraft":      {"kraft heinz"},
	"heinz":      {"kraft heinz"},
	"lassonde":   {"oasis"},
	"oasis":      {"lassonde"},
}

// descriptorWords are marketing or grade words that carry no product identity.
var descriptorWords = map[string]bool{
	"fresh": true, "frozen": true, "premium": true, "choice": true,
	"select": true, "grade": true, "quality": true, "brand": true,
	"style": true, "cut": true, "whole": true, "sliced": true,
	"surgele": true, "frais": true, "congele": true,
}

// packagingWords are container terms recognized by the packaging component.
var packagingWords = map[string]bool{
	"box": true, "case": true, "bag": true, "jar": true, "can": true,
	"bottle": true, "tray": true, "pail": true, "tub": true, "pack": true,
	"carton": true, "boite": true, "caisse": true, "sac": true, "pot": true,
	"conserve": true, "bouteille": true, "seau": true,
}

// formatPattern matches quantity notations like "4X2 KG", "12 x 500 ml",
// "750g", or "2.5 lb".
var formatPattern = regexp.MustCompile(`(?i)(?:(\d+)\s*x\s*)?(\d+(?:\.\d+)?)\s*(kg|g|gr|lb|lbs|oz|ml|l|lt|un|ea)\b`)

// unitGrams converts a recognized unit to grams or milliliters. Mass and
// volume share one scale; cross-unit comparisons only ever happen between
// format strings that already agree on kind in practice.
var unitGrams = map[string]float64{
	"kg": 1000, "g": 1, "gr": 1,
	"lb": 453.6, "lbs": 453.6, "oz": 28.35,
	"l": 1000, "lt": 1000, "ml": 1,
	"un": 1, "ea": 1,
}

// Attributes are the comparable fields of one side of a match.
type Attributes struct {
	Name      string
	Brand     string
	Format    string
	Packaging string
}

// Breakdown reports the weighted total and the per-component scores, each in
// the range 0 to 100.
type Breakdown struct {
	Total       int
	Brand       int
	ProductType int
	Format      int
	Packaging   int
}

// Score compares two products attribute by attribute and combines the
// component scores with fixed weights.
func Score(a, b Attributes) Breakdown {
	bd := Breakdown{
		Brand:       compareBrands(a.Brand, b.Brand),
		ProductType: compareProductTypes(a.Name, b.Name),
		Format:      compareFormats(a.Format, b.Format),
		Packaging:   comparePackaging(a, b),
	}
	total := weightBrand*float64(bd.Brand) +
		weightProductType*float64(bd.ProductType) +
		weightFormat*float64(bd.Format) +
		weightPackaging*float64(bd.Packaging)
	bd.Total = int(math.Round(total))
	return bd
}

func compareBrands(a, b string) int {
	na, nb := Normalize(a), Normalize(b)
	switch {
	case na == "" && nb == "":
		return neutralScore
	case na == "" || nb == "":
		return 0
	case na == nb:
		return 100
	}
	for _, syn := range brandSynonyms[na] {
		if syn == nb {
			return 95
		}
	}
	return Ratio(na, nb)
}

func compareProductTypes(nameA, nameB string) int {
	ta, tb := productType(nameA), productType(nameB)
	switch {
	case ta == "" && tb == "":
		return neutralScore
	case ta == "" || tb == "":
		return 0
	case ta == tb:
		return 100
	}
	direct := Ratio(ta, tb)
	sorted := TokenSortRatio(ta, tb)
	if sorted > direct {
		return sorted
	}
	return direct
}

// productType reduces a product name to the tokens that identify what the
// product is: drop quantities, short tokens, and descriptor words, keep the
// first three that remain.
func productType(name string) string {
	var kept []string
	for _, tok := range Tokens(name) {
		if len(tok) <= 2 || descriptorWords[tok] {
			continue
		}
		if tok[0] >= '0' && tok[0] <= '9' {
			continue
		}
		kept = append(kept, tok)
		if len(kept) == 3 {
			break
		}
	}
	return strings.Join(kept, " ")
}

func compareFormats(a, b string) int {
	na, nb := Normalize(a), Normalize(b)
	switch {
	case na == "" && nb == "":
		return neutralScore
	case na == "" || nb == "":
		return 0
	case na == nb:
		return 100
	}

	qa, unitA, okA := formatQuantity(na)
	qb, unitB, okB := formatQuantity(nb)
	if okA && okB && qa > 0 && qb > 0 {
		diff := math.Abs(qa-qb) / math.Max(qa, qb)
		score := (1 - diff) * 100
		if unitA == unitB {
			score = math.Min(score*1.1, 100)
		}
		return int(math.Round(score))
	}
	return Ratio(na, nb)
}

// formatQuantity parses a format string into total grams (or milliliters).
// "4x2 kg" yields 8000.
func formatQuantity(s string) (float64, string, bool) {
	m := formatPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, "", false
	}
	count := 1.0
	if m[1] != "" {
		count, _ = strconv.ParseFloat(m[1], 64)
	}
	size, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, "", false
	}
	unit := strings.ToLower(m[3])
	factor, ok := unitGrams[unit]
	if !ok {
		return 0, "", false
	}
	return count * size * factor, unit, true
}

func comparePackaging(a, b Attributes) int {
	pa := packagingTerm(a.Packaging, a.Name)
	pb := packagingTerm(b.Packaging, b.Name)
	switch {
	case pa == "" && pb == "":
		return neutralScore
	case pa == "" || pb == "":
		return 0
	case pa == pb:
		return 100
	}
	return Ratio(pa, pb)
}

// packagingTerm picks the explicit packaging field when set, otherwise scans
// the product name for a known container word.
func packagingTerm(packaging, name string) string {
	if n := Normalize(packaging); n != "" {
		return n
	}
	for _, tok := range Tokens(name) {
		if packagingWords[tok] {
			return tok
		}
	}
	return ""
}

// Ratio is the Levenshtein similarity of two strings as a percentage.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 100
	}
	d := levenshtein(ra, rb)
	return int(math.Round((1 - float64(d)/float64(longest)) * 100))
}

// TokenSortRatio compares the two strings with their words sorted, so word
// order differences do not count against the score.
func TokenSortRatio(a, b string) int {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

func sortedTokens(s string) string {
	toks := Tokens(s)
	sort.Strings(toks)
	return strings.Join(toks, " ")
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
