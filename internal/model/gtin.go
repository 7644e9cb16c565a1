package model

import (
	"strconv"
	"strings"
)

// gtinLengths are the valid GTIN digit counts (GTIN-8/12/13/14).
var gtinLengths = map[int]bool{8: true, 12: true, 13: true, 14: true}

// NormalizeGTIN cleans a GTIN as it arrives from spreadsheets and free text:
// trims whitespace, strips the ".0" float artifact Excel produces for numeric
// cells while preserving leading zeros, and validates that the result is
// all digits with a valid GTIN length. Returns "" when the value is empty and
// false when it is present but invalid.
func NormalizeGTIN(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "none") {
		return "", true
	}

	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart := s[:i]
		if isDigits(intPart) && gtinLengths[len(intPart)] {
			s = intPart
		} else if f, err := strconv.ParseFloat(s, 64); err == nil {
			s = strconv.FormatInt(int64(f), 10)
		} else {
			return "", false
		}
	}

	if !isDigits(s) || !gtinLengths[len(s)] {
		return "", false
	}
	return s, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
