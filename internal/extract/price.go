package extract

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// PriceResult distinguishes a parsed price from the zero fallback.
type PriceResult struct {
	Amount int64
	Parsed bool
}

// MaxPrice is the largest amount ParsePrice accepts; price columns are 32-bit.
const MaxPrice = math.MaxInt32

// ParsePrice converts storefront price text such as "$ 1.234" into whole
// currency units. A leading currency marker ("$", "U$S"), "." thousands
// separators and surrounding whitespace are dropped, and a ",dd" decimal tail
// (exactly two digits) is truncated. Anything else, including amounts above
// MaxPrice, yields {0, false}.
func ParsePrice(text string) PriceResult {
	s := strings.TrimLeftFunc(text, isCurrencyNoise)
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	s = strings.ReplaceAll(s, ".", "")
	if whole, frac, ok := strings.Cut(s, ","); ok {
		if len(frac) != 2 || !allDigits(frac) {
			return PriceResult{}
		}
		s = whole
	}
	if !allDigits(s) {
		return PriceResult{}
	}
	amount, err := strconv.ParseInt(s, 10, 64)
	if err != nil || amount > MaxPrice {
		return PriceResult{}
	}
	return PriceResult{Amount: amount, Parsed: true}
}

func isCurrencyNoise(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsLetter(r) || unicode.IsSymbol(r)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
