package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		amount int64
		parsed bool
	}{
		{name: "currency and thousands", input: "$1.234", amount: 1234, parsed: true},
		{name: "surrounding whitespace", input: "  $ 1.234.567 \n", amount: 1234567, parsed: true},
		{name: "plain digits", input: "99", amount: 99, parsed: true},
		{name: "currency code prefix", input: "U$S 45", amount: 45, parsed: true},
		{name: "decimal tail truncated", input: "$ 1.299,50", amount: 1299, parsed: true},
		{name: "non breaking space", input: "$ 350", amount: 350, parsed: true},
		{name: "zero is a real price", input: "$0", amount: 0, parsed: true},
		{name: "word", input: "free", amount: 0, parsed: false},
		{name: "empty", input: "", amount: 0, parsed: false},
		{name: "only symbol", input: "$", amount: 0, parsed: false},
		{name: "negative", input: "-15", amount: 0, parsed: false},
		{name: "garbage in the middle", input: "12 a 15", amount: 0, parsed: false},
		{name: "bad decimal tail", input: "12,5x", amount: 0, parsed: false},
		{name: "overflow", input: "99999999999999999999", amount: 0, parsed: false},
		{name: "comma thousands", input: "1,234", amount: 0, parsed: false},
		{name: "single decimal digit", input: "12,5", amount: 0, parsed: false},
		{name: "trailing letter", input: "12a", amount: 0, parsed: false},
		{name: "trailing currency word", input: "100 pesos", amount: 0, parsed: false},
		{name: "largest column value", input: "2.147.483.647", amount: 2147483647, parsed: true},
		{name: "above column range", input: "2.147.483.648", amount: 0, parsed: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ParsePrice(tc.input)
			assert.Equal(t, tc.amount, got.Amount)
			assert.Equal(t, tc.parsed, got.Parsed)
		})
	}
}

func FuzzParsePrice(f *testing.F) {
	for _, seed := range []string{"$1.234", "free", "", "1,5", "-3"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		got := ParsePrice(in)
		if got.Amount < 0 {
			t.Fatalf("ParsePrice(%q) returned negative amount %d", in, got.Amount)
		}
		if got.Amount > MaxPrice {
			t.Fatalf("ParsePrice(%q) returned %d above MaxPrice", in, got.Amount)
		}
		if !got.Parsed && got.Amount != 0 {
			t.Fatalf("ParsePrice(%q) fallback must be zero, got %d", in, got.Amount)
		}
	})
}
