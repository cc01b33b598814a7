package cotahist

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parseDecimalScale2 decodes an implied-decimal field (V99 -> scale 2)
// using arbitrary-precision integer arithmetic, never IEEE floats, per
// invariant 6. An empty or non-numeric field decodes to zero.
func parseDecimalScale2(s string) decimal.Decimal {
	return parseDecimalScale(s, 2)
}

// parseDecimalScale6 decodes a V06-style field (scale 6). Not currently
// exercised by CotahistRecord's fields but kept alongside scale2 as the
// general decoder the spec's "V99 -> 2, V06 -> 6" rule describes.
func parseDecimalScale6(s string) decimal.Decimal {
	return parseDecimalScale(s, 6)
}

func parseDecimalScale(s string, scale int32) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	raw, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return raw.Shift(-scale)
}
