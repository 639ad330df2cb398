package domain

import (
	"strconv"
	"strings"

	"github.com/kvasquez/receiptguard/internal/money"
)

// DeclaredAmount returns the order's declared total, reconciling the
// structured field with the legacy free-text one. The structured field wins
// when set; otherwise the legacy text is stripped down to digits and dots
// and parsed. The result is non-negative and rounded to the minor unit.
func (o *Order) DeclaredAmount() float64 {
	amount := o.TotalAmount
	if amount == 0 && o.TotalText != "" {
		amount = parseLegacyAmount(o.TotalText)
	}
	if amount < 0 {
		return 0
	}
	return money.Round2(amount)
}

// parseLegacyAmount extracts a decimal from free text like "$ 120.50 USD"
// by dropping everything except digits and dots.
func parseLegacyAmount(text string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, text)

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}
