package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kvasquez/receiptguard/internal/domain"
	"github.com/kvasquez/receiptguard/internal/money"
)

// ============================================================
// Receipt field parsing
// ============================================================

var (
	// Bank confirmation numbers are 6 to 16 digit runs. Word boundaries keep
	// a 20-digit account number from matching via its prefix.
	referencePattern = regexp.MustCompile(`\b\d{6,16}\b`)

	// Monetary candidates: either a dot-grouped figure with a comma decimal
	// ("1.234,56"), or a plain run of up to 10 digits with a dot or comma
	// separator and exactly two decimals. The grouped form is tried first so
	// "1.234,56" matches whole instead of splitting at the first dot.
	amountPattern = regexp.MustCompile(`\d{1,3}(?:\.\d{3})+,\d{2}|\d{1,10}[.,]\d{2}`)
)

// ParseReceiptFields extracts the reference number and the transfer amount
// from raw OCR text. Missing fields are not errors: an illegible receipt
// yields empty fields and the classifier turns that into a flag.
func ParseReceiptFields(raw string) domain.ReceiptFields {
	fields := domain.ReceiptFields{
		Reference: referencePattern.FindString(raw),
	}

	// Receipts list several amounts (fee, balance, transfer). The transfer
	// amount is assumed to be the largest candidate.
	for _, candidate := range amountPattern.FindAllString(raw, -1) {
		v := normalizeAmount(candidate)
		if v > fields.Amount {
			fields.Amount = v
		}
	}
	fields.Amount = money.Round2(fields.Amount)

	return fields
}

// normalizeAmount converts a matched token to a float. Dots are thousands
// separators and are dropped; the comma is the decimal mark. "1.234,56"
// becomes 1234.56 and "12,00" becomes 12.00.
func normalizeAmount(token string) float64 {
	cleaned := strings.ReplaceAll(token, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}
