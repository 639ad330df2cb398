package service_test

import (
	"testing"

	"github.com/kvasquez/receiptguard/internal/service"
)

func TestParseReceiptFields_ReferenceAndAmount(t *testing.T) {
	raw := "Transferencia exitosa\nNo. de confirmacion: 1234567890\nMonto: 1.234,56 CUP\nComision: 12,00"

	fields := service.ParseReceiptFields(raw)

	if fields.Reference != "1234567890" {
		t.Errorf("expected reference '1234567890', got '%s'", fields.Reference)
	}
	if fields.Amount != 1234.56 {
		t.Errorf("expected amount 1234.56 (max of candidates), got %f", fields.Amount)
	}
}

func TestParseReceiptFields_ReferenceLengthFloor(t *testing.T) {
	// A 5-digit run is below the 6-digit floor; only the 10-digit run matches.
	raw := "cod 12345 ref 9876543210 fin"

	fields := service.ParseReceiptFields(raw)

	if fields.Reference != "9876543210" {
		t.Errorf("expected reference '9876543210', got '%s'", fields.Reference)
	}
}

func TestParseReceiptFields_ReferenceTooLong(t *testing.T) {
	// A 20-digit account number must not match via a prefix.
	raw := "cuenta 12345678901234567890"

	fields := service.ParseReceiptFields(raw)

	if fields.Reference != "" {
		t.Errorf("expected no reference, got '%s'", fields.Reference)
	}
}

func TestParseReceiptFields_FirstReferenceWins(t *testing.T) {
	raw := "ref 111222333 y luego 444555666"

	fields := service.ParseReceiptFields(raw)

	if fields.Reference != "111222333" {
		t.Errorf("expected first digit run '111222333', got '%s'", fields.Reference)
	}
}

func TestParseReceiptFields_AmountNormalization(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"comma decimal", "pago 12,00", 12.00},
		{"thousands dot with comma decimal", "total 1.234,56", 1234.56},
		{"dot treated as thousands separator", "monto 12.00", 1200.00},
		{"max of several candidates", "fee 5,00 total 150,75 saldo 89,10", 150.75},
		{"no candidates", "sin montos visibles", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := service.ParseReceiptFields(tt.raw)
			if fields.Amount != tt.want {
				t.Errorf("expected amount %f, got %f", tt.want, fields.Amount)
			}
		})
	}
}

func TestParseReceiptFields_EmptyInput(t *testing.T) {
	fields := service.ParseReceiptFields("")

	if fields.Reference != "" {
		t.Errorf("expected no reference, got '%s'", fields.Reference)
	}
	if fields.Amount != 0 {
		t.Errorf("expected amount 0, got %f", fields.Amount)
	}
}
