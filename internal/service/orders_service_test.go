package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/kvasquez/receiptguard/internal/domain"
	"github.com/kvasquez/receiptguard/internal/infra/cache"
	"github.com/kvasquez/receiptguard/internal/infra/observability"
	"github.com/kvasquez/receiptguard/internal/service"

	"go.uber.org/zap"
)

func newReconForTest(store *mockOrderStore) *service.ReconciliationService {
	return service.NewReconciliationService(
		store,
		&mockSettingsStore{percent: 10},
		cache.New[*domain.ReconciliationReport](time.Minute),
		zap.NewNop(),
		observability.NewMetrics(),
	)
}

func TestDeleteAll_InvalidatesCachedReport(t *testing.T) {
	store := &mockOrderStore{
		orders: map[string]*domain.Order{
			"a": {ID: "a", TotalAmount: 100, PaymentMethod: "Zelle"},
		},
		byRef: map[string]*domain.Order{},
	}
	recon := newReconForTest(store)
	svc := service.NewOrdersService(store, recon, zap.NewNop())

	warm, err := recon.BuildReport(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := svc.DeleteAll(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !store.deleted {
		t.Error("expected store delete to be called")
	}

	// The cached report must not survive the bulk clear.
	after, err := recon.LatestReport(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if after.ID == warm.ID {
		t.Error("expected cached report invalidated after delete-all")
	}
}

func TestSetDeduction_Validation(t *testing.T) {
	store := &mockOrderStore{orders: map[string]*domain.Order{}, byRef: map[string]*domain.Order{}}
	settings := &mockSettingsStore{}
	svc := service.NewSettingsService(settings, newReconForTest(store), zap.NewNop())

	for _, bad := range []float64{-1, 100.5, 200} {
		if err := svc.SetDeduction(context.Background(), bad); err == nil {
			t.Errorf("expected validation error for %f", bad)
		}
	}

	if err := svc.SetDeduction(context.Background(), 12.5); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if settings.saved != 12.5 {
		t.Errorf("expected 12.5 persisted, got %f", settings.saved)
	}
}
