package service_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/kvasquez/receiptguard/internal/domain"
	"github.com/kvasquez/receiptguard/internal/infra/cache"
	"github.com/kvasquez/receiptguard/internal/infra/observability"
	"github.com/kvasquez/receiptguard/internal/service"

	"go.uber.org/zap"
)

type mockSettingsStore struct {
	percent float64
	err     error
	saved   float64
}

func (m *mockSettingsStore) GetDeductionPercent(_ context.Context) (float64, error) {
	return m.percent, m.err
}

func (m *mockSettingsStore) SetDeductionPercent(_ context.Context, percent float64) error {
	m.saved = percent
	return m.err
}

// --- Reconcile (pure aggregation) ---

func TestReconcile_Example(t *testing.T) {
	orders := []domain.Order{
		{ID: "a", TotalAmount: 100.00, PaymentMethod: "Zelle"},
		{ID: "b", TotalAmount: 50.00, PaymentMethod: "Transferencia CUP"},
	}

	report := service.Reconcile(orders, 10)

	if report.TotalRevenue != 150.00 {
		t.Errorf("expected revenue 150.00, got %f", report.TotalRevenue)
	}
	if report.TotalProfit != 15.00 {
		t.Errorf("expected profit 15.00, got %f", report.TotalProfit)
	}
	if report.ZelleTotal != 100.00 {
		t.Errorf("expected zelle total 100.00, got %f", report.ZelleTotal)
	}
	if report.TransferTotal != 50.00 {
		t.Errorf("expected transfer total 50.00, got %f", report.TransferTotal)
	}
	if report.OtherTotal != 0 {
		t.Errorf("expected other total 0, got %f", report.OtherTotal)
	}
}

func TestReconcile_EmptyCollection(t *testing.T) {
	report := service.Reconcile(nil, 25)

	if report.TotalRevenue != 0 || report.TotalProfit != 0 ||
		report.ZelleTotal != 0 || report.TransferTotal != 0 || report.OtherTotal != 0 {
		t.Errorf("expected all-zero totals, got %+v", report)
	}
	if report.OrderCount != 0 || report.FlaggedCount != 0 {
		t.Errorf("expected zero counts, got count=%d flagged=%d", report.OrderCount, report.FlaggedCount)
	}
}

func TestReconcile_BucketsPartitionRevenue(t *testing.T) {
	orders := []domain.Order{
		{ID: "a", TotalAmount: 33.33, PaymentMethod: "Zelle USA"},
		{ID: "b", TotalAmount: 66.67, PaymentMethod: "transferencia movil"},
		{ID: "c", TotalAmount: 19.99, PaymentMethod: "efectivo"},
		{ID: "d", TotalAmount: 120.01, PaymentMethod: "MLC"},
	}

	report := service.Reconcile(orders, 0)

	sum := report.ZelleTotal + report.TransferTotal + report.OtherTotal
	if math.Abs(sum-report.TotalRevenue) > 0.01*float64(len(orders)) {
		t.Errorf("bucket totals %f do not partition revenue %f", sum, report.TotalRevenue)
	}
}

func TestReconcile_FlaggedInRevenueButCounted(t *testing.T) {
	orders := []domain.Order{
		{ID: "a", TotalAmount: 100.00, PaymentMethod: "Zelle", State: domain.StateFlagged},
		{ID: "b", TotalAmount: 50.00, PaymentMethod: "Zelle", State: domain.StateVerified},
	}

	report := service.Reconcile(orders, 10)

	if report.TotalRevenue != 150.00 {
		t.Errorf("flagged orders must stay in gross revenue, got %f", report.TotalRevenue)
	}
	if report.FlaggedCount != 1 {
		t.Errorf("expected 1 flagged, got %d", report.FlaggedCount)
	}
}

func TestReconcile_FlaggedSortFirst(t *testing.T) {
	orders := []domain.Order{
		{ID: "a", TotalAmount: 10, State: domain.StateVerified},
		{ID: "b", TotalAmount: 20, State: domain.StateFlagged},
		{ID: "c", TotalAmount: 30, State: domain.StatePending},
		{ID: "d", TotalAmount: 40, State: domain.StateFlagged},
	}

	report := service.Reconcile(orders, 0)

	if report.Orders[0].OrderID != "b" || report.Orders[1].OrderID != "d" {
		t.Errorf("expected flagged orders first in insertion order, got %s, %s",
			report.Orders[0].OrderID, report.Orders[1].OrderID)
	}
	if report.Orders[2].OrderID != "a" || report.Orders[3].OrderID != "c" {
		t.Errorf("expected non-flagged to keep insertion order, got %s, %s",
			report.Orders[2].OrderID, report.Orders[3].OrderID)
	}
}

func TestReconcile_LegacyTextAmount(t *testing.T) {
	orders := []domain.Order{
		{ID: "a", TotalText: "$ 120.50 USD", PaymentMethod: "Zelle"},
	}

	report := service.Reconcile(orders, 0)

	if report.TotalRevenue != 120.50 {
		t.Errorf("expected legacy text amount 120.50, got %f", report.TotalRevenue)
	}
}

// --- Service wiring ---

func TestBuildReport_CachesLatest(t *testing.T) {
	store := &mockOrderStore{
		orders: map[string]*domain.Order{
			"a": {ID: "a", TotalAmount: 100, PaymentMethod: "Zelle"},
		},
		byRef: map[string]*domain.Order{},
	}
	settings := &mockSettingsStore{percent: 10}
	reportCache := cache.New[*domain.ReconciliationReport](time.Minute)

	svc := service.NewReconciliationService(store, settings, reportCache, zap.NewNop(), observability.NewMetrics())

	built, err := svc.BuildReport(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	latest, err := svc.LatestReport(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if latest.ID != built.ID {
		t.Error("expected latest report to come from cache")
	}

	svc.Invalidate()
	fresh, err := svc.LatestReport(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fresh.ID == built.ID {
		t.Error("expected a fresh report after invalidation")
	}
}

func TestBuildReport_StoreError(t *testing.T) {
	store := &mockOrderStore{listErr: &domain.ErrExternalService{Service: "postgrest/orders", Err: context.DeadlineExceeded}}
	settings := &mockSettingsStore{percent: 10}
	reportCache := cache.New[*domain.ReconciliationReport](time.Minute)

	svc := service.NewReconciliationService(store, settings, reportCache, zap.NewNop(), observability.NewMetrics())

	if _, err := svc.BuildReport(context.Background()); err == nil {
		t.Fatal("expected error from store")
	}
}
