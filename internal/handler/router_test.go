package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kvasquez/receiptguard/internal/domain"
	"github.com/kvasquez/receiptguard/internal/handler"
	"github.com/kvasquez/receiptguard/internal/infra/cache"
	"github.com/kvasquez/receiptguard/internal/infra/observability"
	"github.com/kvasquez/receiptguard/internal/infra/resilience"
	"github.com/kvasquez/receiptguard/internal/service"

	"go.uber.org/zap"
)

// --- In-memory fixtures ---

type fakeStore struct {
	orders   map[string]*domain.Order
	products []domain.Product
	percent  float64
}

func (f *fakeStore) ListOrders(_ context.Context) ([]domain.Order, error) {
	out := make([]domain.Order, 0, len(f.orders))
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeStore) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "order", ID: orderID}
	}
	return o, nil
}

func (f *fakeStore) FindOrderByReference(_ context.Context, reference, excludingOrderID string) (*domain.Order, error) {
	for _, o := range f.orders {
		if o.Reference == reference && o.ID != excludingOrderID {
			return o, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SaveVerification(_ context.Context, orderID string, fields domain.ReceiptFields, verdict domain.Verdict) error {
	o := f.orders[orderID]
	o.Reference = fields.Reference
	o.DetectedAmount = &fields.Amount
	o.State = verdict.State
	o.FlagReason = verdict.Reason
	return nil
}

func (f *fakeStore) DeleteAllOrders(_ context.Context) error {
	f.orders = map[string]*domain.Order{}
	return nil
}

func (f *fakeStore) ListProducts(_ context.Context) ([]domain.Product, error) {
	return f.products, nil
}

func (f *fakeStore) GetDeductionPercent(_ context.Context) (float64, error) {
	return f.percent, nil
}

func (f *fakeStore) SetDeductionPercent(_ context.Context, percent float64) error {
	f.percent = percent
	return nil
}

type fakeExtractor struct{ text string }

func (f *fakeExtractor) Extract(_ context.Context, _ string) (string, error) {
	return f.text, nil
}

func newTestRouter(store *fakeStore, extractor *fakeExtractor) http.Handler {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	reportCache := cache.New[*domain.ReconciliationReport](time.Minute)

	recon := service.NewReconciliationService(store, store, reportCache, logger, metrics)
	return handler.NewRouter(handler.Services{
		Verification: service.NewVerificationService(
			extractor, store, resilience.NewBulkhead(2), time.Second, logger, metrics),
		Orders:         service.NewOrdersService(store, recon, logger),
		Reconciliation: recon,
		Investment:     service.NewInvestmentService(store, store, store, logger, metrics),
		Settings:       service.NewSettingsService(store, recon, logger),
	}, metrics, logger)
}

func defaultStore() *fakeStore {
	return &fakeStore{
		orders: map[string]*domain.Order{
			"ord-1": {ID: "ord-1", TotalAmount: 150.75, PaymentMethod: "Zelle", ReceiptURL: "https://img/r1.jpg"},
		},
		products: []domain.Product{{ID: "p1", Name: "Cafetera", Cost: 10, Price: 15, Stock: 4}},
		percent:  10,
	}
}

// --- Tests ---

func TestHealthz(t *testing.T) {
	router := newTestRouter(defaultStore(), &fakeExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router := newTestRouter(defaultStore(), &fakeExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(defaultStore(), &fakeExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestVerifyEndpoint(t *testing.T) {
	router := newTestRouter(defaultStore(), &fakeExtractor{text: "ref 123456789 monto 150,75"})

	req := httptest.NewRequest(http.MethodPost, "/v1/orders/ord-1/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.VerificationResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.State != domain.StateVerified {
		t.Errorf("expected VERIFIED, got %s (%s)", result.State, result.Reason)
	}
	if result.RunID == "" {
		t.Error("expected a run id")
	}
}

func TestVerifyEndpoint_UnknownOrder(t *testing.T) {
	router := newTestRouter(defaultStore(), &fakeExtractor{text: "x"})

	req := httptest.NewRequest(http.MethodPost, "/v1/orders/missing/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestReconciliationEndpoint(t *testing.T) {
	router := newTestRouter(defaultStore(), &fakeExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/reconciliation", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var report domain.ReconciliationReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if report.TotalRevenue != 150.75 {
		t.Errorf("expected revenue 150.75, got %f", report.TotalRevenue)
	}
	if report.ZelleTotal != 150.75 {
		t.Errorf("expected zelle total 150.75, got %f", report.ZelleTotal)
	}
}

func TestInvestmentEndpoint(t *testing.T) {
	router := newTestRouter(defaultStore(), &fakeExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/investment", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var report domain.InvestmentReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if report.TotalInvestment != 40.00 {
		t.Errorf("expected investment 40.00, got %f", report.TotalInvestment)
	}
}

func TestDeductionEndpoints(t *testing.T) {
	store := defaultStore()
	router := newTestRouter(store, &fakeExtractor{})

	req := httptest.NewRequest(http.MethodPut, "/v1/settings/deduction", strings.NewReader(`{"percent": 25}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.percent != 25 {
		t.Errorf("expected percent 25 persisted, got %f", store.percent)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/settings/deduction", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var setting domain.DeductionSetting
	if err := json.NewDecoder(rec.Body).Decode(&setting); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if setting.Percent != 25 {
		t.Errorf("expected percent 25, got %f", setting.Percent)
	}
}

func TestDeductionValidation(t *testing.T) {
	router := newTestRouter(defaultStore(), &fakeExtractor{})

	req := httptest.NewRequest(http.MethodPut, "/v1/settings/deduction", strings.NewReader(`{"percent": 150}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestDeleteAllOrders(t *testing.T) {
	store := defaultStore()
	router := newTestRouter(store, &fakeExtractor{})

	req := httptest.NewRequest(http.MethodDelete, "/v1/orders", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(store.orders) != 0 {
		t.Errorf("expected empty order collection, got %d", len(store.orders))
	}
}

func TestVerificationMetricsSnapshot(t *testing.T) {
	router := newTestRouter(defaultStore(), &fakeExtractor{text: "ref 123456789 monto 150,75"})

	// Run one verification so the snapshot has data.
	req := httptest.NewRequest(http.MethodPost, "/v1/orders/ord-1/verify", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/v1/metrics/verification", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snapshot domain.VerificationMetrics
	if err := json.NewDecoder(rec.Body).Decode(&snapshot); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if snapshot.TotalRuns != 1 || snapshot.VerifiedCount != 1 {
		t.Errorf("expected 1 verified run, got %+v", snapshot)
	}
}
