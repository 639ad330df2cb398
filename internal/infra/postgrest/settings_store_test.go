package postgrest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kvasquez/receiptguard/internal/infra/observability"
	"github.com/kvasquez/receiptguard/internal/infra/postgrest"
	"github.com/kvasquez/receiptguard/internal/infra/resilience"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, baseURL string) (*postgrest.Client, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics()
	cfg := resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond}
	client := postgrest.NewClient(
		&http.Client{Timeout: 2 * time.Second},
		baseURL, "anon", "service",
		resilience.NewCircuitBreaker("test"),
		cfg, zap.NewNop(), metrics,
	)
	return client, metrics
}

func externalErrorCount(t *testing.T, m *observability.Metrics, service string) float64 {
	t.Helper()
	mfs, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "receiptguard_external_errors_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "service" && label.GetValue() == service {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestSetDeductionPercent_UpdatesExistingRow(t *testing.T) {
	posted := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPatch:
			if !strings.Contains(r.URL.RawQuery, "key=eq.deduction_percent") {
				t.Errorf("expected key filter on PATCH, got query %q", r.URL.RawQuery)
			}
			if prefer := r.Header.Get("Prefer"); prefer != "return=representation" {
				t.Errorf("expected return=representation, got %q", prefer)
			}
			json.NewEncoder(w).Encode([]map[string]any{
				{"key": "deduction_percent", "value": "15"},
			})
		case http.MethodPost:
			posted = true
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	if err := client.SetDeductionPercent(context.Background(), 15); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if posted {
		t.Error("expected no insert when the PATCH matched a row")
	}
}

func TestSetDeductionPercent_InsertsWhenNoRowMatched(t *testing.T) {
	var inserted map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPatch:
			// Zero rows matched: PostgREST still answers 2xx.
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			json.NewDecoder(r.Body).Decode(&inserted)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte("[]"))
		}
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	if err := client.SetDeductionPercent(context.Background(), 12.5); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if inserted == nil {
		t.Fatal("expected an insert after the PATCH matched no row")
	}
	if inserted["key"] != "deduction_percent" {
		t.Errorf("expected key deduction_percent, got %v", inserted["key"])
	}
	if inserted["value"] != "12.5" {
		t.Errorf("expected value 12.5, got %v", inserted["value"])
	}
}

func TestSetDeductionPercent_InsertFailureSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPatch:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client, metrics := newTestClient(t, server.URL)

	if err := client.SetDeductionPercent(context.Background(), 10); err == nil {
		t.Fatal("expected error when the fallback insert fails")
	}
	if got := externalErrorCount(t, metrics, "postgrest"); got != 1 {
		t.Errorf("expected 1 external error counted, got %v", got)
	}
}

func TestGetDeductionPercent_MissingRow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	percent, err := client.GetDeductionPercent(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if percent != 0 {
		t.Errorf("expected 0 for a missing row, got %f", percent)
	}
}
