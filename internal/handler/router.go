// Package handler wires the HTTP surface of the verification engine.
package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kvasquez/receiptguard/internal/domain"
	"github.com/kvasquez/receiptguard/internal/infra/observability"
	"github.com/kvasquez/receiptguard/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles everything the router needs.
type Services struct {
	Verification   *service.VerificationService
	Orders         *service.OrdersService
	Reconciliation *service.ReconciliationService
	Investment     *service.InvestmentService
	Settings       *service.SettingsService
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.Orders, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Orders & verification
		r.Post("/orders/{orderId}/verify", verifyOrderHandler(svcs.Verification, logger))
		r.Get("/orders", listOrdersHandler(svcs.Orders, logger))
		r.Get("/orders/{orderId}", getOrderHandler(svcs.Orders, logger))
		r.Delete("/orders", deleteAllOrdersHandler(svcs.Orders, logger))

		// Reports
		r.Get("/reports/reconciliation", reconciliationHandler(svcs.Reconciliation, logger))
		r.Get("/reports/reconciliation/latest", latestReconciliationHandler(svcs.Reconciliation, logger))
		r.Get("/reports/investment", investmentHandler(svcs.Investment, logger))

		// Settings
		r.Get("/settings/deduction", getDeductionHandler(svcs.Settings, logger))
		r.Put("/settings/deduction", setDeductionHandler(svcs.Settings, logger))

		// Metrics snapshot
		r.Get("/metrics/verification", verificationMetricsHandler(metrics, logger))
	})

	return r
}

// ============================================================
// Orders & verification
// ============================================================

func verifyOrderHandler(svc *service.VerificationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/orders/{orderId}/verify")
		defer span.End()

		orderID := chi.URLParam(r, "orderId")
		if orderID == "" {
			writeError(w, http.StatusBadRequest, "orderId is required")
			return
		}
		span.SetAttributes(attribute.String("order.id", orderID))

		// Body is optional; it may override the stored receipt image.
		var req domain.VerifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.Verify(ctx, orderID, req.ImageRef)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func listOrdersHandler(svc *service.OrdersService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/orders")
		defer span.End()

		orders, err := svc.List(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
	}
}

func getOrderHandler(svc *service.OrdersService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/orders/{orderId}")
		defer span.End()

		orderID := chi.URLParam(r, "orderId")
		order, err := svc.Get(ctx, orderID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, order)
	}
}

func deleteAllOrdersHandler(svc *service.OrdersService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/orders")
		defer span.End()

		if err := svc.DeleteAll(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Reports
// ============================================================

func reconciliationHandler(svc *service.ReconciliationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/reconciliation")
		defer span.End()

		report, err := svc.BuildReport(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}

func latestReconciliationHandler(svc *service.ReconciliationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/reconciliation/latest")
		defer span.End()

		report, err := svc.LatestReport(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}

func investmentHandler(svc *service.InvestmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/investment")
		defer span.End()

		report, err := svc.BuildReport(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}

// ============================================================
// Settings
// ============================================================

func getDeductionHandler(svc *service.SettingsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/settings/deduction")
		defer span.End()

		percent, err := svc.GetDeduction(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.DeductionSetting{Percent: percent})
	}
}

func setDeductionHandler(svc *service.SettingsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/settings/deduction")
		defer span.End()

		var req domain.DeductionSetting
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.SetDeduction(ctx, req.Percent); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "deduction percent updated"})
	}
}

// ============================================================
// Metrics & health
// ============================================================

func verificationMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := metrics.GetVerificationSnapshot()
		writeJSON(w, http.StatusOK, snapshot)
	}
}

func healthzHandler(svc *service.OrdersService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "receiptguard-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if svc != nil {
			start := time.Now()
			_, err := svc.List(ctx)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "postgrest", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
