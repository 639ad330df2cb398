package service

import (
	"context"
	"sort"
	"time"

	"github.com/kvasquez/receiptguard/internal/domain"
	"github.com/kvasquez/receiptguard/internal/infra/observability"
	"github.com/kvasquez/receiptguard/internal/money"
	"github.com/kvasquez/receiptguard/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var reconTracer = otel.Tracer("reconciliation-service")

const latestReportKey = "reconciliation:latest"

// ReconciliationService aggregates revenue, profit, and payment method
// buckets over the full order collection.
type ReconciliationService struct {
	orders   port.OrderStore
	settings port.SettingsStore
	cache    port.Cache[*domain.ReconciliationReport]
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewReconciliationService creates a ReconciliationService.
func NewReconciliationService(
	orders port.OrderStore,
	settings port.SettingsStore,
	cache port.Cache[*domain.ReconciliationReport],
	logger *zap.Logger,
	metrics *observability.Metrics,
) *ReconciliationService {
	return &ReconciliationService{
		orders:   orders,
		settings: settings,
		cache:    cache,
		logger:   logger,
		metrics:  metrics,
	}
}

// BuildReport fetches orders and the deduction percentage concurrently and
// computes a fresh reconciliation report. The result is cached as the
// latest report for fast polling reads.
func (s *ReconciliationService) BuildReport(ctx context.Context) (*domain.ReconciliationReport, error) {
	ctx, span := reconTracer.Start(ctx, "ReconciliationService.BuildReport")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("build_reconciliation", time.Since(start))
	}()

	var (
		orders    []domain.Order
		deduction float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.orders.ListOrders(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		deduction, err = s.settings.GetDeductionPercent(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := Reconcile(orders, deduction)
	s.cache.Set(latestReportKey, report)
	s.metrics.IncrReportBuilt("reconciliation")

	s.logger.Debug("reconciliation report built",
		zap.Int("order_count", report.OrderCount),
		zap.Int("flagged_count", report.FlaggedCount),
		zap.Float64("total_revenue", report.TotalRevenue),
	)

	return report, nil
}

// LatestReport returns the cached report from the last build, falling back
// to a fresh build when the cache is cold or expired.
func (s *ReconciliationService) LatestReport(ctx context.Context) (*domain.ReconciliationReport, error) {
	if report, ok := s.cache.Get(latestReportKey); ok {
		s.metrics.IncrCacheHit("reconciliation")
		return report, nil
	}
	s.metrics.IncrCacheMiss("reconciliation")
	return s.BuildReport(ctx)
}

// Invalidate drops the cached report. Called on the bulk-clear boundary
// event so a deleted collection is never reported from cache.
func (s *ReconciliationService) Invalidate() {
	s.cache.Delete(latestReportKey)
}

// Reconcile computes the aggregate report over the given orders. Flagged
// orders stay inside the gross totals; their count is surfaced separately.
// Running totals round after each addition.
func Reconcile(orders []domain.Order, deductionPercent float64) *domain.ReconciliationReport {
	report := &domain.ReconciliationReport{
		ID:               uuid.NewString(),
		DeductionPercent: deductionPercent,
		Orders:           make([]domain.OrderSummary, 0, len(orders)),
		GeneratedAt:      time.Now().UTC(),
	}

	for _, o := range orders {
		amount := o.DeclaredAmount()
		profit := money.Percent2(amount, deductionPercent)
		bucket := domain.ClassifyMethod(o.PaymentMethod)

		report.TotalRevenue = money.Add2(report.TotalRevenue, amount)
		report.TotalProfit = money.Add2(report.TotalProfit, profit)

		switch bucket {
		case domain.BucketZelle:
			report.ZelleTotal = money.Add2(report.ZelleTotal, amount)
		case domain.BucketTransfer:
			report.TransferTotal = money.Add2(report.TransferTotal, amount)
		default:
			report.OtherTotal = money.Add2(report.OtherTotal, amount)
		}

		if o.Flagged() {
			report.FlaggedCount++
		}
		report.OrderCount++

		report.Orders = append(report.Orders, domain.OrderSummary{
			OrderID:      o.ID,
			ShortID:      shortID(o.ID),
			CustomerName: o.CustomerName,
			Method:       o.PaymentMethod,
			Bucket:       bucket,
			Amount:       amount,
			Profit:       profit,
			State:        o.State,
			FlagReason:   o.FlagReason,
		})
	}

	// Fraud surfaced first; within each group, insertion order is kept.
	sort.SliceStable(report.Orders, func(i, j int) bool {
		return report.Orders[i].State == domain.StateFlagged &&
			report.Orders[j].State != domain.StateFlagged
	})

	return report
}

// shortID yields the display form of an order id (first uuid segment).
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
