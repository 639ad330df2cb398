package service

import (
	"context"
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

var investTracer = otel.Tracer("investment-service")

// InvestmentService analyzes inventory investment against realized revenue
// from non-flagged orders.
type InvestmentService struct {
	products port.ProductStore
	orders   port.OrderStore
	settings port.SettingsStore
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewInvestmentService creates an InvestmentService.
func NewInvestmentService(
	products port.ProductStore,
	orders port.OrderStore,
	settings port.SettingsStore,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *InvestmentService {
	return &InvestmentService{
		products: products,
		orders:   orders,
		settings: settings,
		logger:   logger,
		metrics:  metrics,
	}
}

// BuildReport fetches products, orders, and the deduction percentage
// concurrently and computes a fresh investment report.
func (s *InvestmentService) BuildReport(ctx context.Context) (*domain.InvestmentReport, error) {
	ctx, span := investTracer.Start(ctx, "InvestmentService.BuildReport")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("build_investment", time.Since(start))
	}()

	var (
		products  []domain.Product
		orders    []domain.Order
		deduction float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.products.ListProducts(gctx)
		return err
	})
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

	report := Analyze(products, orders, deduction)
	s.metrics.IncrReportBuilt("investment")

	s.logger.Debug("investment report built",
		zap.Float64("total_investment", report.TotalInvestment),
		zap.Float64("realized_revenue", report.RealizedRevenue),
		zap.String("break_even", string(report.BreakEven.Status)),
	)

	return report, nil
}

// Analyze computes the investment report. Products with cost 0 have unknown
// cost: they are excluded from investment totals and margin, but their
// potential profit is still displayed. Flagged orders never count toward
// realized revenue.
func Analyze(products []domain.Product, orders []domain.Order, deductionPercent float64) *domain.InvestmentReport {
	report := &domain.InvestmentReport{
		ID:               uuid.NewString(),
		DeductionPercent: deductionPercent,
		Products:         make([]domain.ProductInvestment, 0, len(products)),
		GeneratedAt:      time.Now().UTC(),
	}

	for _, p := range products {
		stock := float64(p.Stock)
		investment := money.Round2(p.Cost * stock)
		potential := money.Round2((p.Price - p.Cost) * stock)

		row := domain.ProductInvestment{
			ProductID:       p.ID,
			Name:            p.Name,
			Cost:            p.Cost,
			Price:           p.Price,
			Stock:           p.Stock,
			Investment:      investment,
			PotentialProfit: potential,
		}

		// Cost 0 means unknown cost: no margin, no investment contribution,
		// but the potential profit still shows.
		if p.Cost > 0 {
			margin := money.Round2((p.Price - p.Cost) / p.Cost * 100)
			row.MarginPercent = &margin
			report.TotalInvestment = money.Add2(report.TotalInvestment, investment)
		}
		report.PotentialProfit = money.Add2(report.PotentialProfit, potential)

		report.Products = append(report.Products, row)
	}

	for _, o := range orders {
		if o.Flagged() {
			continue
		}
		amount := o.DeclaredAmount()
		report.RealizedRevenue = money.Add2(report.RealizedRevenue, amount)
		report.RealizedProfit = money.Add2(report.RealizedProfit, money.Percent2(amount, deductionPercent))
	}

	report.BreakEven = breakEven(report.TotalInvestment, report.RealizedRevenue)
	return report
}

func breakEven(totalInvestment, realizedRevenue float64) domain.BreakEven {
	if totalInvestment == 0 {
		return domain.BreakEven{Status: domain.BreakEvenNone}
	}

	deficit := money.Round2(totalInvestment - realizedRevenue)
	if deficit <= 0 {
		return domain.BreakEven{
			Status:  domain.BreakEvenRecovered,
			Surplus: money.Round2(-deficit),
		}
	}

	return domain.BreakEven{
		Status:           domain.BreakEvenInProgress,
		Remaining:        deficit,
		RecoveredPercent: money.Round2(realizedRevenue / totalInvestment * 100),
	}
}
