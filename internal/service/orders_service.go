package service

import (
	"context"

	"github.com/kvasquez/receiptguard/internal/domain"
	"github.com/kvasquez/receiptguard/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var ordersTracer = otel.Tracer("orders-service")

// OrdersService exposes order collection reads and the bulk-clear event.
type OrdersService struct {
	orders port.OrderStore
	recon  *ReconciliationService
	logger *zap.Logger
}

// NewOrdersService creates an OrdersService.
func NewOrdersService(orders port.OrderStore, recon *ReconciliationService, logger *zap.Logger) *OrdersService {
	return &OrdersService{
		orders: orders,
		recon:  recon,
		logger: logger,
	}
}

// List returns all orders.
func (s *OrdersService) List(ctx context.Context) ([]domain.Order, error) {
	ctx, span := ordersTracer.Start(ctx, "OrdersService.List")
	defer span.End()

	return s.orders.ListOrders(ctx)
}

// Get returns one order by id.
func (s *OrdersService) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := ordersTracer.Start(ctx, "OrdersService.Get")
	defer span.End()

	if orderID == "" {
		return nil, &domain.ErrValidation{Field: "orderId", Message: "required"}
	}
	return s.orders.GetOrder(ctx, orderID)
}

// DeleteAll clears the order collection and invalidates the cached report,
// so no stale duplicate or revenue data survives the boundary event.
func (s *OrdersService) DeleteAll(ctx context.Context) error {
	ctx, span := ordersTracer.Start(ctx, "OrdersService.DeleteAll")
	defer span.End()

	if err := s.orders.DeleteAllOrders(ctx); err != nil {
		return err
	}

	s.recon.Invalidate()
	s.logger.Info("all orders deleted")
	return nil
}
