// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/kvasquez/receiptguard/internal/domain"
)

// TextExtractor turns a receipt image reference into raw recognized text.
// Implementations must respect the caller's context deadline; a timed-out
// recognition surfaces as domain.ErrExtractionFailed.
type TextExtractor interface {
	Extract(ctx context.Context, imageRef string) (string, error)
}

// OrderStore defines the order operations the engine consumes from the
// persistence API. Implemented by the PostgREST adapter.
type OrderStore interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// FindOrderByReference returns a prior order already claiming the given
	// receipt reference, excluding the order currently under verification.
	// A nil order with nil error means no witness exists.
	FindOrderByReference(ctx context.Context, reference, excludingOrderID string) (*domain.Order, error)

	// SaveVerification persists a verdict plus extracted fields against one
	// order in a single write.
	SaveVerification(ctx context.Context, orderID string, fields domain.ReceiptFields, verdict domain.Verdict) error

	// DeleteAllOrders is the bulk-clear boundary event.
	DeleteAllOrders(ctx context.Context) error
}

// ProductStore retrieves the product catalog.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// SettingsStore reads and writes the process-wide deduction percentage.
type SettingsStore interface {
	GetDeductionPercent(ctx context.Context) (float64, error)
	SetDeductionPercent(ctx context.Context, percent float64) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
