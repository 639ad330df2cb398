package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kvasquez/receiptguard/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Orders store — list, get, duplicate lookup, verdict writes
// ============================================================

// orderRow maps the orders table columns. The verdict lives in two boolean
// columns (ocr_verified, ocr_fraud_flag) kept for compatibility with older
// rows; it is normalized into a single VerificationState at read time.
type orderRow struct {
	ID            string   `json:"id"`
	CustomerName  string   `json:"customer_name"`
	TotalAmount   float64  `json:"total_amount"`
	TotalText     string   `json:"total_text"`
	PaymentMethod string   `json:"payment_method"`
	ReceiptURL    string   `json:"receipt_url"`
	Reference     string   `json:"ocr_reference"`
	OCRAmount     *float64 `json:"ocr_amount"`
	Verified      bool     `json:"ocr_verified"`
	FraudFlag     bool     `json:"ocr_fraud_flag"`
	Notes         string   `json:"ocr_notes"`
	CreatedAt     string   `json:"created_at"`
}

func (r orderRow) toDomain(logger *zap.Logger) domain.Order {
	state := domain.StatePending
	switch {
	case r.FraudFlag:
		state = domain.StateFlagged
	case r.Verified:
		state = domain.StateVerified
	}

	t, err := time.Parse(time.RFC3339, r.CreatedAt)
	if err != nil && r.CreatedAt != "" {
		logger.Debug("postgrest: unparseable created_at, using zero time",
			zap.String("order_id", r.ID),
			zap.String("created_at", r.CreatedAt),
		)
	}

	return domain.Order{
		ID:             r.ID,
		CustomerName:   r.CustomerName,
		TotalAmount:    r.TotalAmount,
		TotalText:      r.TotalText,
		PaymentMethod:  r.PaymentMethod,
		ReceiptURL:     r.ReceiptURL,
		Reference:      r.Reference,
		DetectedAmount: r.OCRAmount,
		State:          state,
		FlagReason:     r.Notes,
		CreatedAt:      t,
	}
}

// ListOrders fetches all orders, oldest first so report rows keep insertion
// order before the flagged-first sort.
func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	ctx, span := tracer.Start(ctx, "PostgREST.ListOrders")
	defer span.End()

	var orders []domain.Order

	err := c.execute(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, "orders?order=created_at.asc")
		if err != nil {
			return err
		}

		if body == nil || string(body) == "[]" {
			orders = []domain.Order{}
			return nil
		}

		var rows []orderRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode orders: %w", err)
		}

		orders = make([]domain.Order, 0, len(rows))
		for _, r := range rows {
			orders = append(orders, r.toDomain(c.logger))
		}
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest/orders", Err: err}
	}

	return orders, nil
}

// GetOrder fetches a single order by id.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "PostgREST.GetOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	var order *domain.Order

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("orders?id=eq.%s&limit=1", url.QueryEscape(orderID))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}

		if body == nil || string(body) == "[]" {
			return &domain.ErrNotFound{Resource: "order", ID: orderID}
		}

		var rows []orderRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode order: %w", err)
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "order", ID: orderID}
		}

		o := rows[0].toDomain(c.logger)
		order = &o
		return nil
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "postgrest/orders", Err: err}
	}

	return order, nil
}

// FindOrderByReference looks for a prior order already claiming the given
// receipt reference. The order under verification is excluded so re-running
// verification never collides with the order's own previous write.
func (c *Client) FindOrderByReference(ctx context.Context, reference, excludingOrderID string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "PostgREST.FindOrderByReference")
	defer span.End()
	span.SetAttributes(attribute.String("reference", reference))

	var witness *domain.Order

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("orders?ocr_reference=eq.%s&id=neq.%s&limit=1",
			url.QueryEscape(reference), url.QueryEscape(excludingOrderID))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}

		if body == nil || string(body) == "[]" {
			witness = nil
			return nil
		}

		var rows []orderRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode duplicate lookup: %w", err)
		}
		if len(rows) == 0 {
			witness = nil
			return nil
		}

		o := rows[0].toDomain(c.logger)
		witness = &o
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest/orders", Err: err}
	}

	return witness, nil
}

// SaveVerification persists a verdict and the extracted receipt fields in a
// single PATCH, so a crash can never leave the reference without its verdict.
func (c *Client) SaveVerification(ctx context.Context, orderID string, fields domain.ReceiptFields, verdict domain.Verdict) error {
	ctx, span := tracer.Start(ctx, "PostgREST.SaveVerification")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("verdict", string(verdict.State)),
	)

	row := map[string]any{
		"ocr_reference":  fields.Reference,
		"ocr_amount":     fields.Amount,
		"ocr_verified":   verdict.State == domain.StateVerified,
		"ocr_fraud_flag": verdict.State == domain.StateFlagged,
		"ocr_notes":      verdict.Reason,
	}

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("orders?id=eq.%s", url.QueryEscape(orderID))
		return c.doPatch(ctx, path, row)
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest/orders", Err: err}
	}
	return nil
}

// DeleteAllOrders removes every order row. PostgREST refuses an unfiltered
// DELETE, so a match-everything filter is used.
func (c *Client) DeleteAllOrders(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "PostgREST.DeleteAllOrders")
	defer span.End()

	err := c.execute(ctx, func() error {
		return c.doDelete(ctx, "orders?id=neq.00000000-0000-0000-0000-000000000000")
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest/orders", Err: err}
	}
	return nil
}
