// Package service contains the core verification and reporting engines.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kvasquez/receiptguard/internal/domain"
	"github.com/kvasquez/receiptguard/internal/infra/observability"
	"github.com/kvasquez/receiptguard/internal/infra/resilience"
	"github.com/kvasquez/receiptguard/internal/money"
	"github.com/kvasquez/receiptguard/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("verification-service")

// Amount tolerance constants. Differences up to a cent are OCR/rounding
// noise; beyond 10% of the declared total the payment is treated as fraud.
const (
	amountToleranceAbs = 0.01
	amountToleranceRel = 0.10
)

// VerificationService runs the extract, parse, duplicate-check, classify,
// persist pipeline for a single order.
type VerificationService struct {
	extractor  port.TextExtractor
	orders     port.OrderStore
	bulkhead   *resilience.Bulkhead
	ocrTimeout time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics

	// group collapses concurrent verification requests for the same order
	// id into one execution, preserving verdict-write atomicity.
	group singleflight.Group
}

// NewVerificationService creates a VerificationService.
func NewVerificationService(
	extractor port.TextExtractor,
	orders port.OrderStore,
	bulkhead *resilience.Bulkhead,
	ocrTimeout time.Duration,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *VerificationService {
	return &VerificationService{
		extractor:  extractor,
		orders:     orders,
		bulkhead:   bulkhead,
		ocrTimeout: ocrTimeout,
		logger:     logger,
		metrics:    metrics,
	}
}

// Verify runs the full verification pipeline on one order. Concurrent calls
// for the same order id share a single execution; calls for different orders
// run independently, bounded only by the OCR bulkhead.
func (s *VerificationService) Verify(ctx context.Context, orderID, imageRefOverride string) (*domain.VerificationResult, error) {
	ctx, span := tracer.Start(ctx, "VerificationService.Verify")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	v, err, shared := s.group.Do(orderID, func() (any, error) {
		return s.verifyOne(ctx, orderID, imageRefOverride)
	})
	if shared {
		s.logger.Debug("verification coalesced with in-flight run",
			zap.String("order_id", orderID))
	}
	if err != nil {
		return nil, err
	}
	return v.(*domain.VerificationResult), nil
}

func (s *VerificationService) verifyOne(ctx context.Context, orderID, imageRefOverride string) (*domain.VerificationResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("verify_order", time.Since(start))
	}()

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	imageRef := order.ReceiptURL
	if imageRefOverride != "" {
		imageRef = imageRefOverride
	}
	if imageRef == "" {
		return nil, &domain.ErrValidation{Field: "receipt_url", Message: "order has no receipt image"}
	}

	rawText, err := s.extract(ctx, imageRef)
	if err != nil {
		// Extraction failures abort before any write: the order stays in
		// its previous state.
		s.metrics.IncrVerification("failed")
		s.metrics.IncrExtractionError()
		s.logger.Warn("ocr extraction failed",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return nil, err
	}

	fields := ParseReceiptFields(rawText)
	declared := order.DeclaredAmount()

	var witness *domain.Order
	if fields.Reference != "" {
		witness, err = s.orders.FindOrderByReference(ctx, fields.Reference, orderID)
		if err != nil {
			return nil, err
		}
	}

	verdict := Classify(fields, declared, witness)

	// The verdict only becomes authoritative for other orders' duplicate
	// checks once this write is confirmed.
	if err := s.orders.SaveVerification(ctx, orderID, fields, verdict); err != nil {
		s.metrics.IncrVerification("failed")
		return nil, err
	}

	s.metrics.IncrVerification(strings.ToLower(string(verdict.State)))
	s.logger.Info("order verified",
		zap.String("order_id", orderID),
		zap.String("verdict", string(verdict.State)),
		zap.String("reason", verdict.Reason),
		zap.Float64("detected_amount", fields.Amount),
		zap.Float64("declared_amount", declared),
	)

	return &domain.VerificationResult{
		RunID:          uuid.NewString(),
		OrderID:        orderID,
		State:          verdict.State,
		Reason:         verdict.Reason,
		Reference:      fields.Reference,
		DetectedAmount: fields.Amount,
		DeclaredAmount: declared,
		RawText:        rawText,
		ProcessedAt:    time.Now().UTC(),
	}, nil
}

// extract runs OCR inside the bulkhead with a bounded timeout.
func (s *VerificationService) extract(ctx context.Context, imageRef string) (string, error) {
	if err := s.bulkhead.Acquire(ctx); err != nil {
		return "", &domain.ErrTimeout{Operation: "ocr bulkhead acquire"}
	}
	defer s.bulkhead.Release()

	ctx, cancel := context.WithTimeout(ctx, s.ocrTimeout)
	defer cancel()

	text, err := s.extractor.Extract(ctx, imageRef)
	if err != nil {
		var unavailable *domain.ErrExtractionUnavailable
		if errors.As(err, &unavailable) {
			return "", err
		}
		var failed *domain.ErrExtractionFailed
		if errors.As(err, &failed) {
			return "", err
		}
		return "", &domain.ErrExtractionFailed{ImageRef: imageRef, Err: err}
	}
	return text, nil
}

// Classify applies the fraud rules to one order's extracted fields.
//
// A duplicate witness flags unconditionally. Amount checks are two-tier:
// any difference above a cent is noted as a discrepancy, but only a
// deviation above 10% of the declared total flags the order. A missing
// reference is noted but never flags on its own.
func Classify(fields domain.ReceiptFields, declaredAmount float64, witness *domain.Order) domain.Verdict {
	var reasons []string
	flagged := false

	if fields.Reference == "" {
		reasons = append(reasons, "no legible reference")
	}

	if witness != nil {
		flagged = true
		reasons = append(reasons, fmt.Sprintf("reference already used by order %s", witness.ID))
	}

	if fields.Amount > 0 {
		diff := money.Round2(math.Abs(fields.Amount - declaredAmount))
		if diff > amountToleranceAbs {
			reasons = append(reasons, "amount discrepancy")
			if diff > amountToleranceRel*declaredAmount {
				flagged = true
			}
		}
	}

	state := domain.StateVerified
	if flagged {
		state = domain.StateFlagged
	}

	return domain.Verdict{
		State:  state,
		Reason: strings.Join(reasons, " | "),
	}
}
