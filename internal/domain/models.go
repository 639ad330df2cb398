// Package domain defines the core business entities for receiptguard.
// These models are independent of external services and represent the
// canonical data structures used throughout the verification engine.
package domain

import (
	"strings"
	"time"
)

// ============================================================
// Verification states
// ============================================================

// VerificationState is the lifecycle state of an order's receipt check.
// PENDING is the initial state; VERIFIED and FLAGGED are terminal, though
// re-running verification may flip an order between the two.
type VerificationState string

const (
	StatePending  VerificationState = "PENDING"
	StateVerified VerificationState = "VERIFIED"
	StateFlagged  VerificationState = "FLAGGED"
)

// ============================================================
// Orders
// ============================================================

// Order represents a purchase order with its payment receipt metadata.
// TotalAmount is the structured amount; TotalText is the legacy free-text
// field still present on old rows. DeclaredAmount reconciles the two.
type Order struct {
	ID             string            `json:"id"`
	CustomerName   string            `json:"customer_name,omitempty"`
	TotalAmount    float64           `json:"total_amount"`
	TotalText      string            `json:"total_text,omitempty"`
	PaymentMethod  string            `json:"payment_method,omitempty"`
	ReceiptURL     string            `json:"receipt_url,omitempty"`
	Reference      string            `json:"ocr_reference,omitempty"`
	DetectedAmount *float64          `json:"ocr_amount,omitempty"`
	State          VerificationState `json:"verification_state"`
	FlagReason     string            `json:"ocr_notes,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Flagged reports whether the order carries a fraud verdict.
func (o *Order) Flagged() bool {
	return o.State == StateFlagged
}

// ============================================================
// Payment method buckets
// ============================================================

// MethodBucket classifies a free-text payment method label.
type MethodBucket string

const (
	BucketZelle    MethodBucket = "zelle"
	BucketTransfer MethodBucket = "transfer"
	BucketOther    MethodBucket = "other"
)

var (
	zelleKeywords    = []string{"zelle", "mlc"}
	transferKeywords = []string{"tra", "cup", "móvil", "movil"}
)

// ClassifyMethod maps a payment method label to its bucket by
// case-insensitive substring match. The zelle bucket is tested first, so a
// label matching both keyword sets classifies as zelle.
func ClassifyMethod(label string) MethodBucket {
	lower := strings.ToLower(label)
	for _, kw := range zelleKeywords {
		if strings.Contains(lower, kw) {
			return BucketZelle
		}
	}
	for _, kw := range transferKeywords {
		if strings.Contains(lower, kw) {
			return BucketTransfer
		}
	}
	return BucketOther
}

// ============================================================
// Products
// ============================================================

// Product represents a catalog item. Cost 0 means "unknown cost": the
// product is excluded from investment totals and margin denominators but
// still contributes to potential profit. Stock may be negative in source
// data and is tolerated as-is.
type Product struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Cost       float64 `json:"cost"`
	Stock      int     `json:"stock"`
	Active     bool    `json:"active"`
	CategoryID string  `json:"category_id,omitempty"`
}

// ============================================================
// Verification
// ============================================================

// ReceiptFields holds the structured values extracted from raw OCR text.
// Reference is empty when no legible digit run was found; Amount is 0 when
// no monetary candidate matched. Neither condition is an error.
type ReceiptFields struct {
	Reference string  `json:"reference,omitempty"`
	Amount    float64 `json:"amount"`
}

// Verdict is the outcome of classifying one order's receipt.
type Verdict struct {
	State  VerificationState `json:"state"`
	Reason string            `json:"reason,omitempty"`
}

// VerificationResult is the full output of a verification run, including
// the raw OCR text for the audit view.
type VerificationResult struct {
	RunID          string            `json:"run_id"`
	OrderID        string            `json:"order_id"`
	State          VerificationState `json:"state"`
	Reason         string            `json:"reason,omitempty"`
	Reference      string            `json:"reference,omitempty"`
	DetectedAmount float64           `json:"detected_amount"`
	DeclaredAmount float64           `json:"declared_amount"`
	RawText        string            `json:"raw_text"`
	ProcessedAt    time.Time         `json:"processed_at"`
}

// ============================================================
// Reconciliation
// ============================================================

// OrderSummary is the per-order display row inside a reconciliation report.
type OrderSummary struct {
	OrderID      string            `json:"order_id"`
	ShortID      string            `json:"short_id"`
	CustomerName string            `json:"customer_name,omitempty"`
	Method       string            `json:"method"`
	Bucket       MethodBucket      `json:"bucket"`
	Amount       float64           `json:"amount"`
	Profit       float64           `json:"profit"`
	State        VerificationState `json:"state"`
	FlagReason   string            `json:"flag_reason,omitempty"`
}

// ReconciliationReport aggregates revenue, profit, and method buckets over
// the full order collection. Flagged orders stay inside the gross totals;
// their count is surfaced separately.
type ReconciliationReport struct {
	ID               string         `json:"id"`
	TotalRevenue     float64        `json:"total_revenue"`
	TotalProfit      float64        `json:"total_profit"`
	ZelleTotal       float64        `json:"zelle_total"`
	TransferTotal    float64        `json:"transfer_total"`
	OtherTotal       float64        `json:"other_total"`
	FlaggedCount     int            `json:"flagged_count"`
	OrderCount       int            `json:"order_count"`
	DeductionPercent float64        `json:"deduction_percent"`
	Orders           []OrderSummary `json:"orders"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// ============================================================
// Investment analysis
// ============================================================

// BreakEvenState describes investment recovery against realized revenue.
type BreakEvenState string

const (
	BreakEvenNone       BreakEvenState = "NO_ACTIVE_INVESTMENT"
	BreakEvenRecovered  BreakEvenState = "RECOVERED"
	BreakEvenInProgress BreakEvenState = "IN_PROGRESS"
)

// ProductInvestment is the per-product row of the investment table.
// MarginPercent is nil when the product cost is unknown (cost == 0).
type ProductInvestment struct {
	ProductID       string   `json:"product_id"`
	Name            string   `json:"name"`
	Cost            float64  `json:"cost"`
	Price           float64  `json:"price"`
	Stock           int      `json:"stock"`
	Investment      float64  `json:"investment"`
	PotentialProfit float64  `json:"potential_profit"`
	MarginPercent   *float64 `json:"margin_percent,omitempty"`
}

// BreakEven carries the recovery status fields relevant to its state.
type BreakEven struct {
	Status           BreakEvenState `json:"status"`
	Surplus          float64        `json:"surplus,omitempty"`
	Remaining        float64        `json:"remaining,omitempty"`
	RecoveredPercent float64        `json:"recovered_percent,omitempty"`
}

// InvestmentReport aggregates the product catalog against realized,
// non-flagged revenue. Flagged orders are excluded here, unlike the
// reconciliation report: money that may not be collectible must not count
// toward investment recovery.
type InvestmentReport struct {
	ID               string              `json:"id"`
	TotalInvestment  float64             `json:"total_investment"`
	PotentialProfit  float64             `json:"potential_profit"`
	RealizedRevenue  float64             `json:"realized_revenue"`
	RealizedProfit   float64             `json:"realized_profit"`
	DeductionPercent float64             `json:"deduction_percent"`
	BreakEven        BreakEven           `json:"break_even"`
	Products         []ProductInvestment `json:"products"`
	GeneratedAt      time.Time           `json:"generated_at"`
}

// ============================================================
// API request/response types
// ============================================================

// VerifyRequest is the optional POST body for /v1/orders/{orderId}/verify.
// ImageRef overrides the order's stored receipt URL when present.
type VerifyRequest struct {
	ImageRef string `json:"image_ref,omitempty"`
}

// DeductionSetting is the body for GET/PUT /v1/settings/deduction.
type DeductionSetting struct {
	Percent float64 `json:"percent"`
}

// VerificationMetrics is returned by GET /v1/metrics/verification.
type VerificationMetrics struct {
	TotalRuns        int64   `json:"totalRuns"`
	VerifiedCount    int64   `json:"verifiedCount"`
	FlaggedCount     int64   `json:"flaggedCount"`
	FailedCount      int64   `json:"failedCount"`
	FlagRate         float64 `json:"flagRate"`
	ExtractionErrors int64   `json:"extractionErrors"`
	Period           string  `json:"period"`
}

// SuccessResponse wraps a successful mutation response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// ============================================================
// Health API
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}
