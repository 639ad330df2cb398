package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kvasquez/receiptguard/internal/domain"
)

// ============================================================
// Settings store — deduction percentage
// ============================================================

const deductionKey = "deduction_percent"

type settingRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// GetDeductionPercent reads the process-wide deduction percentage.
// A missing row means 0 (no deduction configured).
func (c *Client) GetDeductionPercent(ctx context.Context) (float64, error) {
	ctx, span := tracer.Start(ctx, "PostgREST.GetDeductionPercent")
	defer span.End()

	var percent float64

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("settings?key=eq.%s&limit=1", deductionKey)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}

		if body == nil || string(body) == "[]" {
			percent = 0
			return nil
		}

		var rows []settingRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode settings: %w", err)
		}
		if len(rows) == 0 {
			percent = 0
			return nil
		}

		var v float64
		if err := json.Unmarshal([]byte(rows[0].Value), &v); err != nil {
			return fmt.Errorf("invalid deduction value %q: %w", rows[0].Value, err)
		}
		percent = v
		return nil
	})

	if err != nil {
		return 0, &domain.ErrExternalService{Service: "postgrest/settings", Err: err}
	}

	return percent, nil
}

// SetDeductionPercent upserts the deduction percentage. PATCH first; when
// the filter matched no row, insert one. The PATCH asks for the updated
// representation because PostgREST answers a zero-row PATCH with 2xx, which
// would otherwise look like a successful write.
func (c *Client) SetDeductionPercent(ctx context.Context, percent float64) error {
	ctx, span := tracer.Start(ctx, "PostgREST.SetDeductionPercent")
	defer span.End()

	value := fmt.Sprintf("%g", percent)

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("settings?key=eq.%s", deductionKey)
		body, err := c.doPatchReturning(ctx, path, map[string]any{"value": value})
		if err != nil {
			return err
		}
		if len(body) > 0 && string(body) != "[]" {
			return nil // row existed and was updated
		}
		_, err = c.doPost(ctx, "settings", map[string]any{
			"key":   deductionKey,
			"value": value,
		})
		return err
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest/settings", Err: err}
	}
	return nil
}
