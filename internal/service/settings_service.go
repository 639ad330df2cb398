package service

import (
	"context"

	"github.com/kvasquez/receiptguard/internal/domain"
	"github.com/kvasquez/receiptguard/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var settingsTracer = otel.Tracer("settings-service")

// SettingsService reads and writes the process-wide deduction percentage.
type SettingsService struct {
	settings port.SettingsStore
	recon    *ReconciliationService
	logger   *zap.Logger
}

// NewSettingsService creates a SettingsService.
func NewSettingsService(settings port.SettingsStore, recon *ReconciliationService, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		settings: settings,
		recon:    recon,
		logger:   logger,
	}
}

// GetDeduction returns the current deduction percentage.
func (s *SettingsService) GetDeduction(ctx context.Context) (float64, error) {
	ctx, span := settingsTracer.Start(ctx, "SettingsService.GetDeduction")
	defer span.End()

	return s.settings.GetDeductionPercent(ctx)
}

// SetDeduction validates and persists a new deduction percentage. Changing
// it reclassifies the profit of all orders on the next aggregation; the
// cached report is invalidated so the change shows immediately.
func (s *SettingsService) SetDeduction(ctx context.Context, percent float64) error {
	ctx, span := settingsTracer.Start(ctx, "SettingsService.SetDeduction")
	defer span.End()

	if percent < 0 || percent > 100 {
		return &domain.ErrValidation{Field: "percent", Message: "must be between 0 and 100"}
	}

	if err := s.settings.SetDeductionPercent(ctx, percent); err != nil {
		return err
	}

	s.recon.Invalidate()
	s.logger.Info("deduction percent updated", zap.Float64("percent", percent))
	return nil
}
