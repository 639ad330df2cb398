package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ReportPoller rebuilds the reconciliation report on a fixed interval while
// the service runs, keeping the cached latest report warm for readers.
//
// A tick that fires while a previous build is still running is skipped, not
// queued: a slow store must never stack aggregations.
type ReportPoller struct {
	recon    *ReconciliationService
	interval time.Duration
	logger   *zap.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// NewReportPoller creates a poller around the reconciliation service.
func NewReportPoller(recon *ReconciliationService, interval time.Duration, logger *zap.Logger) *ReportPoller {
	return &ReportPoller{
		recon:    recon,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the polling loop. It returns immediately; Stop cancels it.
func (p *ReportPoller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.tick(ctx)
			}
		}
	}()

	p.logger.Info("report poller started", zap.Duration("interval", p.interval))
}

func (p *ReportPoller) tick(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Debug("report poll skipped, previous build still running")
		return
	}
	defer p.running.Store(false)

	if _, err := p.recon.BuildReport(ctx); err != nil {
		p.logger.Warn("scheduled report build failed", zap.Error(err))
	}
}

// Stop cancels the polling loop and waits for the in-flight tick to finish.
func (p *ReportPoller) Stop() {
	p.once.Do(func() {
		if p.cancel != nil {
			p.cancel()
			<-p.done
		}
		p.logger.Info("report poller stopped")
	})
}
