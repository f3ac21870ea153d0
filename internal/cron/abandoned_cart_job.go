package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type abandonedSweeper interface {
	DeleteAbandoned(ctx context.Context, now time.Time, timeout time.Duration) (orders.AbandonReport, error)
}

// AbandonedCartJobParams configure the abandoned cart sweep.
type AbandonedCartJobParams struct {
	Logger  *logger.Logger
	Orders  abandonedSweeper
	Timeout time.Duration
	Metrics *metrics.OrderMetrics
}

// NewAbandonedCartJob builds the job that deletes carts idle past Timeout.
func NewAbandonedCartJob(params AbandonedCartJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Timeout <= 0 {
		return nil, fmt.Errorf("cart timeout must be positive")
	}
	return &abandonedCartJob{
		logg:    params.Logger,
		orders:  params.Orders,
		timeout: params.Timeout,
		metrics: params.Metrics,
		now:     time.Now,
	}, nil
}

type abandonedCartJob struct {
	logg    *logger.Logger
	orders  abandonedSweeper
	timeout time.Duration
	metrics *metrics.OrderMetrics
	now     func() time.Time
}

func (j *abandonedCartJob) Name() string { return "abandoned-carts" }

// Run sweeps once. Per-cart failures do not stop the sweep but fail the run.
func (j *abandonedCartJob) Run(ctx context.Context) error {
	report, err := j.orders.DeleteAbandoned(ctx, j.now(), j.timeout)
	if err != nil {
		return fmt.Errorf("abandoned carts: %w", err)
	}
	j.metrics.ObserveAbandoned(len(report.Deleted), len(report.Failures))

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"timeout":    j.timeout.String(),
		"candidates": report.Candidates,
		"deleted":    len(report.Deleted),
		"skipped":    len(report.Skipped),
		"failed":     len(report.Failures),
	})
	j.logg.Info(logCtx, "abandoned cart sweep complete")
	return report.Err()
}
