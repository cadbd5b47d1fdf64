package jobs

import (
	"context"
	"fmt"

	"github.com/proquant/screener/internal/engine"
	"github.com/proquant/screener/pkg/logger"
)

// RefreshJob re-runs the scan cycle on a fixed interval
// ⭐ SSOT: 주기 스캔 스케줄은 이 Job에서만
type RefreshJob struct {
	engine *engine.Engine
	logger *logger.Logger
}

// NewRefreshJob creates a new refresh job
func NewRefreshJob(eng *engine.Engine, log *logger.Logger) *RefreshJob {
	return &RefreshJob{
		engine: eng,
		logger: log,
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "scan_refresh"
}

// Schedule returns the cron schedule (every 5 minutes)
func (j *RefreshJob) Schedule() string {
	return "0 */5 * * * *"
}

// Run executes one scan cycle
func (j *RefreshJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled scan refresh")

	snap, err := j.engine.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh snapshot: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"stocks":   len(snap.Stocks),
		"excluded": len(snap.Excluded),
	}).Info("Scheduled scan refresh completed")

	return nil
}
