package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

var ErrTickInProgress = errors.New("automation tick already running")

// AutomationJob serializes automation ticks. Cron and the operator endpoint
// share one job so two ticks never overlap.
type AutomationJob struct {
	as      service.AutomationService
	mu      sync.Mutex
	timeout time.Duration
}

func NewAutomationJob(as service.AutomationService) *AutomationJob {
	return &AutomationJob{
		as:      as,
		timeout: 4 * time.Minute,
	}
}

// Tick runs one tick, or returns ErrTickInProgress when another is running.
func (j *AutomationJob) Tick(ctx context.Context) (*transfer.TickReport, error) {
	if !j.mu.TryLock() {
		return nil, ErrTickInProgress
	}
	defer j.mu.Unlock()

	return j.as.RunTick(ctx)
}

// Run is the cron entry point.
func (j *AutomationJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	_, err := j.Tick(ctx)
	switch {
	case errors.Is(err, ErrTickInProgress):
		slog.Info("skipping automation tick", "reason", err)
	case errors.Is(err, service.ErrPartialAutomationFailure):
		slog.Warn("automation tick finished with errors", "error", err)
	case err != nil:
		slog.Error("automation tick failed", "error", err)
	}
}
