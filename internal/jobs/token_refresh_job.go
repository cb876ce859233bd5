package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/crosspost/internal/service"
)

// refreshWindow is how far ahead of expiry credentials are renewed.
const refreshWindow = 30 * time.Minute

type TokenRefreshJob struct {
	cs service.CredentialService
}

func NewTokenRefreshJob(cs service.CredentialService) *TokenRefreshJob {
	return &TokenRefreshJob{
		cs: cs,
	}
}

// RefreshTokens is the cron entry point.
func (j *TokenRefreshJob) RefreshTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	refreshed, failed, err := j.cs.RefreshExpiring(ctx, refreshWindow)
	if err != nil {
		slog.Error("token refresh run failed", "error", err)
		return
	}
	if refreshed > 0 || failed > 0 {
		slog.Info("token refresh run finished", "refreshed", refreshed, "failed", failed)
	}
}
