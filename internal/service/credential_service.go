package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
)

const maxConcurrentRefreshes = 10

// CredentialService keeps OAuth2 credentials fresh. An account whose refresh
// fails is flagged needs_reauth and skipped by publishing and automation.
type CredentialService interface {
	RefreshExpiring(ctx context.Context, within time.Duration) (refreshed, failed int, err error)
}

type credentialService struct {
	sa         repository.SocialAccountRepository
	refreshers map[models.Platform]Refresher
	now        func() time.Time
}

func NewCredentialService(sa repository.SocialAccountRepository, refreshers map[models.Platform]Refresher) CredentialService {
	return newCredentialService(sa, refreshers)
}

func newCredentialService(sa repository.SocialAccountRepository, refreshers map[models.Platform]Refresher) *credentialService {
	return &credentialService{sa: sa, refreshers: refreshers, now: time.Now}
}

func (s *credentialService) RefreshExpiring(ctx context.Context, within time.Duration) (int, int, error) {
	accounts, err := s.sa.ListExpiring(ctx, s.now().Add(within))
	if err != nil {
		return 0, 0, fmt.Errorf("list expiring accounts: %w", err)
	}

	var (
		mu                sync.Mutex
		wg                sync.WaitGroup
		refreshed, failed int
	)
	semaphore := make(chan struct{}, maxConcurrentRefreshes)

	for _, acc := range accounts {
		r, ok := s.refreshers[acc.Platform]
		if !ok {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}
		go func(acc *models.SocialAccount, r Refresher) {
			defer wg.Done()
			defer func() { <-semaphore }()

			err := r.Refresh(ctx, acc)
			if err != nil {
				slog.Warn("refreshing credential failed", "account_id", acc.ID, "platform", acc.Platform, "error", err)
				if err := s.sa.SetStatus(ctx, acc.ID, models.AccountStatusNeedsReauth); err != nil {
					slog.Error("flagging account", "account_id", acc.ID, "error", err)
				}
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
			} else {
				refreshed++
			}
		}(acc, r)
	}
	wg.Wait()

	return refreshed, failed, nil
}
