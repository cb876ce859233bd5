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

const maxConcurrentTargets = 10

// PublishService fans a post out to its targets when its publish task runs.
type PublishService interface {
	PublishPost(ctx context.Context, postID int64) error
}

type publishService struct {
	pr         repository.PostRepository
	pm         repository.PostMediaRepository
	pt         repository.PostTargetRepository
	sa         repository.SocialAccountRepository
	ph         repository.PostingHistoryRepository
	publishers map[models.Platform]Publisher
	now        func() time.Time
}

func NewPublishService(
	pr repository.PostRepository,
	pm repository.PostMediaRepository,
	pt repository.PostTargetRepository,
	sa repository.SocialAccountRepository,
	ph repository.PostingHistoryRepository,
	publishers map[models.Platform]Publisher) PublishService {
	return newPublishService(pr, pm, pt, sa, ph, publishers)
}

func newPublishService(
	pr repository.PostRepository,
	pm repository.PostMediaRepository,
	pt repository.PostTargetRepository,
	sa repository.SocialAccountRepository,
	ph repository.PostingHistoryRepository,
	publishers map[models.Platform]Publisher) *publishService {
	return &publishService{
		pr:         pr,
		pm:         pm,
		pt:         pt,
		sa:         sa,
		ph:         ph,
		publishers: publishers,
		now:        time.Now,
	}
}

// PublishPost publishes every target that is not yet published, then sets
// the post status: published when all targets are, failed otherwise. Target
// failures are recorded on the target and do not fail the call.
func (s *publishService) PublishPost(ctx context.Context, postID int64) error {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return fmt.Errorf("post %d: %w", postID, ErrNotFoundOrExpired)
	}
	if err := hydrate(ctx, s.pm, post); err != nil {
		return err
	}

	targets, err := s.pt.ListByPostID(ctx, postID)
	if err != nil {
		return err
	}

	semaphore := make(chan struct{}, maxConcurrentTargets)
	var wg sync.WaitGroup
	for _, t := range targets {
		if t.Status == models.PostStatusPublished {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}
		go func(t *models.PostTarget) {
			defer wg.Done()
			defer func() { <-semaphore }()
			s.publishTarget(ctx, post, t)
		}(t)
	}
	wg.Wait()

	status := models.PostStatusPublished
	for _, t := range targets {
		if t.Status != models.PostStatusPublished {
			status = models.PostStatusFailed
			break
		}
	}
	if err := s.pr.UpdateStatus(ctx, postID, status); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	slog.Info("post published", "post_id", postID, "status", status, "targets", len(targets))
	return nil
}

// publishTarget publishes one target and writes the outcome onto t.
func (s *publishService) publishTarget(ctx context.Context, post *models.Post, t *models.PostTarget) {
	externalID, err := s.send(ctx, post, t)

	if err != nil {
		slog.Warn("publishing target failed", "post_id", post.ID, "target_id", t.ID, "platform", t.Platform, "error", err)
		t.Status = models.PostStatusFailed
		t.ErrorMessage = err.Error()
	} else {
		now := s.now()
		t.Status = models.PostStatusPublished
		t.ExternalID = externalID
		t.ErrorMessage = ""
		t.PublishedAt = &now
	}

	if err := s.pt.UpdateResult(ctx, t); err != nil {
		slog.Error("saving target result", "target_id", t.ID, "error", err)
	}

	_, err = s.ph.Create(ctx, &models.PostingHistory{
		UserID:       post.UserID,
		PostID:       post.ID,
		TargetID:     t.ID,
		AccountID:    t.AccountID,
		ExternalID:   t.ExternalID,
		ErrorMessage: t.ErrorMessage,
	})
	if err != nil {
		slog.Error("saving posting history", "target_id", t.ID, "error", err)
	}
}

func (s *publishService) send(ctx context.Context, post *models.Post, t *models.PostTarget) (string, error) {
	acc, err := s.sa.GetByID(ctx, t.AccountID)
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", fmt.Errorf("account %d: %w", t.AccountID, ErrNotFoundOrExpired)
	}
	if acc.AccountStatus == models.AccountStatusNeedsReauth {
		return "", fmt.Errorf("account %d needs to be reconnected", acc.ID)
	}

	publisher, ok := s.publishers[t.Platform]
	if !ok {
		return "", fmt.Errorf("%s: %w", t.Platform, ErrNotConfigured)
	}

	return publisher.Publish(ctx, acc, models.ResolveForTarget(post, t))
}
