package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

// AutomationService runs one tick of follower welcomes and comment replies
// for every user with automation enabled.
type AutomationService interface {
	RunTick(ctx context.Context) (*transfer.TickReport, error)
}

type automationService struct {
	cfg config.Automation
	st  repository.AutomationSettingsRepository
	sa  repository.SocialAccountRepository
	mk  repository.MarkerRepository
	api TwitterAPI
}

func NewAutomationService(
	cfg config.Automation,
	st repository.AutomationSettingsRepository,
	sa repository.SocialAccountRepository,
	mk repository.MarkerRepository,
	api TwitterAPI) AutomationService {
	return newAutomationService(cfg, st, sa, mk, api)
}

func newAutomationService(
	cfg config.Automation,
	st repository.AutomationSettingsRepository,
	sa repository.SocialAccountRepository,
	mk repository.MarkerRepository,
	api TwitterAPI) *automationService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = 100
	}
	if cfg.MaxSendsPerTick < 1 {
		cfg.MaxSendsPerTick = 20
	}
	if cfg.MaxErrors < 1 {
		cfg.MaxErrors = 5
	}
	return &automationService{cfg: cfg, st: st, sa: sa, mk: mk, api: api}
}

// RunTick processes users concurrently, bounded by cfg.Concurrency. One
// user's failure never affects another's; when any user failed the report is
// returned together with ErrPartialAutomationFailure.
func (s *automationService) RunTick(ctx context.Context) (*transfer.TickReport, error) {
	settings, err := s.st.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list automation settings: %w", err)
	}

	results := make([]transfer.UserResult, len(settings))
	semaphore := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, st := range settings {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int, st *models.AutomationSettings) {
			defer wg.Done()
			defer func() { <-semaphore }()
			results[i] = s.runUser(ctx, st)
		}(i, st)
	}
	wg.Wait()

	report := &transfer.TickReport{Users: results}
	for _, r := range results {
		report.WelcomesSent += r.WelcomesSent
		report.RepliesSent += r.RepliesSent
		if len(r.Errors) > 0 {
			report.FailedUsers++
		}
	}

	slog.Info("automation tick finished",
		"users", len(results),
		"welcomes_sent", report.WelcomesSent,
		"replies_sent", report.RepliesSent,
		"failed_users", report.FailedUsers)

	if report.FailedUsers > 0 {
		return report, fmt.Errorf("%d of %d users: %w", report.FailedUsers, len(results), ErrPartialAutomationFailure)
	}
	return report, nil
}

// userRun accumulates one user's outcome within a tick.
type userRun struct {
	result    transfer.UserResult
	maxErrors int
	budget    int
}

func (r *userRun) fail(format string, args ...any) {
	if len(r.result.Errors) >= r.maxErrors {
		r.result.ErrorsDropped++
		return
	}
	r.result.Errors = append(r.result.Errors, fmt.Sprintf(format, args...))
}

func (s *automationService) runUser(ctx context.Context, st *models.AutomationSettings) transfer.UserResult {
	run := &userRun{
		result:    transfer.UserResult{UserID: st.UserID},
		maxErrors: s.cfg.MaxErrors,
		budget:    s.cfg.MaxSendsPerTick,
	}

	acc, err := s.sa.GetByPlatform(ctx, st.UserID, models.PlatformTwitter)
	if err != nil {
		run.fail("load account: %v", err)
		return run.result
	}
	if acc == nil || acc.AccountStatus == models.AccountStatusNeedsReauth {
		run.result.Skipped = true
		return run.result
	}

	if st.WelcomeEnabled && strings.TrimSpace(st.WelcomeMessage) != "" {
		if !s.welcome(ctx, run, acc, st.WelcomeMessage) {
			return run.result
		}
	}

	if st.ReplyEnabled && strings.TrimSpace(st.ReplyKeyword) != "" && strings.TrimSpace(st.ReplyMessage) != "" {
		s.reply(ctx, run, acc, st.ReplyKeyword, st.ReplyMessage)
	}
	return run.result
}

// welcome messages followers without a welcome marker. It reports false
// when the user's run must stop.
func (s *automationService) welcome(ctx context.Context, run *userRun, acc *models.SocialAccount, message string) bool {
	followers, err := s.api.Followers(ctx, acc, s.cfg.PageSize)
	if err != nil {
		run.fail("fetch followers: %v", err)
		return false
	}

	done, err := s.mk.ListExternalIDs(ctx, acc.UserID, models.PlatformTwitter, models.MarkerKindWelcome)
	if err != nil {
		run.fail("load welcome markers: %v", err)
		return false
	}

	for _, f := range followers {
		if f.ID == "" {
			continue
		}
		if _, ok := done[f.ID]; ok {
			continue
		}
		if run.budget <= 0 {
			break
		}
		done[f.ID] = struct{}{}
		run.budget--

		if err := s.api.SendDM(ctx, acc, f.ID, message); err != nil {
			run.fail("welcome %s: %v", f.ID, err)
			continue
		}

		run.result.WelcomesSent++
		if !s.mark(ctx, run, acc, models.MarkerKindWelcome, f.ID) {
			return false
		}
	}
	return true
}

// reply answers mentions containing keyword that have no reply marker.
func (s *automationService) reply(ctx context.Context, run *userRun, acc *models.SocialAccount, keyword, message string) {
	mentions, err := s.api.Mentions(ctx, acc, s.cfg.PageSize)
	if err != nil {
		run.fail("fetch mentions: %v", err)
		return
	}

	done, err := s.mk.ListExternalIDs(ctx, acc.UserID, models.PlatformTwitter, models.MarkerKindReply)
	if err != nil {
		run.fail("load reply markers: %v", err)
		return
	}

	keyword = strings.ToLower(strings.TrimSpace(keyword))
	for _, m := range mentions {
		if m.ID == "" || !strings.Contains(strings.ToLower(m.Text), keyword) {
			continue
		}
		if _, ok := done[m.ID]; ok {
			continue
		}
		if run.budget <= 0 {
			break
		}
		done[m.ID] = struct{}{}
		run.budget--

		if _, err := s.api.Reply(ctx, acc, m.ID, message); err != nil {
			run.fail("reply %s: %v", m.ID, err)
			continue
		}

		run.result.RepliesSent++
		if !s.mark(ctx, run, acc, models.MarkerKindReply, m.ID) {
			return
		}
	}
}

// mark records a delivered action. A failed write is reported and ends the
// user's run for this tick, so at most one unmarked send per tick is repeated.
func (s *automationService) mark(ctx context.Context, run *userRun, acc *models.SocialAccount, kind, externalID string) bool {
	err := s.mk.Create(ctx, &models.AutomationMarker{
		UserID:     acc.UserID,
		Platform:   models.PlatformTwitter,
		Kind:       kind,
		ExternalID: externalID,
	})
	if err != nil {
		slog.Error("writing automation marker", "user_id", acc.UserID, "kind", kind, "external_id", externalID, "error", err)
		run.fail("%s marker %s: %v", kind, externalID, err)
		return false
	}
	return true
}
