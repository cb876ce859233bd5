package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/testutil"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTwitter serves followers and mentions per user and records sends.
type fakeTwitter struct {
	mu sync.Mutex

	followers    map[int64][]transfer.TwitterUser
	mentions     map[int64][]transfer.TweetData
	followersErr map[int64]error
	failDM       map[string]bool

	dms     map[int64][]string
	replies map[int64][]string
}

func newFakeTwitter() *fakeTwitter {
	return &fakeTwitter{
		followers:    map[int64][]transfer.TwitterUser{},
		mentions:     map[int64][]transfer.TweetData{},
		followersErr: map[int64]error{},
		failDM:       map[string]bool{},
		dms:          map[int64][]string{},
		replies:      map[int64][]string{},
	}
}

func (f *fakeTwitter) Followers(ctx context.Context, acc *models.SocialAccount, max int) ([]transfer.TwitterUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.followersErr[acc.UserID]; err != nil {
		return nil, err
	}
	return f.followers[acc.UserID], nil
}

func (f *fakeTwitter) SendDM(ctx context.Context, acc *models.SocialAccount, recipientID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDM[recipientID] {
		return &UpstreamError{Status: 403, Body: "cannot dm " + recipientID}
	}
	f.dms[acc.UserID] = append(f.dms[acc.UserID], recipientID)
	return nil
}

func (f *fakeTwitter) Mentions(ctx context.Context, acc *models.SocialAccount, max int) ([]transfer.TweetData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mentions[acc.UserID], nil
}

func (f *fakeTwitter) Reply(ctx context.Context, acc *models.SocialAccount, tweetID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[acc.UserID] = append(f.replies[acc.UserID], tweetID)
	return "r-" + tweetID, nil
}

func (f *fakeTwitter) Tweet(ctx context.Context, acc *models.SocialAccount, text string) (string, error) {
	return "t-1", nil
}

func (f *fakeTwitter) sent(userID int64) ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dms[userID]...), append([]string(nil), f.replies[userID]...)
}

func users(ids ...string) []transfer.TwitterUser {
	out := make([]transfer.TwitterUser, 0, len(ids))
	for _, id := range ids {
		out = append(out, transfer.TwitterUser{ID: id})
	}
	return out
}

func enableAutomation(t *testing.T, store *testutil.Store, userID int64) {
	t.Helper()
	require.NoError(t, store.Settings().Upsert(context.Background(), &models.AutomationSettings{
		UserID:         userID,
		WelcomeEnabled: true,
		WelcomeMessage: "thanks for the follow",
		ReplyEnabled:   true,
		ReplyKeyword:   "Price",
		ReplyMessage:   "check your DMs",
	}))
	addAccount(t, store, userID, models.PlatformTwitter, fmt.Sprintf("x-%d", userID))
}

func newTestAutomation(store *testutil.Store, api TwitterAPI, cfg config.Automation) *automationService {
	return newAutomationService(cfg, store.Settings(), store.Accounts(), store.Markers(), api)
}

func TestAutomationTickIsIdempotent(t *testing.T) {
	store := testutil.NewStore()
	api := newFakeTwitter()
	enableAutomation(t, store, 1)
	api.followers[1] = users("f1", "f2")
	api.mentions[1] = []transfer.TweetData{
		{ID: "m1", Text: "what is the PRICE?"},
		{ID: "m2", Text: "nice post"},
	}

	s := newTestAutomation(store, api, config.Automation{Concurrency: 2})

	report, err := s.RunTick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.WelcomesSent)
	assert.Equal(t, 1, report.RepliesSent)

	report, err = s.RunTick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.WelcomesSent)
	assert.Zero(t, report.RepliesSent)

	dms, replies := api.sent(1)
	assert.Equal(t, []string{"f1", "f2"}, dms)
	assert.Equal(t, []string{"m1"}, replies)
	assert.Equal(t, 2, store.MarkerCount(1, models.MarkerKindWelcome))
	assert.Equal(t, 1, store.MarkerCount(1, models.MarkerKindReply))
}

func TestAutomationIsolatesUserFailures(t *testing.T) {
	store := testutil.NewStore()
	api := newFakeTwitter()
	enableAutomation(t, store, 1)
	enableAutomation(t, store, 2)
	api.followersErr[1] = errors.New("rate limited")
	api.mentions[1] = []transfer.TweetData{{ID: "m1", Text: "price?"}}
	api.followers[2] = users("f9")

	s := newTestAutomation(store, api, config.Automation{Concurrency: 2})

	report, err := s.RunTick(context.Background())
	require.ErrorIs(t, err, ErrPartialAutomationFailure)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.FailedUsers)
	assert.Equal(t, 1, report.WelcomesSent)

	require.Len(t, report.Users, 2)
	assert.Equal(t, int64(1), report.Users[0].UserID)
	assert.NotEmpty(t, report.Users[0].Errors)
	assert.Empty(t, report.Users[1].Errors)

	// a failed follower fetch stops that user for this tick
	_, replies := api.sent(1)
	assert.Empty(t, replies)
}

func TestAutomationSendBudgetIsShared(t *testing.T) {
	store := testutil.NewStore()
	api := newFakeTwitter()
	enableAutomation(t, store, 1)
	api.followers[1] = users("f1", "f2", "f3")
	api.mentions[1] = []transfer.TweetData{{ID: "m1", Text: "price"}}

	s := newTestAutomation(store, api, config.Automation{MaxSendsPerTick: 2})

	report, err := s.RunTick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.WelcomesSent)
	assert.Zero(t, report.RepliesSent)

	report, err = s.RunTick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.WelcomesSent)
	assert.Equal(t, 1, report.RepliesSent)
}

func TestAutomationTruncatesErrors(t *testing.T) {
	store := testutil.NewStore()
	api := newFakeTwitter()
	enableAutomation(t, store, 1)
	api.followers[1] = users("f1", "f2", "f3", "f4")
	for _, id := range []string{"f1", "f2", "f3", "f4"} {
		api.failDM[id] = true
	}

	s := newTestAutomation(store, api, config.Automation{MaxErrors: 2})

	report, err := s.RunTick(context.Background())
	require.ErrorIs(t, err, ErrPartialAutomationFailure)
	assert.Len(t, report.Users[0].Errors, 2)
	assert.Equal(t, 2, report.Users[0].ErrorsDropped)
	assert.Zero(t, store.MarkerCount(1, models.MarkerKindWelcome))
}

func TestAutomationMarkerWriteFailureStopsUserRun(t *testing.T) {
	store := testutil.NewStore()
	api := newFakeTwitter()
	enableAutomation(t, store, 1)
	api.followers[1] = users("f1", "f2", "f3", "f4", "f5")
	api.mentions[1] = []transfer.TweetData{{ID: "m1", Text: "price please"}}
	store.MarkerErr = errors.New("disk full")

	s := newTestAutomation(store, api, config.Automation{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		report, err := s.RunTick(ctx)
		require.ErrorIs(t, err, ErrPartialAutomationFailure)
		assert.Equal(t, 1, report.WelcomesSent)
		assert.Zero(t, report.RepliesSent)
		assert.Len(t, report.Users[0].Errors, 1)
	}

	dms, replies := api.sent(1)
	assert.Equal(t, []string{"f1", "f1", "f1", "f1"}, dms)
	assert.Empty(t, replies)

	store.MarkerErr = nil
	report, err := s.RunTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, report.WelcomesSent)
	assert.Equal(t, 1, report.RepliesSent)

	report, err = s.RunTick(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.WelcomesSent)
	assert.Zero(t, report.RepliesSent)
	assert.Equal(t, 5, store.MarkerCount(1, models.MarkerKindWelcome))
}

func TestAutomationSkipsUsersWithoutUsableAccount(t *testing.T) {
	store := testutil.NewStore()
	api := newFakeTwitter()
	ctx := context.Background()

	require.NoError(t, store.Settings().Upsert(ctx, &models.AutomationSettings{
		UserID: 1, WelcomeEnabled: true, WelcomeMessage: "hi",
	}))
	enableAutomation(t, store, 2)
	acc, err := store.Accounts().GetByPlatform(ctx, 2, models.PlatformTwitter)
	require.NoError(t, err)
	require.NoError(t, store.Accounts().SetStatus(ctx, acc.ID, models.AccountStatusNeedsReauth))
	api.followers[2] = users("f1")

	report, err := newTestAutomation(store, api, config.Automation{}).RunTick(ctx)
	require.NoError(t, err)
	require.Len(t, report.Users, 2)
	assert.True(t, report.Users[0].Skipped)
	assert.True(t, report.Users[1].Skipped)
	assert.Zero(t, report.WelcomesSent)
}
