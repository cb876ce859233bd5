package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/testutil"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	received []models.ResolvedContent
}

func (f *fakePublisher) Publish(ctx context.Context, acc *models.SocialAccount, content models.ResolvedContent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.received = append(f.received, content)
	return "ext-" + acc.AccountID, nil
}

func (f *fakePublisher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

type publishFixture struct {
	store *testutil.Store
	posts *postService
	svc   *publishService
	tw    *fakePublisher
	ig    *fakePublisher
}

func newPublishFixture() *publishFixture {
	store := testutil.NewStore()
	f := &publishFixture{
		store: store,
		posts: newTestPostService(store, testutil.NewClock(time.Now()), nil),
		tw:    &fakePublisher{},
		ig:    &fakePublisher{},
	}
	f.svc = newPublishService(store.Posts(), store.PostMedia(), store.Targets(), store.Accounts(), store.History(),
		map[models.Platform]Publisher{
			models.PlatformTwitter:   f.tw,
			models.PlatformInstagram: f.ig,
		})
	return f
}

func TestPublishPostAllTargetsSucceed(t *testing.T) {
	f := newPublishFixture()
	ctx := context.Background()
	tw := addAccount(t, f.store, 1, models.PlatformTwitter, "tw")
	ig := addAccount(t, f.store, 1, models.PlatformInstagram, "ig")

	post, err := f.posts.CreatePost(ctx, 1, &transfer.PostCreation{
		Caption:          "launch day",
		Media:            []models.MediaRef{img1},
		CaptionOverrides: map[models.Platform]string{models.PlatformTwitter: "launch!"},
		MediaOverrides:   map[models.Platform][]models.MediaRef{models.PlatformInstagram: {vid1}},
		AccountIDs:       []int64{tw, ig},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.PublishPost(ctx, post.ID))

	require.Equal(t, 1, f.tw.calls())
	assert.Equal(t, models.ResolvedContent{Caption: "launch!", Media: []models.MediaRef{img1}}, f.tw.received[0])
	require.Equal(t, 1, f.ig.calls())
	assert.Equal(t, models.ResolvedContent{Caption: "launch day", Media: []models.MediaRef{vid1}}, f.ig.received[0])

	stored, targets, err := f.posts.PostInfo(ctx, post.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, stored.Status)
	for _, target := range targets {
		assert.Equal(t, models.PostStatusPublished, target.Status)
		assert.NotEmpty(t, target.ExternalID)
		assert.NotNil(t, target.PublishedAt)
	}
	assert.Equal(t, 2, f.store.HistoryCount())

	history, err := f.posts.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, h := range history {
		assert.Equal(t, post.ID, h.PostID)
		assert.Empty(t, h.ErrorMessage)
	}

	_, err = f.posts.History(ctx, 0)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestPublishPostPartialFailureAndRetry(t *testing.T) {
	f := newPublishFixture()
	ctx := context.Background()
	tw := addAccount(t, f.store, 1, models.PlatformTwitter, "tw")
	ig := addAccount(t, f.store, 1, models.PlatformInstagram, "ig")
	f.ig.err = errors.New("media rejected")

	post, err := f.posts.CreatePost(ctx, 1, &transfer.PostCreation{Caption: "hi", AccountIDs: []int64{tw, ig}})
	require.NoError(t, err)

	require.NoError(t, f.svc.PublishPost(ctx, post.ID))

	stored, targets, err := f.posts.PostInfo(ctx, post.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, stored.Status)
	require.Len(t, targets, 2)
	assert.Equal(t, models.PostStatusPublished, targets[0].Status)
	assert.Equal(t, models.PostStatusFailed, targets[1].Status)
	assert.Contains(t, targets[1].ErrorMessage, "media rejected")

	// a second run only retries the failed target
	f.ig.err = nil
	require.NoError(t, f.svc.PublishPost(ctx, post.ID))
	assert.Equal(t, 1, f.tw.calls())
	assert.Equal(t, 1, f.ig.calls())

	stored, _, err = f.posts.PostInfo(ctx, post.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, stored.Status)
}

func TestPublishPostUnusableTargets(t *testing.T) {
	f := newPublishFixture()
	ctx := context.Background()
	tw := addAccount(t, f.store, 1, models.PlatformTwitter, "tw")
	yt := addAccount(t, f.store, 1, models.PlatformYoutube, "yt")
	require.NoError(t, f.store.Accounts().SetStatus(ctx, tw, models.AccountStatusNeedsReauth))

	post, err := f.posts.CreatePost(ctx, 1, &transfer.PostCreation{Caption: "hi", AccountIDs: []int64{tw, yt}})
	require.NoError(t, err)

	require.NoError(t, f.svc.PublishPost(ctx, post.ID))
	assert.Zero(t, f.tw.calls())

	_, targets, err := f.posts.PostInfo(ctx, post.ID, 1)
	require.NoError(t, err)
	for _, target := range targets {
		assert.Equal(t, models.PostStatusFailed, target.Status)
	}
	assert.Contains(t, targets[1].ErrorMessage, ErrNotConfigured.Error())
}

func TestPublishPostMissing(t *testing.T) {
	f := newPublishFixture()

	err := f.svc.PublishPost(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFoundOrExpired)
}

type recordingTwitter struct {
	fakeTwitter
	text string
}

func (r *recordingTwitter) Tweet(ctx context.Context, acc *models.SocialAccount, text string) (string, error) {
	r.text = text
	return "tweet-1", nil
}

func TestTwitterPublisherAppendsMediaLinks(t *testing.T) {
	api := &recordingTwitter{}
	p := NewTwitterPublisher(api)

	id, err := p.Publish(context.Background(), &models.SocialAccount{}, models.ResolvedContent{
		Caption: "new photo",
		Media:   []models.MediaRef{img1},
	})
	require.NoError(t, err)
	assert.Equal(t, "tweet-1", id)
	assert.Equal(t, "new photo\n"+img1.URL, api.text)

	_, err = p.Publish(context.Background(), &models.SocialAccount{}, models.ResolvedContent{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
