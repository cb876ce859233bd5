package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/testutil"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	img1 = models.MediaRef{URL: "https://cdn.example/img1.jpg", Kind: models.MediaKindImage}
	vid1 = models.MediaRef{URL: "https://cdn.example/vid1.mp4", Kind: models.MediaKindVideo}
)

type fakeStorage struct {
	keys []string
	err  error
}

func (f *fakeStorage) IssueUploadURL(ctx context.Context, key, contentType string) (*UploadTicket, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, key)
	return &UploadTicket{
		UploadURL: "https://bucket.example/" + key + "?sig=1",
		PublicURL: "https://cdn.example/" + key,
	}, nil
}

func addAccount(t *testing.T, store *testutil.Store, userID int64, platform models.Platform, externalID string) int64 {
	t.Helper()
	id, err := store.Accounts().Upsert(context.Background(), nil, &models.SocialAccount{
		UserID:          userID,
		Platform:        platform,
		AccountID:       externalID,
		AccountName:     strings.ToUpper(externalID),
		AccountUsername: externalID,
		AccessToken:     "enc",
	})
	require.NoError(t, err)
	return id
}

func newTestPostService(store *testutil.Store, clock *testutil.Clock, storage ObjectStorage) *postService {
	s := newPostService(store.Tx(), store.Posts(), store.PostMedia(), store.Targets(), store.Accounts(), store.Assets(), store.History(), storage, time.Hour)
	s.now = clock.Now
	return s
}

func TestCreatePostRequiresTargets(t *testing.T) {
	store := testutil.NewStore()
	s := newTestPostService(store, testutil.NewClock(time.Now()), nil)

	_, err := s.CreatePost(context.Background(), 1, &transfer.PostCreation{Caption: "hi"})
	assert.ErrorIs(t, err, ErrNoTargets)

	_, err = s.CreatePost(context.Background(), 0, &transfer.PostCreation{Caption: "hi"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = s.CreatePost(context.Background(), 1, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreatePostRejectsForeignAccount(t *testing.T) {
	store := testutil.NewStore()
	s := newTestPostService(store, testutil.NewClock(time.Now()), nil)
	mine := addAccount(t, store, 1, models.PlatformTwitter, "me")
	theirs := addAccount(t, store, 2, models.PlatformTwitter, "them")

	_, err := s.CreatePost(context.Background(), 1, &transfer.PostCreation{
		Caption:    "hi",
		AccountIDs: []int64{mine, theirs},
	})
	assert.ErrorIs(t, err, ErrForbidden)

	posts, err := s.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestCreatePostStatus(t *testing.T) {
	store := testutil.NewStore()
	clock := testutil.NewClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	s := newTestPostService(store, clock, nil)
	ctx := context.Background()
	acc := addAccount(t, store, 1, models.PlatformTwitter, "me")

	future := clock.Now().Add(time.Hour)
	past := clock.Now().Add(-time.Hour)

	tests := []struct {
		name      string
		scheduled *time.Time
		want      string
	}{
		{"no schedule", nil, models.PostStatusDraft},
		{"past schedule", &past, models.PostStatusDraft},
		{"future schedule", &future, models.PostStatusScheduled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post, err := s.CreatePost(ctx, 1, &transfer.PostCreation{
				Caption:       "hi",
				ScheduledTime: tt.scheduled,
				AccountIDs:    []int64{acc, acc},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, post.Status)

			_, targets, err := s.PostInfo(ctx, post.ID, 1)
			require.NoError(t, err)
			require.Len(t, targets, 1)
			assert.Equal(t, tt.want, targets[0].Status)
		})
	}
}

func TestCreatePostValidation(t *testing.T) {
	store := testutil.NewStore()
	s := newTestPostService(store, testutil.NewClock(time.Now()), nil)
	acc := addAccount(t, store, 1, models.PlatformTwitter, "me")

	_, err := s.CreatePost(context.Background(), 1, &transfer.PostCreation{
		Media:      []models.MediaRef{{URL: "not a url", Kind: models.MediaKindImage}},
		AccountIDs: []int64{acc},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.CreatePost(context.Background(), 1, &transfer.PostCreation{
		CaptionOverrides: map[models.Platform]string{"myspace": "x"},
		AccountIDs:       []int64{acc},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// A default image with an Instagram-only video override and a Twitter-only
// caption: each target resolves its own content.
func TestPreviewResolvesPerTarget(t *testing.T) {
	store := testutil.NewStore()
	clock := testutil.NewClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	s := newTestPostService(store, clock, nil)
	ctx := context.Background()

	tw := addAccount(t, store, 1, models.PlatformTwitter, "tw")
	ig := addAccount(t, store, 1, models.PlatformInstagram, "ig")
	fb := addAccount(t, store, 1, models.PlatformFacebook, "fb")

	post, err := s.CreatePost(ctx, 1, &transfer.PostCreation{
		Caption: "default caption",
		Media:   []models.MediaRef{img1},
		CaptionOverrides: map[models.Platform]string{
			models.PlatformTwitter:  "short one",
			models.PlatformFacebook: "   ",
		},
		MediaOverrides: map[models.Platform][]models.MediaRef{
			models.PlatformInstagram: {vid1},
			models.PlatformFacebook:  {},
		},
		AccountIDs: []int64{tw, ig, fb},
	})
	require.NoError(t, err)
	assert.NotContains(t, post.CaptionOverrides, models.PlatformFacebook)
	assert.NotContains(t, post.MediaOverrides, models.PlatformFacebook)

	token, err := s.IssuePreviewToken(ctx, 1, post.ID)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour), token.ExpiresAt)

	preview, err := s.PreviewByToken(ctx, post.ID, token.Token)
	require.NoError(t, err)
	require.Len(t, preview.Targets, 3)

	byPlatform := map[models.Platform]transfer.TargetPreview{}
	for _, tp := range preview.Targets {
		byPlatform[tp.Platform] = tp
	}

	assert.Equal(t, "short one", byPlatform[models.PlatformTwitter].Caption)
	assert.Equal(t, []models.MediaRef{img1}, byPlatform[models.PlatformTwitter].Media)

	assert.Equal(t, "default caption", byPlatform[models.PlatformInstagram].Caption)
	assert.Equal(t, []models.MediaRef{vid1}, byPlatform[models.PlatformInstagram].Media)

	assert.Equal(t, "default caption", byPlatform[models.PlatformFacebook].Caption)
	assert.Equal(t, []models.MediaRef{img1}, byPlatform[models.PlatformFacebook].Media)
	assert.Equal(t, "FB", byPlatform[models.PlatformFacebook].AccountName)
}

func TestPreviewTokenFailuresLookAlike(t *testing.T) {
	store := testutil.NewStore()
	clock := testutil.NewClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	s := newTestPostService(store, clock, nil)
	ctx := context.Background()
	acc := addAccount(t, store, 1, models.PlatformTwitter, "me")

	post, err := s.CreatePost(ctx, 1, &transfer.PostCreation{Caption: "hi", AccountIDs: []int64{acc}})
	require.NoError(t, err)

	_, err = s.PreviewByToken(ctx, post.ID, "anything")
	assert.ErrorIs(t, err, ErrNotFoundOrExpired)

	token, err := s.IssuePreviewToken(ctx, 1, post.ID)
	require.NoError(t, err)

	_, err = s.PreviewByToken(ctx, post.ID, token.Token+"x")
	assert.ErrorIs(t, err, ErrNotFoundOrExpired)

	_, err = s.PreviewByToken(ctx, post.ID+100, token.Token)
	assert.ErrorIs(t, err, ErrNotFoundOrExpired)

	_, err = s.PreviewByToken(ctx, post.ID, "")
	assert.ErrorIs(t, err, ErrNotFoundOrExpired)

	clock.Advance(time.Hour)
	_, err = s.PreviewByToken(ctx, post.ID, token.Token)
	assert.ErrorIs(t, err, ErrNotFoundOrExpired)
}

func TestPostOwnership(t *testing.T) {
	store := testutil.NewStore()
	s := newTestPostService(store, testutil.NewClock(time.Now()), nil)
	ctx := context.Background()
	acc := addAccount(t, store, 1, models.PlatformTwitter, "me")

	post, err := s.CreatePost(ctx, 1, &transfer.PostCreation{Caption: "hi", AccountIDs: []int64{acc}})
	require.NoError(t, err)

	_, _, err = s.PostInfo(ctx, post.ID, 2)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = s.IssuePreviewToken(ctx, 2, post.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, s.Remove(ctx, 2, post.ID), ErrForbidden)

	require.NoError(t, s.Remove(ctx, 1, post.ID))
	_, _, err = s.PostInfo(ctx, post.ID, 1)
	assert.ErrorIs(t, err, ErrNotFoundOrExpired)
}

func TestIssueUploadURL(t *testing.T) {
	store := testutil.NewStore()
	storage := &fakeStorage{}
	s := newTestPostService(store, testutil.NewClock(time.Now()), storage)
	ctx := context.Background()

	upload, err := s.IssueUploadURL(ctx, 1, &transfer.UploadRequest{FileName: "cat.jpg", ContentType: "image/JPEG"})
	require.NoError(t, err)
	require.Len(t, storage.keys, 1)
	assert.True(t, strings.HasPrefix(storage.keys[0], "1/"))
	assert.True(t, strings.HasSuffix(storage.keys[0], ".jpg"))
	assert.Equal(t, "https://cdn.example/"+storage.keys[0], upload.PublicURL)

	asset, err := store.Assets().GetByID(ctx, upload.AssetID)
	require.NoError(t, err)
	require.NotNil(t, asset)
	assert.Equal(t, "image/jpeg", asset.FileType)
	assert.Equal(t, upload.PublicURL, asset.FileURL)

	_, err = s.IssueUploadURL(ctx, 1, &transfer.UploadRequest{FileName: "doc.pdf", ContentType: "application/pdf"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.IssueUploadURL(ctx, 1, &transfer.UploadRequest{ContentType: "image/png"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	storage.err = errors.New("bucket down")
	_, err = s.IssueUploadURL(ctx, 1, &transfer.UploadRequest{FileName: "a.png", ContentType: "image/png"})
	assert.Error(t, err)
}

func TestIssueUploadURLWithoutStorage(t *testing.T) {
	s := newTestPostService(testutil.NewStore(), testutil.NewClock(time.Now()), nil)

	_, err := s.IssueUploadURL(context.Background(), 1, &transfer.UploadRequest{FileName: "a.png", ContentType: "image/png"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
