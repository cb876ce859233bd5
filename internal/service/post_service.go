package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/h2non/filetype"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/maheshrc27/crosspost/pkg/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// uploadTypes maps the accepted upload content types to object key extensions.
var uploadTypes = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
}

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID, userID int64) (*models.Post, []*models.PostTarget, error)
	Remove(ctx context.Context, userID, postID int64) error
	IssuePreviewToken(ctx context.Context, userID, postID int64) (*transfer.PreviewToken, error)
	PreviewByToken(ctx context.Context, postID int64, token string) (*transfer.PostPreview, error)
	IssueUploadURL(ctx context.Context, userID int64, req *transfer.UploadRequest) (*transfer.UploadURL, error)
	History(ctx context.Context, userID int64) ([]*models.PostingHistory, error)
}

type postService struct {
	tx         repository.Transactor
	pr         repository.PostRepository
	pm         repository.PostMediaRepository
	pt         repository.PostTargetRepository
	ac         repository.SocialAccountRepository
	ma         repository.MediaAssetRepository
	ph         repository.PostingHistoryRepository
	storage    ObjectStorage
	v          *validator.Validate
	previewTTL time.Duration
	now        func() time.Time
}

func NewPostService(
	tx repository.Transactor,
	pr repository.PostRepository,
	pm repository.PostMediaRepository,
	pt repository.PostTargetRepository,
	ac repository.SocialAccountRepository,
	ma repository.MediaAssetRepository,
	ph repository.PostingHistoryRepository,
	storage ObjectStorage,
	previewTTL time.Duration) PostService {
	return newPostService(tx, pr, pm, pt, ac, ma, ph, storage, previewTTL)
}

func newPostService(
	tx repository.Transactor,
	pr repository.PostRepository,
	pm repository.PostMediaRepository,
	pt repository.PostTargetRepository,
	ac repository.SocialAccountRepository,
	ma repository.MediaAssetRepository,
	ph repository.PostingHistoryRepository,
	storage ObjectStorage,
	previewTTL time.Duration) *postService {
	return &postService{
		tx:         tx,
		pr:         pr,
		pm:         pm,
		pt:         pt,
		ac:         ac,
		ma:         ma,
		ph:         ph,
		storage:    storage,
		v:          validator.New(),
		previewTTL: previewTTL,
		now:        time.Now,
	}
}

func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if pc == nil {
		return nil, invalidInput("post creation data is nil")
	}
	if len(pc.AccountIDs) == 0 {
		return nil, ErrNoTargets
	}
	if err := s.v.Struct(pc); err != nil {
		slog.Info(err.Error())
		return nil, invalidInput(err.Error())
	}

	accounts, err := s.ownedAccounts(ctx, userID, pc.AccountIDs)
	if err != nil {
		return nil, err
	}

	status := models.PostStatusDraft
	if pc.ScheduledTime != nil && pc.ScheduledTime.After(s.now()) {
		status = models.PostStatusScheduled
	}

	post := &models.Post{
		UserID:           userID,
		Caption:          pc.Caption,
		Media:            pc.Media,
		CaptionOverrides: nonEmptyCaptions(pc.CaptionOverrides),
		MediaOverrides:   nonEmptyMedia(pc.MediaOverrides),
		ScheduledTime:    pc.ScheduledTime,
		Status:           status,
	}

	err = s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		postID, err := s.pr.Create(ctx, tx, post)
		if err != nil {
			return fmt.Errorf("error creating post: %w", err)
		}
		post.ID = postID

		if err := s.saveMedia(ctx, tx, postID, "", post.Media); err != nil {
			return err
		}
		for platform, media := range post.MediaOverrides {
			if err := s.saveMedia(ctx, tx, postID, platform, media); err != nil {
				return err
			}
		}

		for _, acc := range accounts {
			target := &models.PostTarget{
				PostID:    postID,
				AccountID: acc.ID,
				Platform:  acc.Platform,
				Status:    status,
			}
			if _, err := s.pt.Create(ctx, tx, target); err != nil {
				return fmt.Errorf("error saving target %d: %w", acc.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return post, nil
}

// ownedAccounts loads the distinct accounts behind ids, all of which must
// belong to userID.
func (s *postService) ownedAccounts(ctx context.Context, userID int64, ids []int64) ([]*models.SocialAccount, error) {
	seen := make(map[int64]struct{}, len(ids))
	var accounts []*models.SocialAccount
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		acc, err := s.ac.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("error checking social account %d: %w", id, err)
		}
		if acc == nil || acc.UserID != userID {
			return nil, fmt.Errorf("social account %d: %w", id, ErrForbidden)
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

func (s *postService) saveMedia(ctx context.Context, tx *sql.Tx, postID int64, platform models.Platform, media []models.MediaRef) error {
	for i, m := range media {
		pm := &models.PostMedia{
			PostID:       postID,
			Platform:     platform,
			URL:          m.URL,
			Kind:         m.Kind,
			DisplayOrder: i,
		}
		if err := s.pm.Create(ctx, tx, pm); err != nil {
			return fmt.Errorf("error saving media: %w", err)
		}
	}
	return nil
}

func nonEmptyCaptions(in map[models.Platform]string) map[models.Platform]string {
	out := map[models.Platform]string{}
	for platform, caption := range in {
		if strings.TrimSpace(caption) != "" {
			out[platform] = caption
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func nonEmptyMedia(in map[models.Platform][]models.MediaRef) map[models.Platform][]models.MediaRef {
	out := map[models.Platform][]models.MediaRef{}
	for platform, media := range in {
		if len(media) > 0 {
			out[platform] = media
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// hydrate fills the media lists of post from its media rows.
func hydrate(ctx context.Context, pm repository.PostMediaRepository, post *models.Post) error {
	rows, err := pm.ListByPostID(ctx, post.ID)
	if err != nil {
		return err
	}

	post.Media = nil
	post.MediaOverrides = nil
	for _, r := range rows {
		ref := models.MediaRef{URL: r.URL, Kind: r.Kind}
		if r.Platform == "" {
			post.Media = append(post.Media, ref)
			continue
		}
		if post.MediaOverrides == nil {
			post.MediaOverrides = map[models.Platform][]models.MediaRef{}
		}
		post.MediaOverrides[r.Platform] = append(post.MediaOverrides[r.Platform], ref)
	}
	return nil
}

// owned returns the post if userID owns it.
func (s *postService) owned(ctx context.Context, userID, postID int64) (*models.Post, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if postID == 0 {
		return nil, invalidInput("post id is not valid")
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrNotFoundOrExpired
	}
	if post.UserID != userID {
		return nil, ErrForbidden
	}
	return post, nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*models.Post, []*models.PostTarget, error) {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, nil, err
	}
	if err := hydrate(ctx, s.pm, post); err != nil {
		return nil, nil, err
	}

	targets, err := s.pt.ListByPostID(ctx, postID)
	if err != nil {
		return nil, nil, err
	}
	return post, targets, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	posts, err := s.pr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

// History lists the user's publish attempts, newest first.
func (s *postService) History(ctx context.Context, userID int64) ([]*models.PostingHistory, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	history, err := s.ph.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posting history: %w", err)
	}
	return history, nil
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	if _, err := s.owned(ctx, userID, postID); err != nil {
		return err
	}
	return s.pr.Remove(ctx, postID)
}

func (s *postService) IssuePreviewToken(ctx context.Context, userID, postID int64) (*transfer.PreviewToken, error) {
	if _, err := s.owned(ctx, userID, postID); err != nil {
		return nil, err
	}

	token, err := utils.GenerateRandomKey(24)
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(s.previewTTL)
	if err := s.pr.SetPreviewToken(ctx, postID, token, expiresAt); err != nil {
		return nil, err
	}
	return &transfer.PreviewToken{Token: token, ExpiresAt: expiresAt}, nil
}

// PreviewByToken is the unauthenticated read path. Wrong and expired tokens
// are indistinguishable to the caller.
func (s *postService) PreviewByToken(ctx context.Context, postID int64, token string) (*transfer.PostPreview, error) {
	if token == "" {
		return nil, ErrNotFoundOrExpired
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.PreviewToken == "" {
		return nil, ErrNotFoundOrExpired
	}
	if subtle.ConstantTimeCompare([]byte(post.PreviewToken), []byte(token)) != 1 {
		return nil, ErrNotFoundOrExpired
	}
	if !s.now().Before(post.PreviewExpiresAt) {
		return nil, ErrNotFoundOrExpired
	}

	if err := hydrate(ctx, s.pm, post); err != nil {
		return nil, err
	}

	targets, err := s.pt.ListByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}

	preview := &transfer.PostPreview{
		PostID:        post.ID,
		Status:        post.Status,
		ScheduledTime: post.ScheduledTime,
		Targets:       make([]transfer.TargetPreview, 0, len(targets)),
	}
	for _, t := range targets {
		resolved := models.ResolveForTarget(post, t)
		tp := transfer.TargetPreview{
			TargetID: t.ID,
			Platform: t.Platform,
			Status:   t.Status,
			Caption:  resolved.Caption,
			Media:    resolved.Media,
		}

		acc, err := s.ac.GetByID(ctx, t.AccountID)
		if err != nil {
			return nil, err
		}
		if acc != nil {
			tp.AccountName = acc.AccountName
			tp.AccountUsername = acc.AccountUsername
		}
		preview.Targets = append(preview.Targets, tp)
	}
	return preview, nil
}

func (s *postService) IssueUploadURL(ctx context.Context, userID int64, req *transfer.UploadRequest) (*transfer.UploadURL, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if s.storage == nil {
		return nil, fmt.Errorf("object storage: %w", ErrNotConfigured)
	}
	if req == nil {
		return nil, invalidInput("upload request is nil")
	}
	if err := s.v.Struct(req); err != nil {
		return nil, invalidInput(err.Error())
	}

	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	ext, ok := uploadTypes[contentType]
	if !ok || !filetype.IsMIMESupported(contentType) {
		return nil, invalidInput(fmt.Sprintf("content type %q is not allowed", req.ContentType))
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%d/%s.%s", userID, id, ext)

	ticket, err := s.storage.IssueUploadURL(ctx, key, contentType)
	if err != nil {
		return nil, fmt.Errorf("issue upload url: %w", err)
	}

	assetID, err := s.ma.Create(ctx, &models.MediaAsset{
		UserID:   userID,
		FileName: req.FileName,
		FileType: contentType,
		FileURL:  ticket.PublicURL,
	})
	if err != nil {
		return nil, err
	}

	return &transfer.UploadURL{
		AssetID:   assetID,
		UploadURL: ticket.UploadURL,
		PublicURL: ticket.PublicURL,
	}, nil
}
