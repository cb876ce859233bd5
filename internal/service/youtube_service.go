package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const googleRevokeURL = "https://oauth2.googleapis.com/revoke"

type YoutubeService interface {
	Publisher
	Refresher
	AuthURL(state string) (string, error)
	Connect(ctx context.Context, userID int64, code string) (*models.SocialAccount, error)
	Revoke(ctx context.Context, acc *models.SocialAccount) error
}

type youtubeService struct {
	cfg       config.Google
	secret    []byte
	oauth     *oauth2.Config
	sa        repository.SocialAccountRepository
	client    *http.Client
	revokeURL string
}

func NewYoutubeService(
	cfg config.Google,
	secretKey string,
	sa repository.SocialAccountRepository,
	client *http.Client) YoutubeService {
	return newYoutubeService(cfg, secretKey, sa, client)
}

func newYoutubeService(
	cfg config.Google,
	secretKey string,
	sa repository.SocialAccountRepository,
	client *http.Client) *youtubeService {
	if client == nil {
		client = http.DefaultClient
	}
	return &youtubeService{
		cfg:    cfg,
		secret: []byte(secretKey),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.YoutubeRedirectURI,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
				youtube.YoutubeUploadScope,
			},
			Endpoint: google.Endpoint,
		},
		sa:        sa,
		client:    client,
		revokeURL: googleRevokeURL,
	}
}

func (s *youtubeService) configured() bool {
	return s.cfg.Configured() && s.cfg.YoutubeRedirectURI != ""
}

func (s *youtubeService) AuthURL(state string) (string, error) {
	if !s.configured() {
		return "", fmt.Errorf("youtube: %w", ErrNotConfigured)
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

func (s *youtubeService) Connect(ctx context.Context, userID int64, code string) (*models.SocialAccount, error) {
	if !s.configured() {
		return nil, fmt.Errorf("youtube: %w", ErrNotConfigured)
	}
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if code == "" {
		return nil, invalidInput("missing code")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		slog.Warn("youtube code exchange failed", "user_id", userID, "error", err)
		return nil, upstream("code exchange", err)
	}
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token granted", ErrUpstreamRejected)
	}

	info, err := fetchGoogleUser(ctx, s.oauth.Client(ctx, token), s.cfg.UserInfoURL)
	if err != nil {
		return nil, upstream("user info", err)
	}

	encryptedAccess, err := utils.Encrypt([]byte(token.AccessToken), s.secret)
	if err != nil {
		return nil, err
	}
	encryptedRefresh, err := utils.Encrypt([]byte(token.RefreshToken), s.secret)
	if err != nil {
		return nil, err
	}

	account := &models.SocialAccount{
		UserID:          userID,
		Platform:        models.PlatformYoutube,
		AccountID:       info.ID,
		AccountName:     info.Name,
		AccountUsername: info.Email,
		ProfilePicture:  info.Picture,
		AccessToken:     encryptedAccess,
		RefreshToken:    encryptedRefresh,
		TokenExpiresAt:  token.Expiry,
	}

	id, err := s.sa.Upsert(ctx, nil, account)
	if err != nil {
		return nil, err
	}
	account.ID = id
	account.AccountStatus = models.AccountStatusActive
	return account, nil
}

func (s *youtubeService) Refresh(ctx context.Context, acc *models.SocialAccount) error {
	refreshToken, err := utils.Decrypt(acc.RefreshToken, s.secret)
	if err != nil {
		return err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	token, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return upstream("refresh token", err)
	}

	updated := &models.SocialAccount{ID: acc.ID, TokenExpiresAt: token.Expiry}
	updated.AccessToken, err = utils.Encrypt([]byte(token.AccessToken), s.secret)
	if err != nil {
		return err
	}
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		updated.RefreshToken, err = utils.Encrypt([]byte(token.RefreshToken), s.secret)
		if err != nil {
			return err
		}
	}
	return s.sa.SetToken(ctx, updated)
}

func (s *youtubeService) Revoke(ctx context.Context, acc *models.SocialAccount) error {
	token, err := utils.Decrypt(acc.AccessToken, s.secret)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("token", token)
	_, err = postForm(ctx, s.client, s.revokeURL, nil, form)
	return err
}

// Publish streams the first video of content into a YouTube upload. The
// first caption line becomes the title.
func (s *youtubeService) Publish(ctx context.Context, acc *models.SocialAccount, content models.ResolvedContent) (string, error) {
	video, ok := firstOfKind(content.Media, models.MediaKindVideo)
	if !ok {
		return "", invalidInput("youtube posts need a video")
	}

	token, err := utils.Decrypt(acc.AccessToken, s.secret)
	if err != nil {
		return "", err
	}

	authed := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, s.client),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	opts := []option.ClientOption{option.WithHTTPClient(authed)}
	if s.cfg.YoutubeEndpoint != "" {
		opts = append(opts, option.WithEndpoint(s.cfg.YoutubeEndpoint))
	}
	yt, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, video.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download video: unexpected status %d", resp.StatusCode)
	}

	upload := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       videoTitle(content.Caption),
			Description: content.Caption,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{PrivacyStatus: "public"},
	}

	created, err := yt.Videos.Insert([]string{"snippet", "status"}, upload).Media(resp.Body).Context(ctx).Do()
	if err != nil {
		return "", upstream("video upload", err)
	}
	return created.Id, nil
}

func videoTitle(caption string) string {
	title := strings.TrimSpace(strings.SplitN(caption, "\n", 2)[0])
	if title == "" {
		return "Untitled - " + time.Now().UTC().Format("2006-01-02")
	}
	if r := []rune(title); len(r) > 100 {
		title = string(r[:100])
	}
	return title
}
