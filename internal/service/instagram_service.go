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
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/maheshrc27/crosspost/pkg/utils"
	"golang.org/x/oauth2"
)

type InstagramService interface {
	Publisher
	Refresher
	AuthURL(state string) (string, error)
	Connect(ctx context.Context, userID int64, code string) (*models.SocialAccount, error)
}

type instagramService struct {
	cfg    config.Instagram
	secret []byte
	oauth  *oauth2.Config
	sa     repository.SocialAccountRepository
	client *http.Client
	now    func() time.Time

	// Video containers are processed asynchronously by Instagram.
	pollWait     time.Duration
	pollAttempts int
}

func NewInstagramService(
	cfg config.Instagram,
	secretKey string,
	sa repository.SocialAccountRepository,
	client *http.Client) InstagramService {
	return newInstagramService(cfg, secretKey, sa, client)
}

func newInstagramService(
	cfg config.Instagram,
	secretKey string,
	sa repository.SocialAccountRepository,
	client *http.Client) *instagramService {
	if client == nil {
		client = http.DefaultClient
	}
	return &instagramService{
		cfg:    cfg,
		secret: []byte(secretKey),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"instagram_business_basic", "instagram_business_content_publish"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		sa:           sa,
		client:       client,
		now:          time.Now,
		pollWait:     3 * time.Second,
		pollAttempts: 20,
	}
}

func (s *instagramService) graph(path string, q url.Values) string {
	u := strings.TrimRight(s.cfg.GraphURL, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (s *instagramService) AuthURL(state string) (string, error) {
	if !s.cfg.Configured() {
		return "", fmt.Errorf("instagram: %w", ErrNotConfigured)
	}
	return s.oauth.AuthCodeURL(state), nil
}

func (s *instagramService) Connect(ctx context.Context, userID int64, code string) (*models.SocialAccount, error) {
	if !s.cfg.Configured() {
		return nil, fmt.Errorf("instagram: %w", ErrNotConfigured)
	}
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if code == "" {
		return nil, invalidInput("missing code")
	}

	short, err := s.oauth.Exchange(context.WithValue(ctx, oauth2.HTTPClient, s.client), code)
	if err != nil {
		slog.Warn("instagram code exchange failed", "user_id", userID, "error", err)
		return nil, upstream("code exchange", err)
	}

	q := url.Values{}
	q.Set("grant_type", "ig_exchange_token")
	q.Set("client_secret", s.cfg.ClientSecret)
	q.Set("access_token", short.AccessToken)
	long, err := doJSON[transfer.InstagramRefresh](ctx, s.client, http.MethodGet, s.graph("/access_token", q), nil, nil)
	if err != nil {
		return nil, upstream("long-lived token", err)
	}
	if long.AccessToken == "" {
		return nil, fmt.Errorf("%w: long-lived token missing from response", ErrUpstreamRejected)
	}

	q = url.Values{}
	q.Set("fields", "id,user_id,username,name,profile_picture_url")
	q.Set("access_token", long.AccessToken)
	me, err := doJSON[transfer.InstagramUser](ctx, s.client, http.MethodGet, s.graph("/me", q), nil, nil)
	if err != nil {
		return nil, upstream("profile", err)
	}

	accountID := me.UserID
	if accountID == "" {
		accountID = me.ID
	}
	if accountID == "" {
		return nil, fmt.Errorf("%w: profile has no id", ErrUpstreamRejected)
	}

	encrypted, err := utils.Encrypt([]byte(long.AccessToken), s.secret)
	if err != nil {
		return nil, err
	}

	account := &models.SocialAccount{
		UserID:          userID,
		Platform:        models.PlatformInstagram,
		AccountID:       accountID,
		AccountName:     me.Name,
		AccountUsername: me.Username,
		ProfilePicture:  me.ProfilePicture,
		AccessToken:     encrypted,
		RefreshToken:    encrypted,
		TokenExpiresAt:  s.now().Add(time.Duration(long.ExpiresIn) * time.Second),
	}

	id, err := s.sa.Upsert(ctx, nil, account)
	if err != nil {
		return nil, err
	}
	account.ID = id
	account.AccountStatus = models.AccountStatusActive
	return account, nil
}

// Refresh extends a long-lived token. Instagram refreshes the token with
// itself, so access and refresh token stay the same value.
func (s *instagramService) Refresh(ctx context.Context, acc *models.SocialAccount) error {
	current, err := utils.Decrypt(acc.RefreshToken, s.secret)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("grant_type", "ig_refresh_token")
	q.Set("access_token", current)
	refreshed, err := doJSON[transfer.InstagramRefresh](ctx, s.client, http.MethodGet, s.graph("/refresh_access_token", q), nil, nil)
	if err != nil {
		return upstream("refresh token", err)
	}
	if refreshed.AccessToken == "" {
		return fmt.Errorf("%w: refreshed token missing from response", ErrUpstreamRejected)
	}

	encrypted, err := utils.Encrypt([]byte(refreshed.AccessToken), s.secret)
	if err != nil {
		return err
	}

	return s.sa.SetToken(ctx, &models.SocialAccount{
		ID:             acc.ID,
		AccessToken:    encrypted,
		RefreshToken:   encrypted,
		TokenExpiresAt: s.now().Add(time.Duration(refreshed.ExpiresIn) * time.Second),
	})
}

// Publish creates a media container (a carousel for several items) and
// publishes it.
func (s *instagramService) Publish(ctx context.Context, acc *models.SocialAccount, content models.ResolvedContent) (string, error) {
	if len(content.Media) == 0 {
		return "", invalidInput("instagram posts need at least one media item")
	}

	token, err := utils.Decrypt(acc.AccessToken, s.secret)
	if err != nil {
		return "", err
	}

	var containerID string
	if len(content.Media) == 1 {
		containerID, err = s.container(ctx, acc.AccountID, token, content.Media[0], content.Caption, false)
		if err != nil {
			return "", err
		}
	} else {
		children := make([]string, 0, len(content.Media))
		for _, m := range content.Media {
			child, err := s.container(ctx, acc.AccountID, token, m, "", true)
			if err != nil {
				return "", err
			}
			children = append(children, child)
		}

		form := url.Values{}
		form.Set("media_type", "CAROUSEL")
		form.Set("caption", content.Caption)
		form.Set("children", strings.Join(children, ","))
		form.Set("access_token", token)
		carousel, err := postFormJSON[transfer.GraphID](ctx, s.client, s.graph("/"+url.PathEscape(acc.AccountID)+"/media", nil), form)
		if err != nil {
			return "", err
		}
		containerID = carousel.ID
	}

	form := url.Values{}
	form.Set("creation_id", containerID)
	form.Set("access_token", token)
	published, err := postFormJSON[transfer.GraphID](ctx, s.client, s.graph("/"+url.PathEscape(acc.AccountID)+"/media_publish", nil), form)
	if err != nil {
		return "", err
	}
	return published.ID, nil
}

func (s *instagramService) container(ctx context.Context, accountID, token string, m models.MediaRef, caption string, carouselItem bool) (string, error) {
	form := url.Values{}
	form.Set("access_token", token)
	if caption != "" {
		form.Set("caption", caption)
	}
	if carouselItem {
		form.Set("is_carousel_item", "true")
	}
	if m.Kind == models.MediaKindVideo {
		if carouselItem {
			form.Set("media_type", "VIDEO")
		} else {
			form.Set("media_type", "REELS")
		}
		form.Set("video_url", m.URL)
	} else {
		form.Set("image_url", m.URL)
	}

	created, err := postFormJSON[transfer.GraphID](ctx, s.client, s.graph("/"+url.PathEscape(accountID)+"/media", nil), form)
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: no container id returned", ErrUpstreamRejected)
	}

	if m.Kind == models.MediaKindVideo {
		if err := s.awaitContainer(ctx, created.ID, token); err != nil {
			return "", err
		}
	}
	return created.ID, nil
}

func (s *instagramService) awaitContainer(ctx context.Context, id, token string) error {
	q := url.Values{}
	q.Set("fields", "id,status_code")
	q.Set("access_token", token)

	for i := 0; i < s.pollAttempts; i++ {
		c, err := doJSON[transfer.InstagramContainer](ctx, s.client, http.MethodGet, s.graph("/"+url.PathEscape(id), q), nil, nil)
		if err != nil {
			return err
		}
		switch c.StatusCode {
		case "FINISHED", "":
			return nil
		case "ERROR", "EXPIRED":
			return fmt.Errorf("%w: container %s status %s", ErrUpstreamRejected, id, c.StatusCode)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.pollWait):
		}
	}
	return fmt.Errorf("%w: container %s not ready", ErrUpstreamRejected, id)
}
