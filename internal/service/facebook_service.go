package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/maheshrc27/crosspost/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

// FacebookService connects Facebook pages. One login can manage several
// pages, so a multi-page result is parked as a pending selection.
type FacebookService interface {
	Publisher
	AuthURL(state string) (string, error)
	Connect(ctx context.Context, userID int64, code string) (*transfer.ConnectResult, error)
}

type facebookService struct {
	cfg    config.Facebook
	secret []byte
	oauth  *oauth2.Config
	sel    SelectionService
	sa     repository.SocialAccountRepository
	client *http.Client
}

func NewFacebookService(
	cfg config.Facebook,
	secretKey string,
	sel SelectionService,
	sa repository.SocialAccountRepository,
	client *http.Client) FacebookService {
	return newFacebookService(cfg, secretKey, sel, sa, client)
}

func newFacebookService(
	cfg config.Facebook,
	secretKey string,
	sel SelectionService,
	sa repository.SocialAccountRepository,
	client *http.Client) *facebookService {
	if client == nil {
		client = http.DefaultClient
	}
	return &facebookService{
		cfg:    cfg,
		secret: []byte(secretKey),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"pages_show_list", "pages_manage_posts", "pages_read_engagement"},
			Endpoint:     facebook.Endpoint,
		},
		sel:    sel,
		sa:     sa,
		client: client,
	}
}

func (s *facebookService) AuthURL(state string) (string, error) {
	if !s.cfg.Configured() {
		return "", fmt.Errorf("facebook: %w", ErrNotConfigured)
	}
	return s.oauth.AuthCodeURL(state), nil
}

func (s *facebookService) Connect(ctx context.Context, userID int64, code string) (*transfer.ConnectResult, error) {
	if !s.cfg.Configured() {
		return nil, fmt.Errorf("facebook: %w", ErrNotConfigured)
	}
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if code == "" {
		return nil, invalidInput("missing code")
	}

	token, err := s.oauth.Exchange(context.WithValue(ctx, oauth2.HTTPClient, s.client), code)
	if err != nil {
		slog.Warn("facebook code exchange failed", "user_id", userID, "error", err)
		return nil, upstream("code exchange", err)
	}

	pages, err := s.listPages(ctx, token.AccessToken)
	if err != nil {
		return nil, upstream("list pages", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no manageable pages", ErrUpstreamRejected)
	}

	candidates := make([]models.Candidate, 0, len(pages))
	for _, p := range pages {
		encrypted, err := utils.Encrypt([]byte(p.AccessToken), s.secret)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, models.Candidate{
			ID:          p.ID,
			Name:        p.Name,
			Username:    p.Username,
			PictureURL:  p.Picture.Data.URL,
			AccessToken: encrypted,
		})
	}

	if len(candidates) == 1 {
		c := candidates[0]
		account := &models.SocialAccount{
			UserID:          userID,
			Platform:        models.PlatformFacebook,
			AccountID:       c.ID,
			AccountName:     c.Name,
			AccountUsername: c.Username,
			ProfilePicture:  c.PictureURL,
			AccessToken:     c.AccessToken,
		}
		id, err := s.sa.Upsert(ctx, nil, account)
		if err != nil {
			return nil, err
		}
		account.ID = id
		account.AccountStatus = models.AccountStatusActive
		return &transfer.ConnectResult{Account: account}, nil
	}

	ps, err := s.sel.SavePending(ctx, userID, models.PlatformFacebook, candidates)
	if err != nil {
		return nil, err
	}
	return &transfer.ConnectResult{SelectionID: ps.ID, Selection: ps}, nil
}

func (s *facebookService) listPages(ctx context.Context, accessToken string) ([]transfer.FacebookPage, error) {
	q := url.Values{}
	q.Set("fields", "id,name,username,access_token,picture{url}")
	q.Set("limit", "100")
	endpoint := strings.TrimRight(s.cfg.GraphURL, "/") + "/me/accounts?" + q.Encode()

	pages, err := doJSON[transfer.FacebookPages](ctx, s.client, http.MethodGet, endpoint,
		map[string]string{"Authorization": "Bearer " + accessToken}, nil)
	if err != nil {
		return nil, err
	}

	var usable []transfer.FacebookPage
	for _, p := range pages.Data {
		if p.ID != "" && p.AccessToken != "" {
			usable = append(usable, p)
		}
	}
	return usable, nil
}

// Publish posts to the page feed. A video goes to /videos, an image to
// /photos, anything else is a plain feed message.
func (s *facebookService) Publish(ctx context.Context, acc *models.SocialAccount, content models.ResolvedContent) (string, error) {
	token, err := utils.Decrypt(acc.AccessToken, s.secret)
	if err != nil {
		return "", err
	}

	base := strings.TrimRight(s.cfg.GraphURL, "/") + "/" + url.PathEscape(acc.AccountID)
	form := url.Values{}
	form.Set("access_token", token)

	var endpoint string
	if video, ok := firstOfKind(content.Media, models.MediaKindVideo); ok {
		endpoint = base + "/videos"
		form.Set("file_url", video.URL)
		form.Set("description", content.Caption)
	} else if image, ok := firstOfKind(content.Media, models.MediaKindImage); ok {
		endpoint = base + "/photos"
		form.Set("url", image.URL)
		form.Set("caption", content.Caption)
	} else {
		if content.Caption == "" {
			return "", invalidInput("facebook post has no content")
		}
		endpoint = base + "/feed"
		form.Set("message", content.Caption)
	}

	created, err := postFormJSON[transfer.GraphID](ctx, s.client, endpoint, form)
	if err != nil {
		return "", err
	}
	if created.PostID != "" {
		return created.PostID, nil
	}
	return created.ID, nil
}
