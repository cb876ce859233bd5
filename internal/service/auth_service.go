package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type AuthService interface {
	LoginURL(state string) (string, error)
	LoginCallback(ctx context.Context, code string) (int64, error)
}

type authService struct {
	cfg    config.Google
	oauth  *oauth2.Config
	u      repository.UserRepository
	client *http.Client
}

func NewAuthService(cfg config.Google, u repository.UserRepository, client *http.Client) AuthService {
	return newAuthService(cfg, u, client)
}

func newAuthService(cfg config.Google, u repository.UserRepository, client *http.Client) *authService {
	if client == nil {
		client = http.DefaultClient
	}
	return &authService{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.LoginRedirectURI,
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
			Endpoint:     google.Endpoint,
		},
		u:      u,
		client: client,
	}
}

func (s *authService) LoginURL(state string) (string, error) {
	if !s.cfg.Configured() || s.cfg.LoginRedirectURI == "" {
		return "", fmt.Errorf("google login: %w", ErrNotConfigured)
	}
	return s.oauth.AuthCodeURL(state), nil
}

// LoginCallback exchanges the code and returns the id of the matching user,
// creating one on first login.
func (s *authService) LoginCallback(ctx context.Context, code string) (int64, error) {
	if !s.cfg.Configured() || s.cfg.LoginRedirectURI == "" {
		return 0, fmt.Errorf("google login: %w", ErrNotConfigured)
	}
	if code == "" {
		return 0, invalidInput("missing code")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return 0, upstream("code exchange", err)
	}

	info, err := fetchGoogleUser(ctx, s.oauth.Client(ctx, token), s.cfg.UserInfoURL)
	if err != nil {
		return 0, upstream("user info", err)
	}
	if info.Email == "" {
		return 0, fmt.Errorf("%w: google account has no email", ErrUpstreamRejected)
	}

	user, err := s.u.GetByEmail(ctx, info.Email)
	if err != nil {
		return 0, err
	}

	if user == nil {
		return s.u.Create(ctx, &models.User{
			GoogleID:       info.ID,
			Email:          info.Email,
			Name:           info.Name,
			ProfilePicture: info.Picture,
		})
	}

	if user.GoogleID == "" {
		user.GoogleID = info.ID
		user.Name = info.Name
		user.ProfilePicture = info.Picture
		if err := s.u.Update(ctx, user); err != nil {
			return 0, err
		}
	}
	return user.ID, nil
}

func fetchGoogleUser(ctx context.Context, client *http.Client, userInfoURL string) (*transfer.GoogleUserInfo, error) {
	if userInfoURL == "" {
		userInfoURL = "https://www.googleapis.com/oauth2/v1/userinfo"
	}
	info, err := doJSON[transfer.GoogleUserInfo](ctx, client, http.MethodGet, userInfoURL, nil, nil)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &info, nil
}
