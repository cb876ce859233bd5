package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dghubble/oauth1/twitter"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/signer"
	"github.com/maheshrc27/crosspost/pkg/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// TwitterAuthService runs the three-legged OAuth 1.0a handshake:
// request token, user authorization redirect, access token exchange.
type TwitterAuthService interface {
	Start(ctx context.Context, userID int64) (string, error)
	Complete(ctx context.Context, requestToken, verifier string) (*models.SocialAccount, error)
	Deny(ctx context.Context, requestToken string) error
}

type twitterAuthService struct {
	cfg    config.Twitter
	secret []byte
	pa     repository.PendingAuthRepository
	sa     repository.SocialAccountRepository
	client *http.Client
	retry  Retry
	now    func() time.Time
	nonce  func() (string, error)
}

func NewTwitterAuthService(
	cfg config.Twitter,
	secretKey string,
	pa repository.PendingAuthRepository,
	sa repository.SocialAccountRepository,
	client *http.Client) TwitterAuthService {
	return newTwitterAuthService(cfg, secretKey, pa, sa, client)
}

func newTwitterAuthService(
	cfg config.Twitter,
	secretKey string,
	pa repository.PendingAuthRepository,
	sa repository.SocialAccountRepository,
	client *http.Client) *twitterAuthService {
	if cfg.RequestTokenURL == "" {
		cfg.RequestTokenURL = twitter.AuthorizeEndpoint.RequestTokenURL
	}
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = twitter.AuthorizeEndpoint.AuthorizeURL
	}
	if cfg.AccessTokenURL == "" {
		cfg.AccessTokenURL = twitter.AuthorizeEndpoint.AccessTokenURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &twitterAuthService{
		cfg:    cfg,
		secret: []byte(secretKey),
		pa:     pa,
		sa:     sa,
		client: client,
		retry:  defaultRetry,
		now:    time.Now,
		nonce:  func() (string, error) { return gonanoid.New(32) },
	}
}

// signedPost signs and sends one form POST, re-signing on every attempt so
// each attempt carries a fresh nonce.
func (s *twitterAuthService) signedPost(ctx context.Context, endpoint, token, tokenSecret string, oauthParams map[string]string) (url.Values, error) {
	var body []byte
	err := s.retry.do(ctx, func() error {
		nonce, err := s.nonce()
		if err != nil {
			return err
		}

		auth, err := signer.Sign(signer.Request{
			Method:         http.MethodPost,
			URL:            endpoint,
			OAuthParams:    oauthParams,
			ConsumerKey:    s.cfg.ConsumerKey,
			ConsumerSecret: s.cfg.ConsumerSecret,
			Token:          token,
			TokenSecret:    tokenSecret,
			Nonce:          nonce,
			Timestamp:      s.now().Unix(),
		})
		if err != nil {
			return err
		}

		body, err = postForm(ctx, s.client, endpoint, map[string]string{"Authorization": auth.Header()}, url.Values{})
		return err
	})
	if err != nil {
		return nil, err
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed token response", ErrUpstreamRejected)
	}
	return values, nil
}

func (s *twitterAuthService) Start(ctx context.Context, userID int64) (string, error) {
	if !s.cfg.Configured() {
		return "", fmt.Errorf("twitter: %w", ErrNotConfigured)
	}
	if userID == 0 {
		return "", ErrUnauthenticated
	}

	values, err := s.signedPost(ctx, s.cfg.RequestTokenURL, "", "", map[string]string{
		"oauth_callback": s.cfg.CallbackURL,
	})
	if err != nil {
		slog.Warn("twitter request token failed", "user_id", userID, "error", err)
		return "", upstream("request token", err)
	}

	requestToken := values.Get("oauth_token")
	requestSecret := values.Get("oauth_token_secret")
	if requestToken == "" || requestSecret == "" {
		return "", fmt.Errorf("%w: request token missing from response", ErrUpstreamRejected)
	}
	if confirmed := values.Get("oauth_callback_confirmed"); confirmed != "" && confirmed != "true" {
		return "", fmt.Errorf("%w: callback not confirmed", ErrUpstreamRejected)
	}

	encryptedSecret, err := utils.Encrypt([]byte(requestSecret), s.secret)
	if err != nil {
		return "", err
	}

	_, err = s.pa.Create(ctx, &models.PendingAuthSession{
		UserID:        userID,
		Platform:      models.PlatformTwitter,
		RequestToken:  requestToken,
		RequestSecret: encryptedSecret,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return "", err
	}

	authorizeURL, err := url.Parse(s.cfg.AuthorizeURL)
	if err != nil {
		return "", err
	}
	q := authorizeURL.Query()
	q.Set("oauth_token", requestToken)
	authorizeURL.RawQuery = q.Encode()

	return authorizeURL.String(), nil
}

// session returns the live handshake for requestToken. Stale sessions are
// removed and reported as unknown.
func (s *twitterAuthService) session(ctx context.Context, requestToken string) (*models.PendingAuthSession, error) {
	if requestToken == "" {
		return nil, ErrSessionExpiredOrUnknown
	}

	session, err := s.pa.GetByRequestToken(ctx, requestToken)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionExpiredOrUnknown
	}

	if s.cfg.SessionMaxAge > 0 && s.now().Sub(session.CreatedAt) > s.cfg.SessionMaxAge {
		if err := s.pa.Remove(ctx, session.ID); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpiredOrUnknown
	}
	return session, nil
}

func (s *twitterAuthService) Complete(ctx context.Context, requestToken, verifier string) (*models.SocialAccount, error) {
	session, err := s.session(ctx, requestToken)
	if err != nil {
		return nil, err
	}

	account, err := s.exchange(ctx, session, verifier)

	if rmErr := s.pa.Remove(ctx, session.ID); rmErr != nil {
		slog.Error("removing auth session", "session_id", session.ID, "error", rmErr)
		if err == nil {
			err = rmErr
		}
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *twitterAuthService) exchange(ctx context.Context, session *models.PendingAuthSession, verifier string) (*models.SocialAccount, error) {
	if verifier == "" {
		return nil, fmt.Errorf("%w: missing verifier", ErrUpstreamRejected)
	}

	requestSecret, err := utils.Decrypt(session.RequestSecret, s.secret)
	if err != nil {
		return nil, err
	}

	values, err := s.signedPost(ctx, s.cfg.AccessTokenURL, session.RequestToken, requestSecret, map[string]string{
		"oauth_verifier": verifier,
	})
	if err != nil {
		slog.Warn("twitter access token failed", "user_id", session.UserID, "error", err)
		return nil, upstream("access token", err)
	}

	accessToken := values.Get("oauth_token")
	accessSecret := values.Get("oauth_token_secret")
	externalID := values.Get("user_id")
	if accessToken == "" || accessSecret == "" || externalID == "" {
		return nil, fmt.Errorf("%w: access token missing from response", ErrUpstreamRejected)
	}

	encryptedToken, err := utils.Encrypt([]byte(accessToken), s.secret)
	if err != nil {
		return nil, err
	}
	encryptedSecret, err := utils.Encrypt([]byte(accessSecret), s.secret)
	if err != nil {
		return nil, err
	}

	screenName := values.Get("screen_name")
	account := &models.SocialAccount{
		UserID:          session.UserID,
		Platform:        models.PlatformTwitter,
		AccountID:       externalID,
		AccountName:     screenName,
		AccountUsername: screenName,
		AccessToken:     encryptedToken,
		AccessSecret:    encryptedSecret,
	}

	id, err := s.sa.Upsert(ctx, nil, account)
	if err != nil {
		return nil, err
	}
	account.ID = id
	account.AccountStatus = models.AccountStatusActive

	return account, nil
}

func (s *twitterAuthService) Deny(ctx context.Context, requestToken string) error {
	session, err := s.session(ctx, requestToken)
	if err != nil {
		return err
	}
	return s.pa.Remove(ctx, session.ID)
}

// upstream normalizes an outbound failure so callers can match it with
// ErrUpstreamRejected.
func upstream(step string, err error) error {
	if errors.Is(err, ErrUpstreamRejected) {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%s: %w: %w", step, ErrUpstreamRejected, err)
}
