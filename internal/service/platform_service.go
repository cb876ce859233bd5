package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
)

// PlatformService lists and disconnects connected accounts and hands out
// the OAuth2 consent URLs of the redirect-based platforms.
type PlatformService interface {
	AuthURL(platform models.Platform, state string) (string, error)
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Disconnect(ctx context.Context, userID, accountID int64) error
}

type authURLer interface {
	AuthURL(state string) (string, error)
}

type platformService struct {
	sa      repository.SocialAccountRepository
	youtube YoutubeService
	authers map[models.Platform]authURLer
}

func NewPlatformService(
	sa repository.SocialAccountRepository,
	facebook FacebookService,
	instagram InstagramService,
	youtube YoutubeService) PlatformService {
	authers := map[models.Platform]authURLer{}
	if facebook != nil {
		authers[models.PlatformFacebook] = facebook
	}
	if instagram != nil {
		authers[models.PlatformInstagram] = instagram
	}
	if youtube != nil {
		authers[models.PlatformYoutube] = youtube
	}
	return &platformService{
		sa:      sa,
		youtube: youtube,
		authers: authers,
	}
}

func (s *platformService) AuthURL(platform models.Platform, state string) (string, error) {
	a, ok := s.authers[platform]
	if !ok {
		return "", invalidInput(fmt.Sprintf("platform %q has no redirect flow", platform))
	}
	return a.AuthURL(state)
}

func (s *platformService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	accounts, err := s.sa.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting social accounts: %w", err)
	}
	return accounts, nil
}

func (s *platformService) Disconnect(ctx context.Context, userID, accountID int64) error {
	if userID == 0 {
		return ErrUnauthenticated
	}
	if accountID == 0 {
		return invalidInput("account id is not valid")
	}

	acc, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if acc == nil {
		return ErrNotFoundOrExpired
	}
	if acc.UserID != userID {
		return ErrForbidden
	}

	if acc.Platform == models.PlatformYoutube && s.youtube != nil {
		if err := s.youtube.Revoke(ctx, acc); err != nil {
			slog.Warn("revoking youtube access", "account_id", acc.ID, "error", err)
		}
	}

	return s.sa.Remove(ctx, accountID)
}
