package service

import (
	"context"

	"github.com/maheshrc27/crosspost/internal/models"
)

// Publisher sends resolved content to one platform account and returns the
// platform's id for the created object.
type Publisher interface {
	Publish(ctx context.Context, acc *models.SocialAccount, content models.ResolvedContent) (string, error)
}

// Refresher renews an expiring OAuth2 credential in place.
type Refresher interface {
	Refresh(ctx context.Context, acc *models.SocialAccount) error
}

func firstOfKind(media []models.MediaRef, kind models.MediaKind) (models.MediaRef, bool) {
	for _, m := range media {
		if m.Kind == kind {
			return m, true
		}
	}
	return models.MediaRef{}, false
}
