package transfer

import (
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
)

type PostCreation struct {
	Caption          string                                `json:"caption" validate:"max=5000"`
	Media            []models.MediaRef                     `json:"media" validate:"max=10,dive"`
	CaptionOverrides map[models.Platform]string            `json:"caption_overrides" validate:"dive,keys,oneof=twitter facebook instagram tiktok youtube,endkeys,max=5000"`
	MediaOverrides   map[models.Platform][]models.MediaRef `json:"media_overrides" validate:"dive,keys,oneof=twitter facebook instagram tiktok youtube,endkeys,max=10,dive"`
	ScheduledTime    *time.Time                            `json:"scheduled_time"`
	AccountIDs       []int64                               `json:"account_ids"`
}

type PostCreated struct {
	PostID int64  `json:"post_id"`
	Status string `json:"status"`
}

type PreviewToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TargetPreview is what one destination would receive. It never carries
// credentials.
type TargetPreview struct {
	TargetID        int64             `json:"target_id"`
	Platform        models.Platform   `json:"platform"`
	AccountName     string            `json:"account_name"`
	AccountUsername string            `json:"account_username"`
	Status          string            `json:"status"`
	Caption         string            `json:"caption"`
	Media           []models.MediaRef `json:"media"`
}

type PostPreview struct {
	PostID        int64           `json:"post_id"`
	Status        string          `json:"status"`
	ScheduledTime *time.Time      `json:"scheduled_time,omitempty"`
	Targets       []TargetPreview `json:"targets"`
}

type UploadRequest struct {
	FileName    string `json:"file_name" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required"`
}

type UploadURL struct {
	AssetID   int64  `json:"asset_id"`
	UploadURL string `json:"upload_url"`
	PublicURL string `json:"public_url"`
}
