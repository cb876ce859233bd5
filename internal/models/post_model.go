package models

import "time"

type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

type MediaRef struct {
	URL  string    `json:"url" validate:"required,url"`
	Kind MediaKind `json:"kind" validate:"required,oneof=image video"`
}

// Post is the single source of truth for content fanned out to every target.
// Override maps are sparse: a missing platform key means "use the default".
type Post struct {
	ID               int64                   `db:"id" json:"id"`
	UserID           int64                   `db:"user_id" json:"user_id"`
	Caption          string                  `db:"caption" json:"caption"`
	Media            []MediaRef              `db:"-" json:"media"`
	CaptionOverrides map[Platform]string     `db:"caption_overrides" json:"caption_overrides,omitempty"`
	MediaOverrides   map[Platform][]MediaRef `db:"-" json:"media_overrides,omitempty"`
	ScheduledTime    *time.Time              `db:"scheduled_time" json:"scheduled_time,omitempty"`
	Status           string                  `db:"status" json:"status"`
	PreviewToken     string                  `db:"preview_token" json:"-"`
	PreviewExpiresAt time.Time               `db:"preview_expires_at" json:"-"`
	CreatedAt        time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time               `db:"updated_at" json:"updated_at"`
}

// PostMedia is one ordered media row. An empty Platform is the default list,
// any other value belongs to that platform's override list.
type PostMedia struct {
	PostID       int64     `db:"post_id"`
	Platform     Platform  `db:"platform"`
	URL          string    `db:"url"`
	Kind         MediaKind `db:"kind"`
	DisplayOrder int       `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
}

type PostTarget struct {
	ID           int64      `db:"id" json:"id"`
	PostID       int64      `db:"post_id" json:"post_id"`
	AccountID    int64      `db:"account_id" json:"account_id"`
	Platform     Platform   `db:"platform" json:"platform"`
	Status       string     `db:"status" json:"status"`
	ExternalID   string     `db:"external_id" json:"external_id,omitempty"`
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
	PublishedAt  *time.Time `db:"published_at" json:"published_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

type MediaAsset struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	FileName  string    `db:"file_name"`
	FileType  string    `db:"file_type"`
	FileURL   string    `db:"file_url"`
	CreatedAt time.Time `db:"created_at"`
}

type ResolvedContent struct {
	Caption string     `json:"caption"`
	Media   []MediaRef `json:"media"`
}

// Resolve returns the effective caption and media for platform. Caption and
// media fall back independently: override, then default, then empty.
func (p *Post) Resolve(platform Platform) ResolvedContent {
	caption := p.Caption
	if override, ok := p.CaptionOverrides[platform]; ok && override != "" {
		caption = override
	}

	media := p.Media
	if override, ok := p.MediaOverrides[platform]; ok && len(override) > 0 {
		media = override
	}

	out := make([]MediaRef, len(media))
	copy(out, media)

	return ResolvedContent{Caption: caption, Media: out}
}

// ResolveForTarget is Resolve applied to the target's platform.
func ResolveForTarget(post *Post, target *PostTarget) ResolvedContent {
	return post.Resolve(target.Platform)
}

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
)
