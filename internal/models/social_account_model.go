package models

import (
	"time"
)

type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTiktok    Platform = "tiktok"
	PlatformYoutube   Platform = "youtube"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformTwitter, PlatformFacebook, PlatformInstagram, PlatformTiktok, PlatformYoutube:
		return true
	}
	return false
}

const (
	AccountStatusActive      = "active"
	AccountStatusNeedsReauth = "needs_reauth"
)

// SocialAccount is a connected credential. AccessToken, AccessSecret and
// RefreshToken hold ciphertext produced by utils.Encrypt.
type SocialAccount struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Platform        Platform  `db:"platform" json:"platform"`
	AccountID       string    `db:"account_id" json:"account_id"`
	AccountName     string    `db:"account_name" json:"account_name"`
	AccountUsername string    `db:"account_username" json:"account_username"`
	ProfilePicture  string    `db:"profile_picture_url" json:"profile_picture"`
	AccessToken     string    `db:"access_token" json:"-"`
	AccessSecret    string    `db:"access_secret" json:"-"`
	RefreshToken    string    `db:"refresh_token" json:"-"`
	TokenExpiresAt  time.Time `db:"token_expires_at" json:"token_expires_at"`
	AccountStatus   string    `db:"account_status" json:"account_status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// PendingAuthSession tracks an OAuth 1.0a handshake between the request-token
// call and the provider callback. It is single use.
type PendingAuthSession struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	Platform      Platform  `db:"platform" json:"platform"`
	RequestToken  string    `db:"request_token" json:"request_token"`
	RequestSecret string    `db:"request_secret" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Candidate is one identity a single login is allowed to connect, e.g. a
// Facebook page. AccessToken is ciphertext.
type Candidate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Username    string `json:"username"`
	PictureURL  string `json:"picture_url"`
	AccessToken string `json:"access_token"`
}

type PendingSelection struct {
	ID         string      `db:"id" json:"id"`
	UserID     int64       `db:"user_id" json:"user_id"`
	Platform   Platform    `db:"platform" json:"platform"`
	Candidates []Candidate `db:"candidates" json:"candidates"`
	ExpiresAt  time.Time   `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

func (p *PendingSelection) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

func (p *PendingSelection) Candidate(id string) (Candidate, bool) {
	for _, c := range p.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}
