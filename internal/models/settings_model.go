package models

import "time"

// AutomationSettings holds a user's follower-welcome and comment-reply rules.
type AutomationSettings struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	WelcomeEnabled bool      `db:"welcome_enabled" json:"welcome_enabled"`
	WelcomeMessage string    `db:"welcome_message" json:"welcome_message"`
	ReplyEnabled   bool      `db:"reply_enabled" json:"reply_enabled"`
	ReplyKeyword   string    `db:"reply_keyword" json:"reply_keyword"`
	ReplyMessage   string    `db:"reply_message" json:"reply_message"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

const (
	MarkerKindWelcome = "welcome"
	MarkerKindReply   = "reply"
)

// AutomationMarker records that an action was already performed for an
// external entity (a follower for welcomes, a comment for replies).
type AutomationMarker struct {
	UserID     int64     `db:"user_id" json:"user_id"`
	Platform   Platform  `db:"platform" json:"platform"`
	Kind       string    `db:"kind" json:"kind"`
	ExternalID string    `db:"external_id" json:"external_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
