package transfer

type AutomationSettingsUpdate struct {
	WelcomeEnabled bool   `json:"welcome_enabled"`
	WelcomeMessage string `json:"welcome_message" validate:"required_if=WelcomeEnabled true,max=1000"`
	ReplyEnabled   bool   `json:"reply_enabled"`
	ReplyKeyword   string `json:"reply_keyword" validate:"required_if=ReplyEnabled true,max=100"`
	ReplyMessage   string `json:"reply_message" validate:"required_if=ReplyEnabled true,max=280"`
}

// UserResult is one user's outcome within a tick.
type UserResult struct {
	UserID        int64    `json:"user_id"`
	WelcomesSent  int      `json:"welcomes_sent"`
	RepliesSent   int      `json:"replies_sent"`
	Skipped       bool     `json:"skipped,omitempty"`
	Errors        []string `json:"errors,omitempty"`
	ErrorsDropped int      `json:"errors_dropped,omitempty"`
}

type TickReport struct {
	Users        []UserResult `json:"users"`
	WelcomesSent int          `json:"welcomes_sent"`
	RepliesSent  int          `json:"replies_sent"`
	FailedUsers  int          `json:"failed_users"`
}

type TwitterUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type TwitterUsers struct {
	Data []TwitterUser `json:"data"`
}

type TwitterTweets struct {
	Data []TweetData `json:"data"`
}
