package transfer

import "github.com/maheshrc27/crosspost/internal/models"

type FacebookPicture struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

type FacebookPage struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Username    string          `json:"username"`
	AccessToken string          `json:"access_token"`
	Picture     FacebookPicture `json:"picture"`
}

type FacebookPages struct {
	Data []FacebookPage `json:"data"`
}

type GraphID struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

type InstagramRefresh struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type TweetData struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type TweetCreated struct {
	Data TweetData `json:"data"`
}

// ConnectResult is the outcome of an OAuth2 connect: either one account was
// connected directly, or a selection is waiting for the user.
type ConnectResult struct {
	Account     *models.SocialAccount    `json:"account,omitempty"`
	SelectionID string                   `json:"selection_id,omitempty"`
	Selection   *models.PendingSelection `json:"-"`
}

type SelectionChoice struct {
	CandidateID string `json:"candidate_id" validate:"required"`
}

// CandidateView is a candidate without its token.
type CandidateView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	PictureURL string `json:"picture_url"`
}

type InstagramUser struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profile_picture_url"`
}

type InstagramContainer struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
}
