package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/maheshrc27/crosspost/pkg/utils"
	"golang.org/x/oauth2"
)

// TwitterAPI is the subset of the X v2 API used for publishing and
// automation. Every call acts as the connected account.
type TwitterAPI interface {
	Followers(ctx context.Context, acc *models.SocialAccount, max int) ([]transfer.TwitterUser, error)
	SendDM(ctx context.Context, acc *models.SocialAccount, recipientID, text string) error
	Mentions(ctx context.Context, acc *models.SocialAccount, max int) ([]transfer.TweetData, error)
	Reply(ctx context.Context, acc *models.SocialAccount, tweetID, text string) (string, error)
	Tweet(ctx context.Context, acc *models.SocialAccount, text string) (string, error)
}

type twitterClient struct {
	cfg    config.Twitter
	secret []byte
	base   *http.Client
}

func NewTwitterClient(cfg config.Twitter, secretKey string, base *http.Client) TwitterAPI {
	if base == nil {
		base = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.twitter.com"
	}
	return &twitterClient{cfg: cfg, secret: []byte(secretKey), base: base}
}

// client returns an HTTP client that authenticates as acc. Accounts connected
// through the three-legged flow carry a token secret and are signed with
// OAuth 1.0a; anything else is sent as an OAuth2 bearer.
func (c *twitterClient) client(ctx context.Context, acc *models.SocialAccount) (*http.Client, error) {
	token, err := utils.Decrypt(acc.AccessToken, c.secret)
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}

	if acc.AccessSecret != "" {
		tokenSecret, err := utils.Decrypt(acc.AccessSecret, c.secret)
		if err != nil {
			return nil, fmt.Errorf("decrypt access secret: %w", err)
		}
		ctx = context.WithValue(ctx, oauth1.HTTPClient, c.base)
		return oauth1.NewConfig(c.cfg.ConsumerKey, c.cfg.ConsumerSecret).
			Client(ctx, oauth1.NewToken(token, tokenSecret)), nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})), nil
}

func (c *twitterClient) endpoint(path string, q url.Values) string {
	u := strings.TrimRight(c.cfg.APIBaseURL, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func pageSize(max, lo, hi int) string {
	if max < lo {
		max = lo
	}
	if max > hi {
		max = hi
	}
	return strconv.Itoa(max)
}

func (c *twitterClient) Followers(ctx context.Context, acc *models.SocialAccount, max int) ([]transfer.TwitterUser, error) {
	client, err := c.client(ctx, acc)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("max_results", pageSize(max, 1, 1000))
	users, err := doJSON[transfer.TwitterUsers](ctx, client, http.MethodGet,
		c.endpoint("/2/users/"+url.PathEscape(acc.AccountID)+"/followers", q), nil, nil)
	if err != nil {
		return nil, err
	}
	return users.Data, nil
}

func (c *twitterClient) SendDM(ctx context.Context, acc *models.SocialAccount, recipientID, text string) error {
	client, err := c.client(ctx, acc)
	if err != nil {
		return err
	}

	_, err = doJSON[struct{}](ctx, client, http.MethodPost,
		c.endpoint("/2/dm_conversations/with/"+url.PathEscape(recipientID)+"/messages", nil),
		nil, map[string]string{"text": text})
	return err
}

func (c *twitterClient) Mentions(ctx context.Context, acc *models.SocialAccount, max int) ([]transfer.TweetData, error) {
	client, err := c.client(ctx, acc)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("max_results", pageSize(max, 5, 100))
	tweets, err := doJSON[transfer.TwitterTweets](ctx, client, http.MethodGet,
		c.endpoint("/2/users/"+url.PathEscape(acc.AccountID)+"/mentions", q), nil, nil)
	if err != nil {
		return nil, err
	}
	return tweets.Data, nil
}

func (c *twitterClient) Reply(ctx context.Context, acc *models.SocialAccount, tweetID, text string) (string, error) {
	return c.post(ctx, acc, map[string]any{
		"text":  text,
		"reply": map[string]string{"in_reply_to_tweet_id": tweetID},
	})
}

func (c *twitterClient) Tweet(ctx context.Context, acc *models.SocialAccount, text string) (string, error) {
	return c.post(ctx, acc, map[string]any{"text": text})
}

func (c *twitterClient) post(ctx context.Context, acc *models.SocialAccount, body map[string]any) (string, error) {
	client, err := c.client(ctx, acc)
	if err != nil {
		return "", err
	}

	created, err := doJSON[transfer.TweetCreated](ctx, client, http.MethodPost, c.endpoint("/2/tweets", nil), nil, body)
	if err != nil {
		return "", err
	}
	return created.Data.ID, nil
}

// twitterPublisher posts the caption as a tweet. Media is linked by URL
// since the v2 API only attaches media uploaded through the v1.1 endpoint.
type twitterPublisher struct {
	api TwitterAPI
}

func NewTwitterPublisher(api TwitterAPI) Publisher {
	return &twitterPublisher{api: api}
}

func (p *twitterPublisher) Publish(ctx context.Context, acc *models.SocialAccount, content models.ResolvedContent) (string, error) {
	parts := []string{}
	if content.Caption != "" {
		parts = append(parts, content.Caption)
	}
	for _, m := range content.Media {
		parts = append(parts, m.URL)
	}
	if len(parts) == 0 {
		return "", invalidInput("tweet has no content")
	}
	return p.api.Tweet(ctx, acc, strings.Join(parts, "\n"))
}
