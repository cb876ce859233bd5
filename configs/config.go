package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
	// Endpoint overrides the account endpoint, for S3-compatible test servers.
	Endpoint string
}

func (r R2) Configured() bool {
	return r.AccessKey != "" && r.SecretKey != "" && r.BucketName != "" && (r.AccountID != "" || r.Endpoint != "")
}

// Twitter holds the OAuth 1.0a consumer and endpoints. Empty endpoint fields
// fall back to the public Twitter URLs.
type Twitter struct {
	ConsumerKey     string
	ConsumerSecret  string
	CallbackURL     string
	RequestTokenURL string
	AuthorizeURL    string
	AccessTokenURL  string
	APIBaseURL      string
	SessionMaxAge   time.Duration
}

func (t Twitter) Configured() bool {
	return t.ConsumerKey != "" && t.ConsumerSecret != "" && t.CallbackURL != ""
}

type Facebook struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	GraphURL     string
}

func (f Facebook) Configured() bool {
	return f.ClientID != "" && f.ClientSecret != "" && f.RedirectURI != ""
}

type Google struct {
	ClientID           string
	ClientSecret       string
	LoginRedirectURI   string
	YoutubeRedirectURI string
	UserInfoURL        string
	// YoutubeEndpoint overrides the YouTube Data API base path.
	YoutubeEndpoint string
}

func (g Google) Configured() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type Instagram struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	GraphURL     string
}

func (i Instagram) Configured() bool {
	return i.ClientID != "" && i.ClientSecret != "" && i.RedirectURI != ""
}

// Automation bounds one tick of the follower-welcome and comment-reply runner.
type Automation struct {
	TriggerSecret   string
	Schedule        string
	Concurrency     int
	PageSize        int
	MaxSendsPerTick int
	MaxErrors       int
}

func (a Automation) Configured() bool {
	return a.TriggerSecret != ""
}

type Preview struct {
	TokenTTL time.Duration
}

func (p Preview) Configured() bool {
	return p.TokenTTL > 0
}

type Selection struct {
	TTL time.Duration
}

func (s Selection) Configured() bool {
	return s.TTL > 0
}

type Config struct {
	PostgresURI string
	RedisURI    string
	FrontendURL string
	ListenAddr  string
	SecretKey   string
	CookieName  string

	Twitter    Twitter
	Facebook   Facebook
	Google     Google
	Instagram  Instagram
	R2         R2
	Automation Automation
	Preview    Preview
	Selection  Selection
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", "localhost:6379"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		ListenAddr:  getEnv("LISTEN_ADDR", ":3000"),
		SecretKey:   getEnv("SECRET_KEY", ""),
		CookieName:  getEnv("COOKIE_NAME", "crosspost_session"),
		Twitter: Twitter{
			ConsumerKey:     getEnv("TWITTER_CONSUMER_KEY", ""),
			ConsumerSecret:  getEnv("TWITTER_CONSUMER_SECRET", ""),
			CallbackURL:     getEnv("TWITTER_CALLBACK_URL", ""),
			RequestTokenURL: getEnv("TWITTER_REQUEST_TOKEN_URL", ""),
			AuthorizeURL:    getEnv("TWITTER_AUTHORIZE_URL", ""),
			AccessTokenURL:  getEnv("TWITTER_ACCESS_TOKEN_URL", ""),
			APIBaseURL:      getEnv("TWITTER_API_BASE_URL", "https://api.twitter.com"),
			SessionMaxAge:   getEnvDuration("TWITTER_SESSION_MAX_AGE", 30*time.Minute),
		},
		Facebook: Facebook{
			ClientID:     getEnv("FACEBOOK_CLIENT_ID", ""),
			ClientSecret: getEnv("FACEBOOK_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("FACEBOOK_REDIRECT_URI", ""),
			GraphURL:     getEnv("FACEBOOK_GRAPH_URL", "https://graph.facebook.com/v21.0"),
		},
		Google: Google{
			ClientID:           getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret:       getEnv("GOOGLE_CLIENT_SECRET", ""),
			LoginRedirectURI:   getEnv("GOOGLE_LOGIN_REDIRECT_URI", "http://localhost:3000/login/callback"),
			YoutubeRedirectURI: getEnv("GOOGLE_YOUTUBE_REDIRECT_URI", ""),
			UserInfoURL:        getEnv("GOOGLE_USERINFO_URL", "https://www.googleapis.com/oauth2/v1/userinfo"),
			YoutubeEndpoint:    getEnv("YOUTUBE_ENDPOINT", ""),
		},
		Instagram: Instagram{
			ClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
			ClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("INSTAGRAM_REDIRECT_URI", ""),
			AuthURL:      getEnv("INSTAGRAM_AUTH_URL", "https://www.instagram.com/oauth/authorize"),
			TokenURL:     getEnv("INSTAGRAM_TOKEN_URL", "https://api.instagram.com/oauth/access_token"),
			GraphURL:     getEnv("INSTAGRAM_GRAPH_URL", "https://graph.instagram.com"),
		},
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
			Endpoint:   getEnv("R2_ENDPOINT", ""),
		},
		Automation: Automation{
			TriggerSecret:   getEnv("AUTOMATION_TRIGGER_SECRET", ""),
			Schedule:        getEnv("AUTOMATION_SCHEDULE", "@every 5m"),
			Concurrency:     getEnvInt("AUTOMATION_CONCURRENCY", 4),
			PageSize:        getEnvInt("AUTOMATION_PAGE_SIZE", 100),
			MaxSendsPerTick: getEnvInt("AUTOMATION_MAX_SENDS", 20),
			MaxErrors:       getEnvInt("AUTOMATION_MAX_ERRORS", 5),
		},
		Preview: Preview{
			TokenTTL: getEnvDuration("PREVIEW_TOKEN_TTL", 7*24*time.Hour),
		},
		Selection: Selection{
			TTL: getEnvDuration("SELECTION_TTL", 10*time.Minute),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
