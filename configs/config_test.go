package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SELECTION_TTL", "")
	t.Setenv("AUTOMATION_MAX_SENDS", "")

	cfg := LoadConfig()

	assert.Equal(t, 10*time.Minute, cfg.Selection.TTL)
	assert.Equal(t, 20, cfg.Automation.MaxSendsPerTick)
	assert.Equal(t, "https://api.twitter.com", cfg.Twitter.APIBaseURL)
	assert.True(t, cfg.Selection.Configured())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SELECTION_TTL", "5m")
	t.Setenv("AUTOMATION_MAX_SENDS", "3")
	t.Setenv("TWITTER_CONSUMER_KEY", "ck")
	t.Setenv("TWITTER_CONSUMER_SECRET", "cs")
	t.Setenv("TWITTER_CALLBACK_URL", "https://app.test/auth/twitter/callback")

	cfg := LoadConfig()

	assert.Equal(t, 5*time.Minute, cfg.Selection.TTL)
	assert.Equal(t, 3, cfg.Automation.MaxSendsPerTick)
	assert.True(t, cfg.Twitter.Configured())
}

func TestLoadConfig_BadNumbersFallBack(t *testing.T) {
	t.Setenv("AUTOMATION_CONCURRENCY", "lots")
	t.Setenv("PREVIEW_TOKEN_TTL", "-1h")

	cfg := LoadConfig()

	assert.Equal(t, 4, cfg.Automation.Concurrency)
	assert.Equal(t, 7*24*time.Hour, cfg.Preview.TokenTTL)
}

func TestConfigured(t *testing.T) {
	assert.False(t, Twitter{ConsumerKey: "ck"}.Configured())
	assert.False(t, R2{AccessKey: "a", SecretKey: "s"}.Configured())
	assert.True(t, R2{AccessKey: "a", SecretKey: "s", BucketName: "b", Endpoint: "http://localhost:9000"}.Configured())
	assert.False(t, Automation{}.Configured())
}
