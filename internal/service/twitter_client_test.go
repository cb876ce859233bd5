package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwitterClientAuthModes(t *testing.T) {
	var lastAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastAuth = r.Header.Get("Authorization")
		switch {
		case r.URL.Path == "/2/users/42/followers":
			assert.Equal(t, "1000", r.URL.Query().Get("max_results"))
			fmt.Fprint(w, `{"data":[{"id":"f1","username":"ann"}]}`)
		case r.URL.Path == "/2/users/42/mentions":
			assert.Equal(t, "5", r.URL.Query().Get("max_results"))
			fmt.Fprint(w, `{"data":[{"id":"m1","text":"hey"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	api := NewTwitterClient(config.Twitter{ConsumerKey: "ck", ConsumerSecret: "cs", APIBaseURL: srv.URL}, testSecret, srv.Client())
	ctx := context.Background()

	bearer := &models.SocialAccount{AccountID: "42", AccessToken: encrypt(t, "bearer-token")}
	followers, err := api.Followers(ctx, bearer, 5000)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "f1", followers[0].ID)
	assert.Equal(t, "Bearer bearer-token", lastAuth)

	signed := &models.SocialAccount{
		AccountID:    "42",
		AccessToken:  encrypt(t, "user-token"),
		AccessSecret: encrypt(t, "user-secret"),
	}
	mentions, err := api.Mentions(ctx, signed, 1)
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.True(t, strings.HasPrefix(lastAuth, "OAuth "))
	assert.Contains(t, lastAuth, `oauth_token="user-token"`)
}

func TestTwitterClientWrites(t *testing.T) {
	var bodies []map[string]any
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/2/dm_conversations/with/blocked/messages" {
			http.Error(w, `{"title":"Forbidden"}`, http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{"data":{"id":"t-9","text":"ok"}}`)
	}))
	defer srv.Close()

	api := NewTwitterClient(config.Twitter{APIBaseURL: srv.URL}, testSecret, srv.Client())
	ctx := context.Background()
	acc := &models.SocialAccount{AccountID: "42", AccessToken: encrypt(t, "tok")}

	id, err := api.Reply(ctx, acc, "m1", "thanks")
	require.NoError(t, err)
	assert.Equal(t, "t-9", id)
	assert.Equal(t, "/2/tweets", paths[0])
	assert.Equal(t, map[string]any{"in_reply_to_tweet_id": "m1"}, bodies[0]["reply"])

	require.NoError(t, api.SendDM(ctx, acc, "f1", "welcome"))
	assert.Equal(t, "/2/dm_conversations/with/f1/messages", paths[1])
	assert.Equal(t, "welcome", bodies[1]["text"])

	err = api.SendDM(ctx, acc, "blocked", "welcome")
	assert.ErrorIs(t, err, ErrUpstreamRejected)
}
