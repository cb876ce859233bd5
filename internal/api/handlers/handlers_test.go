package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/crosspost/configs"
	job "github.com/maheshrc27/crosspost/internal/jobs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/testutil"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userHeader = "X-Test-User"

// withUser stands in for the auth middleware.
func withUser(c *fiber.Ctx) error {
	if id, err := strconv.ParseInt(c.Get(userHeader), 10, 64); err == nil {
		c.Locals(LocalUserID, id)
	}
	return c.Next()
}

type fakeScheduler struct {
	mu  sync.Mutex
	ids []int64
}

func (f *fakeScheduler) SchedulePost(ctx context.Context, postID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, postID)
	return nil
}

func (f *fakeScheduler) scheduled() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.ids...)
}

func request(t *testing.T, app *fiber.App, method, target string, userID int64, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set(userHeader, strconv.FormatInt(userID, 10))
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrUnauthenticated, fiber.StatusUnauthorized},
		{fmt.Errorf("account 3: %w", service.ErrForbidden), fiber.StatusForbidden},
		{service.ErrNotFoundOrExpired, fiber.StatusNotFound},
		{service.ErrSessionExpiredOrUnknown, fiber.StatusBadRequest},
		{service.ErrInvalidSelection, fiber.StatusBadRequest},
		{service.ErrNoTargets, fiber.StatusBadRequest},
		{&service.UpstreamError{Status: 429, Body: "slow down"}, fiber.StatusBadGateway},
		{service.ErrNotConfigured, fiber.StatusServiceUnavailable},
		{errors.New("db is gone"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

type postApp struct {
	app   *fiber.App
	store *testutil.Store
	sched *fakeScheduler
}

func newPostApp(t *testing.T) *postApp {
	t.Helper()

	store := testutil.NewStore()
	ps := service.NewPostService(store.Tx(), store.Posts(), store.PostMedia(), store.Targets(), store.Accounts(), store.Assets(), store.History(), nil, time.Hour)
	sched := &fakeScheduler{}
	h := NewPostHandler(ps, sched)

	app := fiber.New()
	app.Get("/preview/:id", h.Preview)
	api := app.Group("/api", withUser)
	api.Post("/posts/create", h.CreatePost)
	api.Post("/posts/publish", h.PublishPost)
	api.Post("/posts/preview", h.IssuePreview)
	api.Post("/uploads", h.UploadURL)

	return &postApp{app: app, store: store, sched: sched}
}

func (p *postApp) account(t *testing.T, userID int64, platform models.Platform) int64 {
	t.Helper()
	id, err := p.store.Accounts().Upsert(context.Background(), nil, &models.SocialAccount{
		UserID: userID, Platform: platform, AccountID: string(platform), AccountName: "Name",
	})
	require.NoError(t, err)
	return id
}

func TestCreatePostHandler(t *testing.T) {
	p := newPostApp(t)
	acc := p.account(t, 1, models.PlatformTwitter)

	at := time.Now().Add(time.Hour).UTC()
	status, body := request(t, p.app, http.MethodPost, "/api/posts/create", 1, transfer.PostCreation{
		Caption:       "later",
		ScheduledTime: &at,
		AccountIDs:    []int64{acc},
	})
	require.Equal(t, fiber.StatusCreated, status, string(body))

	var created transfer.PostCreated
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, models.PostStatusScheduled, created.Status)
	assert.Equal(t, []int64{created.PostID}, p.sched.scheduled())

	status, body = request(t, p.app, http.MethodPost, "/api/posts/create", 1, transfer.PostCreation{
		Caption:    "draft",
		AccountIDs: []int64{acc},
	})
	require.Equal(t, fiber.StatusCreated, status)
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, models.PostStatusDraft, created.Status)
	assert.Len(t, p.sched.scheduled(), 1)
}

func TestCreatePostHandlerErrors(t *testing.T) {
	p := newPostApp(t)
	foreign := p.account(t, 2, models.PlatformTwitter)

	status, _ := request(t, p.app, http.MethodPost, "/api/posts/create", 1, transfer.PostCreation{Caption: "x"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = request(t, p.app, http.MethodPost, "/api/posts/create", 1, transfer.PostCreation{
		Caption: "x", AccountIDs: []int64{foreign},
	})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = request(t, p.app, http.MethodPost, "/api/posts/create", 0, transfer.PostCreation{Caption: "x"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	assert.Empty(t, p.sched.scheduled())
}

func TestPublishPostHandler(t *testing.T) {
	p := newPostApp(t)
	acc := p.account(t, 1, models.PlatformTwitter)

	_, body := request(t, p.app, http.MethodPost, "/api/posts/create", 1, transfer.PostCreation{
		Caption: "now", AccountIDs: []int64{acc},
	})
	var created transfer.PostCreated
	require.NoError(t, json.Unmarshal(body, &created))

	status, _ := request(t, p.app, http.MethodPost, fmt.Sprintf("/api/posts/publish?id=%d", created.PostID), 2, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Empty(t, p.sched.scheduled())

	status, _ = request(t, p.app, http.MethodPost, fmt.Sprintf("/api/posts/publish?id=%d", created.PostID), 1, nil)
	assert.Equal(t, fiber.StatusAccepted, status)
	assert.Equal(t, []int64{created.PostID}, p.sched.scheduled())
}

func TestPreviewHandler(t *testing.T) {
	p := newPostApp(t)
	acc := p.account(t, 1, models.PlatformTwitter)

	_, body := request(t, p.app, http.MethodPost, "/api/posts/create", 1, transfer.PostCreation{
		Caption:          "default",
		CaptionOverrides: map[models.Platform]string{models.PlatformTwitter: "tweet text"},
		AccountIDs:       []int64{acc},
	})
	var created transfer.PostCreated
	require.NoError(t, json.Unmarshal(body, &created))

	status, body := request(t, p.app, http.MethodPost, fmt.Sprintf("/api/posts/preview?id=%d", created.PostID), 1, nil)
	require.Equal(t, fiber.StatusCreated, status)
	var token transfer.PreviewToken
	require.NoError(t, json.Unmarshal(body, &token))
	require.NotEmpty(t, token.Token)

	status, body = request(t, p.app, http.MethodGet, fmt.Sprintf("/preview/%d?token=%s", created.PostID, token.Token), 0, nil)
	require.Equal(t, fiber.StatusOK, status)
	var preview transfer.PostPreview
	require.NoError(t, json.Unmarshal(body, &preview))
	require.Len(t, preview.Targets, 1)
	assert.Equal(t, "tweet text", preview.Targets[0].Caption)

	status, _ = request(t, p.app, http.MethodGet, fmt.Sprintf("/preview/%d?token=wrong", created.PostID), 0, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = request(t, p.app, http.MethodGet, "/preview/abc?token="+token.Token, 0, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestUploadURLWithoutStorage(t *testing.T) {
	p := newPostApp(t)

	status, _ := request(t, p.app, http.MethodPost, "/api/uploads", 1, transfer.UploadRequest{
		FileName: "a.png", ContentType: "image/png",
	})
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
}

func TestSelectionHandlers(t *testing.T) {
	store := testutil.NewStore()
	sel := service.NewSelectionService(10*time.Minute, store.Tx(), store.Selections(), store.Accounts())
	ps := service.NewPlatformService(store.Accounts(), nil, nil, nil)
	h := NewPlatformHandler(config.Config{}, ps, nil, nil, nil, nil, sel)

	app := fiber.New()
	api := app.Group("/api", withUser)
	api.Get("/selections/:id", h.ListSelection)
	api.Post("/selections/:id", h.FinalizeSelection)
	api.Get("/accounts", h.ListSocialAccounts)

	pending, err := sel.SavePending(context.Background(), 1, models.PlatformFacebook, []models.Candidate{
		{ID: "p1", Name: "Bakery", AccessToken: "enc-1"},
		{ID: "p2", Name: "Cafe", AccessToken: "enc-2"},
	})
	require.NoError(t, err)
	path := "/api/selections/" + pending.ID

	status, body := request(t, app, http.MethodGet, path, 1, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.NotContains(t, string(body), "enc-1")
	var views []transfer.CandidateView
	require.NoError(t, json.Unmarshal(body, &views))
	assert.Len(t, views, 2)

	status, _ = request(t, app, http.MethodGet, path, 2, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = request(t, app, http.MethodPost, path, 1, transfer.SelectionChoice{CandidateID: "p9"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = request(t, app, http.MethodPost, path, 1, transfer.SelectionChoice{})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = request(t, app, http.MethodPost, path, 1, transfer.SelectionChoice{CandidateID: "p1"})
	require.Equal(t, fiber.StatusCreated, status)
	assert.NotContains(t, string(body), "enc-1")

	status, _ = request(t, app, http.MethodGet, path, 1, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = request(t, app, http.MethodGet, "/api/accounts", 1, nil)
	require.Equal(t, fiber.StatusOK, status)
	var accounts []models.SocialAccount
	require.NoError(t, json.Unmarshal(body, &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, "p1", accounts[0].AccountID)
}

type fakeTicker struct {
	report *transfer.TickReport
	err    error
}

func (f fakeTicker) Tick(ctx context.Context) (*transfer.TickReport, error) {
	return f.report, f.err
}

func TestAutomationTickHandler(t *testing.T) {
	report := &transfer.TickReport{WelcomesSent: 2, FailedUsers: 1}

	tests := []struct {
		name   string
		ticker fakeTicker
		want   int
	}{
		{"ok", fakeTicker{report: &transfer.TickReport{WelcomesSent: 2}}, fiber.StatusOK},
		{"partial", fakeTicker{report: report, err: fmt.Errorf("1 of 2 users: %w", service.ErrPartialAutomationFailure)}, fiber.StatusOK},
		{"overlap", fakeTicker{err: job.ErrTickInProgress}, fiber.StatusConflict},
		{"broken", fakeTicker{err: errors.New("db down")}, fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Post("/tick", NewAutomationHandler(tt.ticker).Tick)

			status, body := request(t, app, http.MethodPost, "/tick", 0, nil)
			assert.Equal(t, tt.want, status)
			if tt.want == fiber.StatusOK {
				var got transfer.TickReport
				require.NoError(t, json.Unmarshal(body, &got))
				assert.Equal(t, 2, got.WelcomesSent)
			}
		})
	}
}

type ctxTicker struct {
	requestID any
}

func (c *ctxTicker) Tick(ctx context.Context) (*transfer.TickReport, error) {
	c.requestID = ctx.Value("request_id")
	return &transfer.TickReport{}, nil
}

func TestAutomationTickUsesRequestContext(t *testing.T) {
	ticker := &ctxTicker{}
	app := fiber.New()
	app.Post("/tick", func(c *fiber.Ctx) error {
		c.Locals("request_id", "req-1")
		return c.Next()
	}, NewAutomationHandler(ticker).Tick)

	status, _ := request(t, app, http.MethodPost, "/tick", 0, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "req-1", ticker.requestID)
}
