package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/api/handlers"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/testutil"
	"github.com/maheshrc27/crosspost/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newAuthApp(t *testing.T) (*fiber.App, config.Config, *testutil.Store) {
	t.Helper()

	store := testutil.NewStore()
	cfg := config.Config{SecretKey: testSecret, CookieName: "session"}
	m := NewAuthMiddleware(cfg, service.NewApiKeyService(store.Keys()))

	app := fiber.New()
	app.Get("/whoami", m.AuthMiddleware(), func(c *fiber.Ctx) error {
		return c.SendString(fmt.Sprint(handlers.GetUserID(c)))
	})
	return app, cfg, store
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestAuthMiddlewareRejectsAnonymous(t *testing.T) {
	app, _, _ := newAuthApp(t)

	status, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestAuthMiddlewareSessionCookie(t *testing.T) {
	app, cfg, _ := newAuthApp(t)

	token, err := utils.GenerateToken(cfg.SecretKey, 9, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: cfg.CookieName, Value: token})
	status, body := do(t, app, req)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "9", body)

	bad := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	bad.AddCookie(&http.Cookie{Name: cfg.CookieName, Value: token + "x"})
	status, _ = do(t, app, bad)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestAuthMiddlewareApiKey(t *testing.T) {
	app, _, store := newAuthApp(t)

	_, err := store.Keys().Create(context.Background(), &models.ApiKey{UserID: 4, Key: "k-123"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-API-Key", "k-123")
	status, body := do(t, app, req)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "4", body)

	status, body = do(t, app, httptest.NewRequest(http.MethodGet, "/whoami?api_key=k-123", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "4", body)

	unknown := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	unknown.Header.Set("X-API-Key", "nope")
	status, _ = do(t, app, unknown)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestTriggerSecret(t *testing.T) {
	newApp := func(secret string) *fiber.App {
		app := fiber.New()
		app.Post("/tick", TriggerSecret(secret), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})
		return app
	}

	status, _ := do(t, newApp(""), httptest.NewRequest(http.MethodPost, "/tick", nil))
	assert.Equal(t, fiber.StatusServiceUnavailable, status)

	app := newApp("s3cret")

	status, _ = do(t, app, httptest.NewRequest(http.MethodPost, "/tick", nil))
	assert.Equal(t, fiber.StatusUnauthorized, status)

	wrong := httptest.NewRequest(http.MethodPost, "/tick", nil)
	wrong.Header.Set("X-Trigger-Secret", "guess")
	status, _ = do(t, app, wrong)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	right := httptest.NewRequest(http.MethodPost, "/tick", nil)
	right.Header.Set("X-Trigger-Secret", "s3cret")
	status, _ = do(t, app, right)
	assert.Equal(t, fiber.StatusOK, status)
}
