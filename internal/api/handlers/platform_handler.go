package handlers

import (
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/maheshrc27/crosspost/pkg/utils"
)

// connectStateTTL bounds how long an OAuth2 state token is accepted.
const connectStateTTL = 15 * time.Minute

type PlatformHandler struct {
	ps  service.PlatformService
	tw  service.TwitterAuthService
	fb  service.FacebookService
	ig  service.InstagramService
	yt  service.YoutubeService
	sel service.SelectionService
	cfg config.Config
}

func NewPlatformHandler(
	cfg config.Config,
	ps service.PlatformService,
	tw service.TwitterAuthService,
	fb service.FacebookService,
	ig service.InstagramService,
	yt service.YoutubeService,
	sel service.SelectionService) *PlatformHandler {
	return &PlatformHandler{
		ps:  ps,
		tw:  tw,
		fb:  fb,
		ig:  ig,
		yt:  yt,
		sel: sel,
		cfg: cfg,
	}
}

// ConnectURL returns the URL the browser should open to connect a platform.
// Twitter starts the OAuth 1.0a handshake; the others get a signed state
// carrying the user id.
func (h *PlatformHandler) ConnectURL(c *fiber.Ctx) error {
	userID := GetUserID(c)
	platform := models.Platform(c.Params("platform"))
	if !platform.Valid() {
		return badRequest(c, "unknown platform")
	}

	if platform == models.PlatformTwitter {
		authURL, err := h.tw.Start(c.Context(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"auth_url": authURL})
	}

	state, err := utils.GenerateToken(h.cfg.SecretKey, userID, connectStateTTL)
	if err != nil {
		return respondError(c, err)
	}

	authURL, err := h.ps.AuthURL(platform, state)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"auth_url": authURL})
}

func (h *PlatformHandler) accountsURL(q url.Values) string {
	u := h.cfg.FrontendURL + "/dashboard/accounts"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (h *PlatformHandler) TwitterCallback(c *fiber.Ctx) error {
	if denied := c.Query("denied"); denied != "" {
		if err := h.tw.Deny(c.Context(), denied); err != nil {
			return respondError(c, err)
		}
		return c.Redirect(h.accountsURL(url.Values{"error": {"access_denied"}}), fiber.StatusTemporaryRedirect)
	}

	if _, err := h.tw.Complete(c.Context(), c.Query("oauth_token"), c.Query("oauth_verifier")); err != nil {
		return respondError(c, err)
	}
	return c.Redirect(h.accountsURL(nil), fiber.StatusTemporaryRedirect)
}

// CallbackHandler finishes the OAuth2 connect of Facebook, Instagram and
// YouTube. A Facebook login with several pages redirects to the selection
// screen instead.
func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	if oauthErr := c.Query("error"); oauthErr != "" {
		return c.Redirect(h.accountsURL(url.Values{"error": {oauthErr}}), fiber.StatusTemporaryRedirect)
	}

	userID, err := utils.UserIDFromToken(h.cfg.SecretKey, c.Query("state"))
	if err != nil {
		return badRequest(c, "unable to validate user")
	}
	code := c.Query("code")

	switch models.Platform(c.Params("platform")) {
	case models.PlatformFacebook:
		result, err := h.fb.Connect(c.Context(), userID, code)
		if err != nil {
			return respondError(c, err)
		}
		if result.SelectionID != "" {
			return c.Redirect(h.accountsURL(url.Values{"selection": {result.SelectionID}}), fiber.StatusTemporaryRedirect)
		}
	case models.PlatformInstagram:
		if _, err := h.ig.Connect(c.Context(), userID, code); err != nil {
			return respondError(c, err)
		}
	case models.PlatformYoutube:
		if _, err := h.yt.Connect(c.Context(), userID, code); err != nil {
			return respondError(c, err)
		}
	default:
		return badRequest(c, "unknown platform")
	}

	return c.Redirect(h.accountsURL(nil), fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) ListSelection(c *fiber.Ctx) error {
	candidates, err := h.sel.ListPending(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	views := make([]transfer.CandidateView, 0, len(candidates))
	for _, cand := range candidates {
		views = append(views, transfer.CandidateView{
			ID:         cand.ID,
			Name:       cand.Name,
			Username:   cand.Username,
			PictureURL: cand.PictureURL,
		})
	}
	return c.JSON(views)
}

func (h *PlatformHandler) FinalizeSelection(c *fiber.Ctx) error {
	var choice transfer.SelectionChoice
	if err := c.BodyParser(&choice); err != nil || choice.CandidateID == "" {
		return badRequest(c, "candidate_id is required")
	}

	account, err := h.sel.Finalize(c.Context(), GetUserID(c), c.Params("id"), choice.CandidateID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(account)
}

func (h *PlatformHandler) ListSocialAccounts(c *fiber.Ctx) error {
	accountList, err := h.ps.List(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(accountList)
}

func (h *PlatformHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	accountID := c.QueryInt("id", 0)

	if err := h.ps.Disconnect(c.Context(), GetUserID(c), int64(accountID)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}
