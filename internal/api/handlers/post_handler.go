package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/queue"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

type PostHandler struct {
	s     service.PostService
	sched queue.Scheduler
}

func NewPostHandler(service service.PostService, sched queue.Scheduler) *PostHandler {
	return &PostHandler{s: service, sched: sched}
}

// CreatePost stores the post and, when it is scheduled, enqueues its publish
// task for the scheduled time.
func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		return badRequest(c, "unable to parse json")
	}

	post, err := h.s.CreatePost(c.Context(), GetUserID(c), &pc)
	if err != nil {
		return respondError(c, err)
	}

	if post.Status == models.PostStatusScheduled {
		if err := h.sched.SchedulePost(c.Context(), post.ID, *post.ScheduledTime); err != nil {
			slog.Error("scheduling post", "post_id", post.ID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "post saved but could not be scheduled",
				"post_id": post.ID,
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(transfer.PostCreated{PostID: post.ID, Status: post.Status})
}

// PublishPost enqueues an owned post for immediate publishing.
func (h *PostHandler) PublishPost(c *fiber.Ctx) error {
	postID := int64(c.QueryInt("id", 0))

	if _, _, err := h.s.PostInfo(c.Context(), postID, GetUserID(c)); err != nil {
		return respondError(c, err)
	}

	if err := h.sched.SchedulePost(c.Context(), postID, time.Now()); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"post_id": postID})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if postID != 0 {
		post, targets, err := h.s.PostInfo(c.Context(), int64(postID), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"post":    post,
			"targets": targets,
		})
	}

	posts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) History(c *fiber.Ctx) error {
	history, err := h.s.History(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(history)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	postID := c.QueryInt("id", 0)

	if err := h.s.Remove(c.Context(), GetUserID(c), int64(postID)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) IssuePreview(c *fiber.Ctx) error {
	postID := c.QueryInt("id", 0)

	token, err := h.s.IssuePreviewToken(c.Context(), GetUserID(c), int64(postID))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(token)
}

// Preview is public. Anyone holding the token can read what each target
// would receive.
func (h *PostHandler) Preview(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil {
		return respondError(c, service.ErrNotFoundOrExpired)
	}

	preview, err := h.s.PreviewByToken(c.Context(), int64(postID), c.Query("token"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(preview)
}

func (h *PostHandler) UploadURL(c *fiber.Ctx) error {
	var req transfer.UploadRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "unable to parse json")
	}

	upload, err := h.s.IssueUploadURL(c.Context(), GetUserID(c), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(upload)
}
