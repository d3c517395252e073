package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/dailyquill/dailyquill/internal/models"
	"github.com/dailyquill/dailyquill/internal/queue"
	"github.com/dailyquill/dailyquill/internal/repository"
	"github.com/dailyquill/dailyquill/internal/transfer"
)

type PostHandler struct {
	posts   repository.PostRepository
	logs    repository.PostLogRepository
	content repository.ContentRepository
	client  *asynq.Client
}

func NewPostHandler(
	posts repository.PostRepository,
	logs repository.PostLogRepository,
	content repository.ContentRepository,
	client *asynq.Client,
) *PostHandler {
	return &PostHandler{
		posts:   posts,
		logs:    logs,
		content: content,
		client:  client,
	}
}

// TriggerNow enqueues a manual publish cycle. The scheduler decides
// whether a run actually starts.
func (h *PostHandler) TriggerNow(c *fiber.Ctx) error {
	err := queue.EnqueuePublishCycle(h.client, queue.PublishCyclePayload{Manual: true}, 0)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to enqueue publish cycle",
		})
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	posts, err := h.posts.List(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	views := make([]transfer.PostView, 0, len(posts))
	for _, post := range posts {
		logs, err := h.logs.GetByPostID(c.Context(), post.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Unable to list post logs",
			})
		}
		views = append(views, transfer.PostView{Post: post, Logs: logs})
	}

	return c.JSON(views)
}

func (h *PostHandler) CreateContent(c *fiber.Ctx) error {
	var body transfer.ContentCreate
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}
	if body.Body == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Content body is required",
		})
	}

	item := &models.ContentItem{
		Title:    body.Title,
		Body:     body.Body,
		Citation: body.Citation,
		Link:     body.Link,
		Category: body.Category,
	}
	id, err := h.content.Create(c.Context(), item)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to save content",
		})
	}

	return c.JSON(fiber.Map{"id": id})
}

func (h *PostHandler) ListContent(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)

	items, err := h.content.List(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list content",
		})
	}

	return c.JSON(items)
}

func (h *PostHandler) RemoveContent(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid content id",
		})
	}

	if err := h.content.Remove(c.Context(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove content",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
