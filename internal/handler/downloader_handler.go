package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/uchokoro/KodeCamp-task-grader/internal/dto"
	"github.com/uchokoro/KodeCamp-task-grader/internal/submission"
	"github.com/uchokoro/KodeCamp-task-grader/internal/utils"
)

// DownloaderHandler lists the registered submission downloaders.
type DownloaderHandler struct {
	registry *submission.Registry
}

// NewDownloaderHandler constructs the handler.
func NewDownloaderHandler(registry *submission.Registry) *DownloaderHandler {
	return &DownloaderHandler{registry: registry}
}

// Register attaches downloader endpoints to the router group.
func (h *DownloaderHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
}

func (h *DownloaderHandler) list(c *fiber.Ctx) error {
	descriptions := h.registry.List()
	items := make([]dto.DownloaderResponse, 0, len(descriptions))
	for _, key := range h.registry.Keys() {
		items = append(items, dto.DownloaderResponse{Key: key, Description: descriptions[key]})
	}
	return utils.SendSuccess(c, "downloaders retrieved", items)
}
