package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"kuji-store/services"
)

type QueueHandler struct {
	queue *services.QueueService
}

func NewQueueHandler(queue *services.QueueService) *QueueHandler {
	return &QueueHandler{queue: queue}
}

func (h *QueueHandler) Join(c echo.Context) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c)
	}
	campaignID := c.PathParam("campaignId")

	entry, err := h.queue.Join(c.Request().Context(), campaignID, uid)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *QueueHandler) Status(c echo.Context) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c)
	}
	campaignID := c.PathParam("campaignId")

	status, err := h.queue.Status(c.Request().Context(), campaignID, uid)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

func (h *QueueHandler) Heartbeat(c echo.Context) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c)
	}
	campaignID := c.PathParam("campaignId")

	if err := h.queue.Heartbeat(c.Request().Context(), campaignID, uid); err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *QueueHandler) Leave(c echo.Context) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c)
	}
	campaignID := c.PathParam("campaignId")

	if err := h.queue.Leave(c.Request().Context(), campaignID, uid); err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "left"})
}
