package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"kuji-store/services"
)

const streamKeepalive = 25 * time.Second

// StreamHandler serves the per-user event stream over SSE. Opening a second
// stream for the same (campaign, user) supersedes the first.
type StreamHandler struct {
	registry *services.PushRegistry
}

func NewStreamHandler(registry *services.PushRegistry) *StreamHandler {
	return &StreamHandler{registry: registry}
}

func (h *StreamHandler) Stream(c echo.Context) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c)
	}
	campaignID := c.PathParam("campaignId")

	res := c.Response()
	res.Header().Set("Content-Type", "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	sub := h.registry.Register(campaignID, uid)
	defer sub.Close()

	// Confirm the stream is live before any event fires.
	fmt.Fprint(res, ": connected\n\n")
	res.Flush()

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				// Superseded by a newer stream.
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(res, "event: %s\ndata: %s\n\n", ev.Type, data)
			res.Flush()
		case <-keepalive.C:
			fmt.Fprint(res, ": keepalive\n\n")
			res.Flush()
		case <-ctx.Done():
			return nil
		}
	}
}
