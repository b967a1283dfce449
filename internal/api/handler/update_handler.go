package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clanforge/clan-registry/internal/core/ports"
)

// UpdateDispatcher is the interface the handler uses to enqueue updates.
type UpdateDispatcher interface {
	Enqueue(upd ports.UpdateInput)
}

// UpdateHandler ingests normalized chat updates from the platform adapter.
type UpdateHandler struct {
	dispatcher UpdateDispatcher
}

// NewUpdateHandler creates an UpdateHandler backed by the given dispatcher.
func NewUpdateHandler(dispatcher UpdateDispatcher) *UpdateHandler {
	return &UpdateHandler{dispatcher: dispatcher}
}

// Receive handles POST /v1/updates: enqueues a single update, returns 202.
func (h *UpdateHandler) Receive(c echo.Context) error {
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	if req.Text == "" && req.Callback == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "either text or callback_data is required")
	}

	h.dispatcher.Enqueue(ports.UpdateInput{
		UpdateID:    req.UpdateID,
		UserID:      req.UserID,
		ChatID:      req.ChatID,
		DisplayName: req.DisplayName,
		Text:        req.Text,
		Callback:    req.Callback,
	})
	return c.JSON(http.StatusAccepted, acceptedResponse{Message: "update accepted"})
}
