package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"graphchat/internal/server/middleware"
	serverutil "graphchat/internal/server/util"
	"graphchat/pkg/logger"
)

// ChatStreamHandler processes one chat turn and streams it as server-sent
// events: "content" deltas while the assistant replies, "step" markers for
// tool calls, a final "graph" event with the updated snapshot, and "error"
// when the turn's graph update failed and the previous snapshot stands.
func ChatStreamHandler(c echo.Context) error {
	type chatStreamBody struct {
		Message string `json:"message" validate:"required"`
	}

	data := new(chatStreamBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	events, err := app.Conversation.Send(ctx, data.Message)
	if err != nil {
		logger.Error("Failed to start chat turn", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	for event := range events {
		if err := serverutil.WriteSSEEvent(c, event.Type, event); err != nil {
			return err
		}
	}

	return serverutil.WriteSSEEvent(c, "done", map[string]string{
		"conversation_id": app.Conversation.ID,
	})
}

// GetChatHandler returns the conversation transcript.
func GetChatHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	return c.JSON(http.StatusOK, map[string]any{
		"conversation_id": app.Conversation.ID,
		"messages":        app.Conversation.Transcript(),
	})
}

// ResetChatHandler clears the transcript and restores the seeded graph.
func ResetChatHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	app.Conversation.Reset()

	return c.JSON(http.StatusOK, map[string]string{"message": "Conversation reset"})
}
