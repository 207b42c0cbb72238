package routes

import (
	"errors"
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"graphchat/internal/server/middleware"
	"graphchat/pkg/graph"
	"graphchat/pkg/logger"
)

// BuildGraphHandler builds a fresh graph from a batch of text chunks, one
// updater call per chunk, and installs the result as the conversation's
// snapshot.
func BuildGraphHandler(c echo.Context) error {
	type buildGraphBody struct {
		Chunks []string `json:"chunks" validate:"required,min=1,dive,required"`
	}

	data := new(buildGraphBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	built, err := app.Updater.BuildGraph(ctx, data.Chunks, nil)
	if err != nil {
		if errors.Is(err, graph.ErrExtraction) {
			logger.Warn("Graph build failed, snapshot unchanged", "err", err)
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"message": "Extraction failed"})
		}
		logger.Error("Failed to build graph", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	app.Conversation.ReplaceSnapshot(built)

	return c.JSON(http.StatusOK, built)
}
