package routes

import (
	"context"
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"graphchat/internal/server/middleware"
	"graphchat/internal/util"
	"graphchat/pkg/logger"
)

// GetGraphHandler returns the current knowledge graph snapshot as JSON.
func GetGraphHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	return c.JSON(http.StatusOK, app.Conversation.Snapshot())
}

// RenderGraphHandler renders the current snapshot as an SVG or PNG diagram.
func RenderGraphHandler(c echo.Context) error {
	type renderGraphParams struct {
		Format string `query:"format" validate:"omitempty,oneof=svg png"`
	}

	params := new(renderGraphParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request params"})
	}
	if params.Format == "" {
		params.Format = "svg"
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	snapshot := app.Conversation.Snapshot()

	render := app.Renderer.RenderSVG
	contentType := "image/svg+xml"
	if params.Format == "png" {
		render = app.Renderer.RenderPNG
		contentType = "image/png"
	}

	out, err := util.RetryWithContext(ctx, 2, func(ctx context.Context) ([]byte, error) {
		return render(ctx, snapshot)
	})
	if err != nil {
		logger.Error("Failed to render graph", "format", params.Format, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.Blob(http.StatusOK, contentType, out)
}
