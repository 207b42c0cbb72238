package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"graphchat/internal/server/middleware"
)

// GetMetricsHandler returns the model usage (tokens, duration) accumulated
// across chat turns and graph extractions since startup or the last reset.
func GetMetricsHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	return c.JSON(http.StatusOK, app.AiClient.GetMetrics())
}

// ResetMetricsHandler clears the accumulated model usage.
func ResetMetricsHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	app.AiClient.ResetMetrics()

	return c.JSON(http.StatusOK, map[string]string{"message": "Metrics reset"})
}
