package server

import (
	"github.com/labstack/echo/v4"

	"graphchat/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Chat routes
	apiRoutes.POST("/chat/stream", routes.ChatStreamHandler)
	apiRoutes.GET("/chat", routes.GetChatHandler)
	apiRoutes.DELETE("/chat", routes.ResetChatHandler)

	// Graph routes
	apiRoutes.GET("/graph", routes.GetGraphHandler)
	apiRoutes.GET("/graph/render", routes.RenderGraphHandler)
	apiRoutes.POST("/graph/build", routes.BuildGraphHandler)

	// Model usage routes
	apiRoutes.GET("/metrics", routes.GetMetricsHandler)
	apiRoutes.DELETE("/metrics", routes.ResetMetricsHandler)
}
