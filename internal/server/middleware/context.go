package middleware

import (
	"github.com/labstack/echo/v4"

	"graphchat/pkg/ai"
	"graphchat/pkg/chat"
	"graphchat/pkg/graph"
)

// App bundles the long-lived collaborators every handler needs: the single
// conversation, the graph updater, the diagram renderer and the AI client.
type App struct {
	Conversation *chat.Conversation
	Updater      *graph.Updater
	Renderer     *graph.Renderer
	AiClient     ai.ChatAIClient
}

// AppContext wraps the echo context with the application state.
type AppContext struct {
	echo.Context
	App *App
}

// AppContextMiddleware attaches the given App to every request.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
