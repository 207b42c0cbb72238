package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	mid "graphchat/internal/server/middleware"
	"graphchat/internal/util"
	"graphchat/pkg/ai"
	oai "graphchat/pkg/ai/ollama"
	gai "graphchat/pkg/ai/openai"
	"graphchat/pkg/chat"
	"graphchat/pkg/graph"
	"graphchat/pkg/logger"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// NewAIClient builds the configured AI client: Ollama when AI_ADAPTER is
// "ollama", an OpenAI-compatible endpoint otherwise.
func NewAIClient() ai.ChatAIClient {
	adapter := util.GetEnv("AI_ADAPTER")

	switch adapter {
	case "ollama":
		client, err := oai.NewChatOllamaClient(oai.NewChatOllamaClientParams{
			ChatModel:       util.GetEnv("AI_CHAT_MODEL"),
			ExtractionModel: util.GetEnv("AI_EXTRACT_MODEL"),

			BaseURL: util.GetEnv("AI_URL"),
			APIKey:  util.GetEnv("AI_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvInt("AI_PARALLEL_REQ", 4)),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewChatOpenAIClient(gai.NewChatOpenAIClientParams{
			ChatModel:       util.GetEnv("AI_CHAT_MODEL"),
			ExtractionModel: util.GetEnv("AI_EXTRACT_MODEL"),

			BaseURL: util.GetEnv("AI_URL"),
			APIKey:  util.GetEnv("AI_KEY"),
		})
	}
}

// Init wires the application together and runs the HTTP server until
// interrupted.
func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiClient := NewAIClient()

	updater := graph.NewUpdater(graph.NewUpdaterParams{
		Client:  aiClient,
		Timeout: time.Duration(util.GetEnvInt("EXTRACT_TIMEOUT_SEC", 60)) * time.Second,
	})

	conversation, err := chat.NewConversation(chat.NewConversationParams{
		Client:      aiClient,
		Updater:     updater,
		Seed:        graph.Example(),
		TokenBudget: util.GetEnvInt("CHAT_TOKEN_BUDGET", 8000),
	})
	if err != nil {
		logger.Fatal("Failed to create conversation", "err", err)
	}

	renderer := graph.NewRenderer(graph.NewRendererParams{
		Binary: util.GetEnvString("GRAPHVIZ_BIN", "dot"),
	})

	app := &mid.App{
		Conversation: conversation,
		Updater:      updater,
		Renderer:     renderer,
		AiClient:     aiClient,
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.Recover())

	RegisterRoutes(e)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
