package openai

import (
	"sync"

	"graphchat/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ChatOpenAIClient is an ai.ChatAIClient backed by an OpenAI-compatible API.
// The same client serves conversational chat and structured graph extraction,
// with separate model choices for each.
//
// A ChatOpenAIClient should be created using NewChatOpenAIClient.
type ChatOpenAIClient struct {
	chatModel       string
	extractionModel string

	baseURL string
	apiKey  string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	Client *openai.Client
}

// NewChatOpenAIClientParams defines the configuration parameters for creating
// a new ChatOpenAIClient.
//
// ChatModel is used for conversational turns, ExtractionModel for structured
// graph extraction. BaseURL may point at any OpenAI-compatible endpoint; an
// empty value uses the official API.
type NewChatOpenAIClientParams struct {
	ChatModel       string
	ExtractionModel string

	BaseURL string
	APIKey  string
}

// NewChatOpenAIClient creates and returns a new ChatOpenAIClient configured
// with the provided parameters.
//
// Example:
//
//	client := openai.NewChatOpenAIClient(openai.NewChatOpenAIClientParams{
//		ChatModel:       "gpt-4o-mini",
//		ExtractionModel: "gpt-4o-mini",
//		APIKey:          os.Getenv("OPENAI_API_KEY"),
//	})
func NewChatOpenAIClient(
	params NewChatOpenAIClientParams,
) *ChatOpenAIClient {
	options := []option.RequestOption{
		option.WithAPIKey(params.APIKey),
	}
	if params.BaseURL != "" {
		options = append(options, option.WithBaseURL(params.BaseURL))
	}
	client := openai.NewClient(options...)

	return &ChatOpenAIClient{
		chatModel:       params.ChatModel,
		extractionModel: params.ExtractionModel,

		baseURL: params.BaseURL,
		apiKey:  params.APIKey,

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		Client: &client,
	}
}

func (c *ChatOpenAIClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += m.InputTokens
	c.metrics.OutputTokens += m.OutputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs
}

// ResetMetrics clears the accumulated model metrics.
func (c *ChatOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics = ai.ModelMetrics{}
}

// GetMetrics returns the metrics accumulated since the last reset.
func (c *ChatOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	return c.metrics
}
