package openai

import (
	"context"
	"fmt"
	"time"

	"graphchat/pkg/ai"
	"graphchat/pkg/logger"

	"github.com/openai/openai-go/v3"
)

func buildMessages(systemPrompts []string, messages []ai.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(systemPrompts)+len(messages))
	for _, sp := range systemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	for _, message := range messages {
		switch message.Role {
		case "user":
			msgs = append(msgs, openai.UserMessage(message.Message))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(message.Message))
		}
	}
	return msgs
}

// GenerateCompletionWithFormat sends a prompt to the extraction model and
// unmarshals the response into the provided output struct, using a JSON
// schema derived from the struct to enforce structure.
//
// This is the path used for graph extraction, where the model must return
// the knowledge graph shape exactly.
func (c *ChatOpenAIClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	schema := ai.GenerateSchema(out)
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        name,
		Description: openai.String(description),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}

	options := ai.GenerateOptions{
		Model:       c.extractionModel,
		Temperature: 0.1,
	}
	for _, o := range opts {
		o(&options)
	}

	msgs := buildMessages(options.SystemPrompts, nil)
	msgs = append(msgs, openai.UserMessage(prompt))

	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(options.Model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
		Messages:    msgs,
		Temperature: openai.Float(options.Temperature),
	}

	start := time.Now()
	response, err := c.Client.Chat.Completions.New(ctx, body)
	if err != nil {
		return err
	}
	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
		TotalTokens:  int(response.Usage.TotalTokens),
		DurationMs:   time.Since(start).Milliseconds(),
	})

	if len(response.Choices) == 0 {
		return fmt.Errorf("no choices in response from model")
	}
	message := response.Choices[0].Message.Content
	if message == "" {
		return fmt.Errorf("empty response from model (finish_reason: %s)", response.Choices[0].FinishReason)
	}
	return ai.UnmarshalFlexible(message, out)
}

// GenerateChatStreamWithTools sends a multi-turn conversation with tools and
// streams the final response. Tool calls are executed through their handlers
// and the results fed back until the model produces a response without tool
// calls, or until the maximum rounds (10) is reached. A "step" event is
// emitted before each tool execution.
func (c *ChatOpenAIClient) GenerateChatStreamWithTools(
	ctx context.Context,
	messages []ai.ChatMessage,
	tools []ai.Tool,
	opts ...ai.GenerateOption,
) (<-chan ai.StreamEvent, error) {
	options := ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.2,
	}
	for _, o := range opts {
		o(&options)
	}

	msgs := buildMessages(options.SystemPrompts, messages)

	openaiTools := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, tool := range tools {
		openaiTools[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        tool.Name,
			Description: openai.String(tool.Description),
			Parameters:  tool.Parameters,
		})
	}

	maxRounds := 10
	contentChan := make(chan ai.StreamEvent, 10)

	go func() {
		defer close(contentChan)

		for range maxRounds {
			body := openai.ChatCompletionNewParams{
				Model:       openai.ChatModel(options.Model),
				Messages:    msgs,
				Tools:       openaiTools,
				Temperature: openai.Float(options.Temperature),
				StreamOptions: openai.ChatCompletionStreamOptionsParam{
					IncludeUsage: openai.Bool(true),
				},
			}

			start := time.Now()
			stream := c.Client.Chat.Completions.NewStreaming(ctx, body)

			acc := openai.ChatCompletionAccumulator{}

			for stream.Next() {
				chunk := stream.Current()
				acc.AddChunk(chunk)

				if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
					select {
					case contentChan <- ai.StreamEvent{Type: "content", Content: chunk.Choices[0].Delta.Content}:
					case <-ctx.Done():
						stream.Close()
						return
					}
				}
			}

			stream.Close()

			c.modifyMetrics(ai.ModelMetrics{
				InputTokens:  int(acc.Usage.PromptTokens),
				OutputTokens: int(acc.Usage.CompletionTokens),
				TotalTokens:  int(acc.Usage.TotalTokens),
				DurationMs:   time.Since(start).Milliseconds(),
			})

			if len(acc.Choices) > 0 && len(acc.Choices[0].Message.ToolCalls) > 0 {
				type toolResult struct {
					id     string
					result string
				}
				var results []toolResult

				for _, tc := range acc.Choices[0].Message.ToolCalls {
					var handler ai.ToolHandler
					for _, t := range tools {
						if t.Name == tc.Function.Name {
							handler = t.Handler
							break
						}
					}
					if handler == nil {
						logger.Error("[Tool] no handler found", "tool", tc.Function.Name)
						return
					}

					select {
					case contentChan <- ai.StreamEvent{Type: "step", Step: tc.Function.Name}:
					case <-ctx.Done():
						return
					}

					result, err := handler(ctx, tc.Function.Arguments)
					if err != nil {
						logger.Error("[Tool] failed", "tool", tc.Function.Name, "err", err)
						return
					}
					results = append(results, toolResult{id: tc.ID, result: result})
				}

				msgs = append(msgs, acc.Choices[0].Message.ToParam())
				for _, tr := range results {
					msgs = append(msgs, openai.ToolMessage(tr.result, tr.id))
				}

				continue
			}

			break
		}
	}()

	return contentChan, nil
}
