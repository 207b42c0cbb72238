package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"graphchat/pkg/ai"
	"graphchat/pkg/logger"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
)

// numCtxFor estimates a context window for the request. Ollama defaults to a
// small num_ctx; long transcripts get silently truncated without this.
func numCtxFor(text string) (int, error) {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return 0, err
	}
	tokens := 200 + len(enc.Encode(text, nil, nil))
	return tokens, nil
}

func applyNumCtx(req *api.ChatRequest, text string) error {
	tokens, err := numCtxFor(text)
	if err != nil {
		return err
	}
	if tokens > 4096 {
		req.Options["num_ctx"] = tokens
	}
	return nil
}

func joinMessages(messages []api.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func toAPIMessages(systemPrompts []string, messages []ai.ChatMessage) []api.Message {
	msgs := make([]api.Message, 0, len(systemPrompts)+len(messages))
	for _, sp := range systemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
	}
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = "user"
		}
		msgs = append(msgs, api.Message{Role: role, Content: m.Message})
	}
	return msgs
}

func toAPITools(tools []ai.Tool) api.Tools {
	ollamaTools := make(api.Tools, len(tools))
	for i, tool := range tools {
		params := api.ToolFunctionParameters{
			Type:       "object",
			Required:   []string{},
			Properties: map[string]api.ToolProperty{},
		}

		if tool.Parameters != nil {
			if props, ok := tool.Parameters["properties"].(map[string]any); ok {
				for name, prop := range props {
					if propMap, ok := prop.(map[string]any); ok {
						tp := api.ToolProperty{}
						if t, ok := propMap["type"].(string); ok {
							tp.Type = api.PropertyType([]string{t})
						}
						if desc, ok := propMap["description"].(string); ok {
							tp.Description = desc
						}
						if enum, ok := propMap["enum"].([]any); ok {
							tp.Enum = enum
						}
						params.Properties[name] = tp
					}
				}
			}
			if reqInterface, ok := tool.Parameters["required"].([]any); ok {
				params.Required = make([]string, len(reqInterface))
				for i, v := range reqInterface {
					if s, ok := v.(string); ok {
						params.Required[i] = s
					}
				}
			} else if req, ok := tool.Parameters["required"].([]string); ok {
				params.Required = req
			}
		}

		ollamaTools[i] = api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		}
	}
	return ollamaTools
}

func (c *ChatOllamaClient) chatOnce(ctx context.Context, req *api.ChatRequest) (api.ChatResponse, error) {
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return api.ChatResponse{}, err
	}
	defer c.reqLock.Release(1)

	var final api.ChatResponse
	if err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if len(cr.Message.ToolCalls) > 0 {
			final.Message.ToolCalls = cr.Message.ToolCalls
		}
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return api.ChatResponse{}, err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
		TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		DurationMs:   final.Metrics.TotalDuration.Milliseconds(),
	})

	return final, nil
}

// GenerateCompletionWithFormat enforces a JSON schema and unmarshals into out.
func (c *ChatOllamaClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	if out == nil {
		return errors.New("out must be a non-nil pointer")
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("out must be a non-nil pointer")
	}

	schemaObj := ai.GenerateSchema(out)
	formatBytes, err := json.Marshal(schemaObj)
	if err != nil {
		return err
	}

	options := ai.GenerateOptions{
		Model:       c.extractionModel,
		Temperature: 0.1,
	}
	for _, o := range opts {
		o(&options)
	}

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: toAPIMessages(options.SystemPrompts, []ai.ChatMessage{{Role: "user", Message: prompt}}),
		Stream:   &stream,
		Format:   json.RawMessage(formatBytes),
		Options:  map[string]any{"temperature": options.Temperature},
	}
	if err := applyNumCtx(req, prompt); err != nil {
		return err
	}

	final, err := c.chatOnce(ctx, req)
	if err != nil {
		return err
	}
	return ai.UnmarshalFlexible(final.Message.Content, out)
}

// GenerateChatStreamWithTools sends a multi-turn conversation with tools and
// streams the final response. Tool calls are executed through their handlers
// and the results fed back until the model produces a response without tool
// calls, or until the maximum rounds (10) is reached.
func (c *ChatOllamaClient) GenerateChatStreamWithTools(
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

	msgs := toAPIMessages(options.SystemPrompts, messages)
	ollamaTools := toAPITools(tools)

	maxRounds := 10
	contentChan := make(chan ai.StreamEvent, 10)

	go func() {
		defer close(contentChan)

		for range maxRounds {
			stream := false
			req := &api.ChatRequest{
				Model:    options.Model,
				Messages: msgs,
				Tools:    ollamaTools,
				Stream:   &stream,
				Options:  map[string]any{"temperature": options.Temperature},
			}
			if err := applyNumCtx(req, joinMessages(msgs)); err != nil {
				logger.Error("[Ollama] token estimate failed", "err", err)
				return
			}

			final, err := c.chatOnce(ctx, req)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Error("[Ollama] tool chat failed", "err", err)
				}
				return
			}

			if len(final.Message.ToolCalls) == 0 {
				if final.Message.Content != "" {
					select {
					case contentChan <- ai.StreamEvent{Type: "content", Content: final.Message.Content}:
					case <-ctx.Done():
					}
				}
				return
			}

			msgs = append(msgs, final.Message)

			for _, tc := range final.Message.ToolCalls {
				var handler ai.ToolHandler
				for _, tool := range tools {
					if tool.Name == tc.Function.Name {
						handler = tool.Handler
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

				argsBytes, err := json.Marshal(tc.Function.Arguments)
				if err != nil {
					logger.Error("[Tool] bad arguments", "tool", tc.Function.Name, "err", err)
					return
				}

				result, err := handler(ctx, string(argsBytes))
				if err != nil {
					logger.Error("[Tool] failed", "tool", tc.Function.Name, "err", err)
					return
				}

				msgs = append(msgs, api.Message{
					Role:    "tool",
					Content: result,
				})
			}
		}

		logger.Error(fmt.Sprintf("[Ollama] max tool rounds (%d) exceeded", maxRounds))
	}()

	return contentChan, nil
}
