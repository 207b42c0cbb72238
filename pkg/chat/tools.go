package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"graphchat/pkg/ai"
	"graphchat/pkg/graph"
)

// toolKind enumerates the closed set of tools the assistant may call.
// Dispatch goes through this enum rather than runtime name lookup, so an
// unknown tool name can never reach a handler.
type toolKind int

const (
	toolRecordFact toolKind = iota
)

type toolSpec struct {
	name        string
	description string
	parameters  map[string]any
}

var toolSpecs = map[toolKind]toolSpec{
	toolRecordFact: {
		name:        "record_fact",
		description: "Record a fact about a person, place, organization or event so it is added to the user's knowledge graph.",
		parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"fact": map[string]any{
					"type":        "string",
					"description": "The fact to record, as a short self-contained sentence.",
				},
			},
			"required": []string{"fact"},
		},
	},
}

type recordFactArgs struct {
	Fact string `json:"fact"`
}

func (c *Conversation) dispatch(kind toolKind) ai.ToolHandler {
	switch kind {
	case toolRecordFact:
		return c.handleRecordFact
	}
	return nil
}

// tools builds the ai.Tool list for a chat turn, binding every enumerated
// tool to its conversation-scoped handler.
func (c *Conversation) tools() []ai.Tool {
	tools := make([]ai.Tool, 0, len(toolSpecs))
	for kind, spec := range toolSpecs {
		tools = append(tools, ai.Tool{
			Name:        spec.name,
			Description: spec.description,
			Parameters:  spec.parameters,
			Handler:     c.dispatch(kind),
		})
	}
	return tools
}

// handleRecordFact feeds the recorded fact through the graph updater and
// swaps the conversation's snapshot. Extraction failures are reported back
// to the model as the tool result; the previous snapshot stays in place.
func (c *Conversation) handleRecordFact(ctx context.Context, arguments string) (string, error) {
	var args recordFactArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid record_fact arguments: %w", err)
	}
	if strings.TrimSpace(args.Fact) == "" {
		return "", fmt.Errorf("record_fact requires a non-empty fact")
	}

	snapshot, err := c.applyUpdate(ctx, args.Fact)
	if errors.Is(err, graph.ErrExtraction) {
		return "The fact could not be recorded. The graph is unchanged.", nil
	}
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"Recorded. The graph now has %d nodes and %d edges.",
		len(snapshot.Nodes), len(snapshot.Edges),
	), nil
}
