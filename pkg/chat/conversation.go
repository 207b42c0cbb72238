package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"graphchat/pkg/ai"
	"graphchat/pkg/graph"
	"graphchat/pkg/logger"
)

const defaultTokenBudget = 8000

// Message is one entry of a conversation transcript.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Event is one item of the stream a chat turn produces.
//
// Type is one of:
//   - "content" → an assistant text delta
//   - "step"    → a tool invocation, named in Step
//   - "graph"   → the snapshot published at the end of the turn
//   - "error"   → the turn's graph update failed; the previous snapshot stands
type Event struct {
	Type    string                `json:"type"`
	Content string                `json:"content,omitempty"`
	Step    string                `json:"step,omitempty"`
	Graph   *graph.KnowledgeGraph `json:"graph,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// Conversation owns a chat transcript and the knowledge graph extracted from
// it. Turns are processed strictly sequentially: a turn streams the
// assistant's reply, executes at most the enumerated tool set, folds the new
// text into the graph, and publishes the resulting snapshot before the next
// turn may begin.
//
// The graph is held as an immutably replaced value: Snapshot always returns
// a fully-formed state, never a partial one.
//
// A Conversation should be created using NewConversation.
type Conversation struct {
	ID string

	client      ai.ChatAIClient
	updater     *graph.Updater
	seed        graph.KnowledgeGraph
	tokenBudget int

	turnLock sync.Mutex

	stateLock sync.RWMutex
	messages  []Message
	snapshot  graph.KnowledgeGraph
}

// NewConversationParams defines the configuration for creating a
// Conversation.
//
// Seed is the graph shown before the first turn (commonly graph.Example()).
// TokenBudget bounds the outbound transcript; zero uses the default.
type NewConversationParams struct {
	Client      ai.ChatAIClient
	Updater     *graph.Updater
	Seed        graph.KnowledgeGraph
	TokenBudget int
}

// NewConversation creates an empty conversation seeded with the given graph.
func NewConversation(params NewConversationParams) (*Conversation, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	budget := params.TokenBudget
	if budget <= 0 {
		budget = defaultTokenBudget
	}

	return &Conversation{
		ID:          id,
		client:      params.Client,
		updater:     params.Updater,
		seed:        params.Seed,
		tokenBudget: budget,
		messages:    []Message{},
		snapshot:    params.Seed,
	}, nil
}

// Snapshot returns the current graph state.
func (c *Conversation) Snapshot() graph.KnowledgeGraph {
	c.stateLock.RLock()
	defer c.stateLock.RUnlock()

	return c.snapshot
}

// Transcript returns a copy of the conversation transcript.
func (c *Conversation) Transcript() []Message {
	c.stateLock.RLock()
	defer c.stateLock.RUnlock()

	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Reset clears the transcript and restores the seeded graph. It waits for an
// in-flight turn to finish.
func (c *Conversation) Reset() {
	c.turnLock.Lock()
	defer c.turnLock.Unlock()

	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	c.messages = []Message{}
	c.snapshot = c.seed
}

// ReplaceSnapshot swaps the current graph for the given one, e.g. after a
// batch build. It waits for an in-flight turn to finish.
func (c *Conversation) ReplaceSnapshot(g graph.KnowledgeGraph) {
	c.turnLock.Lock()
	defer c.turnLock.Unlock()

	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	c.snapshot = g
}

func (c *Conversation) appendMessage(role string, content string) error {
	id, err := gonanoid.New()
	if err != nil {
		return err
	}

	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	c.messages = append(c.messages, Message{ID: id, Role: role, Content: content})
	return nil
}

// applyUpdate runs the updater against the current snapshot and, on success,
// publishes the result as the new snapshot.
func (c *Conversation) applyUpdate(ctx context.Context, newText string) (graph.KnowledgeGraph, error) {
	current := c.Snapshot()

	next, err := c.updater.Update(ctx, newText, current)
	if err != nil {
		return graph.KnowledgeGraph{}, err
	}

	c.stateLock.Lock()
	c.snapshot = next
	c.stateLock.Unlock()

	return next, nil
}

func (c *Conversation) outbound() ([]ai.ChatMessage, error) {
	c.stateLock.RLock()
	msgs := make([]ai.ChatMessage, 0, len(c.messages))
	for _, m := range c.messages {
		msgs = append(msgs, ai.ChatMessage{Role: m.Role, Message: m.Content})
	}
	c.stateLock.RUnlock()

	return TrimToBudget(msgs, c.tokenBudget)
}

// Send processes one chat turn for the given user text and returns the event
// stream for it. The turn is complete when the channel closes; at that point
// the transcript and the graph snapshot reflect the turn. Only one turn runs
// at a time; a second Send blocks until the first finishes.
func (c *Conversation) Send(ctx context.Context, text string) (<-chan Event, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("message must not be empty")
	}

	c.turnLock.Lock()

	if err := c.appendMessage("user", text); err != nil {
		c.turnLock.Unlock()
		return nil, err
	}

	outbound, err := c.outbound()
	if err != nil {
		c.turnLock.Unlock()
		return nil, err
	}

	stream, err := c.client.GenerateChatStreamWithTools(
		ctx,
		outbound,
		c.tools(),
		ai.WithSystemPrompts(ai.ChatPrompt),
	)
	if err != nil {
		c.turnLock.Unlock()
		return nil, err
	}

	events := make(chan Event, 10)
	go func() {
		defer c.turnLock.Unlock()
		defer close(events)

		// The consumer may stop reading mid-stream, e.g. on a client
		// disconnect that cancels the request context. Every send must
		// bail out then, or the turn would hold turnLock forever.
		send := func(event Event) bool {
			select {
			case events <- event:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var reply strings.Builder
		for event := range stream {
			switch event.Type {
			case "step":
				if !send(Event{Type: "step", Step: event.Step}) {
					return
				}
			case "content":
				reply.WriteString(event.Content)
				if !send(Event{Type: "content", Content: event.Content}) {
					return
				}
			}
		}

		if reply.Len() > 0 {
			if err := c.appendMessage("assistant", reply.String()); err != nil {
				logger.Error("[Chat] failed to append assistant message", "err", err)
			}
		}

		// The user's own words carry facts too, tool call or not.
		snapshot, err := c.applyUpdate(ctx, text)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Warn("[Chat] graph update failed, keeping previous snapshot", "err", err)
				if !send(Event{Type: "error", Error: err.Error()}) {
					return
				}
			}
			snapshot = c.Snapshot()
		}

		send(Event{Type: "graph", Graph: &snapshot})
	}()

	return events, nil
}
