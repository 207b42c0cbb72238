package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"graphchat/pkg/ai"
	"graphchat/pkg/graph"
)

// fakeChatClient scripts one chat turn: it optionally invokes the record_fact
// tool with toolArgs, then streams the content chunks. Structured extraction
// calls consume extractions in order, or fail with extractionErr.
type fakeChatClient struct {
	content  []string
	toolArgs string

	extractions   []string
	extractionErr error

	lastMessages []ai.ChatMessage
	lastTools    []ai.Tool
	toolResults  []string
}

func (f *fakeChatClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	if f.extractionErr != nil {
		return f.extractionErr
	}
	if len(f.extractions) == 0 {
		return errors.New("no scripted extraction left")
	}
	res := f.extractions[0]
	f.extractions = f.extractions[1:]
	return json.Unmarshal([]byte(res), out)
}

func (f *fakeChatClient) GenerateChatStreamWithTools(
	ctx context.Context,
	messages []ai.ChatMessage,
	tools []ai.Tool,
	opts ...ai.GenerateOption,
) (<-chan ai.StreamEvent, error) {
	f.lastMessages = messages
	f.lastTools = tools

	out := make(chan ai.StreamEvent, 10)
	go func() {
		defer close(out)

		if f.toolArgs != "" {
			for _, tool := range tools {
				if tool.Name != "record_fact" {
					continue
				}
				out <- ai.StreamEvent{Type: "step", Step: tool.Name}
				result, err := tool.Handler(ctx, f.toolArgs)
				if err != nil {
					result = "tool error: " + err.Error()
				}
				f.toolResults = append(f.toolResults, result)
			}
		}

		for _, chunk := range f.content {
			select {
			case out <- ai.StreamEvent{Type: "content", Content: chunk}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *fakeChatClient) ResetMetrics() {}

func (f *fakeChatClient) GetMetrics() ai.ModelMetrics {
	return ai.ModelMetrics{}
}

func newTestConversation(t *testing.T, client ai.ChatAIClient) *Conversation {
	t.Helper()

	conv, err := NewConversation(NewConversationParams{
		Client:  client,
		Updater: graph.NewUpdater(graph.NewUpdaterParams{Client: client}),
		Seed:    graph.Example(),
	})
	if err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}
	return conv
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()

	var out []Event
	for event := range events {
		out = append(out, event)
	}
	return out
}

func TestConversation_Send_StreamsContentAndGraph(t *testing.T) {
	client := &fakeChatClient{
		content: []string{"Nice ", "to meet ", "you!"},
		extractions: []string{
			`{"nodes":[{"id":5,"name":"Maria","node_type":"PERSON"}],"edges":[]}`,
		},
	}
	conv := newTestConversation(t, client)

	events, err := conv.Send(context.Background(), "My friend Maria says hi.")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got := collect(t, events)

	var reply strings.Builder
	var graphEvents []Event
	for _, event := range got {
		switch event.Type {
		case "content":
			reply.WriteString(event.Content)
		case "graph":
			graphEvents = append(graphEvents, event)
		case "error":
			t.Fatalf("unexpected error event: %s", event.Error)
		}
	}

	if reply.String() != "Nice to meet you!" {
		t.Fatalf("assembled reply = %q, want %q", reply.String(), "Nice to meet you!")
	}
	if len(graphEvents) != 1 {
		t.Fatalf("got %d graph events, want 1", len(graphEvents))
	}
	if graphEvents[0] != got[len(got)-1] {
		t.Fatalf("graph event is not the final event: %+v", got)
	}

	seed := graph.Example()
	snapshot := conv.Snapshot()
	if len(snapshot.Nodes) != len(seed.Nodes)+1 {
		t.Fatalf("snapshot has %d nodes, want %d", len(snapshot.Nodes), len(seed.Nodes)+1)
	}

	transcript := conv.Transcript()
	if len(transcript) != 2 {
		t.Fatalf("transcript has %d messages, want 2", len(transcript))
	}
	if transcript[0].Role != "user" || transcript[1].Role != "assistant" {
		t.Fatalf("unexpected transcript roles: %+v", transcript)
	}
	if transcript[1].Content != "Nice to meet you!" {
		t.Fatalf("assistant transcript entry = %q", transcript[1].Content)
	}
	if transcript[0].ID == "" || transcript[0].ID == transcript[1].ID {
		t.Fatalf("messages need distinct non-empty ids: %+v", transcript)
	}
}

func TestConversation_Send_ToolCallUpdatesGraphMidTurn(t *testing.T) {
	client := &fakeChatClient{
		content:  []string{"Noted!"},
		toolArgs: `{"fact":"Sam adopted a dog named Rex."}`,
		extractions: []string{
			// First extraction serves the tool call, the second the
			// end-of-turn pass over the user message.
			`{"nodes":[{"id":7,"name":"Rex","node_type":"OTHER"}],"edges":[{"source":1,"target":7,"relationship_description":"adopted"}]}`,
			`{"nodes":[],"edges":[]}`,
		},
	}
	conv := newTestConversation(t, client)

	events, err := conv.Send(context.Background(), "Sam adopted a dog named Rex.")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got := collect(t, events)

	var steps []string
	for _, event := range got {
		if event.Type == "step" {
			steps = append(steps, event.Step)
		}
	}
	if len(steps) != 1 || steps[0] != "record_fact" {
		t.Fatalf("step events = %v, want [record_fact]", steps)
	}

	if len(client.toolResults) != 1 {
		t.Fatalf("tool ran %d times, want 1", len(client.toolResults))
	}
	if !strings.Contains(client.toolResults[0], "Recorded.") {
		t.Fatalf("tool result = %q, want a success message", client.toolResults[0])
	}

	snapshot := conv.Snapshot()
	if len(snapshot.Nodes) != len(graph.Example().Nodes)+1 {
		t.Fatalf("snapshot has %d nodes, want %d", len(snapshot.Nodes), len(graph.Example().Nodes)+1)
	}
}

func TestConversation_Send_ExtractionFailureKeepsSnapshot(t *testing.T) {
	client := &fakeChatClient{
		content:       []string{"Okay."},
		extractionErr: errors.New("model returned garbage"),
	}
	conv := newTestConversation(t, client)

	events, err := conv.Send(context.Background(), "Something new happened.")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got := collect(t, events)

	var sawError bool
	var final *Event
	for i := range got {
		if got[i].Type == "error" {
			sawError = true
		}
		if got[i].Type == "graph" {
			final = &got[i]
		}
	}
	if !sawError {
		t.Fatalf("expected an error event, got %+v", got)
	}
	if final == nil {
		t.Fatalf("expected a final graph event, got %+v", got)
	}

	seed := graph.Example()
	if len(final.Graph.Nodes) != len(seed.Nodes) || len(final.Graph.Edges) != len(seed.Edges) {
		t.Fatalf("failed update must keep the previous snapshot, got %+v", final.Graph)
	}
	if len(conv.Snapshot().Nodes) != len(seed.Nodes) {
		t.Fatalf("Snapshot() changed after a failed update")
	}
}

func TestConversation_Send_AbandonedStreamReleasesTurn(t *testing.T) {
	// More content than the event buffer holds, so the turn goroutine
	// has to block on a send once the consumer stops reading.
	chunks := make([]string, 50)
	for i := range chunks {
		chunks[i] = "chunk "
	}
	client := &fakeChatClient{
		content:     chunks,
		extractions: []string{`{"nodes":[],"edges":[]}`},
	}
	conv := newTestConversation(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := conv.Send(ctx, "Hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// The consumer walks away without draining the events, the way a
	// dropped HTTP connection does, and its context is canceled.
	cancel()

	done := make(chan struct{})
	go func() {
		conv.Reset()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Reset() blocked behind a turn whose consumer went away")
	}
}

func TestConversation_Send_EmptyMessage(t *testing.T) {
	conv := newTestConversation(t, &fakeChatClient{})

	if _, err := conv.Send(context.Background(), "   "); err == nil {
		t.Fatalf("Send() accepted a blank message")
	}
}

func TestConversation_Send_TranscriptCarriesOver(t *testing.T) {
	client := &fakeChatClient{
		content:     []string{"Hi!"},
		extractions: []string{`{"nodes":[],"edges":[]}`, `{"nodes":[],"edges":[]}`},
	}
	conv := newTestConversation(t, client)

	events, err := conv.Send(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	collect(t, events)

	if len(client.lastMessages) != 1 || client.lastMessages[0].Message != "Hello" {
		t.Fatalf("outbound transcript = %+v, want the user message", client.lastMessages)
	}
	if len(client.lastTools) != 1 || client.lastTools[0].Name != "record_fact" {
		t.Fatalf("tools = %+v, want [record_fact]", client.lastTools)
	}

	// Second turn carries the first turn's messages.
	events, err = conv.Send(context.Background(), "How are you?")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	collect(t, events)

	if len(client.lastMessages) != 3 {
		t.Fatalf("outbound transcript has %d messages, want 3: %+v", len(client.lastMessages), client.lastMessages)
	}
}

func TestConversation_Reset(t *testing.T) {
	client := &fakeChatClient{
		content: []string{"Sure."},
		extractions: []string{
			`{"nodes":[{"id":9,"name":"Berlin","node_type":"PLACE"}],"edges":[]}`,
		},
	}
	conv := newTestConversation(t, client)

	events, err := conv.Send(context.Background(), "I moved to Berlin.")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	collect(t, events)

	if len(conv.Transcript()) == 0 {
		t.Fatalf("transcript empty after a turn")
	}

	conv.Reset()

	if len(conv.Transcript()) != 0 {
		t.Fatalf("Reset() left transcript entries: %+v", conv.Transcript())
	}
	seed := graph.Example()
	if len(conv.Snapshot().Nodes) != len(seed.Nodes) {
		t.Fatalf("Reset() did not restore the seeded graph")
	}
}

func TestConversation_ReplaceSnapshot(t *testing.T) {
	conv := newTestConversation(t, &fakeChatClient{})

	next := graph.KnowledgeGraph{
		Nodes: []graph.Node{{ID: 42, Name: "Rebuilt", Type: graph.NodeTypeOther}},
	}
	conv.ReplaceSnapshot(next)

	got := conv.Snapshot()
	if len(got.Nodes) != 1 || got.Nodes[0].Name != "Rebuilt" {
		t.Fatalf("Snapshot() = %+v, want the replaced graph", got)
	}
}

func TestHandleRecordFact_BadArguments(t *testing.T) {
	conv := newTestConversation(t, &fakeChatClient{})

	if _, err := conv.handleRecordFact(context.Background(), "not json"); err == nil {
		t.Fatalf("handleRecordFact() accepted malformed arguments")
	}
	if _, err := conv.handleRecordFact(context.Background(), `{"fact":"  "}`); err == nil {
		t.Fatalf("handleRecordFact() accepted a blank fact")
	}
}

func TestHandleRecordFact_ExtractionFailureReportedToModel(t *testing.T) {
	client := &fakeChatClient{extractionErr: errors.New("model returned garbage")}
	conv := newTestConversation(t, client)

	result, err := conv.handleRecordFact(context.Background(), `{"fact":"Sam likes tea."}`)
	if err != nil {
		t.Fatalf("handleRecordFact() error = %v, want model-visible failure text", err)
	}
	if !strings.Contains(result, "could not be recorded") {
		t.Fatalf("handleRecordFact() result = %q", result)
	}

	seed := graph.Example()
	if len(conv.Snapshot().Nodes) != len(seed.Nodes) {
		t.Fatalf("failed record_fact changed the snapshot")
	}
}
