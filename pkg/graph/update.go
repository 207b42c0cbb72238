package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"graphchat/pkg/ai"
)

// ErrExtraction marks a graph update whose model response could not be
// turned into a valid graph. Timeouts on the extraction call are wrapped the
// same way. Callers keep the previous snapshot when they see this error.
var ErrExtraction = errors.New("graph extraction failed")

type updateNode struct {
	ID   int64  `json:"id" jsonschema_description:"Numeric identifier of the node, reused from the current graph when the node already exists"`
	Name string `json:"name" jsonschema_description:"Display name of the node"`
	Type string `json:"node_type" jsonschema:"enum=PERSON,enum=PLACE,enum=ORGANIZATION,enum=EVENT,enum=OTHER" jsonschema_description:"Category of the node"`
}

type updateEdge struct {
	Source      int64  `json:"source" jsonschema_description:"Id of the source node"`
	Target      int64  `json:"target" jsonschema_description:"Id of the target node"`
	Description string `json:"relationship_description" jsonschema_description:"Short label describing how source relates to target"`
}

type updateResponse struct {
	Nodes []updateNode `json:"nodes" jsonschema_description:"All nodes of the updated graph"`
	Edges []updateEdge `json:"edges" jsonschema_description:"All edges of the updated graph"`
}

// Updater folds new text into a knowledge graph by asking a language model
// for the updated graph state and merging the response into the current
// snapshot.
//
// An Updater should be created using NewUpdater.
type Updater struct {
	client  ai.ChatAIClient
	timeout time.Duration
}

// NewUpdaterParams defines the configuration for creating an Updater.
//
// Timeout bounds each extraction call; zero or negative values fall back to
// 60 seconds.
type NewUpdaterParams struct {
	Client  ai.ChatAIClient
	Timeout time.Duration
}

// NewUpdater creates an Updater backed by the given AI client.
func NewUpdater(params NewUpdaterParams) *Updater {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Updater{
		client:  params.Client,
		timeout: timeout,
	}
}

func (r updateResponse) toGraph() (KnowledgeGraph, error) {
	g := KnowledgeGraph{
		Nodes: make([]Node, 0, len(r.Nodes)),
		Edges: make([]Edge, 0, len(r.Edges)),
	}
	for _, n := range r.Nodes {
		nodeType := NodeType(n.Type)
		if !nodeType.Valid() {
			return KnowledgeGraph{}, fmt.Errorf("node %d has unknown type %q", n.ID, n.Type)
		}
		g.Nodes = append(g.Nodes, Node{ID: n.ID, Name: n.Name, Type: nodeType})
	}
	for _, e := range r.Edges {
		g.Edges = append(g.Edges, Edge{Source: e.Source, Target: e.Target, Description: e.Description})
	}
	return g, nil
}

// Update extracts nodes and edges from newText and returns a new graph with
// the extraction merged into current. The model sees the serialized current
// graph and is asked for the updated state; whatever it returns is merged
// locally, so a model that answers with only the new elements cannot erase
// the graph. current is never modified.
//
// Failures to parse or validate the model response, and deadline expiry, are
// reported as ErrExtraction.
func (u *Updater) Update(
	ctx context.Context,
	newText string,
	current KnowledgeGraph,
) (KnowledgeGraph, error) {
	return u.update(ctx, newText, current, 1, 1)
}

func (u *Updater) update(
	ctx context.Context,
	newText string,
	current KnowledgeGraph,
	part int,
	parts int,
) (KnowledgeGraph, error) {
	state, err := json.Marshal(current)
	if err != nil {
		return KnowledgeGraph{}, err
	}

	prompt := fmt.Sprintf(ai.GraphUpdatePrompt, part, parts, newText)
	prompt = fmt.Sprintf("%s\n\n%s", prompt, fmt.Sprintf(ai.GraphStatePrompt, state))

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	var res updateResponse
	err = u.client.GenerateCompletionWithFormat(
		ctx,
		"update_knowledge_graph",
		"Append newly mentioned nodes and edges to the user's knowledge graph.",
		prompt,
		&res,
		ai.WithSystemPrompts(ai.GraphBuilderPrompt),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return KnowledgeGraph{}, err
		}
		return KnowledgeGraph{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	delta, err := res.toGraph()
	if err != nil {
		return KnowledgeGraph{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	return Merge(current, delta), nil
}

// BuildGraph builds a graph from scratch by replaying the given text chunks
// through Update one at a time, the way the conversation feeds messages in.
// Each chunk is labeled with its position so the model knows how much input
// remains. The callback, when non-nil, observes the snapshot after every
// chunk.
func (u *Updater) BuildGraph(
	ctx context.Context,
	chunks []string,
	onUpdate func(iteration int, snapshot KnowledgeGraph) error,
) (KnowledgeGraph, error) {
	state := KnowledgeGraph{}
	for i, chunk := range chunks {
		next, err := u.update(ctx, chunk, state, i+1, len(chunks))
		if err != nil {
			return state, err
		}
		state = next

		if onUpdate != nil {
			if err := onUpdate(i, state); err != nil {
				return state, err
			}
		}
	}
	return state, nil
}
