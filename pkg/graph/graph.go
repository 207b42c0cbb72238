package graph

// NodeType classifies a node in the knowledge graph.
type NodeType string

const (
	NodeTypePerson       NodeType = "PERSON"
	NodeTypePlace        NodeType = "PLACE"
	NodeTypeOrganization NodeType = "ORGANIZATION"
	NodeTypeEvent        NodeType = "EVENT"
	NodeTypeOther        NodeType = "OTHER"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypePerson, NodeTypePlace, NodeTypeOrganization, NodeTypeEvent, NodeTypeOther:
		return true
	}
	return false
}

// Node is a typed entity in the knowledge graph, e.g. a person, place,
// organization or event.
//
// Identity for deduplication purposes is the full (ID, Name, Type) tuple:
// two nodes are the same only if all three fields match exactly. The same
// numeric ID may therefore appear more than once after a merge, with
// different names or types. Callers must not assume ID uniqueness.
type Node struct {
	ID   int64    `json:"id"`
	Name string   `json:"name"`
	Type NodeType `json:"node_type" jsonschema:"enum=PERSON,enum=PLACE,enum=ORGANIZATION,enum=EVENT,enum=OTHER"`
}

// NodeKey is the exact-tuple identity of a Node.
type NodeKey struct {
	ID   int64
	Name string
	Type NodeType
}

// Key returns the node's identity tuple.
func (n Node) Key() NodeKey {
	return NodeKey{ID: n.ID, Name: n.Name, Type: n.Type}
}

// Edge is a directional, labeled relationship between two node IDs.
//
// Identity for deduplication is the full (Source, Target, Description)
// tuple. Endpoints are not validated against the graph's node set; an edge
// may reference IDs that no node carries.
type Edge struct {
	Source      int64  `json:"source"`
	Target      int64  `json:"target"`
	Description string `json:"relationship_description"`
}

// EdgeKey is the exact-tuple identity of an Edge.
type EdgeKey struct {
	Source      int64
	Target      int64
	Description string
}

// Key returns the edge's identity tuple.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target, Description: e.Description}
}

// KnowledgeGraph is an ordered collection of nodes and edges.
//
// Graphs are treated as immutable values: updates produce a new graph that
// replaces the previous snapshot, so readers always observe a fully-formed
// state.
type KnowledgeGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Merge returns the union of a and b with exact-tuple duplicates removed.
// Elements of a come first, followed by elements of b that a did not
// already contain; within each input, first occurrence wins. The inputs are
// not modified.
func Merge(a, b KnowledgeGraph) KnowledgeGraph {
	out := KnowledgeGraph{
		Nodes: make([]Node, 0, len(a.Nodes)+len(b.Nodes)),
		Edges: make([]Edge, 0, len(a.Edges)+len(b.Edges)),
	}

	seenNodes := make(map[NodeKey]struct{}, len(a.Nodes)+len(b.Nodes))
	addNodes := func(nodes []Node) {
		for _, node := range nodes {
			key := node.Key()
			if _, ok := seenNodes[key]; ok {
				continue
			}
			seenNodes[key] = struct{}{}
			out.Nodes = append(out.Nodes, node)
		}
	}
	addNodes(a.Nodes)
	addNodes(b.Nodes)

	seenEdges := make(map[EdgeKey]struct{}, len(a.Edges)+len(b.Edges))
	addEdges := func(edges []Edge) {
		for _, edge := range edges {
			key := edge.Key()
			if _, ok := seenEdges[key]; ok {
				continue
			}
			seenEdges[key] = struct{}{}
			out.Edges = append(out.Edges, edge)
		}
	}
	addEdges(a.Edges)
	addEdges(b.Edges)

	return out
}

// Example returns the seeded demo graph shown before the first chat turn.
func Example() KnowledgeGraph {
	return KnowledgeGraph{
		Nodes: []Node{
			{ID: 1, Name: "Sam", Type: NodeTypePerson},
			{ID: 2, Name: "New York City", Type: NodeTypePlace},
			{ID: 3, Name: "Acme Corp", Type: NodeTypeOrganization},
			{ID: 4, Name: "2024 Tech Conference", Type: NodeTypeEvent},
		},
		Edges: []Edge{
			{Source: 1, Target: 2, Description: "lives in"},
			{Source: 1, Target: 3, Description: "works at"},
			{Source: 1, Target: 4, Description: "attended"},
			{Source: 3, Target: 4, Description: "sponsored"},
		},
	}
}
