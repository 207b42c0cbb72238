package graph

import (
	"reflect"
	"testing"
)

func TestMerge_Deduplicates(t *testing.T) {
	a := KnowledgeGraph{
		Nodes: []Node{
			{ID: 1, Name: "Sam", Type: NodeTypePerson},
			{ID: 2, Name: "NYC", Type: NodeTypePlace},
		},
		Edges: []Edge{
			{Source: 1, Target: 2, Description: "lives in"},
		},
	}
	b := KnowledgeGraph{
		Nodes: []Node{
			{ID: 2, Name: "NYC", Type: NodeTypePlace},
			{ID: 3, Name: "Acme Corp", Type: NodeTypeOrganization},
		},
		Edges: []Edge{
			{Source: 1, Target: 2, Description: "lives in"},
			{Source: 1, Target: 3, Description: "works at"},
		},
	}

	got := Merge(a, b)

	wantNodes := []Node{
		{ID: 1, Name: "Sam", Type: NodeTypePerson},
		{ID: 2, Name: "NYC", Type: NodeTypePlace},
		{ID: 3, Name: "Acme Corp", Type: NodeTypeOrganization},
	}
	wantEdges := []Edge{
		{Source: 1, Target: 2, Description: "lives in"},
		{Source: 1, Target: 3, Description: "works at"},
	}

	if !reflect.DeepEqual(got.Nodes, wantNodes) {
		t.Fatalf("Merge() nodes = %+v, want %+v", got.Nodes, wantNodes)
	}
	if !reflect.DeepEqual(got.Edges, wantEdges) {
		t.Fatalf("Merge() edges = %+v, want %+v", got.Edges, wantEdges)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	g := Example()

	once := Merge(g, g)
	twice := Merge(once, g)

	if !reflect.DeepEqual(once, g) {
		t.Fatalf("Merge(g, g) = %+v, want %+v", once, g)
	}
	if !reflect.DeepEqual(twice, g) {
		t.Fatalf("Merge(Merge(g, g), g) = %+v, want %+v", twice, g)
	}
}

func TestMerge_CommutativeAsSets(t *testing.T) {
	a := KnowledgeGraph{
		Nodes: []Node{{ID: 1, Name: "Sam", Type: NodeTypePerson}},
		Edges: []Edge{{Source: 1, Target: 2, Description: "lives in"}},
	}
	b := KnowledgeGraph{
		Nodes: []Node{{ID: 2, Name: "NYC", Type: NodeTypePlace}},
		Edges: []Edge{{Source: 2, Target: 1, Description: "home of"}},
	}

	ab := Merge(a, b)
	ba := Merge(b, a)

	toNodeSet := func(g KnowledgeGraph) map[NodeKey]struct{} {
		set := make(map[NodeKey]struct{}, len(g.Nodes))
		for _, n := range g.Nodes {
			set[n.Key()] = struct{}{}
		}
		return set
	}
	toEdgeSet := func(g KnowledgeGraph) map[EdgeKey]struct{} {
		set := make(map[EdgeKey]struct{}, len(g.Edges))
		for _, e := range g.Edges {
			set[e.Key()] = struct{}{}
		}
		return set
	}

	if !reflect.DeepEqual(toNodeSet(ab), toNodeSet(ba)) {
		t.Fatalf("node sets differ: %+v vs %+v", ab.Nodes, ba.Nodes)
	}
	if !reflect.DeepEqual(toEdgeSet(ab), toEdgeSet(ba)) {
		t.Fatalf("edge sets differ: %+v vs %+v", ab.Edges, ba.Edges)
	}
}

func TestMerge_SameIDDifferentNameKeepsBoth(t *testing.T) {
	a := KnowledgeGraph{
		Nodes: []Node{{ID: 1, Name: "Sam", Type: NodeTypePerson}},
	}
	b := KnowledgeGraph{
		Nodes: []Node{{ID: 1, Name: "Samantha", Type: NodeTypePerson}},
	}

	got := Merge(a, b)
	if len(got.Nodes) != 2 {
		t.Fatalf("Merge() got %d nodes, want 2: %+v", len(got.Nodes), got.Nodes)
	}
}

func TestMerge_DistinctEdgeDescriptionsKeepBoth(t *testing.T) {
	a := KnowledgeGraph{
		Edges: []Edge{{Source: 1, Target: 2, Description: "lives in"}},
	}
	b := KnowledgeGraph{
		Edges: []Edge{{Source: 1, Target: 2, Description: "was born in"}},
	}

	got := Merge(a, b)
	if len(got.Edges) != 2 {
		t.Fatalf("Merge() got %d edges, want 2: %+v", len(got.Edges), got.Edges)
	}
}

func TestMerge_EmptyInputs(t *testing.T) {
	g := Example()

	if got := Merge(KnowledgeGraph{}, g); !reflect.DeepEqual(got, g) {
		t.Fatalf("Merge(empty, g) = %+v, want %+v", got, g)
	}
	if got := Merge(g, KnowledgeGraph{}); !reflect.DeepEqual(got, g) {
		t.Fatalf("Merge(g, empty) = %+v, want %+v", got, g)
	}

	empty := Merge(KnowledgeGraph{}, KnowledgeGraph{})
	if len(empty.Nodes) != 0 || len(empty.Edges) != 0 {
		t.Fatalf("Merge(empty, empty) = %+v, want empty graph", empty)
	}
}

func TestMerge_DoesNotModifyInputs(t *testing.T) {
	a := KnowledgeGraph{
		Nodes: []Node{{ID: 1, Name: "Sam", Type: NodeTypePerson}},
	}
	b := KnowledgeGraph{
		Nodes: []Node{{ID: 2, Name: "NYC", Type: NodeTypePlace}},
	}

	_ = Merge(a, b)

	if len(a.Nodes) != 1 || a.Nodes[0].Name != "Sam" {
		t.Fatalf("first input was modified: %+v", a)
	}
	if len(b.Nodes) != 1 || b.Nodes[0].Name != "NYC" {
		t.Fatalf("second input was modified: %+v", b)
	}
}

func TestNodeType_Valid(t *testing.T) {
	for _, nt := range []NodeType{NodeTypePerson, NodeTypePlace, NodeTypeOrganization, NodeTypeEvent, NodeTypeOther} {
		if !nt.Valid() {
			t.Fatalf("NodeType(%q).Valid() = false, want true", nt)
		}
	}
	for _, nt := range []NodeType{"", "person", "ANIMAL"} {
		if nt.Valid() {
			t.Fatalf("NodeType(%q).Valid() = true, want false", nt)
		}
	}
}
