package engine

import (
	"testing"

	"github.com/shaiso/flowrunner/internal/domain"
)

func ids(nodes []domain.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildGraph_LastWriteWins(t *testing.T) {
	g := BuildGraph([]domain.Node{
		{ID: "a", Type: domain.NodeTypeLog, Name: "first"},
		{ID: "b", Type: domain.NodeTypeLog},
		{ID: "a", Type: domain.NodeTypeEnd, Name: "second"},
	})

	if g.Len() != 2 {
		t.Errorf("expected 2 nodes, got %d", g.Len())
	}

	a, ok := g.Node("a")
	if !ok {
		t.Fatal("node a not found")
	}
	if a.Name != "second" || a.Type != domain.NodeTypeEnd {
		t.Errorf("expected last declaration to win, got %+v", a)
	}

	// порядок: по первому появлению
	if got := g.IDs(); !equalIDs(got, []string{"a", "b"}) {
		t.Errorf("expected [a b], got %v", got)
	}
}

func TestResolve_PreservesOrder(t *testing.T) {
	g := BuildGraph([]domain.Node{
		{ID: "a", Outputs: []string{"a:c", "a:b"}},
		{ID: "b"},
		{ID: "c"},
	})

	a, _ := g.Node("a")
	if got := ids(g.Resolve(a)); !equalIDs(got, []string{"c", "b"}) {
		t.Errorf("expected [c b], got %v", got)
	}
}

func TestResolve_FiltersForeignSource(t *testing.T) {
	g := BuildGraph([]domain.Node{
		{ID: "a", Outputs: []string{"x:b", "a:c"}},
		{ID: "b"},
		{ID: "c"},
	})

	a, _ := g.Node("a")
	if got := ids(g.Resolve(a)); !equalIDs(got, []string{"c"}) {
		t.Errorf("expected [c], got %v", got)
	}
}

func TestResolve_DropsUnknownAndMalformed(t *testing.T) {
	g := BuildGraph([]domain.Node{
		{ID: "a", Outputs: []string{"a:ghost", "garbage", "a:b:extra"}},
		{ID: "b"},
	})

	a, _ := g.Node("a")
	got := g.Resolve(a)

	// результат: подмножество известных ID
	for _, n := range got {
		if _, ok := g.Node(n.ID); !ok {
			t.Errorf("resolved unknown node %s", n.ID)
		}
	}
	if !equalIDs(ids(got), []string{"b"}) {
		t.Errorf("expected [b], got %v", ids(got))
	}
}

func TestResolve_EmptyOutputs(t *testing.T) {
	g := BuildGraph([]domain.Node{{ID: "a"}})

	a, _ := g.Node("a")
	got := g.Resolve(a)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestResolve_NodeOutsideIndex(t *testing.T) {
	g := BuildGraph([]domain.Node{{ID: "b"}})

	start := domain.Node{ID: "start", Outputs: []string{"start:b"}}
	if got := ids(g.Resolve(start)); !equalIDs(got, []string{"b"}) {
		t.Errorf("expected [b], got %v", got)
	}
}

func TestRoots(t *testing.T) {
	// A → B, A → C, B → D, E отдельно
	nodes := []domain.Node{
		{ID: "B", Outputs: []string{"B:D"}},
		{ID: "A", Outputs: []string{"A:B", "A:C"}},
		{ID: "C"},
		{ID: "D"},
		{ID: "E", Outputs: []string{"X:C"}},
	}

	if got := ids(Roots(nodes)); !equalIDs(got, []string{"A", "E"}) {
		t.Errorf("expected [A E], got %v", got)
	}
}
