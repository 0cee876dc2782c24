package dag

import (
	"testing"

	"github.com/flowforge/dagflow/pkg/types"
)

func node(id string) types.NodeSpec {
	return types.NodeSpec{ID: id, Name: id, Type: "noop"}
}

func TestBuildDiamond(t *testing.T) {
	// a -> b -> d, a -> c -> d
	wf := &types.Workflow{
		ID:   "wf1",
		Name: "diamond",
		Nodes: map[string]types.NodeSpec{
			"a": node("a"), "b": node("b"), "c": node("c"), "d": node("d"),
		},
		Connections: []types.Connection{
			{From: "a", To: "b"},
			{From: "a", To: "c"},
			{From: "b", To: "d"},
			{From: "c", To: "d"},
		},
	}

	g := Build(wf)
	if errs := g.Validate(); len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}

	if g.Level("a") != 0 {
		t.Errorf("level(a) = %d, want 0", g.Level("a"))
	}
	if g.Level("b") != 1 || g.Level("c") != 1 {
		t.Errorf("level(b)=%d level(c)=%d, want both 1", g.Level("b"), g.Level("c"))
	}
	if g.Level("d") != 2 {
		t.Errorf("level(d) = %d, want 2", g.Level("d"))
	}

	groups := g.GetParallelGroups()
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(groups))
	}
	if len(groups[1].Nodes) != 2 {
		t.Errorf("level 1 group = %v, want 2 nodes", groups[1].Nodes)
	}

	start := g.GetStartNodes()
	if len(start) != 1 || start[0] != "a" {
		t.Errorf("start nodes = %v, want [a]", start)
	}
	end := g.GetEndNodes()
	if len(end) != 1 || end[0] != "d" {
		t.Errorf("end nodes = %v, want [d]", end)
	}
}

func TestBuildCycleRejected(t *testing.T) {
	wf := &types.Workflow{
		ID:   "wf2",
		Name: "cycle",
		Nodes: map[string]types.NodeSpec{
			"a": node("a"), "b": node("b"), "c": node("c"),
		},
		Connections: []types.Connection{
			{From: "a", To: "b"},
			{From: "b", To: "c"},
			{From: "c", To: "a"},
		},
	}

	g := Build(wf)
	errs := g.Validate()
	if len(errs) == 0 {
		t.Fatal("expected validation errors for a cycle, got none")
	}
	for _, id := range []string{"a", "b", "c"} {
		if g.Level(id) != -1 {
			t.Errorf("level(%s) = %d, want -1 (unleveled)", id, g.Level(id))
		}
	}
}

func TestBuildEmptyWorkflow(t *testing.T) {
	wf := &types.Workflow{ID: "wf3", Name: "empty", Nodes: map[string]types.NodeSpec{}}
	g := Build(wf)
	if errs := g.Validate(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(g.GetParallelGroups()) != 0 {
		t.Errorf("expected no parallel groups for empty workflow")
	}
	if len(g.GetStartNodes()) != 0 || len(g.GetEndNodes()) != 0 {
		t.Errorf("expected no start/end nodes for empty workflow")
	}
}

func TestIsolatedNodes(t *testing.T) {
	wf := &types.Workflow{
		ID:   "wf4",
		Name: "isolated",
		Nodes: map[string]types.NodeSpec{
			"a": node("a"), "b": node("b"),
		},
	}
	g := Build(wf)
	if errs := g.Validate(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	groups := g.GetParallelGroups()
	if len(groups) != 1 || len(groups[0].Nodes) != 2 {
		t.Fatalf("expected a single level with both nodes, got %v", groups)
	}
	start := g.GetStartNodes()
	if len(start) != 2 {
		t.Errorf("both isolated nodes should be start nodes, got %v", start)
	}
	end := g.GetEndNodes()
	if len(end) != 2 {
		t.Errorf("both isolated nodes should be end nodes, got %v", end)
	}
}

func TestCanExecute(t *testing.T) {
	wf := &types.Workflow{
		ID:   "wf5",
		Name: "chain",
		Nodes: map[string]types.NodeSpec{
			"a": node("a"), "b": node("b"),
		},
		Connections: []types.Connection{{From: "a", To: "b"}},
	}
	g := Build(wf)

	completed := map[string]struct{}{}
	failed := map[string]struct{}{}
	if g.CanExecute("b", completed, failed) {
		t.Error("b should not be executable before a completes")
	}
	completed["a"] = struct{}{}
	if !g.CanExecute("b", completed, failed) {
		t.Error("b should be executable once a completes")
	}

	delete(completed, "a")
	failed["a"] = struct{}{}
	if g.CanExecute("b", completed, failed) {
		t.Error("b should not be executable when a failed")
	}
}

func TestDuplicateConnectionsTolerated(t *testing.T) {
	wf := &types.Workflow{
		ID:   "wf6",
		Name: "dup",
		Nodes: map[string]types.NodeSpec{
			"a": node("a"), "b": node("b"),
		},
		Connections: []types.Connection{
			{From: "a", To: "b"},
			{From: "a", To: "b"},
		},
	}
	g := Build(wf)
	if errs := g.Validate(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if deps := g.Deps("b"); len(deps) != 1 || deps[0] != "a" {
		t.Errorf("deps(b) = %v, want [a]", deps)
	}
}
