// Package dag builds and validates the dependency graph derived from a
// Workflow: adjacency, topological levels, and parallel groups.
package dag

import (
	"fmt"
	"sort"

	"github.com/flowforge/dagflow/pkg/types"
)

// ParallelGroup is the set of node ids at a single topological level.
type ParallelGroup struct {
	Level int
	Nodes []string
}

// Graph is the dependency graph derived from a Workflow at run start.
// It is built once per run and never mutated afterward.
type Graph struct {
	deps       map[string]map[string]struct{}
	dependents map[string]map[string]struct{}
	level      map[string]int
	order      []string // all node ids, stable iteration order
}

// Build constructs a Graph from a Workflow's nodes and connections.
// Duplicate connections between the same pair are tolerated: they add
// no new dependency but do not error either (spec.md §4.1).
func Build(wf *types.Workflow) *Graph {
	g := &Graph{
		deps:       make(map[string]map[string]struct{}),
		dependents: make(map[string]map[string]struct{}),
		level:      make(map[string]int),
	}

	ids := make([]string, 0, len(wf.Nodes))
	for id := range wf.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	g.order = ids

	for _, id := range ids {
		g.deps[id] = make(map[string]struct{})
		g.dependents[id] = make(map[string]struct{})
	}

	for _, c := range wf.Connections {
		if _, ok := g.deps[c.To]; !ok {
			continue
		}
		if _, ok := g.dependents[c.From]; !ok {
			continue
		}
		g.deps[c.To][c.From] = struct{}{}
		g.dependents[c.From][c.To] = struct{}{}
	}

	g.assignLevels()
	return g
}

// assignLevels runs the topological BFS described in spec.md §4.1: seed
// the queue with nodes that have no deps at level 0, and only enqueue a
// dependent once every one of its deps has already been leveled.
func (g *Graph) assignLevels() {
	remaining := make(map[string]int, len(g.order))
	queue := make([]string, 0, len(g.order))

	for _, id := range g.order {
		remaining[id] = len(g.deps[id])
		if remaining[id] == 0 {
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, leveled := g.level[id]; leveled {
			continue
		}

		lvl := 0
		for dep := range g.deps[id] {
			if dl, ok := g.level[dep]; ok && dl+1 > lvl {
				lvl = dl + 1
			}
		}
		g.level[id] = lvl

		deps := make([]string, 0, len(g.dependents[id]))
		for d := range g.dependents[id] {
			deps = append(deps, d)
		}
		sort.Strings(deps)
		for _, dep := range deps {
			remaining[dep]--
			if remaining[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
}

// Validate reports structural errors: a "cycle involving <id>" entry per
// node discovered to participate in a cycle (via DFS with a recursion
// set), plus an "unreferenced node <id>" entry for any node that ended
// up unleveled without being part of a reported cycle. Neither search
// mutates the graph.
func (g *Graph) Validate() []string {
	var errs []string

	unleveled := make(map[string]struct{})
	for _, id := range g.order {
		if _, ok := g.level[id]; !ok {
			unleveled[id] = struct{}{}
		}
	}
	if len(unleveled) == 0 {
		return nil
	}

	inCycle := make(map[string]struct{})
	visiting := make(map[string]struct{})
	visited := make(map[string]struct{})

	var dfs func(id string, stack []string) []string
	dfs = func(id string, stack []string) []string {
		visiting[id] = struct{}{}
		stack = append(stack, id)

		deps := make([]string, 0, len(g.deps[id]))
		for d := range g.deps[id] {
			deps = append(deps, d)
		}
		sort.Strings(deps)

		for _, dep := range deps {
			if _, ok := visiting[dep]; ok {
				// Found the cycle; mark every node on the stack from dep onward.
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				return stack[start:]
			}
			if _, ok := visited[dep]; !ok {
				if cyc := dfs(dep, stack); cyc != nil {
					return cyc
				}
			}
		}

		delete(visiting, id)
		visited[id] = struct{}{}
		return nil
	}

	ids := make([]string, 0, len(unleveled))
	for id := range unleveled {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, ok := inCycle[id]; ok {
			continue
		}
		visiting = make(map[string]struct{})
		if cyc := dfs(id, nil); cyc != nil {
			for _, c := range cyc {
				if _, ok := inCycle[c]; !ok {
					inCycle[c] = struct{}{}
					errs = append(errs, fmt.Sprintf("cycle involving %s", c))
				}
			}
		}
	}

	for _, id := range ids {
		if _, ok := inCycle[id]; !ok {
			errs = append(errs, fmt.Sprintf("unreferenced node %s", id))
		}
	}

	return errs
}

// GetParallelGroups returns the (level, [ids]) partition in ascending
// level order.
func (g *Graph) GetParallelGroups() []ParallelGroup {
	byLevel := make(map[int][]string)
	maxLevel := -1
	for id, lvl := range g.level {
		byLevel[lvl] = append(byLevel[lvl], id)
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}
	groups := make([]ParallelGroup, 0, maxLevel+1)
	for lvl := 0; lvl <= maxLevel; lvl++ {
		nodes := byLevel[lvl]
		sort.Strings(nodes)
		groups = append(groups, ParallelGroup{Level: lvl, Nodes: nodes})
	}
	return groups
}

// GetStartNodes returns ids with no dependencies.
func (g *Graph) GetStartNodes() []string {
	var out []string
	for _, id := range g.order {
		if len(g.deps[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// GetEndNodes returns ids with no dependents.
func (g *Graph) GetEndNodes() []string {
	var out []string
	for _, id := range g.order {
		if len(g.dependents[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// Deps returns the direct predecessor ids of id.
func (g *Graph) Deps(id string) []string {
	deps := make([]string, 0, len(g.deps[id]))
	for d := range g.deps[id] {
		deps = append(deps, d)
	}
	sort.Strings(deps)
	return deps
}

// Dependents returns the direct successor ids of id.
func (g *Graph) Dependents(id string) []string {
	deps := make([]string, 0, len(g.dependents[id]))
	for d := range g.dependents[id] {
		deps = append(deps, d)
	}
	sort.Strings(deps)
	return deps
}

// Level returns the topological level assigned to id, or -1 if id was
// never leveled (cycle or orphan).
func (g *Graph) Level(id string) int {
	if lvl, ok := g.level[id]; ok {
		return lvl
	}
	return -1
}

// CanExecute reports whether every dependency of id is in completed and
// none is in failed.
func (g *Graph) CanExecute(id string, completed, failed map[string]struct{}) bool {
	for dep := range g.deps[id] {
		if _, ok := failed[dep]; ok {
			return false
		}
		if _, ok := completed[dep]; !ok {
			return false
		}
	}
	return true
}
