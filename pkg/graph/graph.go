// Package graph models the "depends on" relation between pipeline nodes and
// answers the planning queries the execution engine needs: cycle presence,
// transitive closures, topological execution order, and incremental plans.
package graph

import (
	"fmt"
	"sort"
)

// Graph maps node ids to their forward dependency sets plus the derived
// reverse mapping. Declaration order is kept so that topological ties break
// deterministically across runs with identical graphs.
//
// Edges may reference ids that are not (yet) nodes: edges are discovered
// incrementally, so existence is enforced by Validate, not at build time.
type Graph struct {
	order      []string
	forward    map[string]map[string]bool
	reverse    map[string]map[string]bool
	cyclic     bool
	cycleTrail []string
}

// NodeDeps is one node's declared-or-inferred forward edge set, in
// declaration order.
type NodeDeps struct {
	ID        string
	DependsOn []string
}

// Build constructs a Graph from the given edge sets. Pure construction, no
// validation beyond cycle detection (which is computed once and cached).
func Build(nodes []NodeDeps) *Graph {
	g := &Graph{
		order:   make([]string, 0, len(nodes)),
		forward: make(map[string]map[string]bool, len(nodes)),
		reverse: make(map[string]map[string]bool, len(nodes)),
	}

	for _, n := range nodes {
		if _, ok := g.forward[n.ID]; ok {
			continue
		}

		g.order = append(g.order, n.ID)
		g.forward[n.ID] = make(map[string]bool, len(n.DependsOn))

		for _, dep := range n.DependsOn {
			if dep == n.ID {
				continue
			}

			g.forward[n.ID][dep] = true

			if g.reverse[dep] == nil {
				g.reverse[dep] = make(map[string]bool)
			}

			g.reverse[dep][n.ID] = true
		}
	}

	g.cyclic, g.cycleTrail = findCycle(g.forward, g.order)

	return g
}

// HasCycle reports whether the whole graph contains at least one cycle.
// Computed at build time, not per query.
func (g *Graph) HasCycle() bool {
	return g.cyclic
}

// CyclePath returns one offending path when HasCycle is true, nil otherwise.
func (g *Graph) CyclePath() []string {
	return g.cycleTrail
}

// Contains reports whether id was declared as a node.
func (g *Graph) Contains(id string) bool {
	_, ok := g.forward[id]

	return ok
}

// DirectDependencies returns id's forward edges in declaration-independent
// sorted order.
func (g *Graph) DirectDependencies(id string) []string {
	return sortedKeys(g.forward[id])
}

// Dependents returns the ids that directly depend on id, sorted.
func (g *Graph) Dependents(id string) []string {
	return sortedKeys(g.reverse[id])
}

// TransitiveDependencies returns every ancestor reachable from id's direct
// dependencies via forward edges. The node itself is excluded from its own
// dependency set.
func (g *Graph) TransitiveDependencies(id string) []string {
	seen := make(map[string]bool)

	queue := make([]string, 0, len(g.forward[id]))
	for dep := range g.forward[id] {
		queue = append(queue, dep)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if seen[current] || current == id {
			continue
		}

		seen[current] = true

		for dep := range g.forward[current] {
			if !seen[dep] {
				queue = append(queue, dep)
			}
		}
	}

	return sortedKeys(seen)
}

// ExecutionOrder restricts the graph to {id} ∪ TransitiveDependencies(id)
// and topologically sorts that subgraph with Kahn's algorithm. Nodes with
// zero remaining in-degree are taken in declaration order so the result is
// reproducible. A subgraph cycle fails loudly: the target's neighborhood
// can be cyclic even when HasCycle is false for the parts a caller cares
// about, and vice versa.
func (g *Graph) ExecutionOrder(id string) ([]string, error) {
	if !g.Contains(id) {
		return nil, &UnknownNodeError{ID: id}
	}

	member := map[string]bool{id: true}
	for _, dep := range g.TransitiveDependencies(id) {
		member[dep] = true
	}

	var unknown []string

	for node := range member {
		if !g.Contains(node) {
			unknown = append(unknown, node)
		}
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)

		return nil, &StructuralError{Target: id, Unknown: unknown}
	}

	// In-degree within the restricted subgraph: the number of dependencies
	// a node still waits on. Closure membership guarantees every forward
	// edge of a member lands on another member.
	indegree := make(map[string]int, len(member))
	for node := range member {
		indegree[node] = len(g.forward[node])
	}

	ranked := g.rank(member)

	sorted := make([]string, 0, len(member))
	ready := make([]string, 0, len(member))

	collectReady := func() {
		ready = ready[:0]

		for _, node := range ranked {
			if deg, ok := indegree[node]; ok && deg == 0 {
				ready = append(ready, node)
			}
		}
	}

	for collectReady(); len(ready) > 0; collectReady() {
		for _, node := range ready {
			sorted = append(sorted, node)
			delete(indegree, node)

			for dependent := range g.reverse[node] {
				if member[dependent] {
					indegree[dependent]--
				}
			}
		}
	}

	if len(sorted) < len(member) {
		remaining := make([]string, 0, len(indegree))
		for node := range indegree {
			remaining = append(remaining, node)
		}

		sort.Strings(remaining)

		return nil, &CycleError{Path: remaining, Dynamic: false}
	}

	return sorted, nil
}

// Plan computes the execution plan for id against a caller-supplied set of
// already executed nodes: the full order, the subset that must still run,
// and the subset that can be skipped.
func (g *Graph) Plan(id string, alreadyDone []string) (*Plan, error) {
	order, err := g.ExecutionOrder(id)
	if err != nil {
		return nil, err
	}

	done := make(map[string]bool, len(alreadyDone))
	for _, d := range alreadyDone {
		done[d] = true
	}

	plan := &Plan{
		Target:  id,
		Order:   order,
		ToRun:   make([]string, 0, len(order)),
		Skipped: make([]string, 0, len(alreadyDone)),
	}

	for _, node := range order {
		if done[node] {
			plan.Skipped = append(plan.Skipped, node)
		} else {
			plan.ToRun = append(plan.ToRun, node)
		}
	}

	return plan, nil
}

// Plan partitions a target's execution order against an already-executed
// set. ToRun ∪ Skipped = Order and the two are disjoint.
type Plan struct {
	Target  string   `json:"target"`
	Order   []string `json:"execution_order"`
	ToRun   []string `json:"to_run"`
	Skipped []string `json:"skipped"`
}

// rank returns the members of the restricted subgraph in declaration order,
// with any ids referenced by edges but never declared appended in sorted
// order after the declared ones.
func (g *Graph) rank(member map[string]bool) []string {
	ranked := make([]string, 0, len(member))

	for _, node := range g.order {
		if member[node] {
			ranked = append(ranked, node)
		}
	}

	if len(ranked) == len(member) {
		return ranked
	}

	declared := make(map[string]bool, len(ranked))
	for _, node := range ranked {
		declared[node] = true
	}

	undeclared := make([]string, 0, len(member)-len(ranked))
	for node := range member {
		if !declared[node] {
			undeclared = append(undeclared, node)
		}
	}

	sort.Strings(undeclared)

	return append(ranked, undeclared...)
}

// findCycle runs a DFS with an on-path set over every declared node. An
// edge into a node still on the path signals a cycle; the returned trail is
// the path from the first revisited node back to itself.
func findCycle(forward map[string]map[string]bool, order []string) (bool, []string) {
	visited := make(map[string]bool, len(forward))
	onPath := make(map[string]bool, len(forward))

	var path []string

	var visit func(id string) []string
	visit = func(id string) []string {
		visited[id] = true
		onPath[id] = true
		path = append(path, id)

		for _, dep := range sortedKeys(forward[id]) {
			if onPath[dep] {
				return appendCycleTail(path, dep)
			}

			if _, declared := forward[dep]; declared && !visited[dep] {
				if trail := visit(dep); trail != nil {
					return trail
				}
			}
		}

		onPath[id] = false
		path = path[:len(path)-1]

		return nil
	}

	for _, id := range order {
		if !visited[id] {
			if trail := visit(id); trail != nil {
				return true, trail
			}
		}
	}

	return false, nil
}

// appendCycleTail slices the DFS path from the revisited node onward and
// closes the loop by repeating it at the end.
func appendCycleTail(path []string, start string) []string {
	for i, id := range path {
		if id == start {
			trail := make([]string, 0, len(path)-i+1)
			trail = append(trail, path[i:]...)
			trail = append(trail, start)

			return trail
		}
	}

	return []string{start, start}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// String renders a compact adjacency description, handy in logs and tests.
func (g *Graph) String() string {
	out := ""
	for _, id := range g.order {
		out += fmt.Sprintf("%s -> %v\n", id, sortedKeys(g.forward[id]))
	}

	return out
}
