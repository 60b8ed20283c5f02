// Package dag provides the directed graph used to order output columns by their
// prerequisites. Node order is insertion order, and every traversal that has a
// choice breaks ties by it, so results are reproducible for a given mapping file.
package dag

import (
	"fmt"
	"sort"
	"strings"
)

// Graph is a directed graph of string node IDs.
// An edge parent -> child means child depends on parent.
type Graph struct {
	order   []string
	index   map[string]int
	edges   map[string][]string // parent -> children (dependents)
	parents map[string][]string // child -> parents (dependencies)
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		index:   make(map[string]int),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node. Adding an existing node is a no-op and keeps its position.
func (g *Graph) AddNode(id string) {
	if _, exists := g.index[id]; exists {
		return
	}
	g.index[id] = len(g.order)
	g.order = append(g.order, id)
	g.edges[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
// Self-loops are accepted so that HasCycle can report them.
func (g *Graph) AddEdge(parentID, childID string) error {
	if !g.HasNode(parentID) {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if !g.HasNode(childID) {
		return fmt.Errorf("child node %q does not exist", childID)
	}

	if !contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// HasNode reports whether id is in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Position returns the insertion index of id, or -1.
func (g *Graph) Position(id string) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	return -1
}

// Nodes returns node IDs in insertion order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Parents returns the direct dependencies of a node.
func (g *Graph) Parents(id string) []string {
	return g.parents[id]
}

// Children returns the direct dependents of a node.
func (g *Graph) Children(id string) []string {
	return g.edges[id]
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.order)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// HasCycle reports whether the graph contains a cycle, along with one cycle path.
// The path starts and ends with the same node, e.g. [a b a] or [a a].
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	path := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true

		for _, childID := range g.edges[id] {
			if !visited[childID] {
				path[childID] = id
				if dfs(childID) {
					return true
				}
			} else if onStack[childID] {
				cyclePath = []string{childID}
				for curr := id; curr != childID; curr = path[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{childID}, cyclePath...)
				return true
			}
		}

		onStack[id] = false
		return false
	}

	for _, id := range g.order {
		if !visited[id] && dfs(id) {
			return true, cyclePath
		}
	}
	return false, nil
}

// CycleError reports the nodes of a dependency cycle.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "cycle detected: " + strings.Join(e.Path, " -> ")
}

// TopologicalSort returns node IDs with every dependency before its dependents.
// Among nodes that are ready at the same time, the one inserted first wins.
func (g *Graph) TopologicalSort() ([]string, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, &CycleError{Path: cyclePath}
	}

	indeg := make([]int, len(g.order))
	for i, id := range g.order {
		indeg[i] = len(g.parents[id])
	}

	var ready []int
	for i := range g.order {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]

		id := g.order[i]
		order = append(order, id)
		for _, child := range g.edges[id] {
			j := g.index[child]
			indeg[j]--
			if indeg[j] == 0 {
				k := sort.SearchInts(ready, j)
				ready = append(ready, 0)
				copy(ready[k+1:], ready[k:])
				ready[k] = j
			}
		}
	}

	if len(order) != len(g.order) {
		return nil, &CycleError{}
	}
	return order, nil
}

// ExecutionLevels returns nodes grouped by dependency depth.
// Level 0 contains nodes with no dependencies; nodes at level N depend only on
// nodes at lower levels. Each level is in insertion order.
func (g *Graph) ExecutionLevels() ([][]string, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	level := make(map[string]int, len(order))
	maxLevel := -1
	for _, id := range order {
		l := 0
		for _, p := range g.parents[id] {
			if level[p]+1 > l {
				l = level[p] + 1
			}
		}
		level[id] = l
		if l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([][]string, maxLevel+1)
	for _, id := range g.order {
		l := level[id]
		levels[l] = append(levels[l], id)
	}
	return levels, nil
}

// Upstream returns every node the given nodes transitively depend on, excluding
// the given nodes themselves unless they are reachable from another one, in insertion order.
func (g *Graph) Upstream(ids ...string) []string {
	upstream := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		for _, p := range g.parents[id] {
			if !upstream[p] {
				upstream[p] = true
				mark(p)
			}
		}
	}
	for _, id := range ids {
		mark(id)
	}
	return g.filter(upstream)
}

// Downstream returns every node that transitively depends on the given nodes, in insertion order.
func (g *Graph) Downstream(ids ...string) []string {
	downstream := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		for _, c := range g.edges[id] {
			if !downstream[c] {
				downstream[c] = true
				mark(c)
			}
		}
	}
	for _, id := range ids {
		mark(id)
	}
	return g.filter(downstream)
}

// Subgraph returns a new graph containing only the given nodes and the edges between them.
// Nodes keep their relative insertion order.
func (g *Graph) Subgraph(ids []string) *Graph {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		if g.HasNode(id) {
			keep[id] = true
		}
	}

	sub := NewGraph()
	for _, id := range g.filter(keep) {
		sub.AddNode(id)
	}
	for _, id := range sub.order {
		for _, child := range g.edges[id] {
			if keep[child] {
				_ = sub.AddEdge(id, child)
			}
		}
	}
	return sub
}

func (g *Graph) filter(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for _, id := range g.order {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}

func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
