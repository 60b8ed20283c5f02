package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, nodes []string, edges [][2]string) *Graph {
	t.Helper()
	g := NewGraph()
	for _, n := range nodes {
		g.AddNode(n)
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := build(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}, {"a", "b"}})

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount(), "duplicate edges are ignored")
	assert.Equal(t, []string{"a", "b", "c"}, g.Nodes())
	assert.Equal(t, []string{"a"}, g.Parents("b"))
	assert.Equal(t, []string{"c"}, g.Children("b"))

	g.AddNode("a")
	assert.Equal(t, 0, g.Position("a"), "re-adding keeps position")
	assert.Equal(t, -1, g.Position("zzz"))
}

func TestGraph_AddEdge_InvalidNodes(t *testing.T) {
	g := NewGraph()
	g.AddNode("a")

	assert.Error(t, g.AddEdge("a", "nonexistent"))
	assert.Error(t, g.AddEdge("nonexistent", "a"))
}

func TestGraph_HasCycle(t *testing.T) {
	t.Run("acyclic", func(t *testing.T) {
		g := build(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}})
		hasCycle, path := g.HasCycle()
		assert.False(t, hasCycle)
		assert.Nil(t, path)
	})

	t.Run("two node cycle", func(t *testing.T) {
		g := build(t, []string{"a", "b"}, [][2]string{{"a", "b"}, {"b", "a"}})
		hasCycle, path := g.HasCycle()
		require.True(t, hasCycle)
		assert.Equal(t, []string{"a", "b", "a"}, path)
	})

	t.Run("self loop", func(t *testing.T) {
		g := build(t, []string{"x", "a"}, [][2]string{{"a", "a"}})
		hasCycle, path := g.HasCycle()
		require.True(t, hasCycle)
		assert.Equal(t, []string{"a", "a"}, path)
	})
}

func TestGraph_TopologicalSort_StableByInsertion(t *testing.T) {
	// d depends on a; b and c are independent.
	g := build(t, []string{"d", "b", "a", "c"}, [][2]string{{"a", "d"}})

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "d", "c"}, order)
}

func TestGraph_TopologicalSort_Cycle(t *testing.T) {
	g := build(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}})

	_, err := g.TopologicalSort()
	require.Error(t, err)

	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, cycle.Path[:3])
	assert.Contains(t, err.Error(), "->")
}

func TestGraph_ExecutionLevels(t *testing.T) {
	g := build(t,
		[]string{"e", "a", "b", "c", "d"},
		[][2]string{{"a", "c"}, {"b", "c"}, {"c", "d"}, {"a", "e"}},
	)

	levels, err := g.ExecutionLevels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"e", "c"}, {"d"}}, levels)
}

func TestGraph_ExecutionLevels_Empty(t *testing.T) {
	levels, err := NewGraph().ExecutionLevels()
	require.NoError(t, err)
	assert.Empty(t, levels)
}

func TestGraph_UpstreamDownstream(t *testing.T) {
	g := build(t,
		[]string{"a", "b", "c", "d", "e"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"d", "c"}, {"c", "e"}},
	)

	assert.Equal(t, []string{"a", "b", "c", "d"}, g.Upstream("e"))
	assert.Equal(t, []string{"a"}, g.Upstream("b"))
	assert.Empty(t, g.Upstream("a"))
	assert.Equal(t, []string{"b", "c", "e"}, g.Downstream("a"))
	assert.Equal(t, []string{"a", "b", "d"}, g.Upstream("c", "b"))
}

func TestGraph_Subgraph(t *testing.T) {
	g := build(t,
		[]string{"a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}},
	)

	sub := g.Subgraph([]string{"c", "b", "missing"})
	assert.Equal(t, []string{"b", "c"}, sub.Nodes())
	assert.Equal(t, 1, sub.EdgeCount())
	assert.Equal(t, []string{"b"}, sub.Parents("c"))
}
