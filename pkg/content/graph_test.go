package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGraph_AcyclicWhenEmpty(t *testing.T) {
	g := newGraph()
	assert.True(t, g.acyclic())
}

func TestGraph_AcyclicLinearChain(t *testing.T) {
	g := newGraph()
	g.addEdge("a", "b")
	g.addEdge("b", "c")
	assert.True(t, g.acyclic())
}

func TestGraph_DetectsDirectCycle(t *testing.T) {
	g := newGraph()
	g.addEdge("a", "b")
	g.addEdge("b", "a")
	_, cycles := g.findCycles()
	assert.Len(t, cycles, 1)
	assert.Contains(t, cycles[0], "a")
	assert.Contains(t, cycles[0], "b")
}

func TestGraph_DetectsSelfLoop(t *testing.T) {
	g := newGraph()
	g.addEdge("a", "a")
	_, cycles := g.findCycles()
	assert.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "a"}, cycles[0])
}

func TestGraph_IgnoresDisjointAcyclicNodes(t *testing.T) {
	g := newGraph()
	g.addEdge("a", "b")
	g.addEdge("x", "y")
	g.addEdge("y", "x")
	_, cycles := g.findCycles()
	assert.Len(t, cycles, 1)
}
