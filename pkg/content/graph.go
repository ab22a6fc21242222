package content

// graph is a directed graph over string node ids, used for both the
// unlock-dependency graph and the transform-conversion graph.
type graph struct {
	nodes map[string]struct{}
	edges map[string][]string // nodeID -> child ids
}

func newGraph() *graph {
	return &graph{nodes: map[string]struct{}{}, edges: map[string][]string{}}
}

func (g *graph) addNode(id string) {
	g.nodes[id] = struct{}{}
	if _, ok := g.edges[id]; !ok {
		g.edges[id] = nil
	}
}

func (g *graph) addEdge(from, to string) {
	g.addNode(from)
	g.addNode(to)
	g.edges[from] = append(g.edges[from], to)
}

// acyclic reports whether g has no cycles, using Kahn's algorithm: at each
// wave, every node with in-degree zero is removable; if a wave is empty
// while nodes remain, those remaining nodes lie on a cycle.
func (g *graph) acyclic() bool {
	_, cycles := g.findCycles()
	return len(cycles) == 0
}

// findCycles runs Kahn's algorithm to isolate the subgraph that cannot be
// topologically ordered, then recovers a concrete cycle path via DFS from
// each remnant node not already on a reported path, for error reporting.
func (g *graph) findCycles() ([][]string, [][]string) {
	inDegree := map[string]int{}
	for id := range g.nodes {
		inDegree[id] = 0
	}
	for _, children := range g.edges {
		for _, child := range children {
			inDegree[child]++
		}
	}

	removed := map[string]bool{}
	for {
		progressed := false
		for id, degree := range inDegree {
			if removed[id] || degree != 0 {
				continue
			}
			removed[id] = true
			progressed = true
			for _, child := range g.edges[id] {
				inDegree[child]--
			}
		}
		if !progressed {
			break
		}
	}

	var remaining []string
	for id := range g.nodes {
		if !removed[id] {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) == 0 {
		return nil, nil
	}

	var cycles [][]string
	seen := map[string]bool{}
	for _, start := range remaining {
		if seen[start] || removed[start] {
			continue
		}
		if path := findCyclePath(g, start, remaining); path != nil {
			cycles = append(cycles, path)
			for _, id := range path {
				seen[id] = true
			}
		}
	}

	return [][]string{remaining}, cycles
}

// findCyclePath does a DFS from start restricted to the cyclic remnant and
// returns the first cycle it encounters as an ordered node-id path.
func findCyclePath(g *graph, start string, remnant []string) []string {
	inRemnant := map[string]bool{}
	for _, id := range remnant {
		inRemnant[id] = true
	}

	visiting := map[string]bool{}
	visited := map[string]bool{}
	var stack []string

	var dfs func(node string) []string
	dfs = func(node string) []string {
		visiting[node] = true
		stack = append(stack, node)

		for _, child := range g.edges[node] {
			if !inRemnant[child] {
				continue
			}
			if visiting[child] {
				// Found the closing edge; slice the stack back to child.
				for i, id := range stack {
					if id == child {
						cycle := append([]string(nil), stack[i:]...)
						return append(cycle, child)
					}
				}
				return []string{child}
			}
			if !visited[child] {
				if found := dfs(child); found != nil {
					return found
				}
			}
		}

		visiting[node] = false
		visited[node] = true
		stack = stack[:len(stack)-1]
		return nil
	}

	return dfs(start)
}
