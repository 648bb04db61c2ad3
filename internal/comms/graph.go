// Package comms derives the per-tick communication graph. An edge exists
// between two nodes iff their Euclidean distance is at most the configured
// range. Graphs are built from a snapshot of positions and never reused
// across ticks.
package comms

import (
	"sort"

	"github.com/kingrea/acta/internal/geom"
)

// CenterID is the node id of the command center.
const CenterID = -1

// Node is a positioned participant in the graph.
type Node struct {
	ID  int
	Pos geom.Point
}

// Graph is an undirected range-gated adjacency relation.
type Graph struct {
	Range      float64
	ids        []int
	adj        map[int][]int
	components [][]int
	compOf     map[int]int
}

// Build returns the graph over nodes for range r.
func Build(nodes []Node, r float64) *Graph {
	sorted := append([]Node(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	g := &Graph{
		Range:  r,
		ids:    make([]int, 0, len(sorted)),
		adj:    make(map[int][]int, len(sorted)),
		compOf: make(map[int]int, len(sorted)),
	}
	for _, n := range sorted {
		g.ids = append(g.ids, n.ID)
		g.adj[n.ID] = nil
	}
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[i].Pos.Within(sorted[j].Pos, r) {
				a, b := sorted[i].ID, sorted[j].ID
				g.adj[a] = append(g.adj[a], b)
				g.adj[b] = append(g.adj[b], a)
			}
		}
	}
	for _, id := range g.ids {
		sort.Ints(g.adj[id])
	}
	g.buildComponents()
	return g
}

func (g *Graph) buildComponents() {
	for _, start := range g.ids {
		if _, seen := g.compOf[start]; seen {
			continue
		}
		idx := len(g.components)
		comp := []int{start}
		g.compOf[start] = idx
		for head := 0; head < len(comp); head++ {
			for _, nb := range g.adj[comp[head]] {
				if _, seen := g.compOf[nb]; seen {
					continue
				}
				g.compOf[nb] = idx
				comp = append(comp, nb)
			}
		}
		sort.Ints(comp)
		g.components = append(g.components, comp)
	}
}

// IDs returns the node ids in ascending order.
func (g *Graph) IDs() []int { return append([]int(nil), g.ids...) }

// Has reports whether id is a node.
func (g *Graph) Has(id int) bool {
	_, ok := g.adj[id]
	return ok
}

// Neighbors returns the ids adjacent to id in ascending order.
func (g *Graph) Neighbors(id int) []int {
	return append([]int(nil), g.adj[id]...)
}

// Adjacent reports whether a and b share an edge.
func (g *Graph) Adjacent(a, b int) bool {
	nbs := g.adj[a]
	i := sort.SearchInts(nbs, b)
	return i < len(nbs) && nbs[i] == b
}

// Components returns the connected components, each sorted, ordered by their
// smallest id.
func (g *Graph) Components() [][]int {
	out := make([][]int, len(g.components))
	for i, c := range g.components {
		out[i] = append([]int(nil), c...)
	}
	return out
}

// Component returns the index of the component containing id, or -1.
func (g *Graph) Component(id int) int {
	if idx, ok := g.compOf[id]; ok {
		return idx
	}
	return -1
}

// Connected reports whether a and b lie in the same component.
func (g *Graph) Connected(a, b int) bool {
	ca, cb := g.Component(a), g.Component(b)
	return ca >= 0 && ca == cb
}
