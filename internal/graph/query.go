package graph

import (
	"fmt"
	"math"
	"sort"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

const (
	pageRankDamping   = 0.85
	pageRankTolerance = 1e-6
	scoreScale        = 1e9
)

// Ranked is a node id with its centrality score.
type Ranked struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// SubgraphAtLevel returns the subgraph induced by nodes whose level is at
// most maxLevel. The graph must have been level-annotated.
func (g *Graph) SubgraphAtLevel(maxLevel int) (*Graph, error) {
	nodes := make(map[string]Node)
	for _, id := range g.ids {
		n := g.nodes[id]
		if n.Level == nil {
			return nil, fmt.Errorf("%w: node %q has no level", ErrMissingAttribute, id)
		}
		if *n.Level <= maxLevel {
			nodes[id] = n.clone()
		}
	}
	var (
		edges  []Edge
		weight []int
	)
	for i, e := range g.edges {
		_, src := nodes[e.Source]
		_, dst := nodes[e.Target]
		if src && dst {
			edges = append(edges, e)
			weight = append(weight, g.weight[i])
		}
	}
	return newGraph(nodes, edges, weight), nil
}

// Successors returns the ids id has an edge to, sorted.
func (g *Graph) Successors(id string) ([]string, error) {
	if !g.HasNode(id) {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return uniqueSorted(g.out[id], func(e Edge) string { return e.Target }, g.edges), nil
}

// Predecessors returns the ids with an edge to id, sorted.
func (g *Graph) Predecessors(id string) ([]string, error) {
	if !g.HasNode(id) {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return uniqueSorted(g.in[id], func(e Edge) string { return e.Source }, g.edges), nil
}

// Descendants returns every id reachable from id, excluding id itself,
// sorted.
func (g *Graph) Descendants(id string) ([]string, error) {
	if !g.HasNode(id) {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	v := g.view()
	start := v.byID[id]
	var out []string
	dfs := traverse.DepthFirst{
		Visit: func(n gonum.Node) {
			if n.ID() != start {
				out = append(out, v.ids[n.ID()])
			}
		},
	}
	dfs.Walk(v.g, v.g.Node(start), nil)
	sort.Strings(out)
	return out, nil
}

// CentralityRanking scores every node with PageRank and returns them by
// descending score, ties broken by id.
func (g *Graph) CentralityRanking() []Ranked {
	if len(g.ids) == 0 {
		return nil
	}
	v := g.view()
	scores := network.PageRankSparse(v.g, pageRankDamping, pageRankTolerance)
	var total float64
	for _, s := range scores {
		total += s
	}
	out := make([]Ranked, 0, len(g.ids))
	for i, id := range v.ids {
		s := scores[int64(i)]
		if total > 0 {
			s /= total
		}
		// Rounded so summation-order noise cannot reorder ties.
		out = append(out, Ranked{ID: id, Score: math.Round(s*scoreScale) / scoreScale})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].ID < out[b].ID
	})
	return out
}

// gonumView is g mapped onto integer node ids. Self-loops are dropped since
// simple graphs cannot hold them and they do not affect reachability.
type gonumView struct {
	g    *simple.DirectedGraph
	ids  []string
	byID map[string]int64
}

func (g *Graph) view() gonumView {
	v := gonumView{
		g:    simple.NewDirectedGraph(),
		ids:  g.ids,
		byID: make(map[string]int64, len(g.ids)),
	}
	for i, id := range g.ids {
		v.byID[id] = int64(i)
		v.g.AddNode(simple.Node(i))
	}
	for _, e := range g.edges {
		from, to := v.byID[e.Source], v.byID[e.Target]
		if from == to {
			continue
		}
		v.g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	}
	return v
}

func uniqueSorted(idx []int, pick func(Edge) string, edges []Edge) []string {
	seen := make(map[string]struct{}, len(idx))
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		id := pick(edges[i])
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
