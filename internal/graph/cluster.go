package graph

// Clustered returns a copy of g in which every (source, target) pair that was
// linked more than once while building is folded into a single "multiple"
// edge whose Count is the summed multiplicity. Pairs linked once keep their
// original edge. g itself is left untouched.
func (g *Graph) Clustered() *Graph {
	type pair struct{ source, target string }

	var order []pair
	groups := make(map[pair][]int)
	for i, e := range g.edges {
		k := pair{e.Source, e.Target}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	edges := make([]Edge, 0, len(order))
	for _, k := range order {
		idx := groups[k]
		total := 0
		for _, i := range idx {
			total += g.multiplicity(i)
		}
		if total <= 1 {
			edges = append(edges, g.edges[idx[0]])
			continue
		}
		edges = append(edges, Edge{
			Source:   k.source,
			Target:   k.target,
			Relation: RelationMultiple,
			Count:    total,
		})
	}
	return newGraph(g.cloneNodes(), edges, nil)
}

// multiplicity is how many times edge i stands for. A folded edge keeps the
// count it was folded with.
func (g *Graph) multiplicity(i int) int {
	e := g.edges[i]
	if e.Relation == RelationMultiple && e.Count > 0 {
		return e.Count
	}
	return g.weight[i]
}

func (g *Graph) cloneNodes() map[string]Node {
	nodes := make(map[string]Node, len(g.nodes))
	for id, n := range g.nodes {
		nodes[id] = n.clone()
	}
	return nodes
}
