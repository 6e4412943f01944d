package graph

// Builder accumulates nodes and edges for one graph construction call.
// It is not safe for concurrent use; Graph hands out the finished value.
type Builder struct {
	nodes  map[string]Node
	edges  []Edge
	weight []int
	index  map[edgeKey]int
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes: make(map[string]Node),
		index: make(map[edgeKey]int),
	}
}

// AddNode inserts n, or merges it into an existing node with the same id.
// Non-empty attributes of n overwrite the stored ones.
func (b *Builder) AddNode(n Node) {
	cur, ok := b.nodes[n.ID]
	if !ok {
		b.nodes[n.ID] = n.clone()
		return
	}
	if n.Type != "" {
		cur.Type = n.Type
	}
	if n.Label != "" {
		cur.Label = n.Label
	}
	if n.Shape != "" {
		cur.Shape = n.Shape
	}
	if n.Level != nil {
		lvl := *n.Level
		cur.Level = &lvl
	}
	b.nodes[n.ID] = cur
}

// HasNode reports whether id has been added.
func (b *Builder) HasNode(id string) bool {
	_, ok := b.nodes[id]
	return ok
}

// HasEdge reports whether the (source, target, relation) triple was added.
func (b *Builder) HasEdge(source, target string, rel Relation) bool {
	_, ok := b.index[edgeKey{source: source, target: target, relation: rel}]
	return ok
}

// AddEdge inserts e. Re-adding the same (source, target, relation) triple
// overwrites its attributes and bumps its multiplicity instead of
// duplicating it. Endpoints missing from the builder are added as unknown
// nodes so the graph never holds a dangling edge.
func (b *Builder) AddEdge(e Edge) {
	for _, id := range []string{e.Source, e.Target} {
		if !b.HasNode(id) {
			b.AddNode(Node{ID: id, Type: NodeUnknown, Label: id})
		}
	}
	k := e.key()
	if i, ok := b.index[k]; ok {
		if e.Label == "" {
			e.Label = b.edges[i].Label
		}
		b.edges[i] = e
		b.weight[i]++
		return
	}
	b.index[k] = len(b.edges)
	b.edges = append(b.edges, e)
	b.weight = append(b.weight, 1)
}

// NodeCount returns the number of nodes added so far.
func (b *Builder) NodeCount() int { return len(b.nodes) }

// EdgeCount returns the number of distinct edges added so far.
func (b *Builder) EdgeCount() int { return len(b.edges) }

// Graph returns an immutable snapshot of the accumulated graph. The builder
// may keep being used afterwards without affecting the snapshot.
func (b *Builder) Graph() *Graph {
	nodes := make(map[string]Node, len(b.nodes))
	for id, n := range b.nodes {
		nodes[id] = n.clone()
	}
	edges := make([]Edge, len(b.edges))
	copy(edges, b.edges)
	weight := make([]int, len(b.weight))
	copy(weight, b.weight)
	return newGraph(nodes, edges, weight)
}
