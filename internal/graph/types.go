package graph

import (
	"errors"
	"sort"
)

// NodeType classifies a node in the dependency graph.
type NodeType string

const (
	NodeFile      NodeType = "file"
	NodeDirectory NodeType = "directory"
	NodePackage   NodeType = "package"
	NodeHeader    NodeType = "header"
	NodeImport    NodeType = "import" // a declared symbol mediating exports/imports
	NodeUnknown   NodeType = "unknown"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeFile, NodeDirectory, NodePackage, NodeHeader, NodeImport, NodeUnknown:
		return true
	}
	return false
}

// Relation labels an edge.
type Relation string

const (
	RelationContains Relation = "contains"
	RelationImports  Relation = "imports"
	RelationExports  Relation = "exports"
	RelationIncludes Relation = "includes"
	RelationMultiple Relation = "multiple" // clustered parallel edges
)

// Valid reports whether r is one of the known relations.
func (r Relation) Valid() bool {
	switch r {
	case RelationContains, RelationImports, RelationExports, RelationIncludes, RelationMultiple:
		return true
	}
	return false
}

// Shapes are decorative hints carried through to renderers.
const (
	ShapeEllipse = "ellipse"
	ShapeBox     = "box"
	ShapeStar    = "star"
	ShapeDiamond = "diamond"
)

var (
	// ErrDecode is returned when a persisted graph is corrupt or does not
	// match the node-link schema.
	ErrDecode = errors.New("graph: decode error")
	// ErrMissingAttribute is returned when a query needs an attribute that
	// was never computed, such as level before level annotation.
	ErrMissingAttribute = errors.New("graph: missing required attribute")
	// ErrNodeNotFound is returned for queries on an unknown node id.
	ErrNodeNotFound = errors.New("graph: node not found")
)

// Node is a vertex of the dependency graph.
type Node struct {
	ID    string   `json:"id"`
	Type  NodeType `json:"type"`
	Label string   `json:"label"`
	Shape string   `json:"shape"`
	Level *int     `json:"level,omitempty"`
}

// HasLevel reports whether level annotation has assigned this node a level.
func (n Node) HasLevel() bool {
	return n.Level != nil
}

func (n Node) clone() Node {
	if n.Level != nil {
		lvl := *n.Level
		n.Level = &lvl
	}
	return n
}

// Edge is a directed, typed relationship between two nodes.
type Edge struct {
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Relation Relation `json:"relation"`
	Label    string   `json:"label,omitempty"` // dangling symbol on unresolved imports
	Count    int      `json:"count,omitempty"` // folded multiplicity on clustered edges
}

type edgeKey struct {
	source   string
	target   string
	relation Relation
}

func (e Edge) key() edgeKey {
	return edgeKey{source: e.Source, target: e.Target, relation: e.Relation}
}

// Graph is an immutable dependency graph. It is safe for concurrent readers.
type Graph struct {
	nodes map[string]Node
	ids   []string // sorted node ids

	edges  []Edge // sorted by source, target, relation
	weight []int  // times each edge was added while building
	index  map[edgeKey]int
	out    map[string][]int
	in     map[string][]int
}

func newGraph(nodes map[string]Node, edges []Edge, weight []int) *Graph {
	g := &Graph{
		nodes: nodes,
		ids:   make([]string, 0, len(nodes)),
		index: make(map[edgeKey]int, len(edges)),
		out:   make(map[string][]int),
		in:    make(map[string][]int),
	}
	for id := range nodes {
		g.ids = append(g.ids, id)
	}
	sort.Strings(g.ids)

	order := make([]int, len(edges))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return lessEdge(edges[order[a]], edges[order[b]])
	})
	g.edges = make([]Edge, len(edges))
	g.weight = make([]int, len(edges))
	for i, j := range order {
		e := edges[j]
		g.edges[i] = e
		w := 1
		if j < len(weight) && weight[j] > 0 {
			w = weight[j]
		}
		g.weight[i] = w
		g.index[e.key()] = i
		g.out[e.Source] = append(g.out[e.Source], i)
		g.in[e.Target] = append(g.in[e.Target], i)
	}
	return g
}

func lessEdge(a, b Edge) bool {
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	if a.Target != b.Target {
		return a.Target < b.Target
	}
	return a.Relation < b.Relation
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.ids) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// HasNode reports whether id is a node of g.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns all nodes ordered by id.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.ids))
	for _, id := range g.ids {
		out = append(out, g.nodes[id].clone())
	}
	return out
}

// Edges returns all edges ordered by source, target and relation.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Edge returns the edge for the given triple.
func (g *Graph) Edge(source, target string, rel Relation) (Edge, bool) {
	i, ok := g.index[edgeKey{source: source, target: target, relation: rel}]
	if !ok {
		return Edge{}, false
	}
	return g.edges[i], true
}

// EdgesFrom returns the outgoing edges of id.
func (g *Graph) EdgesFrom(id string) []Edge {
	return g.collect(g.out[id])
}

// EdgesTo returns the incoming edges of id.
func (g *Graph) EdgesTo(id string) []Edge {
	return g.collect(g.in[id])
}

func (g *Graph) collect(idx []int) []Edge {
	out := make([]Edge, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.edges[i])
	}
	return out
}

// Stats summarizes the graph's composition.
type Stats struct {
	TotalNodes      int              `json:"total_nodes"`
	TotalEdges      int              `json:"total_edges"`
	NodesByType     map[NodeType]int `json:"nodes_by_type,omitempty"`
	EdgesByRelation map[Relation]int `json:"edges_by_relation,omitempty"`
}

// Stats counts nodes per type and edges per relation.
func (g *Graph) Stats() Stats {
	s := Stats{
		TotalNodes:      len(g.ids),
		TotalEdges:      len(g.edges),
		NodesByType:     make(map[NodeType]int),
		EdgesByRelation: make(map[Relation]int),
	}
	for _, n := range g.nodes {
		s.NodesByType[n.Type]++
	}
	for _, e := range g.edges {
		s.EdgesByRelation[e.Relation]++
	}
	return s
}
