package graph

import "strings"

// WithLevels returns a copy of g with every node annotated with its depth in
// the repository hierarchy:
//
//   - file, directory: number of "/" in the path
//   - package: number of "." and "/" in the package name
//   - header: number of "/" in the header name
//   - symbol (import): level of the declaring file plus one
//   - anything else: 0
func (g *Graph) WithLevels() *Graph {
	nodes := g.cloneNodes()
	for id, n := range nodes {
		lvl := g.level(n)
		n.Level = &lvl
		nodes[id] = n
	}
	edges := make([]Edge, len(g.edges))
	copy(edges, g.edges)
	weight := make([]int, len(g.weight))
	copy(weight, g.weight)
	return newGraph(nodes, edges, weight)
}

func (g *Graph) level(n Node) int {
	switch n.Type {
	case NodeFile, NodeDirectory:
		return strings.Count(n.ID, "/")
	case NodePackage:
		name := externalName(n)
		return strings.Count(name, ".") + strings.Count(name, "/")
	case NodeHeader:
		return strings.Count(externalName(n), "/")
	case NodeImport:
		if decl, ok := g.declaringFile(n.ID); ok {
			return strings.Count(decl, "/") + 1
		}
		return 1
	default:
		return 0
	}
}

// externalName strips the collision namespace from an external node id.
func externalName(n Node) string {
	return strings.TrimPrefix(n.ID, externalPrefix)
}

// declaringFile finds the file exporting symbol node id.
func (g *Graph) declaringFile(id string) (string, bool) {
	for _, i := range g.in[id] {
		if e := g.edges[i]; e.Relation == RelationExports {
			return e.Source, true
		}
	}
	if i := strings.LastIndex(id, "::"); i > 0 {
		return id[:i], true
	}
	return "", false
}
