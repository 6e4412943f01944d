package graph

import (
	"strings"

	"github.com/sirupsen/logrus"

	"repograph/internal/facts"
)

// Options toggles the optional post-processing passes of Build.
type Options struct {
	// Cluster folds parallel edges into a single "multiple" edge.
	Cluster bool
	// Levels annotates every node with its hierarchy depth.
	Levels bool
}

// Build turns a fact table into a dependency graph. It never fails: failed
// facts become bare file nodes and unresolvable imports become external
// package nodes. Output is deterministic for a given table.
func Build(table facts.Table, opts Options) *Graph {
	table = table.Normalize()
	symbols := BuildSymbolIndex(table)
	lk := NewLookup(table, symbols)
	b := NewBuilder()
	paths := table.Paths()

	log := logrus.WithFields(logrus.Fields{
		"files":   len(paths),
		"symbols": len(symbols),
	})
	log.Debug("building dependency graph")

	dirs := make(map[string]struct{})
	for _, p := range paths {
		b.AddNode(Node{ID: p, Type: NodeFile, Label: fileLabel(p, table[p]), Shape: ShapeEllipse})
		for _, dir := range AncestorDirectories(p) {
			if _, seen := dirs[dir]; seen {
				continue
			}
			dirs[dir] = struct{}{}
			b.AddNode(Node{ID: dir, Type: NodeDirectory, Label: baseName(dir), Shape: ShapeBox})
		}
	}

	for _, p := range paths {
		f := table[p]
		if f.Failed() {
			log.WithField("path", p).Debug("skipping imports of failed file")
			continue
		}
		family := FamilyOf(p)
		for _, token := range f.Imports {
			Resolve(b, family, token, p, lk)
		}
	}

	for _, p := range paths {
		if dir := parentDir(p); dir != "" {
			b.AddEdge(Edge{Source: dir, Target: p, Relation: RelationContains})
		}
	}
	for dir := range dirs {
		if parent := parentDir(dir); parent != "" {
			b.AddEdge(Edge{Source: parent, Target: dir, Relation: RelationContains})
		}
	}

	g := b.Graph()
	if opts.Cluster {
		g = g.Clustered()
	}
	if opts.Levels {
		g = g.WithLevels()
	}
	log.WithFields(logrus.Fields{
		"nodes": g.NodeCount(),
		"edges": g.EdgeCount(),
	}).Debug("dependency graph built")
	return g
}

func fileLabel(p string, f facts.FileFact) string {
	var sb strings.Builder
	sb.WriteString(baseName(p))
	if f.Failed() {
		sb.WriteString("\nError: ")
		sb.WriteString(f.Error)
		return sb.String()
	}
	sb.WriteString("\nFunctions: ")
	sb.WriteString(strings.Join(f.Functions, ", "))
	sb.WriteString("\nClasses: ")
	sb.WriteString(strings.Join(f.Classes, ", "))
	return sb.String()
}
