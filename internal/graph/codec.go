package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// document is the node-link JSON layout used for persisted graphs. The
// top-level keys match the widely used node-link convention so other tools
// can read the files.
type document struct {
	Directed   bool           `json:"directed"`
	Multigraph bool           `json:"multigraph"`
	Graph      map[string]any `json:"graph"`
	Nodes      *[]Node        `json:"nodes"`
	Links      *[]link        `json:"links"`
}

// link is an edge as persisted. Weight records build-time multiplicity so a
// reloaded canonical graph clusters the same way as a freshly built one.
type link struct {
	Edge
	Weight int `json:"weight,omitempty"`
}

// Encode writes g as a node-link JSON document. Identifiers must be valid
// UTF-8; JSON would otherwise replace the bad bytes and the document would no
// longer decode to the same graph.
func (g *Graph) Encode(w io.Writer) error {
	nodes := g.Nodes()
	for _, n := range nodes {
		if !utf8.ValidString(n.ID) || !utf8.ValidString(n.Label) {
			return fmt.Errorf("encode graph: node id %q is not valid UTF-8", n.ID)
		}
	}
	for _, e := range g.edges {
		if !utf8.ValidString(e.Source) || !utf8.ValidString(e.Target) || !utf8.ValidString(e.Label) {
			return fmt.Errorf("encode graph: edge %q -> %q is not valid UTF-8", e.Source, e.Target)
		}
	}
	links := make([]link, len(g.edges))
	for i, e := range g.edges {
		links[i] = link{Edge: e}
		if g.weight[i] > 1 {
			links[i].Weight = g.weight[i]
		}
	}
	doc := document{
		Directed: true,
		Graph:    map[string]any{},
		Nodes:    &nodes,
		Links:    &links,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	return nil
}

// Decode reads a node-link JSON document. Any structural problem is reported
// as ErrDecode. Unknown keys are ignored.
func Decode(r io.Reader) (*Graph, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if doc.Nodes == nil {
		return nil, fmt.Errorf("%w: missing nodes", ErrDecode)
	}
	if doc.Links == nil {
		return nil, fmt.Errorf("%w: missing links", ErrDecode)
	}

	nodes := make(map[string]Node, len(*doc.Nodes))
	for _, n := range *doc.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: node with empty id", ErrDecode)
		}
		if !n.Type.Valid() {
			return nil, fmt.Errorf("%w: node %q has unknown type %q", ErrDecode, n.ID, n.Type)
		}
		if _, dup := nodes[n.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node %q", ErrDecode, n.ID)
		}
		nodes[n.ID] = n
	}

	seen := make(map[edgeKey]struct{}, len(*doc.Links))
	edges := make([]Edge, 0, len(*doc.Links))
	weight := make([]int, 0, len(*doc.Links))
	for _, l := range *doc.Links {
		e := l.Edge
		if !e.Relation.Valid() {
			return nil, fmt.Errorf("%w: link %s -> %s has unknown relation %q", ErrDecode, e.Source, e.Target, e.Relation)
		}
		if _, ok := nodes[e.Source]; !ok {
			return nil, fmt.Errorf("%w: link source %q is not a node", ErrDecode, e.Source)
		}
		if _, ok := nodes[e.Target]; !ok {
			return nil, fmt.Errorf("%w: link target %q is not a node", ErrDecode, e.Target)
		}
		if _, dup := seen[e.key()]; dup {
			return nil, fmt.Errorf("%w: duplicate link %s -> %s (%s)", ErrDecode, e.Source, e.Target, e.Relation)
		}
		seen[e.key()] = struct{}{}
		edges = append(edges, e)
		weight = append(weight, l.Weight)
	}
	return newGraph(nodes, edges, weight), nil
}

// Save writes g to path atomically: the document is written to a temporary
// file in the same directory, synced, then renamed over path.
func Save(g *Graph, path string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create graph directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".graph-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err = g.Encode(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync graph file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close graph file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename graph file: %w", err)
	}
	return nil
}

// Load reads a graph saved by Save.
func Load(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open graph: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
