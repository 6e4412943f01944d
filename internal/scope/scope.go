// Package scope picks the part of a repository relevant to a free-text
// query and assembles it into a bounded context document.
package scope

import (
	"sort"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"repograph/internal/facts"
	"repograph/internal/graph"
)

// DefaultMaxWords bounds the relevant section of an assembled context.
const DefaultMaxWords = 6000

// fallbackFiles is how many central files stand in for an unmatched query.
const fallbackFiles = 5

// Scope answers queries over one repository snapshot.
type Scope struct {
	table    facts.Table
	graph    *graph.Graph
	maxWords int
}

// New returns a Scope. A non-positive maxWords uses DefaultMaxWords.
func New(table facts.Table, g *graph.Graph, maxWords int) *Scope {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	return &Scope{table: table.Normalize(), graph: g, maxWords: maxWords}
}

// Context is an assembled answer to a query.
type Context struct {
	Query     string   `json:"query"`
	Anchor    string   `json:"anchor,omitempty"`
	Files     []string `json:"files"`
	Words     int      `json:"words"`
	Truncated bool     `json:"truncated"`
	Text      string   `json:"text"`
}

// Relevant returns the files relevant to query, most relevant first. The
// best-matching node is expanded into itself and its predecessors,
// successors and descendants; with no match the most central files are
// returned. The anchor is the matched node id, empty for the fallback.
func (s *Scope) Relevant(query string) (files []string, anchor string) {
	terms := Terms(query)
	anchor = s.bestNode(terms)
	if anchor == "" {
		return s.centralFiles(), ""
	}

	ids := []string{anchor}
	for _, expand := range []func(string) ([]string, error){
		s.graph.Predecessors, s.graph.Successors, s.graph.Descendants,
	} {
		more, err := expand(anchor)
		if err != nil {
			logrus.WithField("node", anchor).WithError(err).Debug("expansion failed")
			continue
		}
		ids = append(ids, more...)
	}

	seen := make(map[string]bool)
	var rest []string
	for i, id := range ids {
		p := s.fileOf(id)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if i == 0 {
			files = append(files, p)
			continue
		}
		rest = append(rest, p)
	}
	sort.Strings(rest)
	return append(files, rest...), anchor
}

// Assemble renders the repository overview followed by the documents of the
// relevant files. Documents are added in relevance order until the next one
// would exceed the word budget.
func (s *Scope) Assemble(query string) Context {
	files, anchor := s.Relevant(query)
	ctx := Context{Query: query, Anchor: anchor, Files: []string{}}

	var docs []string
	for _, p := range files {
		doc := s.table[p].Document(p)
		n := len(strings.Fields(doc))
		if ctx.Words+n > s.maxWords {
			ctx.Truncated = true
			break
		}
		docs = append(docs, doc)
		ctx.Files = append(ctx.Files, p)
		ctx.Words += n
	}

	var b strings.Builder
	b.WriteString("Full Repository Context:\n")
	b.WriteString(s.table.Summary())
	b.WriteString("\nRelevant Information:\n")
	b.WriteString(strings.Join(docs, "\n\n"))
	ctx.Text = b.String()

	logrus.WithFields(logrus.Fields{
		"anchor": anchor,
		"files":  len(ctx.Files),
		"words":  ctx.Words,
	}).Debug("assembled context")
	return ctx
}

// Terms lowercases query and splits it into search terms. Path and
// qualified-name punctuation is kept inside a term.
func Terms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("_./:-", r)
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, ".:-"); len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

func (s *Scope) bestNode(terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	best, bestScore := "", 0
	for _, n := range s.graph.Nodes() {
		score := s.score(n, terms)
		if score > bestScore || (score == bestScore && score > 0 && n.ID < best) {
			best, bestScore = n.ID, score
		}
	}
	return best
}

func (s *Scope) score(n graph.Node, terms []string) int {
	var fields []string
	switch n.Type {
	case graph.NodeFile:
		f := s.table[n.ID]
		fields = append(fields, n.ID)
		fields = append(fields, f.Functions...)
		fields = append(fields, f.Classes...)
	case graph.NodeImport, graph.NodePackage, graph.NodeHeader:
		fields = append(fields, n.ID, n.Label)
	default:
		return 0
	}

	score := 0
	for _, term := range terms {
		for _, field := range fields {
			field = strings.ToLower(field)
			switch {
			case field == term:
				score += 3
			case strings.Contains(field, term):
				score++
			}
		}
	}
	return score
}

// fileOf maps a node to the file whose document represents it.
func (s *Scope) fileOf(id string) string {
	n, ok := s.graph.Node(id)
	if !ok {
		return ""
	}
	switch n.Type {
	case graph.NodeFile:
		if _, ok := s.table[id]; ok {
			return id
		}
	case graph.NodeImport:
		for _, e := range s.graph.EdgesTo(id) {
			if e.Relation == graph.RelationExports {
				return s.fileOf(e.Source)
			}
		}
	}
	return ""
}

func (s *Scope) centralFiles() []string {
	var files []string
	for _, r := range s.graph.CentralityRanking() {
		n, _ := s.graph.Node(r.ID)
		if n.Type != graph.NodeFile {
			continue
		}
		files = append(files, r.ID)
		if len(files) == fallbackFiles {
			break
		}
	}
	return files
}
