// Package scanner extracts per-file structural facts (declared functions,
// classes and import tokens) from source files.
package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"unsafe"

	"github.com/sirupsen/logrus"
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
	"golang.org/x/sync/errgroup"

	"repograph/internal/facts"
	"repograph/internal/source"
)

// grammar is a compiled tree-sitter language and its extraction query.
type grammar struct {
	name  string
	lang  *sitter.Language
	query *sitter.Query
}

// Scanner turns source files into facts. Compiled queries are shared;
// every file gets its own parser, so a Scanner is safe for concurrent use.
type Scanner struct {
	byExt    map[string]*grammar
	grammars []*grammar
	workers  int
}

// New compiles the extraction queries for every supported grammar.
func New() (*Scanner, error) {
	type language struct {
		name  string
		query string
		lang  unsafe.Pointer
		exts  []string
	}
	languages := []language{
		{"go", Queries["go"], tree_sitter_go.Language(), []string{".go"}},
		{"python", Queries["python"], tree_sitter_python.Language(), []string{".py"}},
		{"javascript", Queries["javascript"], tree_sitter_javascript.Language(), []string{".js", ".jsx", ".mjs", ".cjs"}},
		{"typescript", Queries["typescript"], tree_sitter_typescript.LanguageTypescript(), []string{".ts"}},
		{"tsx", Queries["typescript"], tree_sitter_typescript.LanguageTSX(), []string{".tsx"}},
	}

	s := &Scanner{
		byExt:   make(map[string]*grammar),
		workers: runtime.NumCPU(),
	}
	for _, sp := range languages {
		lang := sitter.NewLanguage(sp.lang)
		q, qerr := sitter.NewQuery(lang, sp.query)
		if qerr != nil {
			s.Close()
			return nil, fmt.Errorf("compile %s query: %w", sp.name, qerr)
		}
		g := &grammar{name: sp.name, lang: lang, query: q}
		s.grammars = append(s.grammars, g)
		for _, ext := range sp.exts {
			s.byExt[ext] = g
		}
	}
	return s, nil
}

// Close releases the compiled queries.
func (s *Scanner) Close() {
	for _, g := range s.grammars {
		g.query.Close()
	}
	s.grammars = nil
	s.byExt = nil
}

// Parse extracts facts for every file. A file that cannot be parsed gets a
// fact with Error set; only context cancellation fails the whole call.
func (s *Scanner) Parse(ctx context.Context, files []source.File) (facts.Table, error) {
	results := make([]facts.FileFact, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = s.ParseFile(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table := make(facts.Table, len(files))
	for i, f := range files {
		table[f.Path] = results[i]
	}
	return table.Normalize(), nil
}

// ParseFile extracts the facts of one file. The file content is carried
// into the fact.
func (s *Scanner) ParseFile(f source.File) facts.FileFact {
	ext := strings.ToLower(filepath.Ext(f.Path))
	fact := facts.FileFact{Path: f.Path, Content: string(f.Content)}

	if g, ok := s.byExt[ext]; ok {
		fact.Type = g.name
		if err := s.extract(g, f.Content, &fact); err != nil {
			logrus.WithFields(logrus.Fields{
				"path":    f.Path,
				"grammar": g.name,
			}).WithError(err).Debug("parse failed")
			fact.Error = err.Error()
			fact.Functions, fact.Classes, fact.Imports = nil, nil, nil
		}
		return fact
	}

	if ex, ok := lineExtractors[ext]; ok {
		fact.Type = ex.name
		ex.extract(f.Content, &fact)
		return fact
	}

	fact.Type = facts.TypeNonCode
	return fact
}

func (s *Scanner) extract(g *grammar, content []byte, fact *facts.FileFact) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()

	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(g.lang); err != nil {
		return fmt.Errorf("set language %s: %w", g.name, err)
	}
	tree := parser.Parse(content, nil)
	if tree == nil {
		return fmt.Errorf("parse %s: no syntax tree produced", g.name)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		// Tree-sitter recovers from syntax errors; keep what it found.
		logrus.WithField("path", fact.Path).Debug("syntax errors in file, extracting best effort")
	}

	names := g.query.CaptureNames()
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()

	matches := cursor.Matches(g.query, root, content)
	for m := matches.Next(); m != nil; m = matches.Next() {
		var module, member string
		for _, c := range m.Captures {
			text := c.Node.Utf8Text(content)
			switch names[c.Index] {
			case captureFunction:
				fact.Functions = appendUnique(fact.Functions, text)
			case captureClass:
				fact.Classes = appendUnique(fact.Classes, text)
			case captureImport:
				fact.Imports = appendImport(fact.Imports, unquote(text))
			case captureFromModule:
				module = text
			case captureFromName:
				member = text
			}
		}
		if module == "" {
			continue
		}
		token := module
		if member != "" {
			token = joinModule(module, member)
		}
		fact.Imports = appendImport(fact.Imports, token)
	}
	return nil
}

// joinModule builds the dotted import token of `from module import member`.
func joinModule(module, member string) string {
	if strings.HasSuffix(module, ".") {
		return module + member
	}
	return module + "." + member
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		switch s[0] {
		case '"', '\'', '`':
			if s[len(s)-1] == s[0] {
				return s[1 : len(s)-1]
			}
		}
	}
	return s
}

// appendImport keeps repeated imports: their multiplicity is what edge
// clustering folds.
func appendImport(list []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		list = append(list, s)
	}
	return list
}

func appendUnique(list []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return list
	}
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
