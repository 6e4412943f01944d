package graph

import (
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"repograph/internal/facts"
	"repograph/util"
)

// Family selects how an import token is interpreted. Each source ecosystem
// encodes "what does this import refer to" differently.
type Family int

const (
	// FamilyFallback treats every token as an opaque package.
	FamilyFallback Family = iota
	// FamilyProject covers dotted or slash-qualified module imports with
	// symbol-level resolution (Python, JavaScript, TypeScript).
	FamilyProject
	// FamilyQualified covers package.Member imports (Java, Kotlin, Scala).
	FamilyQualified
	// FamilyFlat covers whole-path package imports (Go).
	FamilyFlat
	// FamilyHeader covers header inclusion (C, C++).
	FamilyHeader
)

func (f Family) String() string {
	switch f {
	case FamilyProject:
		return "project"
	case FamilyQualified:
		return "qualified"
	case FamilyFlat:
		return "flat"
	case FamilyHeader:
		return "header"
	default:
		return "fallback"
	}
}

var familyByExt = map[string]Family{
	".py":    FamilyProject,
	".js":    FamilyProject,
	".jsx":   FamilyProject,
	".mjs":   FamilyProject,
	".cjs":   FamilyProject,
	".ts":    FamilyProject,
	".tsx":   FamilyProject,
	".java":  FamilyQualified,
	".kt":    FamilyQualified,
	".kts":   FamilyQualified,
	".scala": FamilyQualified,
	".go":    FamilyFlat,
	".c":     FamilyHeader,
	".h":     FamilyHeader,
	".cc":    FamilyHeader,
	".cpp":   FamilyHeader,
	".cxx":   FamilyHeader,
	".hh":    FamilyHeader,
	".hpp":   FamilyHeader,
	".hxx":   FamilyHeader,
}

// FamilyOf returns the resolver family for a file path, by extension.
func FamilyOf(p string) Family {
	if f, ok := familyByExt[Extension(p)]; ok {
		return f
	}
	return FamilyFallback
}

// externalPrefix namespaces external ids that would otherwise collide with a
// tracked file or directory path.
const externalPrefix = "external:"

// Lookup holds the table-derived indexes the resolver consults.
type Lookup struct {
	files   map[string]struct{}
	dirs    map[string]struct{}
	byExt   map[string][]string
	symbols SymbolIndex
}

// NewLookup precomputes file, directory and per-extension indexes for table.
func NewLookup(table facts.Table, symbols SymbolIndex) *Lookup {
	lk := &Lookup{
		files:   make(map[string]struct{}, len(table)),
		dirs:    make(map[string]struct{}),
		byExt:   make(map[string][]string),
		symbols: symbols,
	}
	if lk.symbols == nil {
		lk.symbols = make(SymbolIndex)
	}
	for _, p := range table.Paths() {
		lk.files[p] = struct{}{}
		ext := Extension(p)
		lk.byExt[ext] = append(lk.byExt[ext], p)
		for _, dir := range AncestorDirectories(p) {
			lk.dirs[dir] = struct{}{}
		}
	}
	return lk
}

func (lk *Lookup) isFile(p string) bool {
	_, ok := lk.files[p]
	return ok
}

func (lk *Lookup) isLocal(id string) bool {
	if lk.isFile(id) {
		return true
	}
	_, ok := lk.dirs[id]
	return ok
}

func (lk *Lookup) externalID(token string) string {
	if lk.isLocal(token) {
		return externalPrefix + token
	}
	return token
}

// resolveModule finds the project file a dotted module path refers to among
// files sharing ext. An exact path match wins, then the first file (in path
// order) whose path ends with the guess at a directory boundary.
func (lk *Lookup) resolveModule(module, ext string) (string, bool) {
	guess := ModuleNamespaceGuess(module, ext)
	if lk.isFile(guess) {
		return guess, true
	}
	suffix := "/" + guess
	for _, p := range lk.byExt[ext] {
		if strings.HasSuffix(p, suffix) {
			return p, true
		}
	}
	return "", false
}

// resolveRelative finds the file a "./x" or "../x" token points at, relative
// to the importer's directory.
func (lk *Lookup) resolveRelative(token, importer, ext string) (string, bool) {
	base := path.Join(path.Dir(importer), token)
	if base == ".." || strings.HasPrefix(base, "../") {
		return "", false
	}
	for _, candidate := range []string{base, base + ext, base + "/index" + ext} {
		if candidate = util.CleanSlash(candidate); lk.isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Resolve interprets one import token of importer according to family and
// records the resulting nodes and edges in b. Every non-empty token yields
// at least one edge into importer. Calling Resolve again with the same
// arguments adds no nodes or edges.
func Resolve(b *Builder, family Family, token, importer string, lk *Lookup) {
	token = strings.TrimSpace(token)
	if token == "" {
		logrus.WithField("importer", importer).Debug("skipping empty import token")
		return
	}

	switch family {
	case FamilyProject:
		resolveProject(b, token, importer, lk)
	case FamilyQualified:
		pkg := token
		if i := strings.LastIndex(token, "."); i > 0 {
			pkg = token[:i]
		}
		linkExternal(b, lk, NodePackage, pkg, importer, RelationImports, "")
	case FamilyFlat:
		linkExternal(b, lk, NodePackage, token, importer, RelationImports, "")
	case FamilyHeader:
		linkExternal(b, lk, NodeHeader, token, importer, RelationIncludes, "")
	default:
		linkExternal(b, lk, NodePackage, token, importer, RelationImports, "")
	}
}

func resolveProject(b *Builder, token, importer string, lk *Lookup) {
	ext := Extension(importer)

	if strings.HasPrefix(token, "./") || strings.HasPrefix(token, "../") {
		if decl, ok := lk.resolveRelative(token, importer, ext); ok && decl != importer {
			b.AddEdge(Edge{Source: decl, Target: importer, Relation: RelationImports})
			return
		}
		linkExternal(b, lk, NodePackage, token, importer, RelationImports, "")
		return
	}

	if i := strings.LastIndex(token, "."); i >= 0 {
		module, symbol := token[:i], token[i+1:]
		if module == "" || symbol == "" {
			linkExternal(b, lk, NodePackage, token, importer, RelationImports, "")
			return
		}
		// Relative imports (".mod.name") are not resolved.
		if !strings.HasPrefix(token, ".") {
			if decl, ok := lk.resolveModule(module, ext); ok {
				linkSymbol(b, decl, symbol, importer)
				return
			}
		}
		linkExternal(b, lk, NodePackage, module, importer, RelationImports, symbol)
		return
	}

	if decl, ok := lk.symbols.Lookup(token); ok && decl != importer {
		linkSymbol(b, decl, token, importer)
		return
	}
	linkExternal(b, lk, NodePackage, token, importer, RelationImports, "")
}

// linkSymbol routes an import through the symbol node decl::symbol, creating
// it and its exports edge on first reference.
func linkSymbol(b *Builder, decl, symbol, importer string) {
	id := util.SymbolID(decl, symbol)
	if !b.HasNode(id) {
		b.AddNode(Node{ID: id, Type: NodeImport, Label: symbol, Shape: ShapeBox})
	}
	if !b.HasEdge(decl, id, RelationExports) {
		b.AddEdge(Edge{Source: decl, Target: id, Relation: RelationExports})
	}
	b.AddEdge(Edge{Source: id, Target: importer, Relation: RelationImports})
}

func linkExternal(b *Builder, lk *Lookup, typ NodeType, token, importer string, rel Relation, label string) {
	shape := ShapeStar
	if typ == NodeHeader {
		shape = ShapeDiamond
	}
	id := lk.externalID(token)
	b.AddNode(Node{ID: id, Type: typ, Label: token, Shape: shape})
	b.AddEdge(Edge{Source: id, Target: importer, Relation: rel, Label: label})
}
