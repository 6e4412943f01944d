package graph

import "repograph/internal/facts"

// SymbolIndex maps a declared function or class name to the file declaring it.
type SymbolIndex map[string]string

// BuildSymbolIndex records every function and class name in table. Files are
// visited in path order and a name declared twice keeps the later file: a
// known precision limit, not an attempt at correct resolution.
func BuildSymbolIndex(table facts.Table) SymbolIndex {
	idx := make(SymbolIndex)
	for _, p := range table.Paths() {
		f := table[p]
		if f.Failed() {
			continue
		}
		for _, name := range f.Functions {
			idx.declare(name, p)
		}
		for _, name := range f.Classes {
			idx.declare(name, p)
		}
	}
	return idx
}

func (idx SymbolIndex) declare(name, p string) {
	if name == "" {
		return
	}
	idx[name] = p
}

// Lookup returns the declaring file of name.
func (idx SymbolIndex) Lookup(name string) (string, bool) {
	p, ok := idx[name]
	return p, ok
}
