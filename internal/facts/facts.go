// Package facts holds the per-file structural facts produced by the parsing
// collaborator and consumed by graph construction.
package facts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"repograph/util"
)

// TypeNonCode tags files the parser does not extract structure from.
const TypeNonCode = "non-code"

// FileFact is the structural summary of one source file.
type FileFact struct {
	Path      string   `json:"path,omitempty"`
	Functions []string `json:"functions"`
	Classes   []string `json:"classes"`
	Imports   []string `json:"imports"`
	Content   string   `json:"content,omitempty"`
	Error     string   `json:"error,omitempty"`
	Type      string   `json:"type,omitempty"`
}

// Failed reports whether the parser recorded an error for this file.
// Failed facts still become nodes but contribute no symbols or imports.
func (f FileFact) Failed() bool {
	return f.Error != ""
}

// UnmarshalJSON decodes a fact leniently: list fields that are missing or of
// the wrong shape decode as empty, and non-string list items are dropped.
func (f *FileFact) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// Not an object: keep an empty fact rather than failing the table.
		*f = FileFact{}
		return nil
	}

	*f = FileFact{
		Path:      stringField(raw["path"]),
		Functions: stringList(raw["functions"]),
		Classes:   stringList(raw["classes"]),
		Imports:   stringList(raw["imports"]),
		Content:   stringField(raw["content"]),
		Error:     stringField(raw["error"]),
		Type:      stringField(raw["type"]),
	}
	return nil
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return nil
	}
	var out []string
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

// Table maps project-relative, forward-slash paths to their facts.
type Table map[string]FileFact

// Paths returns the table's paths in ascending order. Graph construction
// iterates in this order, which fixes symbol-collision tie-breaks.
func (t Table) Paths() []string {
	paths := make([]string, 0, len(t))
	for p := range t {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Normalize returns a copy with cleaned keys and Path set on every fact.
// Entries whose key cleans to the repository root are dropped.
func (t Table) Normalize() Table {
	out := make(Table, len(t))
	for _, p := range t.Paths() {
		clean := util.CleanSlash(p)
		if clean == "" {
			continue
		}
		fact := t[p]
		fact.Path = clean
		out[clean] = fact
	}
	return out
}

// Encode writes the table as a JSON object keyed by path.
func (t Table) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	return enc.Encode(t)
}

// Fingerprint identifies the table's content. Equal tables produce equal
// fingerprints regardless of how they were assembled.
func (t Table) Fingerprint() string {
	// Map keys are emitted sorted, so the encoding is canonical.
	data, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	return util.Fingerprint(data)
}

// Summary renders a repository overview: one entry per file listing its type,
// declared functions and classes, and a short content preview.
func (t Table) Summary() string {
	var b strings.Builder
	b.WriteString("Repository Overview:\n")
	for _, p := range t.Paths() {
		f := t[p]
		fmt.Fprintf(&b, "- %s\n", p)
		if f.Type != "" {
			fmt.Fprintf(&b, "  Type: %s\n", f.Type)
		}
		if len(f.Functions) > 0 {
			fmt.Fprintf(&b, "  Functions: %s\n", strings.Join(f.Functions, ", "))
		}
		if len(f.Classes) > 0 {
			fmt.Fprintf(&b, "  Classes: %s\n", strings.Join(f.Classes, ", "))
		}
		if f.Content != "" {
			fmt.Fprintf(&b, "  Content Preview: %s...\n", preview(f.Content, 100))
		}
	}
	return b.String()
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Document renders one file as a retrieval document: path, declared names,
// imports and content.
func (f FileFact) Document(p string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", p)
	if len(f.Functions) > 0 {
		fmt.Fprintf(&b, "Functions: %s\n", strings.Join(f.Functions, ", "))
	}
	if len(f.Classes) > 0 {
		fmt.Fprintf(&b, "Classes: %s\n", strings.Join(f.Classes, ", "))
	}
	if len(f.Imports) > 0 {
		fmt.Fprintf(&b, "Imports: %s\n", strings.Join(f.Imports, ", "))
	}
	if f.Content != "" {
		b.WriteString("\n")
		b.WriteString(f.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// Decode reads a table from a JSON object keyed by path. Per-file values are
// decoded leniently; only a document that is not a JSON object fails.
func Decode(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read facts: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, errors.New("decode facts: document is not a JSON object")
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode facts: %w", err)
	}
	return t.Normalize(), nil
}
