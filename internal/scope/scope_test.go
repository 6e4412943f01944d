package scope

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repograph/internal/facts"
	"repograph/internal/graph"
)

func sample() (facts.Table, *graph.Graph) {
	table := facts.Table{
		"pkg/a.py":     {Functions: []string{"helper"}, Content: "def helper():\n    return 1\n", Type: "python"},
		"pkg/b.py":     {Imports: []string{"pkg.a.helper"}, Content: "from pkg.a import helper\n", Type: "python"},
		"pkg/sub/c.py": {Imports: []string{"pkg.a.helper", "os"}, Content: "import os\n", Type: "python"},
		"main.py":      {Imports: []string{"os"}, Classes: []string{"App"}, Content: "import os\nclass App: pass\n", Type: "python"},
	}
	return table, graph.Build(table, graph.Options{Levels: true})
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"how", "does", "pkg/a.py", "use", "helper"}, Terms("How does pkg/a.py use a Helper?"))
	assert.Empty(t, Terms("  ?! "))
}

func TestRelevantExpandsBestMatch(t *testing.T) {
	table, g := sample()
	s := New(table, g, 0)

	files, anchor := s.Relevant("where is helper defined")
	assert.Equal(t, "pkg/a.py::helper", anchor)
	assert.Equal(t, []string{"pkg/a.py", "pkg/b.py", "pkg/sub/c.py"}, files)
}

func TestRelevantMatchesClassNames(t *testing.T) {
	table, g := sample()
	files, anchor := New(table, g, 0).Relevant("app")
	assert.Equal(t, "main.py", anchor)
	require.NotEmpty(t, files)
	assert.Equal(t, "main.py", files[0])
}

func TestRelevantFallsBackToCentralFiles(t *testing.T) {
	table, g := sample()
	files, anchor := New(table, g, 0).Relevant("zzz qqq")
	assert.Empty(t, anchor)
	require.NotEmpty(t, files)
	assert.LessOrEqual(t, len(files), fallbackFiles)
	for _, f := range files {
		n, ok := g.Node(f)
		require.True(t, ok)
		assert.Equal(t, graph.NodeFile, n.Type)
	}
}

func TestAssemble(t *testing.T) {
	table, g := sample()
	ctx := New(table, g, 0).Assemble("helper")

	assert.Equal(t, []string{"pkg/a.py", "pkg/b.py", "pkg/sub/c.py"}, ctx.Files)
	assert.False(t, ctx.Truncated)
	assert.True(t, strings.HasPrefix(ctx.Text, "Full Repository Context:\nRepository Overview:\n"))
	assert.Contains(t, ctx.Text, "Relevant Information:\n")
	assert.Contains(t, ctx.Text, "File: pkg/a.py\n")
	assert.NotContains(t, ctx.Text, "File: main.py\n")
	assert.Positive(t, ctx.Words)
}

func TestAssembleWordBudget(t *testing.T) {
	table, g := sample()
	first := len(strings.Fields(table["pkg/a.py"].Document("pkg/a.py")))

	ctx := New(table, g, first).Assemble("helper")
	assert.Equal(t, []string{"pkg/a.py"}, ctx.Files)
	assert.Equal(t, first, ctx.Words)
	assert.True(t, ctx.Truncated)

	ctx = New(table, g, 1).Assemble("helper")
	assert.Empty(t, ctx.Files)
	assert.True(t, ctx.Truncated)
	assert.Contains(t, ctx.Text, "Repository Overview:", "overview is always present")
}
