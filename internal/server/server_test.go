package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repograph/internal/cache"
	"repograph/internal/graph"
	"repograph/internal/indexer"
	"repograph/internal/scanner"
	"repograph/internal/scope"
	"repograph/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "repograph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sc, err := scanner.New()
	require.NoError(t, err)
	t.Cleanup(sc.Close)

	graphs, err := cache.New[*graph.Graph](4)
	require.NoError(t, err)

	ix := indexer.New(sc, st, graphs, indexer.Options{Levels: true})
	return New(ix, Options{MaxWords: 500})
}

func writeRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"pkg/a.py":  "def helper():\n    return 1\n",
		"pkg/b.py":  "from pkg.a import helper\nimport os\n",
		"main.py":   "import os\nfrom pkg.a import helper\n",
		"README.md": "# demo\n",
	}
	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func decode(t *testing.T, res *mcp.CallToolResult, v any) {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), v))
}

func indexRepo(t *testing.T, s *Server) string {
	t.Helper()
	res, _, err := s.handleIndex(context.Background(), nil, IndexArgs{Target: writeRepo(t)})
	require.NoError(t, err)
	var out indexer.Result
	decode(t, res, &out)
	assert.Equal(t, 4, out.Files)
	return out.Repository
}

func TestToolsRequireRepository(t *testing.T) {
	s := newTestServer(t)
	res, _, err := s.handleGraphStats(context.Background(), nil, GraphStatsArgs{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), ErrNoRepository.Error())

	res, _, err = s.handleIndex(context.Background(), nil, IndexArgs{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestIndexAndStatus(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	name := indexRepo(t, s)

	res, _, err := s.handleIndexStatus(ctx, nil, IndexStatusArgs{})
	require.NoError(t, err)
	var status map[string]any
	decode(t, res, &status)
	assert.Equal(t, "ready", status["status"])
	assert.Equal(t, name, status["repository"])

	res, _, err = s.handleRepositories(ctx, nil, RepositoriesArgs{})
	require.NoError(t, err)
	var repos []map[string]any
	decode(t, res, &repos)
	require.Len(t, repos, 1)
	assert.Equal(t, name, repos[0]["name"])

	st, _, _ := s.GetIndexStatus("never/indexed")
	assert.Equal(t, IndexStatusIdle, st)
	assert.NoError(t, s.WaitForIndex(ctx, "never/indexed"))
}

func TestIndexInBackgroundSetsCurrentRepository(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	root := writeRepo(t)

	require.NoError(t, s.IndexInBackground(ctx, root))
	name, err := s.repository("")
	require.NoError(t, err)
	abs, err := filepath.Abs(root)
	require.NoError(t, err)
	assert.Equal(t, abs, name)

	// A tool called without a repository right after startup waits for the
	// background index instead of failing.
	res, _, err := s.handleGraphStats(ctx, nil, GraphStatsArgs{})
	require.NoError(t, err)
	var out struct {
		Repository string      `json:"repository"`
		Stats      graph.Stats `json:"stats"`
	}
	decode(t, res, &out)
	assert.Equal(t, name, out.Repository)

	require.NoError(t, s.WaitForIndex(ctx, name))
	st, indexErr, _ := s.GetIndexStatus(name)
	assert.Equal(t, IndexStatusReady, st)
	assert.NoError(t, indexErr)

	err = s.IndexInBackground(ctx, "https://github.com/acme")
	assert.Error(t, err)
}

func TestGraphStats(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	name := indexRepo(t, s)

	res, _, err := s.handleGraphStats(ctx, nil, GraphStatsArgs{Repository: name})
	require.NoError(t, err)
	var out struct {
		Repository string      `json:"repository"`
		Stats      graph.Stats `json:"stats"`
	}
	decode(t, res, &out)
	assert.Equal(t, name, out.Repository)
	assert.Equal(t, 4, out.Stats.NodesByType[graph.NodeFile])
	assert.Equal(t, 1, out.Stats.NodesByType[graph.NodeImport])
	assert.Zero(t, out.Stats.EdgesByRelation[graph.RelationMultiple])
}

func TestNeighbors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	indexRepo(t, s)

	res, _, err := s.handleNeighbors(ctx, nil, NeighborsArgs{Node: "pkg/a.py::helper"})
	require.NoError(t, err)
	var out struct {
		Direction string   `json:"direction"`
		Nodes     []string `json:"nodes"`
	}
	decode(t, res, &out)
	assert.Equal(t, "successors", out.Direction)
	assert.Equal(t, []string{"main.py", "pkg/b.py"}, out.Nodes)

	res, _, err = s.handleNeighbors(ctx, nil, NeighborsArgs{Node: "pkg/b.py", Direction: "predecessors"})
	require.NoError(t, err)
	decode(t, res, &out)
	assert.Equal(t, []string{"os", "pkg", "pkg/a.py::helper"}, out.Nodes)

	res, _, err = s.handleNeighbors(ctx, nil, NeighborsArgs{Node: "missing.py"})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, _, err = s.handleNeighbors(ctx, nil, NeighborsArgs{Node: "main.py", Direction: "sideways"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRankCentral(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	indexRepo(t, s)

	res, _, err := s.handleRankCentral(ctx, nil, RankCentralArgs{Limit: 2, Type: "file"})
	require.NoError(t, err)
	var ranked []graph.Ranked
	decode(t, res, &ranked)
	require.Len(t, ranked, 2)
	for _, r := range ranked {
		assert.True(t, strings.HasSuffix(r.ID, ".py") || strings.HasSuffix(r.ID, ".md"), r.ID)
	}
	assert.GreaterOrEqual(t, ranked[0].Score, ranked[1].Score)

	res, _, err = s.handleRankCentral(ctx, nil, RankCentralArgs{Type: "planet"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSubgraph(t *testing.T) {
	s := newTestServer(t)
	indexRepo(t, s)

	res, _, err := s.handleSubgraph(context.Background(), nil, SubgraphArgs{MaxLevel: 0})
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	g, err := graph.Decode(strings.NewReader(text(t, res)))
	require.NoError(t, err)
	assert.True(t, g.HasNode("main.py"))
	assert.True(t, g.HasNode("pkg"))
	assert.False(t, g.HasNode("pkg/a.py"))
}

func TestScopeContext(t *testing.T) {
	s := newTestServer(t)
	indexRepo(t, s)

	res, _, err := s.handleScopeContext(context.Background(), nil, ScopeContextArgs{Query: "where is helper"})
	require.NoError(t, err)
	var out scope.Context
	decode(t, res, &out)
	assert.Equal(t, "pkg/a.py::helper", out.Anchor)
	assert.Equal(t, []string{"pkg/a.py", "main.py", "pkg/b.py"}, out.Files)
	assert.Contains(t, out.Text, "Repository Overview:")
}

func TestSchemas(t *testing.T) {
	m := buildSchemaMap()
	for _, name := range []string{"index", "index_status", "repositories", "graph_stats", "neighbors", "rank_central", "subgraph", "scope_context"} {
		assert.Contains(t, m, name)
	}
	assert.Contains(t, m["neighbors"], "direction")

	res, err := readSchema(m, schemaPrefix+"subgraph")
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Contains(t, res.Contents[0].Text, "max_level")

	_, err = readSchema(m, schemaPrefix+"nope")
	assert.Error(t, err)
}
