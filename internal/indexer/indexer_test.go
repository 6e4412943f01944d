package indexer

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repograph/internal/cache"
	"repograph/internal/graph"
	"repograph/internal/scanner"
	"repograph/internal/source"
	"repograph/internal/store"
)

type fakeSource struct {
	name  string
	files []source.File
	err   error
	meta  map[string]any
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(context.Context) ([]source.File, error) {
	return f.files, f.err
}

type metaSource struct {
	fakeSource
}

func (m *metaSource) Metadata(context.Context) (map[string]any, error) {
	return m.meta, nil
}

func sampleFiles() []source.File {
	return []source.File{
		{Path: "pkg/a.py", Content: []byte("def helper():\n    pass\n")},
		{Path: "pkg/b.py", Content: []byte("from pkg.a import helper\nimport os\n")},
		{Path: "README.md", Content: []byte("# sample\n")},
	}
}

type fixture struct {
	ix     *Indexer
	store  *store.Store
	dbPath string
	dir    string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "repograph.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sc, err := scanner.New()
	require.NoError(t, err)
	t.Cleanup(sc.Close)

	graphs, err := cache.New[*graph.Graph](8)
	require.NoError(t, err)

	ix := New(sc, st, graphs, Options{Levels: true, GraphDir: filepath.Join(dir, "graphs")})
	return fixture{ix: ix, store: st, dbPath: dbPath, dir: dir}
}

func TestIndex(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	res, err := fx.ix.Index(ctx, &fakeSource{name: "acme/sample", files: sampleFiles()})
	require.NoError(t, err)
	assert.Equal(t, "acme/sample", res.Repository)
	assert.Equal(t, 3, res.Files)
	assert.NotEmpty(t, res.Fingerprint)
	assert.Positive(t, res.Stats.TotalNodes)

	g, err := fx.ix.Graph(ctx, "acme/sample")
	require.NoError(t, err)
	assert.True(t, g.HasNode("pkg/a.py::helper"))
	_, ok := g.Edge("pkg/a.py::helper", "pkg/b.py", graph.RelationImports)
	assert.True(t, ok)
	n, _ := g.Node("pkg/b.py")
	assert.True(t, n.HasLevel(), "stored graphs carry levels")

	saved, err := graph.Load(res.GraphPath)
	require.NoError(t, err)
	assert.Equal(t, g.Stats(), saved.Stats())

	table, err := fx.ix.Facts(ctx, "acme/sample")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "pkg/a.py", "pkg/b.py"}, table.Paths())

	repos, err := fx.ix.Repositories(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "acme/sample", repos[0].Name)
	assert.Equal(t, float64(3), repos[0].Metadata["files"])
}

func TestIndexUsesSourceMetadata(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	src := &metaSource{fakeSource{name: "acme/meta", files: sampleFiles(), meta: map[string]any{"stargazers_count": 7}}}
	_, err := fx.ix.Index(ctx, src)
	require.NoError(t, err)

	repos, err := fx.ix.Repositories(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, float64(7), repos[0].Metadata["stargazers_count"])
}

func TestIndexFetchError(t *testing.T) {
	fx := newFixture(t)
	boom := errors.New("boom")
	_, err := fx.ix.Index(context.Background(), &fakeSource{name: "x", err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestGraphUnknownRepository(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.ix.Graph(context.Background(), "nobody/nothing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGraphFromStoreAfterForget(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	res, err := fx.ix.Index(ctx, &fakeSource{name: "acme/sample", files: sampleFiles()})
	require.NoError(t, err)

	fx.ix.Forget("acme/sample")
	g, err := fx.ix.Graph(ctx, "acme/sample")
	require.NoError(t, err)
	assert.Equal(t, res.Stats, g.Stats())
}

func TestGraphRebuiltFromCorruptDocument(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	res, err := fx.ix.Index(ctx, &fakeSource{name: "acme/sample", files: sampleFiles()})
	require.NoError(t, err)
	fx.ix.Forget("acme/sample")

	db, err := sql.Open("sqlite3", fx.dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE graphs SET document = '{not json'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	g, err := fx.ix.Graph(ctx, "acme/sample")
	require.NoError(t, err)
	assert.Equal(t, res.Stats, g.Stats())

	repo, err := fx.store.Repository(ctx, "acme/sample")
	require.NoError(t, err)
	stored, fp, err := fx.store.Graph(ctx, repo.ID)
	require.NoError(t, err, "rebuilt graph is written back")
	assert.Equal(t, res.Fingerprint, fp)
	assert.Equal(t, res.Stats, stored.Stats())
}

func TestGraphPath(t *testing.T) {
	assert.Equal(t, filepath.Join("d", "acme_widgets.json"), GraphPath("d", "acme/widgets"))
	assert.Equal(t, filepath.Join("d", "home_me_repo.json"), GraphPath("d", "/home/me/repo"))
	assert.Equal(t, filepath.Join("d", "repository.json"), GraphPath("d", "/"))
}

func TestIndexLocalSource(t *testing.T) {
	fx := newFixture(t)
	root := filepath.Join(fx.dir, "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "a.py"), []byte("def helper():\n    pass\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), []byte("from pkg.a import helper\n"), 0o644))

	res, err := fx.ix.Index(context.Background(), source.NewLocal(root))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)

	g, err := fx.ix.Graph(context.Background(), res.Repository)
	require.NoError(t, err)
	_, ok := g.Edge("pkg/a.py::helper", "main.py", graph.RelationImports)
	assert.True(t, ok)
}
