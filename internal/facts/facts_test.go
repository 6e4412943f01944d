package facts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLenient(t *testing.T) {
	doc := `{
		"pkg/a.py": {"functions": ["f", 1, "g"], "classes": "C", "imports": null, "content": "x = 1"},
		"pkg/b.py": "not an object",
		"pkg\\c.py": {"error": "boom", "type": "python"},
		"./d.py": {}
	}`
	table, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"d.py", "pkg/a.py", "pkg/b.py", "pkg/c.py"}, table.Paths())

	a := table["pkg/a.py"]
	assert.Equal(t, "pkg/a.py", a.Path)
	assert.Equal(t, []string{"f", "g"}, a.Functions)
	assert.Empty(t, a.Classes)
	assert.Empty(t, a.Imports)
	assert.Equal(t, "x = 1", a.Content)

	assert.Empty(t, table["pkg/b.py"].Functions)
	assert.True(t, table["pkg/c.py"].Failed())
	assert.False(t, a.Failed())
}

func TestDecodeRejectsNonObject(t *testing.T) {
	for _, doc := range []string{``, `[]`, `"x"`, `42`} {
		_, err := Decode(strings.NewReader(doc))
		assert.Error(t, err, doc)
	}
}

func TestEncodeDecode(t *testing.T) {
	table := Table{
		"a.go": {Functions: []string{"main"}, Imports: []string{"fmt"}},
		"b.md": {Type: TypeNonCode},
	}
	var buf bytes.Buffer
	require.NoError(t, table.Encode(&buf))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, table.Normalize(), got)
}

func TestNormalizeDropsRoot(t *testing.T) {
	table := Table{".": {}, "/": {}, "a//b/../c.py": {}}
	got := table.Normalize()
	assert.Equal(t, []string{"a/c.py"}, got.Paths())
}

func TestFingerprint(t *testing.T) {
	a := Table{"x.py": {Functions: []string{"f"}}, "y.py": {}}
	b := Table{"y.py": {}, "x.py": {Functions: []string{"f"}}}
	c := Table{"x.py": {Functions: []string{"g"}}, "y.py": {}}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
}

func TestSummary(t *testing.T) {
	table := Table{
		"app.py": {
			Type:      "python",
			Functions: []string{"main", "run"},
			Classes:   []string{"App"},
			Content:   strings.Repeat("é", 150),
		},
	}
	s := table.Summary()

	assert.True(t, strings.HasPrefix(s, "Repository Overview:\n- app.py\n"))
	assert.Contains(t, s, "  Type: python\n")
	assert.Contains(t, s, "  Functions: main, run\n")
	assert.Contains(t, s, "  Classes: App\n")
	assert.Contains(t, s, "  Content Preview: "+strings.Repeat("é", 100)+"...\n")
	assert.NotContains(t, s, strings.Repeat("é", 101))
}

func TestDocument(t *testing.T) {
	f := FileFact{Functions: []string{"f"}, Imports: []string{"os"}, Content: "body"}
	doc := f.Document("a.py")
	assert.Equal(t, "File: a.py\nFunctions: f\nImports: os\n\nbody\n", doc)
}
