package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	offerr "github.com/Aman-CERP/offsearch/internal/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileSource_JSONArray(t *testing.T) {
	// Given: a JSON array with string and numeric object IDs
	path := writeFile(t, "data.json", `[
		{"objectID": "a1", "name": "Alpha"},
		{"objectID": 42, "name": "Answer"}
	]`)

	// When: documents are read
	docs, err := NewFileSource(path).Documents(context.Background())

	// Then: IDs are extracted and removed from fields
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a1", docs[0].ID)
	assert.Equal(t, "Alpha", docs[0].Fields["name"])
	assert.NotContains(t, docs[0].Fields, "objectID")
	assert.Equal(t, "42", docs[1].ID)
}

func TestFileSource_NDJSON(t *testing.T) {
	path := writeFile(t, "data.ndjson", "{\"objectID\":\"x\",\"v\":1}\n{\"objectID\":\"y\",\"v\":2}\n\n")

	docs, err := NewFileSource(path).Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "x", docs[0].ID)
	assert.Equal(t, "y", docs[1].ID)
}

func TestFileSource_MissingIDIsStable(t *testing.T) {
	path := writeFile(t, "data.json", `[{"name": "same", "n": 1}, {"n": 1, "name": "same"}, {"name": "other"}]`)

	docs, err := NewFileSource(path).Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Len(t, docs[0].ID, 16)
	assert.Equal(t, docs[0].ID, docs[1].ID)
	assert.NotEqual(t, docs[0].ID, docs[2].ID)
}

func TestFileSource_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := FileSource{Path: filepath.Join(t.TempDir(), "nope.json")}.Documents(context.Background())
		assert.Equal(t, offerr.ErrCodeSourceRead, offerr.GetCode(err))
	})
	t.Run("malformed", func(t *testing.T) {
		path := writeFile(t, "bad.json", `[{"objectID": "a",}]`)
		_, err := NewFileSource(path).Documents(context.Background())
		assert.Equal(t, offerr.ErrCodeSourceRead, offerr.GetCode(err))
	})
	t.Run("malformed line", func(t *testing.T) {
		path := writeFile(t, "bad.ndjson", "{\"a\":1}\nnot json\n")
		_, err := NewFileSource(path).Documents(context.Background())
		assert.Equal(t, offerr.ErrCodeSourceRead, offerr.GetCode(err))
	})
}

func TestFileSource_EmptyFile(t *testing.T) {
	path := writeFile(t, "empty.json", "  \n")
	docs, err := NewFileSource(path).Documents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestNewFileSource_Absolute(t *testing.T) {
	src := NewFileSource("relative.json")
	assert.True(t, filepath.IsAbs(src.Path))
	assert.Equal(t, src.Path, src.Describe())
}

func TestSliceSource(t *testing.T) {
	src := SliceSource{
		{ID: "1", Fields: map[string]any{"name": "one"}},
		{Fields: map[string]any{"name": "two"}},
	}
	docs, err := src.Documents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", docs[0].ID)
	assert.NotEmpty(t, docs[1].ID)
	assert.Empty(t, src[1].ID, "source must not be mutated")
	assert.Equal(t, "memory (2 documents)", src.Describe())
}
