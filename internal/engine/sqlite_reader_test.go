//go:build cgo

package engine

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/offsearch/internal/logging"
)

// TestSQLiteEngine_ReadableByOtherDrivers opens a built index with the cgo
// driver to check the on-disk tables are plain SQLite that any reader can use.
func TestSQLiteEngine_ReadableByOtherDrivers(t *testing.T) {
	// Given: an index built by the engine and closed
	root := t.TempDir()
	e := NewSQLiteEngine(Options{Root: root, Logger: logging.Discard()})
	require.NoError(t, e.Init(context.Background(), "VALID"))
	_, err := e.Build(context.Background(), "products", catalog)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	// When: it is opened read-only with mattn/go-sqlite3
	path := filepath.Join(root, "products", SQLiteFileName)
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	require.NoError(t, err)
	defer db.Close()

	// Then: documents and build info match the source
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&count))
	assert.Equal(t, len(catalog), count)

	var body string
	require.NoError(t, db.QueryRow(`SELECT body FROM documents WHERE doc_id = ?`, "p3").Scan(&body))
	assert.Contains(t, body, "Trail Hiking Boots")

	var recorded int
	require.NoError(t, db.QueryRow(`SELECT documents FROM build_info WHERE id = 1`).Scan(&recorded))
	assert.Equal(t, len(catalog), recorded)

	var version int
	require.NoError(t, db.QueryRow(`SELECT version FROM schema_version`).Scan(&version))
	assert.Equal(t, 1, version)
}
