package engine

import (
	"fmt"
	"os"
	"path/filepath"
)

// New creates the engine for opts.Backend.
//
// backend options:
//   - "sqlite" (default): FTS5 with WAL mode, readable while a build runs
//   - "bleve": Bleve directory, swapped in after each build
func New(opts Options) (Engine, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		opts.Backend = BackendSQLite
		return NewSQLiteEngine(opts), nil
	case BackendBleve:
		return NewBleveEngine(opts), nil
	default:
		return nil, fmt.Errorf("unknown engine backend: %s (valid options: sqlite, bleve)", opts.Backend)
	}
}

// ParseBackend validates a backend name. Empty means BackendSQLite.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendSQLite, "":
		return BackendSQLite, nil
	case BackendBleve:
		return BackendBleve, nil
	default:
		return "", fmt.Errorf("unknown engine backend: %s (valid options: sqlite, bleve)", s)
	}
}

// DetectBackend reports which format an index directory holds, or "" if
// it has never been built.
func DetectBackend(indexDir string) Backend {
	if fileExists(filepath.Join(indexDir, SQLiteFileName)) {
		return BackendSQLite
	}
	if dirExists(filepath.Join(indexDir, BleveDirName)) {
		return BackendBleve
	}
	return ""
}

// IndexPath returns the file or directory holding an index's data.
func IndexPath(indexDir string, backend Backend) string {
	if backend == BackendBleve {
		return filepath.Join(indexDir, BleveDirName)
	}
	return filepath.Join(indexDir, SQLiteFileName)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
