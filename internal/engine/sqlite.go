package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	offerr "github.com/Aman-CERP/offsearch/internal/errors"
)

// SQLiteFileName is the database file inside an index directory.
const SQLiteFileName = "index.db"

// SQLiteEngine stores each index in its own FTS5 database.
type SQLiteEngine struct {
	core

	mu      sync.Mutex
	indexes map[string]*sqliteIndex
	closed  bool
}

type sqliteIndex struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

var _ Engine = (*SQLiteEngine)(nil)

// NewSQLiteEngine creates an engine rooted at opts.Root.
func NewSQLiteEngine(opts Options) *SQLiteEngine {
	e := &SQLiteEngine{indexes: make(map[string]*sqliteIndex)}
	e.setup(opts)
	return e
}

// Backend implements Engine.
func (e *SQLiteEngine) Backend() Backend { return BackendSQLite }

// validateSQLiteIntegrity checks an existing database before it is opened
// for writing. A missing file is valid.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name IN ('fts_content', 'documents')`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count != 2 {
		return fmt.Errorf("index tables missing")
	}
	return nil
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; searches and builds of one index share the connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite may ignore DSN params, so pragmas are set explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- doc_id is stored but not searchable; content holds pre-tokenized text
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_content USING fts5(
		doc_id UNINDEXED,
		content,
		tokenize='unicode61'
	);

	CREATE TABLE IF NOT EXISTS documents (
		doc_id TEXT PRIMARY KEY,
		body   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS build_info (
		id         INTEGER PRIMARY KEY CHECK (id = 1),
		documents  INTEGER NOT NULL,
		built_at   TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// index returns the open handle for name. With create false, a missing
// database yields an IndexMissing error.
func (e *SQLiteEngine) index(name string, create bool) (*sqliteIndex, error) {
	dir, err := e.indexDir(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("engine is closed")
	}
	if idx, ok := e.indexes[name]; ok {
		return idx, nil
	}

	path := filepath.Join(dir, SQLiteFileName)
	if validErr := validateSQLiteIntegrity(path); validErr != nil {
		e.logger.Warn("sqlite_index_corrupted",
			slog.String("index", name),
			slog.String("path", path),
			slog.String("error", validErr.Error()))
		if !create {
			return nil, offerr.New(offerr.ErrCodeCorruptIndex, "local index is corrupted", validErr).
				WithDetail("index", name).
				WithSuggestion("Rebuild the index")
		}
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			return nil, fmt.Errorf("index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
		}
		_ = os.Remove(path + "-wal")
		_ = os.Remove(path + "-shm")
		e.logger.Info("sqlite_index_cleared", slog.String("index", name), slog.String("path", path))
	}

	if !create {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, offerr.New(offerr.ErrCodeIndexMissing, "index has not been built yet", nil).
				WithDetail("index", name).
				WithSuggestion("Build the index before searching it")
		}
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, offerr.New(offerr.ErrCodeDataDir, "cannot create index directory", err).WithDetail("path", dir)
	}

	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	idx := &sqliteIndex{db: db, path: path}
	e.indexes[name] = idx
	return idx, nil
}

// Build implements Engine. The whole replacement happens in one
// transaction, so searches see either the old or the new content.
func (e *SQLiteEngine) Build(ctx context.Context, indexName string, src Source) (BuildStats, error) {
	start := time.Now()
	stats := BuildStats{Index: indexName, Backend: BackendSQLite}

	if err := e.requireInit("build"); err != nil {
		return stats, err
	}
	dir, err := e.indexDir(indexName)
	if err != nil {
		return stats, err
	}

	lock := NewBuildLock(dir)
	if err := lock.Acquire(ctx, e.opts.LockWait); err != nil {
		return stats, err
	}
	defer func() { _ = lock.Release() }()

	docs, err := src.Documents(ctx)
	if err != nil {
		return stats, err
	}

	idx, err := e.index(indexName, true)
	if err != nil {
		return stats, offerr.EngineError(offerr.ErrCodeEngineBuild, indexName, err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := e.replace(ctx, idx.db, docs); err != nil {
		if ctx.Err() != nil {
			return stats, offerr.Cancelled("build "+indexName, err)
		}
		return stats, offerr.EngineError(offerr.ErrCodeEngineBuild, indexName, err)
	}

	stats.Documents = len(docs)
	stats.Duration = time.Since(start)
	e.logger.Info("sqlite_index_built",
		slog.String("index", indexName),
		slog.Int("documents", stats.Documents),
		slog.Duration("took", stats.Duration))
	return stats, nil
}

func (e *SQLiteEngine) replace(ctx context.Context, db *sql.DB, docs []Document) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{"DELETE FROM fts_content", "DELETE FROM documents"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear index: %w", err)
		}
	}

	ftsStmt, err := tx.PrepareContext(ctx, `INSERT INTO fts_content(doc_id, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer ftsStmt.Close()

	docStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO documents(doc_id, body) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare document statement: %w", err)
	}
	defer docStmt.Close()

	seen := make(map[string]struct{}, len(docs))
	for i, doc := range docs {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		// Later duplicates win, matching INSERT OR REPLACE on documents.
		if _, dup := seen[doc.ID]; dup {
			if _, err := tx.ExecContext(ctx, `DELETE FROM fts_content WHERE doc_id = ?`, doc.ID); err != nil {
				return fmt.Errorf("failed to replace document %s: %w", doc.ID, err)
			}
		}
		seen[doc.ID] = struct{}{}

		body, err := json.Marshal(doc.Fields)
		if err != nil {
			return fmt.Errorf("failed to encode document %s: %w", doc.ID, err)
		}
		content := strings.Join(e.analyze(FlattenText(doc.Fields)), " ")
		if _, err := ftsStmt.ExecContext(ctx, doc.ID, content); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
		if _, err := docStmt.ExecContext(ctx, doc.ID, string(body)); err != nil {
			return fmt.Errorf("failed to store document %s: %w", doc.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO build_info(id, documents, built_at) VALUES (1, ?, ?)`,
		len(seen), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record build info: %w", err)
	}

	return tx.Commit()
}

// matchExpression quotes every term so user input cannot inject FTS5
// syntax, and makes the last term a prefix match.
func matchExpression(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	quoted[len(quoted)-1] += "*"
	return strings.Join(quoted, " ")
}

// Search implements Engine. An empty query lists documents by ID.
func (e *SQLiteEngine) Search(ctx context.Context, indexName string, q Query) (*SearchResults, error) {
	start := time.Now()
	if err := e.requireInit("search"); err != nil {
		return nil, err
	}
	q = q.Normalize(e.opts.DefaultLimit)

	idx, err := e.index(indexName, false)
	if err != nil {
		if _, ok := offerr.As(err); ok {
			return nil, err
		}
		return nil, offerr.EngineError(offerr.ErrCodeEngineSearch, indexName, err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	res := &SearchResults{Index: indexName, Query: q.Text, Hits: []Hit{}, Backend: BackendSQLite}
	tokens := e.analyze(q.Text)

	if strings.TrimSpace(q.Text) == "" {
		err = e.browse(ctx, idx.db, q, res)
	} else if len(tokens) > 0 {
		err = e.match(ctx, idx.db, tokens, q, res)
	}
	if err != nil {
		return nil, offerr.EngineError(offerr.ErrCodeEngineSearch, indexName, err)
	}

	res.Took = time.Since(start)
	return res, nil
}

func (e *SQLiteEngine) browse(ctx context.Context, db *sql.DB, q Query, res *SearchResults) error {
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&res.Total); err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	rows, err := db.QueryContext(ctx,
		`SELECT doc_id, 0, body FROM documents ORDER BY doc_id LIMIT ? OFFSET ?`, q.Limit, q.Offset)
	if err != nil {
		return fmt.Errorf("browse failed: %w", err)
	}
	return scanHits(rows, nil, res)
}

func (e *SQLiteEngine) match(ctx context.Context, db *sql.DB, tokens []string, q Query, res *SearchResults) error {
	expr := matchExpression(tokens)

	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fts_content WHERE fts_content MATCH ?`, expr).Scan(&res.Total)
	if err != nil {
		if isFTSSyntaxError(err) {
			return nil
		}
		return fmt.Errorf("count failed: %w", err)
	}

	// bm25() is negative, lower is better; scores are negated below.
	rows, err := db.QueryContext(ctx, `
		SELECT m.doc_id, m.score, documents.body
		FROM (
			SELECT doc_id, bm25(fts_content) AS score
			FROM fts_content
			WHERE fts_content MATCH ?
			ORDER BY score
			LIMIT ? OFFSET ?
		) AS m
		JOIN documents ON documents.doc_id = m.doc_id
		ORDER BY m.score`, expr, q.Limit, q.Offset)
	if err != nil {
		if isFTSSyntaxError(err) {
			res.Total = 0
			return nil
		}
		return fmt.Errorf("search failed: %w", err)
	}
	return scanHits(rows, tokens, res)
}

func scanHits(rows *sql.Rows, tokens []string, res *SearchResults) error {
	defer rows.Close()
	for rows.Next() {
		var (
			id    string
			score float64
			body  string
		)
		if err := rows.Scan(&id, &score, &body); err != nil {
			return fmt.Errorf("failed to scan result: %w", err)
		}
		hit := Hit{ID: id, Score: -score, MatchedTerms: tokens}
		if err := json.Unmarshal([]byte(body), &hit.Fields); err != nil {
			return fmt.Errorf("document %s has invalid body: %w", id, err)
		}
		res.Hits = append(res.Hits, hit)
	}
	return rows.Err()
}

func isFTSSyntaxError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5:") || strings.Contains(msg, "syntax error")
}

// Close implements Engine.
func (e *SQLiteEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var firstErr error
	for name, idx := range e.indexes {
		idx.mu.Lock()
		if err := idx.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", name, err)
		}
		idx.mu.Unlock()
	}
	e.indexes = nil
	return firstErr
}
