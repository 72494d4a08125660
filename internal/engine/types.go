// Package engine is the local search engine behind mirrored indices.
//
// An Engine owns the on-disk data of every index under its root directory:
// one subdirectory per index, holding either a SQLite FTS5 database
// (index.db) or a Bleve index (index.bleve/). Build replaces the whole
// content of an index from a Source; Search runs keyword queries against
// the last successful build.
package engine

import (
	"context"
	"time"
)

// Backend selects the on-disk index format.
type Backend string

const (
	// BackendSQLite stores each index as an FTS5 database. WAL mode lets
	// other processes read while a build runs.
	BackendSQLite Backend = "sqlite"

	// BackendBleve stores each index as a Bleve directory.
	BackendBleve Backend = "bleve"
)

// Default limits applied when a Query leaves them unset.
const (
	DefaultLimit = 20
	MaxLimit     = 1000
)

// Document is one record of a mirrored index.
type Document struct {
	ID     string         `json:"objectID"`
	Fields map[string]any `json:"fields"`
}

// Query is a keyword search request.
type Query struct {
	Text   string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Normalize returns q with defaults applied and bounds clamped.
func (q Query) Normalize(defaultLimit int) Query {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Hit is one search result.
type Hit struct {
	ID           string         `json:"objectID"`
	Score        float64        `json:"score"`
	Fields       map[string]any `json:"fields,omitempty"`
	MatchedTerms []string       `json:"matched_terms,omitempty"`
}

// SearchResults is the outcome of a search.
type SearchResults struct {
	Index   string        `json:"index"`
	Query   string        `json:"query"`
	Hits    []Hit         `json:"hits"`
	Total   int           `json:"total"`
	Took    time.Duration `json:"took"`
	Backend Backend       `json:"backend"`
}

// BuildStats describes a completed build.
type BuildStats struct {
	Index     string        `json:"index"`
	Documents int           `json:"documents"`
	Duration  time.Duration `json:"duration"`
	Backend   Backend       `json:"backend"`
}

// Engine builds and searches local indices.
//
// Build and Search for the same index may be called concurrently; a search
// observes either the previous or the new content, never a partial build.
type Engine interface {
	// Init activates the engine with a license credential.
	Init(ctx context.Context, credential string) error

	// Build replaces the content of indexName with the documents of src.
	Build(ctx context.Context, indexName string, src Source) (BuildStats, error)

	// Search runs q against indexName.
	Search(ctx context.Context, indexName string, q Query) (*SearchResults, error)

	// Backend reports the on-disk format.
	Backend() Backend

	// Close releases open index handles.
	Close() error
}
