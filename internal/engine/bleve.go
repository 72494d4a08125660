package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	offerr "github.com/Aman-CERP/offsearch/internal/errors"
)

const (
	// BleveDirName is the index directory inside an index's data directory.
	BleveDirName = "index.bleve"

	// RecordTokenizerName is the registered bleve tokenizer wrapping Tokenize.
	RecordTokenizerName = "offsearch_record_tokenizer"

	// RecordStopFilterName is the registered stop word filter.
	RecordStopFilterName = "offsearch_record_stop"

	// RecordAnalyzerName is the default analyzer of every index.
	RecordAnalyzerName = "offsearch_record_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(RecordTokenizerName, recordTokenizerConstructor)
	_ = registry.RegisterTokenFilter(RecordStopFilterName, recordStopFilterConstructor)
}

// bleveDocument is what gets indexed: searchable text plus the stored record.
type bleveDocument struct {
	Content string `json:"content"`
	Body    string `json:"body"`
}

// BleveEngine stores each index as a Bleve directory.
type BleveEngine struct {
	core

	mu      sync.Mutex
	indexes map[string]*bleveIndex
	closed  bool
}

type bleveIndex struct {
	mu    sync.RWMutex
	index bleve.Index
	path  string
}

var _ Engine = (*BleveEngine)(nil)

// NewBleveEngine creates an engine rooted at opts.Root.
func NewBleveEngine(opts Options) *BleveEngine {
	e := &BleveEngine{indexes: make(map[string]*bleveIndex)}
	e.setup(opts)
	return e
}

// Backend implements Engine.
func (e *BleveEngine) Backend() Backend { return BackendBleve }

// validateBleveIntegrity checks index_meta.json of an existing index.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func (e *BleveEngine) indexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	stopFilter := RecordStopFilterName + "_words"
	err := im.AddCustomTokenFilter(stopFilter, map[string]any{
		"type":       RecordStopFilterName,
		"stop_words": e.stopList,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add stop word filter: %w", err)
	}

	err = im.AddCustomAnalyzer(RecordAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     RecordTokenizerName,
		"token_filters": []string{stopFilter},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	im.DefaultAnalyzer = RecordAnalyzerName

	content := bleve.NewTextFieldMapping()
	content.Analyzer = RecordAnalyzerName
	content.Store = false
	content.IncludeTermVectors = true

	body := bleve.NewTextFieldMapping()
	body.Index = false
	body.Store = true

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt("content", content)
	doc.AddFieldMappingsAt("body", body)
	im.DefaultMapping = doc

	return im, nil
}

// open returns the handle for name, or an IndexMissing/CorruptIndex error.
func (e *BleveEngine) open(name string) (*bleveIndex, error) {
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

	path := filepath.Join(dir, BleveDirName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, offerr.New(offerr.ErrCodeIndexMissing, "index has not been built yet", nil).
			WithDetail("index", name).
			WithSuggestion("Build the index before searching it")
	}
	if validErr := validateBleveIntegrity(path); validErr != nil {
		e.logger.Warn("bleve_index_corrupted", slog.String("index", name), slog.String("error", validErr.Error()))
		return nil, offerr.New(offerr.ErrCodeCorruptIndex, "local index is corrupted", validErr).
			WithDetail("index", name).
			WithSuggestion("Rebuild the index")
	}

	bi, err := bleve.Open(path)
	if err != nil {
		return nil, offerr.New(offerr.ErrCodeCorruptIndex, "cannot open local index", err).WithDetail("index", name)
	}
	idx := &bleveIndex{index: bi, path: path}
	e.indexes[name] = idx
	return idx, nil
}

// slot returns the (possibly empty) handle slot for name, creating it.
func (e *BleveEngine) slot(name, path string) (*bleveIndex, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("engine is closed")
	}
	idx, ok := e.indexes[name]
	if !ok {
		idx = &bleveIndex{path: path}
		e.indexes[name] = idx
	}
	return idx, nil
}

// Build implements Engine. Documents are written to a fresh directory that
// replaces the live one only after the batch succeeds.
func (e *BleveEngine) Build(ctx context.Context, indexName string, src Source) (BuildStats, error) {
	start := time.Now()
	stats := BuildStats{Index: indexName, Backend: BackendBleve}

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

	final := filepath.Join(dir, BleveDirName)
	staging := final + ".tmp"
	_ = os.RemoveAll(staging)

	n, err := e.write(ctx, staging, docs)
	if err != nil {
		_ = os.RemoveAll(staging)
		if ctx.Err() != nil {
			return stats, offerr.Cancelled("build "+indexName, err)
		}
		return stats, offerr.EngineError(offerr.ErrCodeEngineBuild, indexName, err)
	}

	idx, err := e.slot(indexName, final)
	if err != nil {
		_ = os.RemoveAll(staging)
		return stats, offerr.EngineError(offerr.ErrCodeEngineBuild, indexName, err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.index != nil {
		_ = idx.index.Close()
		idx.index = nil
	}
	bi, err := swapIndexDir(staging, final)
	if err != nil {
		if old, reopenErr := bleve.Open(final); reopenErr == nil {
			idx.index = old
		}
		return stats, offerr.EngineError(offerr.ErrCodeEngineBuild, indexName, err)
	}
	idx.index = bi

	stats.Documents = n
	stats.Duration = time.Since(start)
	e.logger.Info("bleve_index_built",
		slog.String("index", indexName),
		slog.Int("documents", n),
		slog.Duration("took", stats.Duration))
	return stats, nil
}

// swapIndexDir replaces final with staging and opens it. The previous
// index is moved aside first and put back if the new one cannot be
// installed or opened.
func swapIndexDir(staging, final string) (bleve.Index, error) {
	backup := final + ".old"
	_ = os.RemoveAll(backup)

	hadPrevious := true
	if err := os.Rename(final, backup); err != nil {
		if !os.IsNotExist(err) {
			_ = os.RemoveAll(staging)
			return nil, fmt.Errorf("move previous index aside: %w", err)
		}
		hadPrevious = false
	}
	restore := func() {
		if hadPrevious {
			_ = os.RemoveAll(final)
			_ = os.Rename(backup, final)
		}
	}

	if err := os.Rename(staging, final); err != nil {
		_ = os.RemoveAll(staging)
		restore()
		return nil, fmt.Errorf("install index: %w", err)
	}
	bi, err := bleve.Open(final)
	if err != nil {
		restore()
		return nil, fmt.Errorf("reopen index: %w", err)
	}
	_ = os.RemoveAll(backup)
	return bi, nil
}

// write creates a closed bleve index at path holding docs and returns the
// number of distinct documents.
func (e *BleveEngine) write(ctx context.Context, path string, docs []Document) (int, error) {
	im, err := e.indexMapping()
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}
	bi, err := bleve.New(path, im)
	if err != nil {
		return 0, fmt.Errorf("failed to create index: %w", err)
	}

	seen := make(map[string]struct{}, len(docs))
	batch := bi.NewBatch()
	for i, doc := range docs {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				_ = bi.Close()
				return 0, err
			}
		}
		body, err := json.Marshal(doc.Fields)
		if err != nil {
			_ = bi.Close()
			return 0, fmt.Errorf("failed to encode document %s: %w", doc.ID, err)
		}
		bd := bleveDocument{Content: FlattenText(doc.Fields), Body: string(body)}
		if err := batch.Index(doc.ID, bd); err != nil {
			_ = bi.Close()
			return 0, fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
		seen[doc.ID] = struct{}{}
	}
	if err := bi.Batch(batch); err != nil {
		_ = bi.Close()
		return 0, fmt.Errorf("failed to execute batch: %w", err)
	}
	if err := bi.Close(); err != nil {
		return 0, fmt.Errorf("failed to close index: %w", err)
	}
	return len(seen), nil
}

// Search implements Engine. An empty query matches every document.
func (e *BleveEngine) Search(ctx context.Context, indexName string, q Query) (*SearchResults, error) {
	start := time.Now()
	if err := e.requireInit("search"); err != nil {
		return nil, err
	}
	q = q.Normalize(e.opts.DefaultLimit)

	idx, err := e.open(indexName)
	if err != nil {
		if _, ok := offerr.As(err); ok {
			return nil, err
		}
		return nil, offerr.EngineError(offerr.ErrCodeEngineSearch, indexName, err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	res := &SearchResults{Index: indexName, Query: q.Text, Hits: []Hit{}, Backend: BackendBleve}
	if idx.index == nil {
		return nil, offerr.New(offerr.ErrCodeIndexMissing, "index has not been built yet", nil).WithDetail("index", indexName)
	}

	var bq query.Query
	if strings.TrimSpace(q.Text) == "" {
		bq = bleve.NewMatchAllQuery()
	} else {
		if len(e.analyze(q.Text)) == 0 {
			res.Took = time.Since(start)
			return res, nil
		}
		mq := bleve.NewMatchQuery(q.Text)
		mq.SetField("content")
		mq.Analyzer = RecordAnalyzerName
		mq.SetOperator(query.MatchQueryOperatorAnd)
		bq = mq
	}

	req := bleve.NewSearchRequestOptions(bq, q.Limit, q.Offset, false)
	req.Fields = []string{"body"}
	req.IncludeLocations = true
	if strings.TrimSpace(q.Text) == "" {
		req.SortBy([]string{"_id"})
	}

	result, err := idx.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, offerr.EngineError(offerr.ErrCodeEngineSearch, indexName, err)
	}

	res.Total = int(result.Total)
	for _, h := range result.Hits {
		hit := Hit{ID: h.ID, Score: h.Score, MatchedTerms: extractMatchedTerms(h)}
		if body, ok := h.Fields["body"].(string); ok {
			if err := json.Unmarshal([]byte(body), &hit.Fields); err != nil {
				return nil, offerr.EngineError(offerr.ErrCodeEngineSearch, indexName,
					fmt.Errorf("document %s has invalid body: %w", h.ID, err))
			}
		}
		res.Hits = append(res.Hits, hit)
	}
	res.Took = time.Since(start)
	return res, nil
}

// extractMatchedTerms returns the sorted terms that matched in content.
func extractMatchedTerms(hit *search.DocumentMatch) []string {
	terms := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field == "content" {
			for term := range locations {
				terms[term] = struct{}{}
			}
		}
	}
	if len(terms) == 0 {
		return nil
	}
	out := make([]string, 0, len(terms))
	for term := range terms {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

// Close implements Engine.
func (e *BleveEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var firstErr error
	for name, idx := range e.indexes {
		idx.mu.Lock()
		if idx.index != nil {
			if err := idx.index.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("close %s: %w", name, err)
			}
			idx.index = nil
		}
		idx.mu.Unlock()
	}
	e.indexes = nil
	return firstErr
}

func recordTokenizerConstructor(config map[string]any, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &recordTokenizer{}, nil
}

// recordTokenizer adapts Tokenize to analysis.Tokenizer.
type recordTokenizer struct{}

func (t *recordTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	lower := strings.ToLower(text)
	tokens := Tokenize(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	offset := 0
	for i, token := range tokens {
		start := strings.Index(lower[offset:], token)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		if start > len(text) {
			start = len(text)
		}
		end := start + len(token)
		if end > len(text) {
			end = len(text)
		}
		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return result
}

// recordStopFilterConstructor reads "stop_words" from config. The list is
// stored in the index mapping, so a reopened index keeps the words it was
// built with.
func recordStopFilterConstructor(config map[string]any, cache *registry.Cache) (analysis.TokenFilter, error) {
	words := DefaultStopWords
	switch raw := config["stop_words"].(type) {
	case nil:
	case []string:
		words = raw
	case []any:
		words = make([]string, 0, len(raw))
		for _, w := range raw {
			str, ok := w.(string)
			if !ok {
				return nil, fmt.Errorf("stop_words must be strings, got %T", w)
			}
			words = append(words, str)
		}
	default:
		return nil, fmt.Errorf("stop_words must be a list, got %T", raw)
	}
	return &recordStopFilter{stopWords: BuildStopWordMap(words)}, nil
}

type recordStopFilter struct {
	stopWords map[string]struct{}
}

func (f *recordStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		if _, isStop := f.stopWords[string(token.Term)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
