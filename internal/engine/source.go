package engine

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	offerr "github.com/Aman-CERP/offsearch/internal/errors"
)

// Source yields the documents a build indexes.
type Source interface {
	// Documents reads every document of the source.
	Documents(ctx context.Context) ([]Document, error)

	// Describe returns a short human-readable origin, for logs.
	Describe() string
}

// SliceSource is an in-memory Source.
type SliceSource []Document

// Documents returns the slice, assigning IDs to documents that lack one.
func (s SliceSource) Documents(ctx context.Context) ([]Document, error) {
	out := make([]Document, len(s))
	for i, d := range s {
		if d.ID == "" {
			d.ID = contentID(d.Fields)
		}
		out[i] = d
	}
	return out, nil
}

// Describe implements Source.
func (s SliceSource) Describe() string {
	return fmt.Sprintf("memory (%d documents)", len(s))
}

// FileSource reads a JSON array or newline-delimited JSON file of objects.
// Each object's "objectID" becomes the document ID; objects without one get
// an ID derived from their content.
type FileSource struct {
	Path string
}

// NewFileSource returns a FileSource for an absolute form of path.
func NewFileSource(path string) FileSource {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return FileSource{Path: path}
}

// Describe implements Source.
func (s FileSource) Describe() string {
	return s.Path
}

// Documents implements Source.
func (s FileSource) Documents(ctx context.Context) ([]Document, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, offerr.New(offerr.ErrCodeSourceRead, "cannot read source file", err).
			WithDetail("path", s.Path)
	}
	docs, err := ParseDocuments(ctx, data)
	if err != nil {
		return nil, offerr.New(offerr.ErrCodeSourceRead, "cannot parse source file", err).
			WithDetail("path", s.Path)
	}
	return docs, nil
}

// ParseDocuments decodes a JSON array of objects, or one object per line.
func ParseDocuments(ctx context.Context, data []byte) ([]Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []Document{}, nil
	}

	var objects []map[string]any
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &objects); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
	} else {
		var err error
		objects, err = parseNDJSON(ctx, trimmed)
		if err != nil {
			return nil, err
		}
	}

	docs := make([]Document, 0, len(objects))
	for _, obj := range objects {
		docs = append(docs, toDocument(obj))
	}
	return docs, nil
}

func parseNDJSON(ctx context.Context, data []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bufio.NewReader(bytes.NewReader(data)))
	var objects []map[string]any
	for line := 1; ; line++ {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var obj map[string]any
		err := dec.Decode(&obj)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid JSON object #%d: %w", line, err)
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

func toDocument(obj map[string]any) Document {
	var id string
	switch v := obj["objectID"].(type) {
	case string:
		id = v
	case float64:
		id = fmt.Sprintf("%g", v)
	}
	delete(obj, "objectID")
	if id == "" {
		id = contentID(obj)
	}
	return Document{ID: id, Fields: obj}
}

// contentID derives a stable ID from the JSON encoding of fields.
// encoding/json sorts map keys, so equal maps produce equal IDs.
func contentID(fields map[string]any) string {
	data, _ := json.Marshal(fields)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
