package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// JSONDir writes one pretty-printed file per chunk, chunk_001.json onward
// by global index, plus documents/<doc_id>.json per document. In
// per-document layout chunks go to <doc_id>/chunk_001.json by per-file
// index instead, so independent runs never share a file name.
type JSONDir struct {
	dir    string
	perDoc bool
}

func NewJSONDir(dir string) (*JSONDir, error) {
	return newJSONDir(dir, false)
}

// NewJSONDirPerDocument uses the per-document layout.
func NewJSONDirPerDocument(dir string) (*JSONDir, error) {
	return newJSONDir(dir, true)
}

func newJSONDir(dir string, perDoc bool) (*JSONDir, error) {
	if dir == "" {
		dir = "chunks"
	}
	if err := os.MkdirAll(filepath.Join(dir, "documents"), 0o755); err != nil {
		return nil, fmt.Errorf("create chunks dir: %w", err)
	}
	return &JSONDir{dir: dir, perDoc: perDoc}, nil
}

// ChunkPath returns the file rec lands in.
func (j *JSONDir) ChunkPath(rec Record) string {
	if j.perDoc {
		return filepath.Join(j.dir, rec.DocID, fmt.Sprintf("chunk_%03d.json", rec.ChunkIndex+1))
	}
	return filepath.Join(j.dir, fmt.Sprintf("chunk_%03d.json", rec.GlobalIndex+1))
}

func (j *JSONDir) Save(_ context.Context, rec Record) error {
	if j.perDoc {
		if err := ValidateDocumentID(rec.DocID); err != nil {
			return err
		}
	}
	path := j.ChunkPath(rec)
	if j.perDoc {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create document dir: %w", err)
		}
	}
	return writeJSON(path, rec)
}

func (j *JSONDir) SaveDocument(_ context.Context, meta DocumentMeta) error {
	if err := ValidateDocumentID(meta.DocID); err != nil {
		return err
	}
	return writeJSON(j.docPath(meta.DocID), meta)
}

func (j *JSONDir) docPath(docID string) string {
	return filepath.Join(j.dir, "documents", docID+".json")
}

func (j *JSONDir) Close() error { return nil }

func (j *JSONDir) FindByHash(ctx context.Context, contentHash string) (string, bool, error) {
	docs, err := j.ListDocuments(ctx)
	if err != nil {
		return "", false, err
	}
	for _, d := range docs {
		if d.ContentHash == contentHash {
			return d.DocID, true, nil
		}
	}
	return "", false, nil
}

func (j *JSONDir) ListDocuments(_ context.Context) ([]DocumentMeta, error) {
	paths, err := filepath.Glob(filepath.Join(j.dir, "documents", "*.json"))
	if err != nil {
		return nil, err
	}
	docs := make([]DocumentMeta, 0, len(paths))
	for _, p := range paths {
		var meta DocumentMeta
		if err := readJSON(p, &meta); err != nil {
			return nil, err
		}
		docs = append(docs, meta)
	}
	sort.Slice(docs, func(a, b int) bool { return docs[a].Source < docs[b].Source })
	return docs, nil
}

// DeleteDocument removes the document's meta and every chunk file that
// belongs to it.
func (j *JSONDir) DeleteDocument(_ context.Context, docID string) (int, error) {
	if err := ValidateDocumentID(docID); err != nil {
		return 0, err
	}
	pattern := filepath.Join(j.dir, "chunk_*.json")
	if j.perDoc {
		pattern = filepath.Join(j.dir, docID, "chunk_*.json")
	}
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, p := range paths {
		var rec struct {
			DocID string `json:"doc_id"`
		}
		if err := readJSON(p, &rec); err != nil {
			return deleted, err
		}
		if rec.DocID != docID {
			continue
		}
		if err := os.Remove(p); err != nil {
			return deleted, fmt.Errorf("remove %s: %w", p, err)
		}
		deleted++
	}
	if err := os.Remove(j.docPath(docID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return deleted, fmt.Errorf("remove document meta: %w", err)
	}
	if j.perDoc {
		// Only succeeds once the directory is empty.
		_ = os.Remove(filepath.Join(j.dir, docID))
	}
	return deleted, nil
}

// Reset removes the flat-layout chunk files left by an earlier run, whose
// global numbering no longer applies. It returns the number removed and is
// a no-op in per-document layout.
func (j *JSONDir) Reset() (int, error) {
	if j.perDoc {
		return 0, nil
	}
	paths, err := filepath.Glob(filepath.Join(j.dir, "chunk_*.json"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", p, err)
		}
		removed++
	}
	return removed, nil
}

func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", strings.TrimPrefix(path, "./"), err)
	}
	return nil
}
