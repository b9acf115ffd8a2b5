package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docchunk/internal/document"
)

func sampleRecord(docID string, chunk, global int) Record {
	return Record{
		ID:                RecordID(docID, chunk),
		DocID:             docID,
		Source:            "papers/a.md",
		Content:           "Soil <pH> & yield.",
		HeaderPath:        "Results > Yield",
		LineRanges:        []document.LineRange{{Start: 3, End: 5}},
		ChunkIndex:        chunk,
		TotalChunksInFile: 2,
		GlobalIndex:       global,
		Summary:           "Yield tracks pH.",
		Questions:         []string{"What drives yield?"},
		Keywords:          []string{"soil", "pH"},
		Embedding:         []float32{0.25, -1.5, 3},
		TokenEstimate:     4,
		CreatedAt:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestIDsAreStable(t *testing.T) {
	assert.Equal(t, RecordID("doc", 1), RecordID("doc", 1))
	assert.NotEqual(t, RecordID("doc", 1), RecordID("doc", 2))
	assert.Equal(t, DocumentID("a.md"), DocumentID("a.md"))
	assert.NotEqual(t, DocumentID("a.md"), DocumentID("b.md"))
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "weaviate"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestJSONDir(t *testing.T) {
	dir := t.TempDir()
	sink, err := Open(Options{Backend: "json", ChunksDir: dir})
	require.NoError(t, err)
	j := sink.(*JSONDir)
	ctx := context.Background()

	require.NoError(t, j.SaveDocument(ctx, DocumentMeta{DocID: "d1", Source: "papers/a.md", ContentHash: "h1", TotalChunks: 2}))
	require.NoError(t, j.Save(ctx, sampleRecord("d1", 0, 0)))
	require.NoError(t, j.Save(ctx, sampleRecord("d1", 1, 1)))
	require.NoError(t, j.SaveDocument(ctx, DocumentMeta{DocID: "d2", Source: "papers/b.md", ContentHash: "h2", TotalChunks: 1}))
	require.NoError(t, j.Save(ctx, sampleRecord("d2", 0, 2)))

	raw, err := os.ReadFile(filepath.Join(dir, "chunk_001.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"global_chunk_index": 0`)
	assert.Contains(t, string(raw), `"line_ranges": [`)
	assert.Contains(t, string(raw), "Soil <pH> & yield.", "html characters are not escaped")
	assert.FileExists(t, filepath.Join(dir, "chunk_003.json"))

	docID, found, err := j.FindByHash(ctx, "h2")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "d2", docID)

	docs, err := j.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "papers/a.md", docs[0].Source)

	n, err := j.DeleteDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoFileExists(t, filepath.Join(dir, "chunk_001.json"))
	assert.FileExists(t, filepath.Join(dir, "chunk_003.json"))

	_, found, err = j.FindByHash(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, j.Close())
}

func TestSQLite(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.SaveDocument(ctx, DocumentMeta{DocID: "d1", Source: "papers/a.md", ContentHash: "h1", TotalChunks: 2, CreatedAt: time.Now()}))
	first := sampleRecord("d1", 0, 0)
	require.NoError(t, db.Save(ctx, first))
	second := sampleRecord("d1", 1, 1)
	second.Questions = nil
	second.Embedding = nil
	require.NoError(t, db.Save(ctx, second))

	// Saving the same record again replaces it.
	first.Summary = "Updated."
	require.NoError(t, db.Save(ctx, first))

	recs, err := db.Chunks(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Updated.", recs[0].Summary)
	assert.Equal(t, []float32{0.25, -1.5, 3}, recs[0].Embedding)
	assert.Equal(t, []document.LineRange{{Start: 3, End: 5}}, recs[0].LineRanges)
	assert.True(t, first.CreatedAt.Equal(recs[0].CreatedAt))
	assert.Empty(t, recs[1].Questions)
	assert.Nil(t, recs[1].Embedding)

	docID, found, err := db.FindByHash(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "d1", docID)

	docs, err := db.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 2, docs[0].TotalChunks)

	n, err := db.DeleteDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, found, err = db.FindByHash(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{1, -0.5, 1e-7}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
	assert.Nil(t, encodeVector(nil))
	assert.Nil(t, decodeVector([]byte{1, 2}))
}

func TestJSONDirPerDocument(t *testing.T) {
	dir := t.TempDir()
	sink, err := Open(Options{Backend: "json", ChunksDir: dir, PerDocument: true})
	require.NoError(t, err)
	ctx := context.Background()

	// Both records carry global index 0, as independent runs would.
	require.NoError(t, sink.Save(ctx, sampleRecord("d1", 0, 0)))
	require.NoError(t, sink.Save(ctx, sampleRecord("d2", 0, 0)))
	assert.FileExists(t, filepath.Join(dir, "d1", "chunk_001.json"))
	assert.FileExists(t, filepath.Join(dir, "d2", "chunk_001.json"))

	n, err := sink.(Catalog).DeleteDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoDirExists(t, filepath.Join(dir, "d1"))
	assert.FileExists(t, filepath.Join(dir, "d2", "chunk_001.json"))
}

func TestValidateDocumentID(t *testing.T) {
	for _, id := range []string{"d1", "a1b2c3d4e5f60718", "report_v2.final", "6f1c6f2e-3b7a-4c55-9d0e-1f6a0c2b9e41"} {
		assert.NoError(t, ValidateDocumentID(id), id)
	}
	for _, id := range []string{"", ".", "..", "../outside", "a/b", `a\b`, "has space", strings.Repeat("x", 129)} {
		assert.ErrorIs(t, ValidateDocumentID(id), ErrInvalidDocumentID, id)
	}
}

func TestJSONDirRejectsUnsafeDocumentIDs(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "chunks")
	j, err := NewJSONDirPerDocument(dir)
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"../../escaped", "../outside", ".."} {
		assert.ErrorIs(t, j.Save(ctx, sampleRecord(id, 0, 0)), ErrInvalidDocumentID, id)
		assert.ErrorIs(t, j.SaveDocument(ctx, DocumentMeta{DocID: id}), ErrInvalidDocumentID, id)
		_, err := j.DeleteDocument(ctx, id)
		assert.ErrorIs(t, err, ErrInvalidDocumentID, id)
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1, "nothing may be written beside the chunks dir")
	assert.Equal(t, "chunks", entries[0].Name())
}

func TestJSONDirResetClearsFlatChunks(t *testing.T) {
	dir := t.TempDir()
	j, err := NewJSONDir(dir)
	require.NoError(t, err)
	ctx := context.Background()

	for i := range 3 {
		require.NoError(t, j.Save(ctx, sampleRecord("d1", i, i)))
	}
	require.NoError(t, j.SaveDocument(ctx, DocumentMeta{DocID: "d1", Source: "a.md"}))

	n, err := j.Reset()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	left, err := filepath.Glob(filepath.Join(dir, "chunk_*.json"))
	require.NoError(t, err)
	assert.Empty(t, left)

	// A shorter rerun leaves no files from the earlier one.
	require.NoError(t, j.Save(ctx, sampleRecord("d1", 0, 0)))
	left, err = filepath.Glob(filepath.Join(dir, "chunk_*.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "chunk_001.json")}, left)
}

func TestJSONDirResetKeepsPerDocumentLayout(t *testing.T) {
	dir := t.TempDir()
	j, err := NewJSONDirPerDocument(dir)
	require.NoError(t, err)
	require.NoError(t, j.Save(context.Background(), sampleRecord("d1", 0, 0)))

	n, err := j.Reset()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.FileExists(t, filepath.Join(dir, "d1", "chunk_001.json"))
}
