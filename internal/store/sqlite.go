package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite" // pure Go driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id       TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL,
	total_chunks INTEGER NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);

CREATE TABLE IF NOT EXISTS chunks (
	id                   TEXT PRIMARY KEY,
	doc_id               TEXT NOT NULL,
	source               TEXT NOT NULL,
	title                TEXT NOT NULL DEFAULT '',
	content              TEXT NOT NULL,
	header_path          TEXT NOT NULL,
	line_ranges          TEXT NOT NULL,
	chunk_index          INTEGER NOT NULL,
	total_chunks_in_file INTEGER NOT NULL,
	global_chunk_index   INTEGER NOT NULL,
	summary              TEXT NOT NULL,
	questions            TEXT NOT NULL,
	keywords             TEXT NOT NULL,
	embedding            BLOB,
	token_estimate       INTEGER NOT NULL,
	created_at           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id, chunk_index);
`

// SQLite stores documents and chunks in a single database file.
// Embeddings are little-endian float32 blobs.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "docchunk.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; WAL lets readers proceed alongside it.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) SaveDocument(ctx context.Context, meta DocumentMeta) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (doc_id, source, title, content_hash, total_chunks, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			source = excluded.source,
			title = excluded.title,
			content_hash = excluded.content_hash,
			total_chunks = excluded.total_chunks,
			created_at = excluded.created_at`,
		meta.DocID, meta.Source, meta.Title, meta.ContentHash, meta.TotalChunks, meta.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save document %s: %w", meta.DocID, err)
	}
	return nil
}

func (s *SQLite) Save(ctx context.Context, rec Record) error {
	ranges, err := json.Marshal(rec.LineRanges)
	if err != nil {
		return fmt.Errorf("encode line ranges: %w", err)
	}
	questions, err := json.Marshal(nonNil(rec.Questions))
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	keywords, err := json.Marshal(nonNil(rec.Keywords))
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO chunks (
			id, doc_id, source, title, content, header_path, line_ranges,
			chunk_index, total_chunks_in_file, global_chunk_index,
			summary, questions, keywords, embedding, token_estimate, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DocID, rec.Source, rec.Title, rec.Content, rec.HeaderPath, string(ranges),
		rec.ChunkIndex, rec.TotalChunksInFile, rec.GlobalIndex,
		rec.Summary, string(questions), string(keywords), encodeVector(rec.Embedding),
		rec.TokenEstimate, rec.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save chunk %s: %w", rec.ID, err)
	}
	return nil
}

// Chunks returns a document's records in chunk order.
func (s *SQLite) Chunks(ctx context.Context, docID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_id, source, title, content, header_path, line_ranges,
			chunk_index, total_chunks_in_file, global_chunk_index,
			summary, questions, keywords, embedding, token_estimate, created_at
		FROM chunks WHERE doc_id = ? ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec                         Record
			ranges, questions, keywords string
			embedding                   []byte
			created                     string
		)
		if err := rows.Scan(&rec.ID, &rec.DocID, &rec.Source, &rec.Title, &rec.Content, &rec.HeaderPath, &ranges,
			&rec.ChunkIndex, &rec.TotalChunksInFile, &rec.GlobalIndex,
			&rec.Summary, &questions, &keywords, &embedding, &rec.TokenEstimate, &created); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if err := errors.Join(
			json.Unmarshal([]byte(ranges), &rec.LineRanges),
			json.Unmarshal([]byte(questions), &rec.Questions),
			json.Unmarshal([]byte(keywords), &rec.Keywords),
		); err != nil {
			return nil, fmt.Errorf("decode chunk %s: %w", rec.ID, err)
		}
		rec.Embedding = decodeVector(embedding)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) FindByHash(ctx context.Context, contentHash string) (string, bool, error) {
	var docID string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc_id FROM documents WHERE content_hash = ? LIMIT 1`, contentHash).Scan(&docID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find by hash: %w", err)
	}
	return docID, true, nil
}

func (s *SQLite) ListDocuments(ctx context.Context) ([]DocumentMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, source, title, content_hash, total_chunks, created_at
		FROM documents ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []DocumentMeta{}
	for rows.Next() {
		var (
			meta    DocumentMeta
			created string
		)
		if err := rows.Scan(&meta.DocID, &meta.Source, &meta.Title, &meta.ContentHash, &meta.TotalChunks, &created); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		meta.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		docs = append(docs, meta)
	}
	return docs, rows.Err()
}

func (s *SQLite) DeleteDocument(ctx context.Context, docID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ?`, docID); err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLite) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
