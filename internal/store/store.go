// Package store persists finished chunk records.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docchunk/internal/document"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown store backend")

// ErrInvalidDocumentID is returned for ids that are unsafe as a path
// segment or storage key.
var ErrInvalidDocumentID = errors.New("invalid document id")

var docIDRe = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidateDocumentID accepts 1-128 characters from [A-Za-z0-9._-], other
// than "." and "..".
func ValidateDocumentID(id string) error {
	if id == "." || id == ".." || !docIDRe.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidDocumentID, id)
	}
	return nil
}

// Record is one enriched chunk ready for persistence.
type Record struct {
	ID                string               `json:"id"`
	DocID             string               `json:"doc_id"`
	Source            string               `json:"source_file"`
	Title             string               `json:"title,omitempty"`
	Content           string               `json:"content"`
	HeaderPath        string               `json:"header_path"`
	LineRanges        []document.LineRange `json:"line_ranges"`
	ChunkIndex        int                  `json:"chunk_index"`
	TotalChunksInFile int                  `json:"total_chunks_in_file"`
	GlobalIndex       int                  `json:"global_chunk_index"`
	Summary           string               `json:"summary"`
	Questions         []string             `json:"hypothetical_questions"`
	Keywords          []string             `json:"keywords"`
	Embedding         []float32            `json:"embedding,omitempty"`
	TokenEstimate     int                  `json:"token_estimate"`
	CreatedAt         time.Time            `json:"created_at"`
}

// DocumentMeta describes a processed document.
type DocumentMeta struct {
	DocID       string    `json:"doc_id"`
	Source      string    `json:"source_file"`
	Title       string    `json:"title,omitempty"`
	ContentHash string    `json:"content_hash"`
	TotalChunks int       `json:"total_chunks"`
	CreatedAt   time.Time `json:"created_at"`
}

// Sink receives finished records. Implementations must accept concurrent
// calls.
type Sink interface {
	SaveDocument(ctx context.Context, meta DocumentMeta) error
	Save(ctx context.Context, rec Record) error
	Close() error
}

// Catalog is implemented by sinks that can answer questions about what they
// hold.
type Catalog interface {
	FindByHash(ctx context.Context, contentHash string) (docID string, found bool, err error)
	ListDocuments(ctx context.Context) ([]DocumentMeta, error)
	DeleteDocument(ctx context.Context, docID string) (int, error)
}

var recordNamespace = uuid.MustParse("6f1c6f2e-3b7a-4c55-9d0e-1f6a0c2b9e41")

// RecordID is stable for a given document and chunk position, so reruns
// overwrite rather than duplicate.
func RecordID(docID string, chunkIndex int) string {
	return uuid.NewSHA1(recordNamespace, fmt.Appendf(nil, "%s#%d", docID, chunkIndex)).String()
}

// DocumentID derives a stable id from a source path.
func DocumentID(source string) string {
	return uuid.NewSHA1(recordNamespace, []byte(source)).String()
}

// Options selects and configures a backend.
type Options struct {
	Backend         string // json, sqlite or pathstore
	ChunksDir       string
	PerDocument     bool // json only: one directory per document
	SQLitePath      string
	PathstoreURL    string
	PathstoreAPIKey string
	PathstoreRoot   string
}

// Open constructs the sink named by opts.Backend.
func Open(opts Options) (Sink, error) {
	switch opts.Backend {
	case "", "json":
		if opts.PerDocument {
			return NewJSONDirPerDocument(opts.ChunksDir)
		}
		return NewJSONDir(opts.ChunksDir)
	case "sqlite":
		return OpenSQLite(opts.SQLitePath)
	case "pathstore":
		return NewPathstore(opts.PathstoreURL, opts.PathstoreAPIKey, opts.PathstoreRoot), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
