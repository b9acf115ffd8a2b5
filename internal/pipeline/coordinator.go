package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docchunk/internal/chunker"
	"github.com/dgallion1/docchunk/internal/document"
	"github.com/dgallion1/docchunk/internal/metrics"
	"github.com/dgallion1/docchunk/internal/store"
)

// ErrNoDocuments is returned when a run is given nothing to process.
var ErrNoDocuments = errors.New("no documents to process")

// DefaultMaxConcurrentDocs bounds how many documents are chunked at once.
const DefaultMaxConcurrentDocs = 4

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Chunker           *chunker.Chunker
	Enricher          *Enricher
	Sink              store.Sink
	Metrics           *metrics.Metrics
	Log               *slog.Logger
	MaxConcurrentDocs int
}

// Coordinator runs documents through chunking, enrichment and persistence.
type Coordinator struct {
	chunker  *chunker.Chunker
	enricher *Enricher
	sink     store.Sink
	metrics  *metrics.Metrics
	log      *slog.Logger
	maxDocs  int
}

func NewCoordinator(d Deps) *Coordinator {
	log := d.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	maxDocs := d.MaxConcurrentDocs
	if maxDocs <= 0 {
		maxDocs = DefaultMaxConcurrentDocs
	}
	return &Coordinator{
		chunker:  d.Chunker,
		enricher: d.Enricher,
		sink:     d.Sink,
		metrics:  d.Metrics,
		log:      log,
		maxDocs:  maxDocs,
	}
}

// RunOptions customise a single run.
type RunOptions struct {
	// Failures receives failure records. A fresh log is used when nil.
	Failures *FailureLog

	// OnChunked is called once chunking is finished with the chunk total.
	OnChunked func(total int)
	// OnProgress is called after every enrichment wave.
	OnProgress func(done, total int)
	// OnStored is called after every successful record write.
	OnStored func()
}

// Summary reports what a run did.
type Summary struct {
	Documents       int             `json:"documents"`
	DocumentsFailed int             `json:"documents_failed"`
	Chunks          int             `json:"chunks"`
	Enriched        int             `json:"enriched"`
	Failed          int             `json:"failed"`
	Stored          int             `json:"stored"`
	Failures        []FailureRecord `json:"failures"`
}

func (c *Coordinator) Run(ctx context.Context, docs []document.Document) (Summary, error) {
	return c.RunWith(ctx, docs, RunOptions{})
}

// RunWith processes docs in order. Only ErrNoDocuments and context
// cancellation are returned as errors; everything else is recorded in the
// summary.
func (c *Coordinator) RunWith(ctx context.Context, docs []document.Document, opts RunOptions) (Summary, error) {
	if len(docs) == 0 {
		return Summary{}, ErrNoDocuments
	}
	failures := opts.Failures
	if failures == nil {
		failures = NewFailureLog()
	}

	sum := Summary{Documents: len(docs)}

	chunked, chunkErrs := c.chunkAll(ctx, docs)
	if err := ctx.Err(); err != nil {
		return sum, err
	}

	now := time.Now().UTC()
	var (
		records []store.Record
		items   []Item
		metas   []store.DocumentMeta
		docOf   []int // record position to metas index
	)
	for i, doc := range docs {
		if chunkErrs[i] != nil {
			sum.DocumentsFailed++
			failures.Append(NewFailure(StageDocument, -1, doc.Source, "", doc.Text, chunkErrs[i]))
			c.metrics.Document("failed")
			continue
		}
		c.metrics.Document("processed")

		docID := doc.ID
		if docID == "" {
			docID = store.DocumentID(doc.Source)
		}
		chunks := chunked[i]
		c.metrics.Chunks(len(chunks))

		metas = append(metas, store.DocumentMeta{
			DocID:       docID,
			Source:      doc.Source,
			Title:       doc.Title,
			ContentHash: ContentHashHex([]byte(doc.Text)),
			TotalChunks: len(chunks),
			CreatedAt:   now,
		})

		for j, ch := range chunks {
			global := len(records)
			records = append(records, store.Record{
				ID:                store.RecordID(docID, j),
				DocID:             docID,
				Source:            doc.Source,
				Title:             doc.Title,
				Content:           ch.Content,
				HeaderPath:        ch.HeaderPath,
				LineRanges:        ch.LineRanges,
				ChunkIndex:        j,
				TotalChunksInFile: len(chunks),
				GlobalIndex:       global,
				TokenEstimate:     chunker.EstimateTokens(ch.Content),
				CreatedAt:         now,
			})
			docOf = append(docOf, len(metas)-1)
			items = append(items, Item{
				Index:      global,
				Source:     doc.Source,
				HeaderPath: ch.HeaderPath,
				Text:       ch.Content,
			})
		}
	}
	sum.Chunks = len(records)
	if opts.OnChunked != nil {
		opts.OnChunked(len(records))
	}
	c.log.Info("chunking complete", "documents", len(docs), "failed", sum.DocumentsFailed, "chunks", len(records))

	var stored atomic.Int64
	docStored := make([]atomic.Int64, len(metas))
	results := c.enricher.Enrich(ctx, items, failures, EnrichHooks{
		OnProgress: opts.OnProgress,
		OnItem: func(pos int, res Result) {
			rec := records[pos]
			rec.Summary = res.Metadata.Summary
			rec.Questions = res.Metadata.Questions
			rec.Keywords = res.Metadata.Keywords
			rec.Embedding = res.Embedding

			err := c.sink.Save(ctx, rec)
			c.metrics.StoreWrite(err)
			if err != nil {
				c.log.Error("chunk write failed", "chunk_index", rec.GlobalIndex, "source", rec.Source, "error", err)
				failures.Append(NewFailure(StageStore, rec.GlobalIndex, rec.Source, rec.HeaderPath, rec.Content, fmt.Errorf("save: %w", err)))
				return
			}
			stored.Add(1)
			docStored[docOf[pos]].Add(1)
			if opts.OnStored != nil {
				opts.OnStored()
			}
		},
	})

	for _, r := range results {
		if r.Err != nil {
			sum.Failed++
		} else {
			sum.Enriched++
		}
	}
	sum.Stored = int(stored.Load())

	// A document enters the catalog, and so the dedup index, only once it
	// has at least one stored record.
	for i, meta := range metas {
		if docStored[i].Load() == 0 {
			c.log.Warn("document not registered, no records stored", "source", meta.Source, "doc_id", meta.DocID)
			continue
		}
		if err := c.sink.SaveDocument(ctx, meta); err != nil {
			c.log.Error("document meta write failed", "source", meta.Source, "error", err)
			failures.Append(NewFailure(StageStore, -1, meta.Source, "", meta.Title, fmt.Errorf("save document: %w", err)))
		}
	}
	sum.Failures = failures.Snapshot()

	c.log.Info("run complete",
		"documents", sum.Documents,
		"documents_failed", sum.DocumentsFailed,
		"chunks", sum.Chunks,
		"enriched", sum.Enriched,
		"failed", sum.Failed,
		"stored", sum.Stored,
	)
	for _, f := range sum.Failures {
		c.log.Warn("failed item",
			"stage", f.Stage,
			"chunk_index", f.Index,
			"source", f.Source,
			"header_path", f.HeaderPath,
			"preview", f.Preview,
			"error", f.Error,
		)
	}
	return sum, ctx.Err()
}

// chunkAll chunks every document with bounded concurrency. Results keep the
// input order.
func (c *Coordinator) chunkAll(ctx context.Context, docs []document.Document) ([][]document.Chunk, []error) {
	chunks := make([][]document.Chunk, len(docs))
	errs := make([]error, len(docs))

	var g errgroup.Group
	g.SetLimit(c.maxDocs)
	for i, doc := range docs {
		g.Go(func() error {
			out, err := c.chunker.Chunk(ctx, doc.Text)
			if err != nil {
				c.log.Error("chunking failed", "source", doc.Source, "error", err)
				errs[i] = fmt.Errorf("chunk %s: %w", doc.Source, err)
				return nil
			}
			chunks[i] = out
			return nil
		})
	}
	_ = g.Wait()
	return chunks, errs
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
