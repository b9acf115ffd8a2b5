package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/docchunk/internal/document"
	"github.com/dgallion1/docchunk/internal/parser"
	"github.com/dgallion1/docchunk/internal/store"
)

// Worker processes a single uploaded document job.
type Worker struct {
	coord     *Coordinator
	catalog   store.Catalog
	parseOpts parser.Options
	log       *slog.Logger
}

// NewWorker builds a worker around coord. Dedup is enabled when sink also
// implements store.Catalog.
func NewWorker(coord *Coordinator, sink store.Sink, parseOpts parser.Options, log *slog.Logger) *Worker {
	catalog, _ := sink.(store.Catalog)
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Worker{coord: coord, catalog: catalog, parseOpts: parseOpts, log: log}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFileWith(job.Filename, w.parseOpts)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	job.ReleaseFileData()
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	doc.ID = job.DocID
	job.SetTitle(doc.Title)
	if job.Title != "" {
		doc.Title = job.Title
	}

	if strings.TrimSpace(doc.Text) == "" {
		log.Warn("no text extracted")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	hash := ContentHashHex([]byte(doc.Text))
	job.SetContentHash(hash)

	// Phase 1.5: Dedup check
	if w.catalog != nil {
		existing, found, err := w.catalog.FindByHash(ctx, hash)
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if found {
			log.Info("duplicate document, skipping", "existing_doc_id", existing)
			w.coord.metrics.Document("duplicate")
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 2-4: chunk, enrich, store
	job.SetStatus(StatusChunking, "chunking")
	sum, err := w.coord.RunWith(ctx, []document.Document{doc}, RunOptions{
		Failures: job.Failures(),
		OnChunked: func(total int) {
			job.SetTotalChunks(total)
			job.SetStatus(StatusEnriching, "enriching")
		},
		OnProgress: func(done, _ int) { job.SetEnriched(done) },
		OnStored:   job.IncrStored,
	})
	if err != nil {
		log.Error("run aborted", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "enriching")
		return
	}
	job.SetFailed(sum.Failed)

	switch {
	case sum.DocumentsFailed > 0:
		for _, f := range sum.Failures {
			if f.Stage == StageDocument {
				job.AddError(f.Error)
			}
		}
		job.SetStatus(StatusFailed, "chunking")
	case sum.Chunks == 0:
		job.AddError("no chunks produced")
		job.SetStatus(StatusFailed, "chunking")
	case len(sum.Failures) > 0 && sum.Stored > 0:
		job.SetStatus(StatusPartial, "done")
	case len(sum.Failures) > 0:
		job.SetStatus(StatusFailed, "storing")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("job finished", "chunks", sum.Chunks, "stored", sum.Stored, "failed", sum.Failed)
}
