package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docchunk/internal/embed"
	"github.com/dgallion1/docchunk/internal/extract"
	"github.com/dgallion1/docchunk/internal/metrics"
	"github.com/dgallion1/docchunk/internal/retry"
)

// DefaultEnrichBatchSize is the number of chunks sent to the extractor at
// once.
const DefaultEnrichBatchSize = 10

// Item is one chunk waiting for enrichment.
type Item struct {
	Index      int // Global chunk index.
	Source     string
	HeaderPath string
	Text       string
}

// Result is the enrichment outcome for one item. Err is nil when both the
// metadata and the embedding were obtained.
type Result struct {
	Metadata  extract.Metadata
	Embedding []float32
	Err       error
}

// EnrichHooks receive progress while Enrich runs. OnItem is called from
// worker goroutines as soon as an item settles; pos is the item's position in
// the input slice.
type EnrichHooks struct {
	OnItem     func(pos int, res Result)
	OnProgress func(done, total int)
}

// Enricher attaches metadata and content embeddings to chunks.
type Enricher struct {
	extractor extract.Extractor
	embedder  embed.Embedder
	batchSize int
	policy    retry.Policy
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// NewEnricher builds an Enricher. embedder should already batch and retry
// (see embed.Batcher); policy governs metadata extraction only.
func NewEnricher(extractor extract.Extractor, embedder embed.Embedder, batchSize int, policy retry.Policy, m *metrics.Metrics, log *slog.Logger) *Enricher {
	if batchSize <= 0 {
		batchSize = DefaultEnrichBatchSize
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Enricher{
		extractor: extractor,
		embedder:  embedder,
		batchSize: batchSize,
		policy:    policy,
		metrics:   m,
		log:       log,
	}
}

// Enrich returns one Result per item, in input order. Each failed item adds
// exactly one record to failures, whichever steps failed, and never stops
// the remaining items.
func (e *Enricher) Enrich(ctx context.Context, items []Item, failures *FailureLog, hooks EnrichHooks) []Result {
	results := make([]Result, len(items))
	if len(items) == 0 {
		return results
	}

	embedErrs := e.embedAll(ctx, items, results)

	total := len(items)
	done := 0
	for start := 0; start < total; start += e.batchSize {
		end := min(start+e.batchSize, total)

		var g errgroup.Group
		for pos := start; pos < end; pos++ {
			g.Go(func() error {
				md, extractErr := e.extractOne(ctx, items[pos])
				res := results[pos]
				res.Metadata = md
				res.Err = errors.Join(embedErrs[pos], extractErr)
				results[pos] = res
				if res.Err != nil {
					stage := StageEmbed
					if extractErr != nil {
						stage = StageEnrich
					}
					it := items[pos]
					failures.Append(NewFailure(stage, it.Index, it.Source, it.HeaderPath, it.Text, res.Err))
				}
				if hooks.OnItem != nil {
					hooks.OnItem(pos, res)
				}
				return nil
			})
		}
		_ = g.Wait()

		done = end
		e.log.Info("enrichment progress", "done", done, "total", total)
		if hooks.OnProgress != nil {
			hooks.OnProgress(done, total)
		}
	}
	return results
}

// embedAll fills results[i].Embedding and returns the per-item embedding
// error, if any.
func (e *Enricher) embedAll(ctx context.Context, items []Item, results []Result) []error {
	errs := make([]error, len(items))
	if e.embedder == nil {
		return errs
	}

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Text
	}
	vectors, err := e.embedder.Embed(ctx, texts)

	var perr *embed.PartialError
	switch {
	case err == nil:
	case errors.As(err, &perr):
		for i := range items {
			errs[i] = perr.ItemErr(i)
		}
	default:
		for i := range items {
			errs[i] = err
		}
	}

	for i, it := range items {
		if errs[i] != nil {
			errs[i] = fmt.Errorf("embed: %w", errs[i])
			e.log.Error("content embedding failed", "chunk_index", it.Index, "source", it.Source, "error", errs[i])
			continue
		}
		if i < len(vectors) {
			results[i].Embedding = vectors[i]
		}
	}
	return errs
}

// extractOne calls the extractor under the retry policy. On exhaustion it
// returns the zero Metadata and the last error.
func (e *Enricher) extractOne(ctx context.Context, it Item) (extract.Metadata, error) {
	log := e.log.With("chunk_index", it.Index, "source", it.Source)

	policy := e.policy
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Warn("retrying metadata extraction", "attempt", attempt, "wait", wait, "error", err)
	}

	start := time.Now()
	md, err := retry.Do(ctx, policy, func(ctx context.Context) (extract.Metadata, error) {
		return e.extractor.Extract(ctx, it.Text, it.HeaderPath)
	})
	e.metrics.Enrichment(time.Since(start), err)
	if err != nil {
		err = fmt.Errorf("enrich: %w", err)
		log.Error("metadata extraction failed", "header_path", it.HeaderPath, "error", err)
		return extract.Metadata{}, err
	}
	return md, nil
}
