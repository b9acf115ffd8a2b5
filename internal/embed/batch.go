package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docchunk/internal/retry"
)

const DefaultBatchSize = 100

// BatchFailure is a batch that still failed after retries.
type BatchFailure struct {
	Start, End int // Input positions [Start, End).
	Err        error
}

// PartialError reports the batches that failed. Vectors for every other
// input are still returned alongside it.
type PartialError struct {
	Total    int
	Failures []BatchFailure
}

func (e *PartialError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	failed := 0
	for _, f := range e.Failures {
		failed += f.End - f.Start
		parts = append(parts, fmt.Sprintf("[%d:%d] %v", f.Start, f.End, f.Err))
	}
	return fmt.Sprintf("%d of %d embeddings failed: %s", failed, e.Total, strings.Join(parts, "; "))
}

// Unwrap exposes each batch error to errors.Is/As.
func (e *PartialError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// ItemErr returns the failure covering input i, or nil.
func (e *PartialError) ItemErr(i int) error {
	for _, f := range e.Failures {
		if i >= f.Start && i < f.End {
			return f.Err
		}
	}
	return nil
}

// Batcher splits inputs into fixed-size batches, sends them concurrently
// under the retry policy, and reassembles the vectors in input order.
type Batcher struct {
	inner    Embedder
	size     int
	parallel int
	policy   retry.Policy
	log      *slog.Logger

	// OnBatch, if set, is called after every batch settles.
	OnBatch func(size int, err error)
}

// NewBatcher wraps inner. parallel caps in-flight batches; 0 means no cap.
func NewBatcher(inner Embedder, size, parallel int, policy retry.Policy, log *slog.Logger) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Batcher{inner: inner, size: size, parallel: parallel, policy: policy, log: log}
}

func (b *Batcher) Model() string {
	return b.inner.Model()
}

// Embed returns one vector per text. If some batches fail, the vectors for
// those positions are nil and the error is a *PartialError.
func (b *Batcher) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	numBatches := (len(texts) + b.size - 1) / b.size
	errs := make([]error, numBatches)

	var g errgroup.Group
	if b.parallel > 0 {
		g.SetLimit(b.parallel)
	}
	for bi := range numBatches {
		start := bi * b.size
		end := min(start+b.size, len(texts))
		g.Go(func() error {
			vecs, err := retry.Do(ctx, b.policy, func(ctx context.Context) ([][]float32, error) {
				return b.inner.Embed(ctx, texts[start:end])
			})
			if err == nil && len(vecs) != end-start {
				err = fmt.Errorf("got %d vectors for %d inputs", len(vecs), end-start)
			}
			if b.OnBatch != nil {
				b.OnBatch(end-start, err)
			}
			if err != nil {
				b.log.Warn("embedding batch failed", "start", start, "end", end, "error", err)
				errs[bi] = err
				return nil
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	_ = g.Wait()

	var perr *PartialError
	for bi, err := range errs {
		if err == nil {
			continue
		}
		if perr == nil {
			perr = &PartialError{Total: len(texts)}
		}
		start := bi * b.size
		perr.Failures = append(perr.Failures, BatchFailure{
			Start: start,
			End:   min(start+b.size, len(texts)),
			Err:   err,
		})
	}
	if perr != nil {
		return out, perr
	}
	return out, nil
}
