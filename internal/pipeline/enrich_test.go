package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dgallion1/docchunk/internal/embed"
	"github.com/dgallion1/docchunk/internal/extract"
	"github.com/dgallion1/docchunk/internal/retry"
)

func TestEnrich_AllSucceed(t *testing.T) {
	ext := newFakeExtractor(nil)
	emb := &fakeEmbedder{}
	e := NewEnricher(ext, emb, 2, testPolicy(), nil, nil)

	failures := NewFailureLog()
	results := e.Enrich(context.Background(), items(5), failures, EnrichHooks{})

	if failures.Len() != 0 {
		t.Fatalf("expected no failures, got %+v", failures.Snapshot())
	}
	for i, r := range results {
		if r.Err != nil {
			t.Errorf("item %d: unexpected error %v", i, r.Err)
		}
		if len(r.Metadata.Questions) > extract.MaxQuestions {
			t.Errorf("item %d: %d questions", i, len(r.Metadata.Questions))
		}
		if len(r.Metadata.Keywords) > extract.MaxKeywords {
			t.Errorf("item %d: %d keywords", i, len(r.Metadata.Keywords))
		}
		if r.Metadata.Summary != "summary of Doc" {
			t.Errorf("item %d: summary %q", i, r.Metadata.Summary)
		}
		if len(r.Embedding) != 3 {
			t.Errorf("item %d: expected embedding, got %v", i, r.Embedding)
		}
	}
	if emb.calls != 1 {
		t.Errorf("expected embeddings in one call, got %d", emb.calls)
	}
}

func TestEnrich_ExhaustedItemGetsDefault(t *testing.T) {
	ext := newFakeExtractor(func(text string) error {
		if text == "chunk 2" {
			return &retry.RetryableError{Service: "llm", StatusCode: 429, Message: "slow down"}
		}
		return nil
	})
	e := NewEnricher(ext, &fakeEmbedder{}, 2, testPolicy(), nil, nil)

	failures := NewFailureLog()
	results := e.Enrich(context.Background(), items(5), failures, EnrichHooks{})

	if got := ext.Calls("chunk 2"); got != 3 {
		t.Errorf("expected 3 attempts for the failing item, got %d", got)
	}
	if !results[2].Metadata.IsZero() {
		t.Errorf("expected zero metadata for failed item, got %+v", results[2].Metadata)
	}
	if results[2].Err == nil {
		t.Error("expected error on failed item")
	}

	recs := failures.Snapshot()
	if len(recs) != 1 {
		t.Fatalf("expected exactly one failure, got %d", len(recs))
	}
	if recs[0].Index != 2 || recs[0].Stage != StageEnrich {
		t.Errorf("unexpected failure record %+v", recs[0])
	}
	if !strings.Contains(recs[0].Error, "slow down") {
		t.Errorf("expected cause in error text, got %q", recs[0].Error)
	}

	for i, r := range results {
		if i == 2 {
			continue
		}
		if r.Err != nil || r.Metadata.IsZero() {
			t.Errorf("item %d should have completed: %+v", i, r)
		}
	}
}

func TestEnrich_PermanentErrorStopsEarly(t *testing.T) {
	ext := newFakeExtractor(func(text string) error {
		return retry.Permanent(errors.New("unauthorized"))
	})
	e := NewEnricher(ext, nil, 10, testPolicy(), nil, nil)

	failures := NewFailureLog()
	e.Enrich(context.Background(), items(1), failures, EnrichHooks{})

	if got := ext.Calls("chunk 0"); got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
	if failures.Len() != 1 {
		t.Errorf("expected one failure, got %d", failures.Len())
	}
}

func TestEnrich_FailedEmbeddingBatch(t *testing.T) {
	stub := &fakeEmbedder{poison: "chunk 3"}
	batcher := embed.NewBatcher(stub, 1, 0, retry.Policy{MaxAttempts: 1}, nil)
	e := NewEnricher(newFakeExtractor(nil), batcher, 10, testPolicy(), nil, nil)

	failures := NewFailureLog()
	results := e.Enrich(context.Background(), items(5), failures, EnrichHooks{})

	recs := failures.Snapshot()
	if len(recs) != 1 || recs[0].Index != 3 || recs[0].Stage != StageEmbed {
		t.Fatalf("expected one embed failure for item 3, got %+v", recs)
	}
	if results[3].Embedding != nil {
		t.Error("expected nil embedding for failed batch")
	}
	if results[3].Metadata.IsZero() {
		t.Error("metadata should still be extracted when embedding fails")
	}
	for _, i := range []int{0, 1, 2, 4} {
		if results[i].Embedding == nil {
			t.Errorf("item %d: expected embedding", i)
		}
	}
}

func TestEnrich_EmbedAndExtractFailureIsOneRecord(t *testing.T) {
	stub := &fakeEmbedder{poison: "chunk 3"}
	batcher := embed.NewBatcher(stub, 1, 0, retry.Policy{MaxAttempts: 1}, nil)
	ext := newFakeExtractor(func(text string) error {
		if text == "chunk 3" {
			return errors.New("model overloaded")
		}
		return nil
	})
	e := NewEnricher(ext, batcher, 10, testPolicy(), nil, nil)

	failures := NewFailureLog()
	results := e.Enrich(context.Background(), items(5), failures, EnrichHooks{})

	recs := failures.Snapshot()
	if len(recs) != 1 {
		t.Fatalf("expected exactly one failure record, got %+v", recs)
	}
	if recs[0].Index != 3 || recs[0].Stage != StageEnrich {
		t.Errorf("unexpected record %+v", recs[0])
	}
	if !strings.Contains(recs[0].Error, "embed:") || !strings.Contains(recs[0].Error, "enrich:") {
		t.Errorf("expected both causes in error, got %q", recs[0].Error)
	}
	if results[3].Err == nil || !results[3].Metadata.IsZero() || results[3].Embedding != nil {
		t.Errorf("unexpected result for failed item %+v", results[3])
	}
}

func TestEnrich_ProgressAndHooks(t *testing.T) {
	e := NewEnricher(newFakeExtractor(nil), &fakeEmbedder{}, 2, testPolicy(), nil, nil)

	var (
		mu       sync.Mutex
		progress [][2]int
		seen     = make(map[int]bool)
	)
	e.Enrich(context.Background(), items(5), NewFailureLog(), EnrichHooks{
		OnItem: func(pos int, _ Result) {
			mu.Lock()
			seen[pos] = true
			mu.Unlock()
		},
		OnProgress: func(done, total int) {
			progress = append(progress, [2]int{done, total})
		},
	})

	want := [][2]int{{2, 5}, {4, 5}, {5, 5}}
	if len(progress) != len(want) {
		t.Fatalf("expected %v, got %v", want, progress)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, progress[i], want[i])
		}
	}
	if len(seen) != 5 {
		t.Errorf("expected OnItem for all 5 items, got %d", len(seen))
	}
}

func TestEnrich_Empty(t *testing.T) {
	e := NewEnricher(newFakeExtractor(nil), &fakeEmbedder{}, 2, testPolicy(), nil, nil)
	if got := e.Enrich(context.Background(), nil, NewFailureLog(), EnrichHooks{}); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}
