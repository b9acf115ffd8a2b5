package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/docchunk/internal/chunker"
	"github.com/dgallion1/docchunk/internal/extract"
	"github.com/dgallion1/docchunk/internal/retry"
	"github.com/dgallion1/docchunk/internal/store"
)

func testPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, Delay: time.Millisecond, Multiplier: 1}
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls map[string]int
	fail  func(text string) error
}

func newFakeExtractor(fail func(text string) error) *fakeExtractor {
	return &fakeExtractor{calls: make(map[string]int), fail: fail}
}

func (f *fakeExtractor) Extract(_ context.Context, text, headerPath string) (extract.Metadata, error) {
	f.mu.Lock()
	f.calls[text]++
	f.mu.Unlock()
	if f.fail != nil {
		if err := f.fail(text); err != nil {
			return extract.Metadata{}, err
		}
	}
	return extract.NewMetadata(
		"summary of "+headerPath,
		[]string{"q1", "q2", "q3", "q4", "q5", "q6"},
		[]string{"k1", "k2", "k3", "k4", "k5", "k6", "k7"},
	), nil
}

func (f *fakeExtractor) Model() string { return "fake-extractor" }

func (f *fakeExtractor) Calls(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[text]
}

// fakeEmbedder returns a constant vector, failing any call whose input
// contains a poisoned marker.
type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	poison string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.poison != "" && strings.Contains(t, f.poison) {
			return nil, errors.New("embedding service unavailable")
		}
		out[i] = []float32{1, 0, float32(len(t))}
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string { return "fake-embedder" }

// memSink is an in-memory store.Sink and store.Catalog.
type memSink struct {
	mu      sync.Mutex
	records map[string]store.Record
	docs    map[string]store.DocumentMeta
	failFn  func(store.Record) error
}

func newMemSink() *memSink {
	return &memSink{records: make(map[string]store.Record), docs: make(map[string]store.DocumentMeta)}
}

func (m *memSink) SaveDocument(_ context.Context, meta store.DocumentMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[meta.DocID] = meta
	return nil
}

func (m *memSink) Save(_ context.Context, rec store.Record) error {
	if m.failFn != nil {
		if err := m.failFn(rec); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

func (m *memSink) Close() error { return nil }

func (m *memSink) FindByHash(_ context.Context, hash string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, d := range m.docs {
		if d.ContentHash == hash {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (m *memSink) ListDocuments(context.Context) ([]store.DocumentMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.DocumentMeta, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	return out, nil
}

func (m *memSink) DeleteDocument(_ context.Context, docID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.records {
		if r.DocID == docID {
			delete(m.records, id)
			n++
		}
	}
	delete(m.docs, docID)
	return n, nil
}

func (m *memSink) byGlobalIndex() map[int]store.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]store.Record, len(m.records))
	for _, r := range m.records {
		out[r.GlobalIndex] = r
	}
	return out
}

type testRig struct {
	extractor *fakeExtractor
	embedder  *fakeEmbedder
	sink      *memSink
	coord     *Coordinator
}

func newTestRig(t *testing.T, extractFail func(string) error, poison string) *testRig {
	t.Helper()
	emb := &fakeEmbedder{poison: poison}
	ch, err := chunker.New(chunker.DefaultConfig(), emb, nil)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	ext := newFakeExtractor(extractFail)
	sink := newMemSink()
	enr := NewEnricher(ext, emb, 2, testPolicy(), nil, nil)
	coord := NewCoordinator(Deps{Chunker: ch, Enricher: enr, Sink: sink, MaxConcurrentDocs: 2})
	return &testRig{extractor: ext, embedder: emb, sink: sink, coord: coord}
}

func items(n int) []Item {
	out := make([]Item, n)
	for i := range out {
		out[i] = Item{Index: i, Source: "doc.md", HeaderPath: "Doc", Text: fmt.Sprintf("chunk %d", i)}
	}
	return out
}
