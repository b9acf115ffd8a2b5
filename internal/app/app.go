// Package app assembles the chunking pipeline from a Config. Both the
// server and the CLI build their engine here.
package app

import (
	"fmt"
	"log/slog"

	"github.com/dgallion1/docchunk/internal/chunker"
	"github.com/dgallion1/docchunk/internal/config"
	"github.com/dgallion1/docchunk/internal/embed"
	"github.com/dgallion1/docchunk/internal/extract"
	"github.com/dgallion1/docchunk/internal/metrics"
	"github.com/dgallion1/docchunk/internal/pipeline"
	"github.com/dgallion1/docchunk/internal/store"
)

// LLM is a chat-model extractor with latency stats and pooled connections.
type LLM interface {
	extract.Extractor
	Stats() *extract.LLMStats
	Close()
}

// Engine is a wired pipeline. Close releases the clients and the sink.
type Engine struct {
	LLM         LLM
	Embedder    *embed.Batcher
	Chunker     *chunker.Chunker
	Sink        store.Sink
	Metrics     *metrics.Metrics
	Coordinator *pipeline.Coordinator

	embedClient *embed.OpenAIClient
}

// NewLLM returns the extractor named by cfg.ExtractProvider.
func NewLLM(cfg config.Config) (LLM, error) {
	switch cfg.ExtractProvider {
	case "", "openai":
		return extract.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	case "anthropic":
		return extract.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	default:
		return nil, fmt.Errorf("%w: unknown extract provider %q", config.ErrInvalid, cfg.ExtractProvider)
	}
}

// Build wires every stage. storeOpts is usually cfg.StoreOptions(),
// adjusted by the caller.
func Build(cfg config.Config, storeOpts store.Options, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	m := metrics.New()

	llm, err := NewLLM(cfg)
	if err != nil {
		return nil, err
	}

	client := embed.NewOpenAIClient(cfg.EmbeddingAPIKey, cfg.EmbeddingBaseURL, cfg.EmbeddingModel)
	cached := embed.NewCachedEmbedder(client, cfg.EmbeddingCacheSize)
	batcher := embed.NewBatcher(cached, cfg.EmbeddingBatchSize, cfg.MaxConcurrentDocs, cfg.RetryPolicy(), log.With("component", "embed"))
	batcher.OnBatch = m.EmbeddingBatch

	ch, err := chunker.New(cfg.ChunkerConfig(), batcher, log.With("component", "chunker"))
	if err != nil {
		llm.Close()
		client.Close()
		return nil, err
	}

	sink, err := store.Open(storeOpts)
	if err != nil {
		llm.Close()
		client.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	enricher := pipeline.NewEnricher(llm, batcher, cfg.EnrichBatchSize, cfg.RetryPolicy(), m, log.With("component", "enrich"))
	coord := pipeline.NewCoordinator(pipeline.Deps{
		Chunker:           ch,
		Enricher:          enricher,
		Sink:              sink,
		Metrics:           m,
		Log:               log,
		MaxConcurrentDocs: cfg.MaxConcurrentDocs,
	})

	log.Info("pipeline ready",
		"extract_model", llm.Model(),
		"embedding_model", batcher.Model(),
		"store", storeOpts.Backend,
	)

	return &Engine{
		LLM:         llm,
		Embedder:    batcher,
		Chunker:     ch,
		Sink:        sink,
		Metrics:     m,
		Coordinator: coord,
		embedClient: client,
	}, nil
}

// Catalog returns the sink as a store.Catalog, or nil when the backend
// cannot answer catalog queries.
func (e *Engine) Catalog() store.Catalog {
	c, _ := e.Sink.(store.Catalog)
	return c
}

func (e *Engine) Close() error {
	e.LLM.Close()
	e.embedClient.Close()
	return e.Sink.Close()
}
