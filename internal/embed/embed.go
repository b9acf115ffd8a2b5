// Package embed produces embedding vectors for text through an external
// service, with batching and caching layers on top.
package embed

import "context"

// Embedder returns one vector per input text, index-aligned with texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}
