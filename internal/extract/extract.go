// Package extract derives summary, questions and keywords for chunk text
// from a chat model.
package extract

import "context"

// Extractor returns Metadata for text. headerPath is passed to the model
// as grounding context.
type Extractor interface {
	Extract(ctx context.Context, text, headerPath string) (Metadata, error)
	Model() string
}
