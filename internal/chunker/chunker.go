package chunker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docchunk/internal/document"
)

// ErrInvalidConfig marks a chunker configuration that cannot be used.
var ErrInvalidConfig = errors.New("invalid chunker config")

// Config controls chunk sizing. Sizes are in characters.
type Config struct {
	MinSize       int // A chunk may close on a topic shift once this big.
	MaxSize       int // A chunk closes before the next unit would exceed this.
	LongParagraph int // Paragraphs longer than this are split into sentences.
}

// DefaultConfig returns the production sizing.
func DefaultConfig() Config {
	return Config{
		MinSize:       300,
		MaxSize:       2000,
		LongParagraph: DefaultLongParagraph,
	}
}

// Validate rejects sizes the boundary scan cannot honor.
func (c Config) Validate() error {
	if c.MinSize <= 0 || c.MaxSize <= 0 {
		return fmt.Errorf("%w: sizes must be positive (min %d, max %d)", ErrInvalidConfig, c.MinSize, c.MaxSize)
	}
	if c.MinSize > c.MaxSize {
		return fmt.Errorf("%w: min size %d exceeds max size %d", ErrInvalidConfig, c.MinSize, c.MaxSize)
	}
	if c.LongParagraph <= 0 {
		return fmt.Errorf("%w: long paragraph length must be positive", ErrInvalidConfig)
	}
	return nil
}

// Embedder returns one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker turns document text into semantically grouped chunks.
type Chunker struct {
	cfg      Config
	embedder Embedder
	log      *slog.Logger
}

func New(cfg Config, embedder Embedder, log *slog.Logger) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Chunker{cfg: cfg, embedder: embedder, log: log}, nil
}

// Config returns the sizing in use.
func (c *Chunker) Config() Config {
	return c.cfg
}

// Units extracts the units of text without grouping them.
func (c *Chunker) Units(text string) []document.Unit {
	return extractUnits(text, c.cfg.LongParagraph, c.log)
}

// Chunk extracts units and groups them. Documents with fewer than two units
// never reach the embedder.
func (c *Chunker) Chunk(ctx context.Context, text string) ([]document.Chunk, error) {
	units := c.Units(text)
	if len(units) < 2 {
		return Group(units, nil, c.cfg)
	}

	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Text
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d units: %w", len(units), err)
	}

	chunks, err := Group(units, vectors, c.cfg)
	if err != nil {
		return nil, err
	}
	c.log.Debug("chunked document", "units", len(units), "chunks", len(chunks))
	return chunks, nil
}
