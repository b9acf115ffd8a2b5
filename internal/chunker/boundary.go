package chunker

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/dgallion1/docchunk/internal/document"
)

// ThresholdPercentile places the topic-shift threshold relative to the
// document's own similarity distribution.
const ThresholdPercentile = 40

// ErrVectorCount is returned when vectors do not line up with units.
var ErrVectorCount = errors.New("vector count does not match unit count")

// Group merges units into size-bounded chunks. A chunk closes at a topic
// shift once it is big enough, or before it would overflow MaxSize. The
// closing unit is repeated at the start of the next chunk unless it is a
// header.
func Group(units []document.Unit, vectors [][]float32, cfg Config) ([]document.Chunk, error) {
	switch len(units) {
	case 0:
		return nil, nil
	case 1:
		return []document.Chunk{document.NewChunk(units)}, nil
	}
	if len(vectors) != len(units) {
		return nil, fmt.Errorf("%w: %d vectors for %d units", ErrVectorCount, len(vectors), len(units))
	}

	sims := make([]float64, len(units)-1)
	for i := range sims {
		sims[i] = Cosine(vectors[i], vectors[i+1])
	}
	threshold := Percentile(sims, ThresholdPercentile)

	var chunks []document.Chunk
	current := []document.Unit{units[0]}
	for i, sim := range sims {
		next := units[i+1]
		size := accumulated(current)

		topicShift := sim < threshold
		bigEnough := size >= cfg.MinSize
		overflow := size+utf8.RuneCountInString(next.Text) > cfg.MaxSize

		if (topicShift && bigEnough) || overflow {
			chunks = append(chunks, document.NewChunk(current))
			last := current[len(current)-1]
			if last.Kind == document.KindHeader {
				current = []document.Unit{next}
			} else {
				current = []document.Unit{last, next}
			}
			continue
		}
		current = append(current, next)
	}
	return append(chunks, document.NewChunk(current)), nil
}

// accumulated counts each unit plus the two-character separator it will be
// joined with.
func accumulated(units []document.Unit) int {
	n := 0
	for _, u := range units {
		n += utf8.RuneCountInString(u.Text) + 2
	}
	return n
}
